package repository

import (
	"context"
	"fmt"
)

// InsertReferralBonus фиксирует реферальный бонус на пару (пригласивший, приглашённый).
// Уникальный индекс гарантирует не более одного бонуса на пару; повторная попытка
// возвращает false без ошибки.
func (s *Storage) InsertReferralBonus(ctx context.Context, referrerID, referredID int64, bonusDays int) (bool, error) {
	const op = "storage.InsertReferralBonus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`INSERT INTO referral_bonuses (referrer_id, referred_id, bonus_days)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (referrer_id, referred_id) DO NOTHING`,
		referrerID, referredID, bonusDays)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inserted > 0, nil
}

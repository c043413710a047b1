package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

var (
	// ErrPromoNotFound промокод не существует.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoAlreadyRedeemed пользователь уже активировал этот промокод.
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed by user")
	// ErrPromoExhausted лимит активаций промокода исчерпан.
	ErrPromoExhausted = errors.New("promo code usage limit reached")
)

// CreatePromoCode сохраняет новый промокод и возвращает его ID.
func (s *Storage) CreatePromoCode(ctx context.Context, promo models.PromoCode) (int64, error) {
	const op = "storage.CreatePromoCode"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO promo_codes (code, bonus_days, usage_limit, valid_from, valid_until)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		promo.Code, promo.BonusDays, promo.UsageLimit, promo.ValidFrom, promo.ValidUntil).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPromoCodeByCode возвращает промокод по строке кода.
func (s *Storage) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCodeByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, code, bonus_days, usage_limit, usage_count, valid_from, valid_until, created_at
			  FROM promo_codes WHERE code = $1`
	var result models.PromoCode
	row := s.DB.QueryRowContext(ctx, query, code)
	if err := row.Scan(&result.ID, &result.Code, &result.BonusDays, &result.UsageLimit,
		&result.UsageCount, &result.ValidFrom, &result.ValidUntil, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// RedeemPromoCode регистрирует активацию промокода пользователем в одной транзакции:
// вставка записи активации (уникальна на пару код-пользователь) и инкремент счётчика
// с проверкой лимита. Повторная активация и исчерпанный лимит различаются ошибками.
func (s *Storage) RedeemPromoCode(ctx context.Context, codeID, userID int64) error {
	const op = "storage.RedeemPromoCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`INSERT INTO promo_redemptions (code_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (code_id, user_id) DO NOTHING`, codeID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		return fmt.Errorf("%s: %w", op, ErrPromoAlreadyRedeemed)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE promo_codes SET usage_count = usage_count + 1
		 WHERE id = $1 AND usage_count < usage_limit`, codeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if updated == 0 {
		return fmt.Errorf("%s: %w", op, ErrPromoExhausted)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListPromoCodes возвращает промокоды со счётчиками активаций.
func (s *Storage) ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error) {
	const op = "storage.ListPromoCodes"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, code, bonus_days, usage_limit, usage_count, valid_from, valid_until, created_at
		 FROM promo_codes
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.PromoCode
	for rows.Next() {
		var item models.PromoCode
		if err := rows.Scan(&item.ID, &item.Code, &item.BonusDays, &item.UsageLimit,
			&item.UsageCount, &item.ValidFrom, &item.ValidUntil, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ErrUserNotFound пользователь отсутствует в хранилище.
var ErrUserNotFound = errors.New("user not found")

// EnsureUser сохраняет пользователя при первом контакте.
// Повторный вызов для существующего пользователя обновляет username и язык;
// пригласивший дозаполняется один раз, если был неизвестен, и никогда не
// перезаписывается.
func (s *Storage) EnsureUser(ctx context.Context, user models.User) error {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (id, username, language_code, referral_code, referred_by_id)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (id) DO UPDATE
			  SET username = EXCLUDED.username,
			      language_code = EXCLUDED.language_code,
			      referred_by_id = COALESCE(users.referred_by_id, EXCLUDED.referred_by_id)`
	_, err := s.DB.ExecContext(ctx, query,
		user.ID, user.Username, user.LanguageCode, user.ReferralCode, user.ReferredByID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по его идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, username, language_code, is_banned, referral_code,
			      referred_by_id, trial_used, created_at
			  FROM users WHERE id = $1`
	u := &models.User{}
	var referredBy sql.NullInt64
	row := s.DB.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&u.ID, &u.Username, &u.LanguageCode, &u.IsBanned,
		&u.ReferralCode, &referredBy, &u.TrialUsed, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if referredBy.Valid {
		u.ReferredByID = &referredBy.Int64
	}
	return u, nil
}

// SetUserBanned выставляет флаг блокировки пользователя.
func (s *Storage) SetUserBanned(ctx context.Context, userID int64, banned bool) error {
	const op = "storage.SetUserBanned"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE users SET is_banned = $1 WHERE id = $2`, banned, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// ConsumeTrial атомарно помечает пробный период использованным.
// Возвращает false, если триал уже был использован.
func (s *Storage) ConsumeTrial(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.ConsumeTrial"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE users SET trial_used = true WHERE id = $1 AND trial_used = false`, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

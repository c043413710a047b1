package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// GetSyncRecord возвращает запись синхронизации пользователя или nil, если её нет.
func (s *Storage) GetSyncRecord(ctx context.Context, userID int64) (*models.PanelSyncRecord, error) {
	const op = "storage.GetSyncRecord"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, local_hash, remote_hash, last_attempt_at, last_error, needs_review
			  FROM panel_sync_records WHERE user_id = $1`
	row := s.DB.QueryRowContext(ctx, query, userID)

	var result models.PanelSyncRecord
	var lastAttempt sql.NullTime
	if err := row.Scan(&result.UserID, &result.LocalHash, &result.RemoteHash,
		&lastAttempt, &result.LastError, &result.NeedsReview); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if lastAttempt.Valid {
		result.LastAttemptAt = &lastAttempt.Time
	}
	return &result, nil
}

// UpsertSyncRecord сохраняет результат попытки синхронизации.
func (s *Storage) UpsertSyncRecord(ctx context.Context, record models.PanelSyncRecord) error {
	const op = "storage.UpsertSyncRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO panel_sync_records (user_id, local_hash, remote_hash,
			      last_attempt_at, last_error, needs_review)
			  VALUES ($1, $2, $3, now(), $4, $5)
			  ON CONFLICT (user_id) DO UPDATE
			  SET local_hash = EXCLUDED.local_hash,
			      remote_hash = EXCLUDED.remote_hash,
			      last_attempt_at = now(),
			      last_error = EXCLUDED.last_error,
			      needs_review = EXCLUDED.needs_review`
	_, err := s.DB.ExecContext(ctx, query,
		record.UserID, record.LocalHash, record.RemoteHash, record.LastError, record.NeedsReview)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkSyncNeedsReview поднимает флаг внимания оператора, не меняя хэши.
func (s *Storage) MarkSyncNeedsReview(ctx context.Context, userID int64, reason string) error {
	const op = "storage.MarkSyncNeedsReview"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO panel_sync_records (user_id, local_hash, remote_hash,
			      last_attempt_at, last_error, needs_review)
			  VALUES ($1, '', '', now(), $2, true)
			  ON CONFLICT (user_id) DO UPDATE
			  SET last_error = EXCLUDED.last_error, needs_review = true`
	_, err := s.DB.ExecContext(ctx, query, userID, reason)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

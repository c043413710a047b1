package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// GetSubscription возвращает подписку пользователя или nil, если записи нет.
func (s *Storage) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, end_date, traffic_limit, panel_user_uuid, squads,
			      is_trial, revoked, updated_at
			  FROM subscriptions WHERE user_id = $1`
	row := s.DB.QueryRowContext(ctx, query, userID)

	var result models.Subscription
	var squads string
	if err := row.Scan(&result.UserID, &result.EndDate, &result.TrafficLimit,
		&result.PanelUserUUID, &squads, &result.IsTrial, &result.Revoked,
		&result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.Squads = splitSquads(squads)
	return &result, nil
}

// UpsertSubscription создаёт или обновляет единственную запись подписки пользователя.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, end_date, traffic_limit,
			      panel_user_uuid, squads, is_trial, revoked, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			  ON CONFLICT (user_id) DO UPDATE
			  SET end_date = EXCLUDED.end_date,
			      traffic_limit = EXCLUDED.traffic_limit,
			      panel_user_uuid = EXCLUDED.panel_user_uuid,
			      squads = EXCLUDED.squads,
			      is_trial = EXCLUDED.is_trial,
			      revoked = EXCLUDED.revoked,
			      updated_at = now()`
	_, err := s.DB.ExecContext(ctx, query,
		sub.UserID, sub.EndDate, sub.TrafficLimit, sub.PanelUserUUID,
		joinSquads(sub.Squads), sub.IsTrial, sub.Revoked)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetPanelUserUUID сохраняет идентификатор учётной записи панели после первого создания.
func (s *Storage) SetPanelUserUUID(ctx context.Context, userID int64, panelUUID string) error {
	const op = "storage.SetPanelUserUUID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET panel_user_uuid = $1 WHERE user_id = $2`,
		panelUUID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListSubscriptionUserIDs возвращает идентификаторы пользователей с подпиской
// после afterUserID, страницами для фонового прохода синхронизации.
func (s *Storage) ListSubscriptionUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error) {
	const op = "storage.ListSubscriptionUserIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id FROM subscriptions WHERE user_id > $1 ORDER BY user_id LIMIT $2`,
		afterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func joinSquads(squads []string) string {
	return strings.Join(squads, ",")
}

func splitSquads(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// InsertPaymentEvent атомарно допускает платёжное событие в леджер.
// Вставка и проверка уникальности (provider, provider_payment_id) выполняются
// одним запросом через ON CONFLICT, без гонки check-then-act. Возвращает
// идентификатор записи и признак вставки; false означает повторную доставку.
func (s *Storage) InsertPaymentEvent(ctx context.Context, event models.PaymentEvent) (int64, bool, error) {
	const op = "storage.InsertPaymentEvent"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (provider, provider_payment_id, user_id, amount,
			      currency, months, payload_hash, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (provider, provider_payment_id) DO NOTHING
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		event.Provider, event.ProviderPaymentID, event.UserID, event.Amount,
		event.Currency, event.Months, event.PayloadHash, models.PaymentVerified).Scan(&newID)
	if errors.Is(err, sql.ErrNoRows) {
		// Конфликт уникальности: фиксируем повторную доставку в счётчике записи.
		_, updErr := s.DB.ExecContext(ctx,
			`UPDATE payments SET duplicate_count = duplicate_count + 1
			 WHERE provider = $1 AND provider_payment_id = $2`,
			event.Provider, event.ProviderPaymentID)
		if updErr != nil {
			return 0, false, fmt.Errorf("%s: %w", op, updErr)
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return newID, true, nil
}

// MarkPaymentStatus переводит запись леджера в новый статус обработки.
func (s *Storage) MarkPaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus, reason string) error {
	const op = "storage.MarkPaymentStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`UPDATE payments SET status = $1, reason = $2 WHERE id = $3`,
		status, reason, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPaymentByProviderID возвращает запись леджера по ключу провайдера.
func (s *Storage) GetPaymentByProviderID(ctx context.Context, provider, providerPaymentID string) (*models.PaymentEvent, error) {
	const op = "storage.GetPaymentByProviderID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, provider, provider_payment_id, user_id, amount, currency,
			      months, payload_hash, status, reason, created_at
			  FROM payments
			  WHERE provider = $1 AND provider_payment_id = $2`
	row := s.DB.QueryRowContext(ctx, query, provider, providerPaymentID)

	var result models.PaymentEvent
	if err := row.Scan(&result.ID, &result.Provider, &result.ProviderPaymentID,
		&result.UserID, &result.Amount, &result.Currency, &result.Months,
		&result.PayloadHash, &result.Status, &result.Reason, &result.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ListRecentPayments возвращает последние записи леджера для операторского обзора.
func (s *Storage) ListRecentPayments(ctx context.Context, limit, offset int) ([]*models.PaymentEvent, error) {
	const op = "storage.ListRecentPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, provider, provider_payment_id, user_id, amount, currency,
			      months, payload_hash, status, reason, created_at
			  FROM payments
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.PaymentEvent
	for rows.Next() {
		var item models.PaymentEvent
		if err := rows.Scan(&item.ID, &item.Provider, &item.ProviderPaymentID,
			&item.UserID, &item.Amount, &item.Currency, &item.Months,
			&item.PayloadHash, &item.Status, &item.Reason, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetFinancialStats подсчитывает выручку по засчитанным платежам за период
// с разбивкой по провайдеру и валюте.
func (s *Storage) GetFinancialStats(ctx context.Context, from, to time.Time) ([]models.FinancialStats, error) {
	const op = "storage.GetFinancialStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT provider, currency, COALESCE(SUM(amount), 0), COUNT(*)
			  FROM payments
			  WHERE status = $1 AND created_at >= $2 AND created_at < $3
			  GROUP BY provider, currency
			  ORDER BY provider, currency`
	rows, err := s.DB.QueryContext(ctx, query, models.PaymentCredited, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.FinancialStats
	for rows.Next() {
		var item models.FinancialStats
		if err := rows.Scan(&item.Provider, &item.Currency,
			&item.TotalAmount, &item.PaymentsCount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

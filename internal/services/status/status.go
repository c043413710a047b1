// Package status реализует read-модель подписки: статус и срок действия
// пользователя, недавние платежи и финансовую сводку. Ответы кешируются
// в Redis; любое начисление инвалидирует кеш пользователя.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

const statusTTL = 5 * time.Minute

// Cache кеш read-модели.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// SnapshotSource источник снимков подписки.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error)
}

// Repository определяет методы хранилища, нужные read-модели.
type Repository interface {
	ListRecentPayments(ctx context.Context, limit, offset int) ([]*models.PaymentEvent, error)
	GetFinancialStats(ctx context.Context, from, to time.Time) ([]models.FinancialStats, error)
}

// Service read-модель подписок и платежей.
type Service struct {
	cache  Cache
	source SnapshotSource
	repo   Repository
	log    *slog.Logger
}

// New создает новую read-модель.
func New(cache Cache, source SnapshotSource, repo Repository, log *slog.Logger) *Service {
	return &Service{cache: cache, source: source, repo: repo, log: log}
}

func statusKey(userID int64) string {
	return fmt.Sprintf("subscription:status:%d", userID)
}

// Get возвращает снимок подписки пользователя, по возможности из кеша.
// Недоступность кеша не мешает ответу: читаем из хранилища напрямую.
func (s *Service) Get(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error) {
	const op = "status.Get"

	key := statusKey(userID)
	var cached models.SubscriptionSnapshot
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("cache read failed", sl.Err(err), slog.Int64("user_id", userID))
	}
	if found {
		return &cached, nil
	}

	snapshot, err := s.source.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, snapshot, statusTTL); err != nil {
		s.log.Warn("cache write failed", sl.Err(err), slog.Int64("user_id", userID))
	}
	return snapshot, nil
}

// Invalidate сбрасывает кешированный снимок пользователя. Вызывается из
// триггера синхронизации, у которого нет запросного контекста.
func (s *Service) Invalidate(userID int64) {
	if err := s.cache.Invalidate(context.Background(), statusKey(userID)); err != nil {
		s.log.Warn("cache invalidation failed", sl.Err(err), slog.Int64("user_id", userID))
	}
}

// RecentPayments возвращает последние платёжные события для админ-обзора.
func (s *Service) RecentPayments(ctx context.Context, limit, offset int) ([]*models.PaymentEvent, error) {
	const op = "status.RecentPayments"

	payments, err := s.repo.ListRecentPayments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

// FinancialStats возвращает сводку по засчитанным платежам за период
// с разбивкой по провайдеру и валюте.
func (s *Service) FinancialStats(ctx context.Context, from, to time.Time) ([]models.FinancialStats, error) {
	const op = "status.FinancialStats"

	stats, err := s.repo.GetFinancialStats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

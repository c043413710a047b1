// Package scheduler запускает синхронизации с панелью: точечные по триггеру
// от леджера и периодические полные обходы всех подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/metrics"
	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
)

// Repository определяет методы хранилища, нужные планировщику.
type Repository interface {
	ListSubscriptionUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error)
}

// Reconciler синхронизатор одного пользователя. Reconcile — быстрый путь
// после локального изменения, VerifyRemote — сверка с фактическим
// состоянием панели для лечения внешнего дрейфа.
type Reconciler interface {
	Reconcile(ctx context.Context, userID int64) (reconciler.Result, error)
	VerifyRemote(ctx context.Context, userID int64) (reconciler.Result, error)
}

// Config параметры планировщика.
type Config struct {
	ResyncInterval    time.Duration
	ResyncConcurrency int
	ResyncBatchSize   int
}

// trigger точечная заявка на синхронизацию. verifyRemote выставляется для
// заявок, порождённых вебхуком панели: локальное состояние не менялось,
// сверяться нужно с фактическим состоянием панели.
type trigger struct {
	userID       int64
	verifyRemote bool
}

// Service планировщик синхронизаций. Реализует ledger.SyncTrigger:
// триггеры складываются в буферизованный канал и обрабатываются
// последовательно рабочим циклом Run.
type Service struct {
	repo       Repository
	reconciler Reconciler
	cfg        Config
	log        *slog.Logger
	triggers   chan trigger
}

// New создает новый планировщик.
func New(repo Repository, rec Reconciler, cfg Config, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		reconciler: rec,
		cfg:        cfg,
		log:        log,
		triggers:   make(chan trigger, 1024),
	}
}

// Trigger ставит пользователя в очередь на синхронизацию после локального
// изменения. Не блокирует: при переполненной очереди триггер отбрасывается,
// пользователя подхватит следующий полный обход.
func (s *Service) Trigger(userID int64) {
	s.enqueue(trigger{userID: userID})
}

// TriggerVerify ставит пользователя в очередь на сверку с фактическим
// состоянием панели. Используется вебхуком панели.
func (s *Service) TriggerVerify(userID int64) {
	s.enqueue(trigger{userID: userID, verifyRemote: true})
}

func (s *Service) enqueue(t trigger) {
	select {
	case s.triggers <- t:
	default:
		s.log.Warn("sync trigger queue full, dropping trigger", slog.Int64("user_id", t.userID))
	}
}

// Run рабочий цикл планировщика: обрабатывает точечные триггеры и по
// расписанию выполняет полный обход. Возвращается при отмене контекста.
func (s *Service) Run(ctx context.Context) {
	const op = "scheduler.Run"
	log := s.log.With(slog.String("op", op))
	log.Info("scheduler started", slog.Duration("resync_interval", s.cfg.ResyncInterval))

	ticker := time.NewTicker(s.cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case t := <-s.triggers:
			sync := s.reconciler.Reconcile
			if t.verifyRemote {
				sync = s.reconciler.VerifyRemote
			}
			if _, err := sync(ctx, t.userID); err != nil {
				log.Error("triggered sync failed", sl.Err(err), slog.Int64("user_id", t.userID))
			}
		case <-ticker.C:
			if err := s.RunFull(ctx); err != nil {
				log.Error("full resync failed", sl.Err(err))
			}
		}
	}
}

// RunFull выполняет полный обход: все подписки страницами, сверки внутри
// страницы параллельно с ограничением по числу одновременных вызовов панели.
// Обход сверяется с фактическим состоянием панели, поэтому лечит и дрейф
// от правок панели в обход бота. Ошибка одного пользователя не прерывает обход.
func (s *Service) RunFull(ctx context.Context) error {
	const op = "scheduler.RunFull"
	log := s.log.With(slog.String("op", op))

	start := time.Now()
	var total, failed int
	afterUserID := int64(0)

	for {
		userIDs, err := s.repo.ListSubscriptionUserIDs(ctx, afterUserID, s.cfg.ResyncBatchSize)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(userIDs) == 0 {
			break
		}
		afterUserID = userIDs[len(userIDs)-1]
		total += len(userIDs)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(s.cfg.ResyncConcurrency)
		results := make([]reconciler.Result, len(userIDs))
		for i, userID := range userIDs {
			group.Go(func() error {
				result, err := s.reconciler.VerifyRemote(groupCtx, userID)
				if err != nil {
					log.Error("resync failed", sl.Err(err), slog.Int64("user_id", userID))
					results[i] = reconciler.Result{Status: reconciler.StatusFailed}
					return nil
				}
				results[i] = result
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, result := range results {
			if result.Status == reconciler.StatusFailed {
				failed++
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	elapsed := time.Since(start)
	metrics.ResyncDuration.Observe(elapsed.Seconds())
	log.Info("full resync finished",
		slog.Int("total", total), slog.Int("failed", failed),
		slog.Duration("elapsed", elapsed))
	return nil
}

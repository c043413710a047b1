// Package resyncapp собирает одноразовый полный обход синхронизации:
// все подписки приводятся к желаемому состоянию на панели, после чего
// процесс завершается. Используется при восстановлении после простоя
// панели и при миграциях.
package resyncapp

import (
	"context"
	"log/slog"

	"github.com/artembakhtin/subscription-ledger/internal/config"
	"github.com/artembakhtin/subscription-ledger/internal/migrations"
	"github.com/artembakhtin/subscription-ledger/internal/panel"
	"github.com/artembakhtin/subscription-ledger/internal/rabbitmq"
	"github.com/artembakhtin/subscription-ledger/internal/services/accountant"
	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
	"github.com/artembakhtin/subscription-ledger/internal/services/scheduler"
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

type App struct {
	scheduler *scheduler.Service
	logger    *slog.Logger
	db        *repository.Storage
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	panelClient := panel.NewClient(cfg.Panel.BaseURL, cfg.Panel.APIToken, cfg.Panel.RequestTimeout)

	accountantService := accountant.New(db, accountant.Config{
		DefaultSquads:     cfg.Panel.DefaultSquads,
		TrialSquads:       cfg.Panel.TrialSquads,
		TrafficLimitBytes: cfg.Panel.TrafficLimitBytes,
		TrialTrafficBytes: cfg.Panel.TrialTrafficBytes,
		TrialDays:         cfg.Panel.TrialDays,
		ReferralBonusDays: cfg.Panel.ReferralBonusDays,
	}, logger)

	// События не публикуются: нулевой Publisher их отбрасывает.
	var publisher *rabbitmq.Publisher
	reconcilerService := reconciler.New(db, accountantService, panelClient, publisher, logger)
	schedulerService := scheduler.New(db, reconcilerService, scheduler.Config{
		ResyncInterval:    cfg.Scheduler.ResyncInterval,
		ResyncConcurrency: cfg.Scheduler.ResyncConcurrency,
		ResyncBatchSize:   cfg.Scheduler.ResyncBatchSize,
	}, logger)

	return &App{
		scheduler: schedulerService,
		logger:    logger,
		db:        db,
	}, nil
}

// Run выполняет один полный обход и возвращает управление.
func (a *App) Run(ctx context.Context) error {
	defer a.db.DB.Close()
	return a.scheduler.RunFull(ctx)
}

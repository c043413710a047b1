// Package ledgerapp собирает основное приложение: хранилище, кеш, брокер,
// клиент панели, сервисы и HTTP-сервер.
package ledgerapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/artembakhtin/subscription-ledger/internal/cache"
	"github.com/artembakhtin/subscription-ledger/internal/config"
	"github.com/artembakhtin/subscription-ledger/internal/lib/jwt"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/migrations"
	"github.com/artembakhtin/subscription-ledger/internal/panel"
	"github.com/artembakhtin/subscription-ledger/internal/providers"
	"github.com/artembakhtin/subscription-ledger/internal/rabbitmq"
	"github.com/artembakhtin/subscription-ledger/internal/services/accountant"
	"github.com/artembakhtin/subscription-ledger/internal/services/ledger"
	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
	"github.com/artembakhtin/subscription-ledger/internal/services/scheduler"
	"github.com/artembakhtin/subscription-ledger/internal/services/status"
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

type App struct {
	server    *http.Server
	scheduler *scheduler.Service
	logger    *slog.Logger
	db        *repository.Storage
	amqpConn  *amqp.Connection
}

// syncTrigger инвалидирует кеш read-модели и ставит пользователя
// в очередь синхронизации с панелью.
type syncTrigger struct {
	status    *status.Service
	scheduler *scheduler.Service
}

func (t *syncTrigger) Trigger(userID int64) {
	t.status.Invalidate(userID)
	t.scheduler.Trigger(userID)
}

// TriggerVerify ставит сверку с фактическим состоянием панели; локальный
// снимок при этом не менялся, инвалидация кеша не нужна.
func (t *syncTrigger) TriggerVerify(userID int64) {
	t.scheduler.TriggerVerify(userID)
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Брокер не участвует в корректности начисления: без него события
	// просто не публикуются.
	var publisher *rabbitmq.Publisher
	var amqpConn *amqp.Connection
	if cfg.RabbitMQConnection != "" {
		amqpConn, err = rabbitmq.Connect(cfg.RabbitMQConnection, 5, 2*time.Second)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events will not be published", sl.Err(err))
		} else {
			ch, err := rabbitmq.SetupChannel(amqpConn)
			if err != nil {
				return nil, err
			}
			publisher = rabbitmq.NewPublisher(ch)
		}
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

	reconcilerService := reconciler.New(db, accountantService, panelClient, publisher, logger)
	schedulerService := scheduler.New(db, reconcilerService, scheduler.Config{
		ResyncInterval:    cfg.Scheduler.ResyncInterval,
		ResyncConcurrency: cfg.Scheduler.ResyncConcurrency,
		ResyncBatchSize:   cfg.Scheduler.ResyncBatchSize,
	}, logger)
	statusService := status.New(cacheRedis, accountantService, db, logger)

	trigger := &syncTrigger{status: statusService, scheduler: schedulerService}
	ledgerService := ledger.New(db, accountantService, trigger, publisher, logger)

	registry := providers.NewRegistry(
		providers.NewTribute(cfg.Providers.TributeAPIKey),
		providers.NewFreekassa(cfg.Providers.FreekassaShopID, cfg.Providers.FreekassaAPIKey, cfg.Providers.FreekassaSecret),
		providers.NewYookassa(cfg.Providers.YookassaSecret),
		providers.NewCryptoPay(cfg.Providers.CryptoPayToken),
		providers.NewStars(cfg.Providers.InternalAPISecret),
		providers.NewPhoneTransfer(cfg.Providers.InternalAPISecret),
	)

	jwtMaker := jwt.NewMaker(cfg.AdminJWTSecret, 24*time.Hour)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, &Deps{
		Config:     cfg,
		Storage:    db,
		Registry:   registry,
		Ledger:     ledgerService,
		Accountant: accountantService,
		Reconciler: reconcilerService,
		Scheduler:  schedulerService,
		Status:     statusService,
		Trigger:    trigger,
		JWTMaker:   jwtMaker,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		scheduler: schedulerService,
		logger:    logger,
		db:        db,
		amqpConn:  amqpConn,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		if a.amqpConn != nil {
			a.amqpConn.Close()
		}
		return err
	}
}

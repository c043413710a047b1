// Package ledgerapp предоставляет маршруты для основного приложения.
package ledgerapp

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/artembakhtin/subscription-ledger/internal/config"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/banuser"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/payments"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/promocreate"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/promolist"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/resync"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/revoke"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/admin/stats"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/health"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/panelhook"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/promoredeem"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/subscriptionstatus"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/trial"
	"github.com/artembakhtin/subscription-ledger/internal/http/handlers/webhook"
	"github.com/artembakhtin/subscription-ledger/internal/http/middlewarectx"
	"github.com/artembakhtin/subscription-ledger/internal/lib/jwt"
	"github.com/artembakhtin/subscription-ledger/internal/providers"
	"github.com/artembakhtin/subscription-ledger/internal/services/accountant"
	"github.com/artembakhtin/subscription-ledger/internal/services/ledger"
	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
	"github.com/artembakhtin/subscription-ledger/internal/services/scheduler"
	"github.com/artembakhtin/subscription-ledger/internal/services/status"
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

// Deps зависимости HTTP-слоя.
type Deps struct {
	Config     *config.Config
	Storage    *repository.Storage
	Registry   *providers.Registry
	Ledger     *ledger.Service
	Accountant *accountant.Service
	Reconciler *reconciler.Service
	Scheduler  *scheduler.Service
	Status     *status.Service
	Trigger    *syncTrigger
	JWTMaker   jwt.Maker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps *Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхуки провайдеров: подлинность несут подписи, не заголовки авторизации
		r.Post("/webhooks/panel", panelhook.New(logger, deps.Trigger, deps.Config.Panel.WebhookSecret).ServeHTTP)
		r.Post("/webhooks/{provider}", webhook.New(logger, deps.Registry, deps.Ledger).ServeHTTP)

		// Внутренняя поверхность бота
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.InternalAuthMiddleware(deps.Config.Providers.InternalAPISecret, logger))
			r.Post("/internal/trial", trial.New(logger, deps.Ledger).ServeHTTP)
			r.Post("/internal/promo/redeem", promoredeem.New(logger, deps.Ledger).ServeHTTP)
			r.Get("/internal/subscriptions/{user_id}", subscriptionstatus.New(logger, deps.Status).ServeHTTP)
		})

		// Группа административного API с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.JWTMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(rate.NewLimiter(10, 30), logger))
			r.Post("/admin/promocodes", promocreate.New(logger, deps.Storage).ServeHTTP)
			r.Get("/admin/promocodes", promolist.New(logger, deps.Storage).ServeHTTP)
			r.Post("/admin/users/ban", banuser.New(logger, deps.Accountant, deps.Trigger).ServeHTTP)
			r.Post("/admin/subscriptions/revoke", revoke.New(logger, deps.Accountant, deps.Trigger).ServeHTTP)
			r.Post("/admin/resync", resync.New(logger, deps.Reconciler, deps.Scheduler).ServeHTTP)
			r.Get("/admin/payments", payments.New(logger, deps.Status).ServeHTTP)
			r.Get("/admin/stats", stats.New(logger, deps.Status).ServeHTTP)
		})

		r.Get("/health", health.New(logger, deps.Storage).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

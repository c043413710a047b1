// Package webhook реализует единую точку приёма уведомлений платёжных
// провайдеров. Провайдер определяется сегментом пути, подпись проверяется
// его верификатором, допуском события занимается леджер. Успешный статус
// возвращается только после фиксации события: провайдер, не получивший 2xx,
// повторит доставку, а дедупликация леджера сделает повтор безвредным.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/metrics"
	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/providers"
	"github.com/artembakhtin/subscription-ledger/internal/services/ledger"
)

// Максимальный размер тела уведомления.
const maxBodySize = 1 << 20

// Service описывает интерфейс леджера для допуска и отмены.
type Service interface {
	Admit(ctx context.Context, event *models.PaymentEvent) (ledger.Result, error)
	Cancel(ctx context.Context, userID int64) error
}

// Handler управляет HTTP-запросами уведомлений провайдеров.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	registry *providers.Registry
	service  Service
}

// New создает новый Handler с переданными логгером, реестром и сервисом.
func New(log *slog.Logger, registry *providers.Registry, service Service) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
		service:  service,
	}
}

// ServeHTTP godoc
// @Summary Принять уведомление платёжного провайдера
// @Description Проверяет подпись уведомления и допускает платёжное событие. Повторные доставки квитируются без повторного начисления.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Идентификатор провайдера"
// @Success 200 {object} response.Response "Уведомление обработано"
// @Failure 400 {object} response.ErrorResponse "Непригодное тело уведомления"
// @Failure 403 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Неизвестный провайдер"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /webhooks/{provider} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	provider := chi.URLParam(r, "provider")
	log := h.log.With(
		slog.String("op", op),
		slog.String("provider", provider),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	verifier, err := h.registry.Get(provider)
	if err != nil {
		log.Error("unknown provider")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("unknown provider"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	notification, err := verifier.Verify(body, r.Header)
	if err != nil {
		h.writeVerifyError(w, r, log, provider, err)
		return
	}

	switch notification.Kind {
	case providers.KindPayment:
		result, err := h.service.Admit(r.Context(), notification.Event)
		if err != nil && result != ledger.Rejected {
			log.Error("failed to admit payment event", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to process event"))
			return
		}
		log.Info("payment event processed", slog.String("result", string(result)))
		render.JSON(w, r, response.OKWithData(map[string]any{"result": result}))

	case providers.KindCancellation:
		if err := h.service.Cancel(r.Context(), notification.UserID); err != nil {
			log.Error("failed to process cancellation", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to process event"))
			return
		}
		log.Info("cancellation processed", slog.Int64("user_id", notification.UserID))
		render.JSON(w, r, response.OK())

	case providers.KindIgnored:
		log.Info("ignored provider event", slog.String("reason", notification.Reason))
		render.JSON(w, r, response.OK())

	default:
		log.Error("unexpected notification kind", slog.String("kind", string(notification.Kind)))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
	}
}

func (h *Handler) writeVerifyError(w http.ResponseWriter, r *http.Request, log *slog.Logger, provider string, err error) {
	switch {
	case errors.Is(err, providers.ErrBadSignature):
		log.Error("invalid or missing webhook signature")
		metrics.VerificationFailures.WithLabelValues(provider, "bad_signature").Inc()
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("invalid signature"))
	case errors.Is(err, providers.ErrMalformed):
		log.Error("malformed webhook payload", sl.Err(err))
		metrics.VerificationFailures.WithLabelValues(provider, "malformed").Inc()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed payload"))
	default:
		log.Error("webhook verification failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
	}
}

// Package subscriptionstatus реализует HTTP-обработчик чтения статуса
// подписки пользователя из read-модели.
package subscriptionstatus

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// Service описывает интерфейс read-модели подписок.
type Service interface {
	Get(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error)
}

// Handler управляет HTTP-запросами на чтение статуса подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить статус подписки пользователя
// @Description Возвращает снимок подписки: статус, срок действия, лимит трафика и squad-группы.
// @Tags Internal
// @Produce json
// @Param user_id path int true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Снимок подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /internal/subscriptions/{user_id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptionstatus"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		log.Error("invalid user id")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	snapshot, err := h.service.Get(r.Context(), userID)
	if err != nil {
		log.Error("failed to read subscription status", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription status"))
		return
	}

	render.JSON(w, r, response.OKWithData(snapshot))
}

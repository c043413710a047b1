// Package revoke реализует HTTP-обработчик явного отзыва подписки
// администратором.
package revoke

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// Service описывает интерфейс учётного сервиса для отзыва подписки.
type Service interface {
	Revoke(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error)
}

// SyncTrigger запускает синхронизацию пользователя с панелью.
type SyncTrigger interface {
	Trigger(userID int64)
}

// Handler управляет HTTP-запросами на отзыв подписок.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	sync     SyncTrigger
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sync SyncTrigger) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sync:     sync,
		validate: validator.New(),
	}
}

// Request тело запроса на отзыв подписки.
type Request struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// ServeHTTP godoc
// @Summary Отозвать подписку пользователя
// @Description Немедленно отзывает подписку и запускает синхронизацию с панелью.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Подписка отозвана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/subscriptions/revoke [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.revoke"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	snapshot, err := h.service.Revoke(r.Context(), req.UserID)
	if err != nil {
		log.Error("failed to revoke subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not revoke subscription"))
		return
	}
	if snapshot == nil {
		log.Info("subscription not found", slog.Int64("user_id", req.UserID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	}

	h.sync.Trigger(req.UserID)
	log.Info("subscription revoked", slog.Int64("user_id", req.UserID))
	render.JSON(w, r, response.OKWithData(snapshot))
}

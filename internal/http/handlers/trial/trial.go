// Package trial реализует HTTP-обработчик однократного начисления
// пробного периода. Вызывается бот-поверхностью с внутренним секретом.
package trial

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/services/accountant"
)

// Service описывает интерфейс леджера для начисления триала.
type Service interface {
	GrantTrial(ctx context.Context, userID int64, referredBy *int64) (*models.SubscriptionSnapshot, error)
}

// Handler управляет HTTP-запросами на начисление пробного периода.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Request тело запроса на начисление пробного периода. Триал обычно
// первый контакт пользователя, поэтому бот передаёт здесь пригласившего.
type Request struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	ReferredBy *int64 `json:"referred_by,omitempty" validate:"omitempty,gt=0"`
}

// ServeHTTP godoc
// @Summary Начислить пробный период
// @Description Начисляет пользователю однократный пробный период. Повторный запрос возвращает 409.
// @Tags Internal
// @Accept json
// @Produce json
// @Param request body Request true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Пробный период начислен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Пробный период уже использован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /internal/trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial"
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

	snapshot, err := h.service.GrantTrial(r.Context(), req.UserID, req.ReferredBy)
	if err != nil {
		if errors.Is(err, accountant.ErrTrialAlreadyGranted) {
			log.Info("trial already granted", slog.Int64("user_id", req.UserID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("trial already granted"))
			return
		}
		log.Error("failed to grant trial", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not grant trial"))
		return
	}

	log.Info("trial granted", slog.Int64("user_id", req.UserID), slog.Time("end_date", snapshot.EndDate))
	render.JSON(w, r, response.OKWithData(snapshot))
}

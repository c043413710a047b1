// Package banuser реализует HTTP-обработчик блокировки и разблокировки
// пользователя администратором. Блокировка выключает учётную запись на
// панели при следующей синхронизации, история платежей сохраняется.
package banuser

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
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

// Service описывает интерфейс учётного сервиса для блокировки.
type Service interface {
	SetBanned(ctx context.Context, userID int64, banned bool) error
}

// SyncTrigger запускает синхронизацию пользователя с панелью.
type SyncTrigger interface {
	Trigger(userID int64)
}

// Handler управляет HTTP-запросами на блокировку пользователей.
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

// Request тело запроса на блокировку или разблокировку.
type Request struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	Banned bool  `json:"banned"`
}

// ServeHTTP godoc
// @Summary Заблокировать или разблокировать пользователя
// @Description Выставляет признак блокировки и запускает синхронизацию с панелью.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь и признак блокировки"
// @Success 200 {object} response.Response "Признак обновлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/ban [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.banuser"
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

	if err := h.service.SetBanned(r.Context(), req.UserID, req.Banned); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Info("user not found", slog.Int64("user_id", req.UserID))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to update ban flag", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update ban flag"))
		return
	}

	h.sync.Trigger(req.UserID)
	log.Info("ban flag updated", slog.Int64("user_id", req.UserID), slog.Bool("banned", req.Banned))
	render.JSON(w, r, response.OK())
}

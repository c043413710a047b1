// Package promocreate реализует HTTP-обработчик создания промокода администратором.
package promocreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// Service описывает интерфейс хранилища промокодов.
type Service interface {
	CreatePromoCode(ctx context.Context, promo models.PromoCode) (int64, error)
}

// Handler управляет HTTP-запросами на создание промокодов.
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

// Request тело запроса на создание промокода.
type Request struct {
	Code       string    `json:"code" validate:"required,alphanum"`
	BonusDays  int       `json:"bonus_days" validate:"required,gt=0"`
	UsageLimit int       `json:"usage_limit" validate:"required,gt=0"`
	ValidFrom  time.Time `json:"valid_from" validate:"required"`
	ValidUntil time.Time `json:"valid_until" validate:"required"`
}

// ServeHTTP godoc
// @Summary Создать промокод
// @Description Создает промокод с лимитом активаций и окном действия. Возвращает ID созданной записи.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request true "Данные промокода"
// @Success 200 {object} response.Response "Промокод создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/promocodes [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promocreate"
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
	if !req.ValidUntil.After(req.ValidFrom) {
		log.Error("valid_until is not after valid_from")
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("valid_until must be after valid_from"))
		return
	}

	id, err := h.service.CreatePromoCode(r.Context(), models.PromoCode{
		Code:       req.Code,
		BonusDays:  req.BonusDays,
		UsageLimit: req.UsageLimit,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		log.Error("failed to create promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create promo code"))
		return
	}

	log.Info("promo code created", slog.String("code", req.Code), slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{"id": id}))
}

// Package promoredeem реализует HTTP-обработчик активации промокода.
// Вызывается бот-поверхностью с внутренним секретом.
package promoredeem

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
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

// Service описывает интерфейс леджера для активации промокода.
type Service interface {
	RedeemPromo(ctx context.Context, userID int64, code string, referredBy *int64) (*models.SubscriptionSnapshot, error)
}

// Handler управляет HTTP-запросами на активацию промокодов.
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

// Request тело запроса на активацию промокода. Пригласивший передаётся,
// когда промокод оказывается первым контактом пользователя.
type Request struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Code       string `json:"code" validate:"required"`
	ReferredBy *int64 `json:"referred_by,omitempty" validate:"omitempty,gt=0"`
}

// ServeHTTP godoc
// @Summary Активировать промокод
// @Description Начисляет бонусные дни по промокоду. Повторная активация тем же пользователем возвращает 409, исчерпанный или просроченный промокод — 410.
// @Tags Internal
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь и код"
// @Success 200 {object} response.Response "Промокод активирован"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Промокод не найден"
// @Failure 409 {object} response.ErrorResponse "Промокод уже активирован этим пользователем"
// @Failure 410 {object} response.ErrorResponse "Промокод исчерпан или вне окна действия"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /internal/promo/redeem [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promoredeem"
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

	snapshot, err := h.service.RedeemPromo(r.Context(), req.UserID, req.Code, req.ReferredBy)
	if err != nil {
		h.writeRedeemError(w, r, log, err)
		return
	}

	log.Info("promo code redeemed",
		slog.Int64("user_id", req.UserID), slog.String("code", req.Code))
	render.JSON(w, r, response.OKWithData(snapshot))
}

func (h *Handler) writeRedeemError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrPromoNotFound):
		log.Info("promo code not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("promo code not found"))
	case errors.Is(err, repository.ErrPromoAlreadyRedeemed):
		log.Info("promo code already redeemed")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("promo code already redeemed"))
	case errors.Is(err, repository.ErrPromoExhausted):
		log.Info("promo code exhausted")
		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.Error("promo code exhausted"))
	case errors.Is(err, accountant.ErrPromoNotActive):
		log.Info("promo code is not active")
		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.Error("promo code is not active"))
	default:
		log.Error("failed to redeem promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not redeem promo code"))
	}
}

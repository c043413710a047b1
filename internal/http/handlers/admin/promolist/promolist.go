// Package promolist реализует HTTP-обработчик списка промокодов
// со счётчиками активаций.
package promolist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

const defaultLimit = 50

// Service описывает интерфейс хранилища промокодов.
type Service interface {
	ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error)
}

// Handler управляет HTTP-запросами на чтение списка промокодов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список промокодов
// @Description Возвращает промокоды со счётчиками активаций, постранично.
// @Tags Admin
// @Produce json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Список промокодов"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/promocodes [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promolist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	promos, err := h.service.ListPromoCodes(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list promo codes", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list promo codes"))
		return
	}

	render.JSON(w, r, response.OKWithData(promos))
}

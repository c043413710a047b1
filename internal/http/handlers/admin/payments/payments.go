// Package payments реализует HTTP-обработчик списка последних платёжных
// событий для админ-обзора.
package payments

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

const defaultLimit = 100

// Service описывает интерфейс read-модели платежей.
type Service interface {
	RecentPayments(ctx context.Context, limit, offset int) ([]*models.PaymentEvent, error)
}

// Handler управляет HTTP-запросами на чтение платёжных событий.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Последние платёжные события
// @Description Возвращает последние платёжные события со статусами допуска.
// @Tags Admin
// @Produce json
// @Param limit query int false "Максимум записей"
// @Param offset query int false "Смещение от начала списка"
// @Success 200 {object} response.Response "Список платёжных событий"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.payments"
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

	payments, err := h.service.RecentPayments(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list payments"))
		return
	}

	render.JSON(w, r, response.OKWithData(payments))
}

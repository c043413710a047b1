// Package stats реализует HTTP-обработчик финансовой сводки по засчитанным
// платежам за период с разбивкой по провайдеру и валюте.
package stats

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// Service описывает интерфейс read-модели финансовой сводки.
type Service interface {
	FinancialStats(ctx context.Context, from, to time.Time) ([]models.FinancialStats, error)
}

// Handler управляет HTTP-запросами на чтение финансовой сводки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Финансовая сводка
// @Description Возвращает суммы засчитанных платежей за период с разбивкой по провайдеру и валюте. Период задаётся параметрами from и to в формате RFC 3339, по умолчанию последние 30 дней.
// @Tags Admin
// @Produce json
// @Param from query string false "Начало периода (RFC 3339)"
// @Param to query string false "Конец периода (RFC 3339)"
// @Success 200 {object} response.Response "Финансовая сводка"
// @Failure 400 {object} response.ErrorResponse "Некорректный период"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Error("invalid from parameter", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid from parameter"))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Error("invalid to parameter", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid to parameter"))
			return
		}
		to = parsed
	}

	stats, err := h.service.FinancialStats(r.Context(), from, to)
	if err != nil {
		log.Error("failed to read financial stats", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read financial stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(stats))
}

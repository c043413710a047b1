// Package resync реализует HTTP-обработчик принудительной синхронизации
// с панелью: точечной для одного пользователя или полной для всех подписок.
package resync

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
)

// Reconciler сверяет одного пользователя с фактическим состоянием панели.
type Reconciler interface {
	VerifyRemote(ctx context.Context, userID int64) (reconciler.Result, error)
}

// FullResyncer запускает полный обход всех подписок.
type FullResyncer interface {
	RunFull(ctx context.Context) error
}

// Handler управляет HTTP-запросами на принудительную синхронизацию.
type Handler struct {
	log        *slog.Logger // Логгер для записи информации и ошибок
	reconciler Reconciler
	full       FullResyncer
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, rec Reconciler, full FullResyncer) *Handler {
	return &Handler{log: log, reconciler: rec, full: full}
}

// Request тело запроса на синхронизацию. Без user_id запускается полный обход.
type Request struct {
	UserID int64 `json:"user_id,omitempty"`
}

// ServeHTTP godoc
// @Summary Принудительная синхронизация с панелью
// @Description Синхронизирует одного пользователя синхронно или запускает полный обход в фоне.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request false "Идентификатор пользователя (опционально)"
// @Success 200 {object} response.Response "Результат синхронизации пользователя"
// @Success 202 {object} response.Response "Полный обход запущен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка синхронизации"
// @Router /admin/resync [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.resync"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("failed to decode request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
	}

	if req.UserID > 0 {
		result, err := h.reconciler.VerifyRemote(r.Context(), req.UserID)
		if err != nil {
			log.Error("failed to reconcile user", sl.Err(err), slog.Int64("user_id", req.UserID))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not reconcile user"))
			return
		}
		log.Info("user reconciled",
			slog.Int64("user_id", req.UserID), slog.String("result", string(result.Status)))
		render.JSON(w, r, response.OKWithData(result))
		return
	}

	// Полный обход может занять минуты, выполняется в фоне.
	go func() {
		if err := h.full.RunFull(context.Background()); err != nil {
			log.Error("full resync failed", sl.Err(err))
		}
	}()
	log.Info("full resync started")
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OK())
}

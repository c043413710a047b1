// Package panelhook реализует HTTP-обработчик вебхуков панели управления
// доступом. Панель сообщает об изменениях учётных записей; леджер не
// доверяет этим данным и только запускает синхронизацию затронутого
// пользователя, источником истины остаётся локальная подписка.
package panelhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
)

const maxBodySize = 1 << 20

// SyncTrigger запускает сверку пользователя с фактическим состоянием панели.
type SyncTrigger interface {
	TriggerVerify(userID int64)
}

// Handler управляет HTTP-запросами вебхуков панели.
type Handler struct {
	log    *slog.Logger // Логгер для записи информации и ошибок
	sync   SyncTrigger
	secret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, триггером и секретом.
func New(log *slog.Logger, sync SyncTrigger, secret string) *Handler {
	return &Handler{
		log:    log,
		sync:   sync,
		secret: secret,
	}
}

type payload struct {
	Event string `json:"event"`
	Data  struct {
		TelegramID int64 `json:"telegramId"`
	} `json:"data"`
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ServeHTTP godoc
// @Summary Принять вебхук панели
// @Description Проверяет подпись вебхука панели и запускает синхронизацию затронутого пользователя.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} response.Response "Вебхук принят"
// @Failure 400 {object} response.ErrorResponse "Непригодное тело вебхука"
// @Failure 403 {object} response.ErrorResponse "Неверная подпись"
// @Router /webhooks/panel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.panelhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Remnawave-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed payload"))
		return
	}

	if p.Data.TelegramID != 0 {
		// Локальное состояние не менялось, нужна сверка с самой панелью.
		h.sync.TriggerVerify(p.Data.TelegramID)
		log.Info("panel webhook accepted",
			slog.String("event", p.Event), slog.Int64("user_id", p.Data.TelegramID))
	} else {
		log.Info("panel webhook without telegram id ignored", slog.String("event", p.Event))
	}
	render.JSON(w, r, response.OK())
}

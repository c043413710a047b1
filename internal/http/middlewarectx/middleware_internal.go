package middlewarectx

import (
	"crypto/hmac"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/artembakhtin/subscription-ledger/internal/http/response"
)

// InternalAuthMiddleware проверяет общий секрет бот-поверхности
// в заголовке X-Internal-Secret. Внутренние операции (триал, промокод,
// подтверждение Stars) доступны только доверенному процессу бота.
func InternalAuthMiddleware(secret string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.InternalAuthMiddleware"

			got := r.Header.Get("X-Internal-Secret")
			if got == "" || !hmac.Equal([]byte(got), []byte(secret)) {
				log.Error("invalid internal secret",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

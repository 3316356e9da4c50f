package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/morozovaek/go-social-backend/internal/cache"
	logctx "github.com/morozovaek/go-social-backend/internal/pkg/log"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
)

// RateLimit ограничивает частоту обращений к маршруту фиксированным окном.
// Ключ: субъект запроса, если он аутентифицирован; иначе первый хоп из
// X-Forwarded-For; иначе RemoteAddr без порта.
//
// Отказ лимитера пропускает запрос: деградация Redis не должна ронять
// вход в систему (fail-open).
func RateLimit(limiter cache.Limiter, name string, window time.Duration, limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			res, err := limiter.Hit(r.Context(), name, key, window, limit)
			if err != nil {
				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn, "rate_limiter_failed",
					slog.String("name", name),
					slog.String("err", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if res.Blocked {
				httperr.WriteError(w, r, service.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	actor := ActorFrom(r.Context())
	if !actor.IsAnonymous() {
		return actor.ID.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

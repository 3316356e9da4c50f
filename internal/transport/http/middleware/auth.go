package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
)

type ctxKey int

const ctxActor ctxKey = iota

// Authenticator проверяет access-токен и возвращает актора запроса.
type Authenticator interface {
	Authenticate(raw string) (models.Actor, error)
}

// RequireAuth извлекает Bearer-токен из Authorization, проверяет его
// и кладёт актора в контекст. Без валидного токена — 401.
func RequireAuth(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httperr.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			actor, err := auth.Authenticate(raw)
			if err != nil {
				httperr.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom возвращает актора запроса, положенного RequireAuth.
// Вне защищённых маршрутов возвращает анонимного актора.
func ActorFrom(ctx context.Context) models.Actor {
	if actor, ok := ctx.Value(ctxActor).(models.Actor); ok {
		return actor
	}

	return models.Anonymous()
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

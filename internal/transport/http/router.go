package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/morozovaek/go-social-backend/internal/cache"
	"github.com/morozovaek/go-social-backend/internal/config"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/handlers"
	"github.com/morozovaek/go-social-backend/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Limits   config.RateLimitConfig
	Registry prometheus.Registerer
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, limiter cache.Limiter, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Registry != nil {
		root.Use(middleware.Metrics(opts.Registry))
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)

	register := func(r chi.Router) {
		registerRoutes(r, h, svc, limiter, opts.Limits)
	}

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		register(sub)
		root.Mount(opts.BasePath, sub)
		return root
	}

	register(root)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc *service.Service, limiter cache.Limiter, limits config.RateLimitConfig) {
	guard := middleware.RequireAuth(svc)
	authLimit := middleware.RateLimit(limiter, "auth", limits.AuthWindow, limits.AuthLimit)

	// Публичные маршруты: вход/регистрация/ротация под лимитом по клиенту.
	r.Group(func(r chi.Router) {
		r.Use(authLimit)

		r.Post("/auth/sign-up", h.SignUp)
		r.Post("/auth/sign-in", h.SignIn)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/sign-out", h.SignOut)

		// Лимиты самого reset-флоу считает сервисный слой (окно на email/субъект).
		r.Post("/auth/password-reset/init", h.ResetInit)
		r.Post("/auth/password-reset/verify", h.ResetVerify)
		r.Post("/auth/password-reset/confirm", h.ResetConfirm)
	})

	// Защищённые маршруты.
	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Get("/users/{id}", h.GetProfile)
		r.Patch("/users/{id}", h.UpdateProfile)
		r.Post("/users/{id}/password", h.ChangePassword)

		r.Post("/posts", h.CreatePost)
		r.Get("/posts/{id}", h.GetPost)
		r.Patch("/posts/{id}", h.UpdatePost)
		r.Delete("/posts/{id}", h.DeletePost)
		r.Get("/users/{id}/posts", h.ListPostsByAuthor)

		r.Get("/notifications", h.ListMyNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)

		// Административная поверхность; права проверяет сервисный слой.
		r.Post("/admin/notifications", h.CreateNotification)
		r.Delete("/admin/users/{id}", h.DeleteUser)
	})
}

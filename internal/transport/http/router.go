package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/accounts-service/internal/config"
	"github.com/pribylovaa/accounts-service/internal/metrics"
	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/transport/http/apierrors"
	"github.com/pribylovaa/accounts-service/internal/transport/http/handlers"
	"github.com/pribylovaa/accounts-service/internal/transport/http/middleware"
)

// Service - всё, что роутеру нужно от бизнес-логики.
type Service interface {
	handlers.Service
	middleware.Authenticator
}

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger         *slog.Logger
	Timeout        time.Duration
	BasePath       string // например, "/api"; если пустой - роуты регистрируются на корне.
	Cookie         config.CookieConfig
	AllowedOrigins []string
	Metrics        *metrics.HTTP // nil отключает HTTP-метрики.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Metrics != nil {
		root.Use(middleware.Metrics(opts.Metrics))
	}
	root.Use(
		middleware.SecureHeaders(),
		cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
			ExposedHeaders:   []string{middleware.HeaderRequestID},
			AllowCredentials: true, // refresh-токен ходит в cookie
			MaxAge:           300,
		}),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.Cookie)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, svc, h)
		root.Mount(opts.BasePath, sub)
		setFallbacks(root)
		return root
	}

	registerRoutes(root, svc, h)
	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, auth middleware.Authenticator, h *handlers.Handlers) {
	setFallbacks(r)

	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	// users
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))

		r.Get("/users/{id}", h.GetUser)

		admin := r.With(middleware.RequireRole(models.RoleAdmin))
		admin.Get("/users", h.ListUsers)
		admin.Patch("/users/{id}/block", h.BlockUser)
	})
}

func setFallbacks(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteStatus(w, r, http.StatusNotFound, "not_found", "Ресурс не найден")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteStatus(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Метод не поддерживается")
	})
}

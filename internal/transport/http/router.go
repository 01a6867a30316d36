package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-notify-nosql/internal/application/auth"
	"github.com/go-notify-nosql/internal/application/devicetoken"
	"github.com/go-notify-nosql/internal/application/notification"
	"github.com/go-notify-nosql/internal/config"
	"github.com/go-notify-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-notify-nosql/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := auth.NewService(deps.UserRepo, deps.SessionRepo, deps.JWTProvider, cfg.RefreshTokenDur)
	notifSvc := notification.NewService(deps.NotificationRepo, deps.JobRepo)
	tokenSvc := devicetoken.NewService(deps.TokenRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	tokenH := handler.NewTokenHandler(tokenSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/refresh", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/notifications/send-test", notifH.Send)
			r.Get("/notifications", notifH.List)
			r.Get("/notifications/{id}", notifH.Get)
			r.Post("/notifications/mark-read", notifH.MarkRead)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Post("/users/{userID}/device-tokens", tokenH.Register)
			r.Get("/users/{userID}/device-tokens", tokenH.List)
			r.Delete("/users/{userID}/device-tokens", tokenH.DeleteByToken)
			r.Delete("/users/{userID}/device-tokens/{id}", tokenH.DeleteByID)
		})
	})

	return r
}

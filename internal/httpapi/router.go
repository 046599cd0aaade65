package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/resumeauth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps collects what NewRouter wires together.
type RouterDeps struct {
	Service Service
	Logger  *slog.Logger
	// RateLimiter is optional. When set it applies to every route except health
	// and metrics.
	RateLimiter *middleware.IPRateLimiter
	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
	// RequestTimeout bounds each request's context. Zero disables it.
	RequestTimeout time.Duration
	// TrustProxyHeaders takes the client IP from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers; otherwise every
	// per-IP limit is keyed on a value the client picks.
	TrustProxyHeaders bool
}

// NewRouter builds the HTTP surface of the service.
//
//	POST   /auth/register
//	POST   /auth/signin
//	POST   /auth/admin/signin
//	POST   /auth/refresh
//	POST   /auth/confirm
//	POST   /auth/password/reset
//	POST   /auth/password/update
//	POST   /auth/signout          (bearer)
//	POST   /auth/signout/all      (bearer)
//	GET    /auth/me               (bearer)
//	GET    /auth/sessions         (bearer)
//	GET    /admin/users/{id}/status  (admin)
//	PUT    /admin/users/{id}/status  (admin)
//	DELETE /admin/users/{id}         (admin)
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(deps.Service)

	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientInfo)
	if deps.RequestTimeout > 0 {
		r.Use(chimw.Timeout(deps.RequestTimeout))
	}

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil && deps.MetricsPath != "" {
		r.Method(http.MethodGet, deps.MetricsPath, deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/signin", h.SignIn)
			r.Post("/admin/signin", h.AdminSignIn)
			r.Post("/refresh", h.Refresh)
			r.Post("/confirm", h.ConfirmEmail)
			r.Post("/password/reset", h.RequestPasswordReset)
			r.Post("/password/update", h.CompletePasswordReset)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Guard(deps.Service))
				r.Post("/signout", h.SignOut)
				r.Post("/signout/all", h.SignOutAll)
				r.Get("/me", h.Me)
				r.Get("/sessions", h.Sessions)
			})
		})

		r.Route("/admin/users/{id}", func(r chi.Router) {
			r.Use(middleware.Guard(deps.Service))
			r.Use(middleware.RequireAdmin)
			r.Get("/status", h.GetStatus)
			r.Put("/status", h.SetStatus)
			r.Delete("/", h.DeleteAccount)
		})
	})

	return r
}

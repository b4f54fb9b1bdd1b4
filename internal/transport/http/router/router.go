// Package router assembles the HTTP surface: middleware chain, public
// world routes, and the authenticated ops routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/mosswell/world-service/internal/config"
	"github.com/mosswell/world-service/internal/telemetry/metrics"
	"github.com/mosswell/world-service/internal/transport/http/handlers"
	authmw "github.com/mosswell/world-service/internal/transport/http/middleware"
)

func New(
	world *handlers.WorldHandler,
	dl *handlers.DeadLettersHandler,
	z *handlers.HealthHandler,
	auth *authmw.AuthMiddleware,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(authmw.RequestID)
	r.Use(authmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authmw.AccessLog)

	r.Get("/healthz", z.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/world/v1", func(r chi.Router) {
		r.Get("/locations/{location_id}", world.Look)

		// Mutating routes sit behind the per-IP limiter.
		r.Group(func(r chi.Router) {
			if cfg.RLEnabled {
				r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
			}
			r.Post("/move", world.Move)
			r.With(auth.Require).Post("/locations/{location_id}/generate", world.Generate)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require)
			r.Get("/dead-letters", dl.List)
			r.Get("/dead-letters/{id}", dl.Get)
		})
	})

	return r
}

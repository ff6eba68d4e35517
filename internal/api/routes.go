package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/funnellens/funnellens/internal/pkg/httputil"
)

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	AllowedOrigins []string
	Health         *HealthChecker
	Metrics        http.Handler
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := opts.Health
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	r.Get("/health", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no route for "+r.Method+" "+r.URL.Path)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/attribution", func(r chi.Router) {
			r.Get("/window/{creatorID}", h.GetWindow)
			r.Get("/performance/{creatorID}", h.GetPerformance)
			r.Post("/attribute-fans/{creatorID}", h.PostAttributeFans)
			r.Get("/baseline/{creatorID}", h.GetBaseline)
		})
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/report/{creatorID}", h.GetReport)
			r.Get("/report/{creatorID}/text", h.GetReportText)
			r.Get("/quick/{creatorID}", h.GetQuick)
			r.Get("/rankings/{creatorID}", h.GetRankings)
		})
		r.Post("/imports/{type}", h.PostImport)
	})

	return r
}

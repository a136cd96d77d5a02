package collector

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new chi router with all exporter endpoints
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// basic cors
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	// health check
	r.Get("/health", handler.Health)

	// api v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/links/validate", handler.ValidateLinks)

		// telegram login
		r.Get("/auth/status", handler.AuthStatus)
		r.Post("/auth/qr", handler.StartQR)
		r.Delete("/auth/qr", handler.CancelQR)

		// scraping endpoints
		r.Post("/scrape", handler.StartScrape)
		r.Delete("/scrape/current", handler.StopScrape)
		r.Get("/scrape/status", handler.Status)

		// finished runs
		r.Get("/runs", handler.ListRuns)
		r.Get("/runs/{id}", handler.GetRun)
		r.Get("/runs/{id}/export", handler.Export)
	})

	return r
}

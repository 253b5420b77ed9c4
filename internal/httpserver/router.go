package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/williamsiker/practicas/internal/httpserver/handlers"
	"github.com/williamsiker/practicas/internal/httpserver/middleware"
)

// hstsMaxAge is one year.
const hstsMaxAge = 31536000

// setupRouter configures the Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	h := s.handlers

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.StrictTransportSecurity(hstsMaxAge))
	r.Use(s.corsMiddleware())

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Unauthenticated endpoints
	r.Get("/health", h.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Handler)
		}

		r.Get("/health", h.Health)
		r.Get("/catalog", h.Catalog)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(s.config.APIKeys))

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.SubmitRequest)
				r.Get("/", h.ListRequests)
				r.Get("/stats", h.RequestStats)
				r.Get("/{id}", h.GetRequest)
				r.Put("/{id}", h.EditRequest)
				r.Delete("/{id}", h.DeleteRequest)
				r.Post("/{id}/duplicate", h.DuplicateRequest)
			})

			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.ListServices)
				r.Get("/{id}", h.GetService)
				r.Put("/{id}/configuration", h.ConfigureService)
				r.Post("/{id}/publish", h.PublishService)
				r.Post("/{id}/unpublish", h.UnpublishService)
				r.Post("/{id}/duplicate", h.DuplicateService)
			})

			// Role checks happen in the use cases.
			r.Route("/admin", func(r chi.Router) {
				r.Get("/requests/pending-count", h.PendingCount)
				r.Post("/requests/{id}/review", h.ReviewRequest)
				r.Put("/services/{id}/endpoint", h.UpdateEndpoint)
			})
		})
	})

	return r
}

// corsMiddleware returns configured CORS middleware.
func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowedOrigins := s.config.CORSOrigins
	if len(allowedOrigins) == 0 {
		// Default: same-origin only (no CORS headers sent)
		allowedOrigins = []string{}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Location", "X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

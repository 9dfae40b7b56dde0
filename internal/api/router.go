package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/sensors", s.handleListSensors)

		r.Route("/measurements", func(r chi.Router) {
			r.Get("/", s.handleListMeasurements)
			r.Get("/{id}", s.handleGetMeasurement)
			r.Post("/{id}/publish", s.handlePublishMeasurement)
		})

		r.Post("/publish", s.handlePublishBatch)

		r.Route("/backlog", func(r chi.Router) {
			r.Get("/", s.handleGetBacklog)
			r.Post("/drain", s.handleDrainBacklog)
		})
	})

	return r
}

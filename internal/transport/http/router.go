// Package httptransport is the thin HTTP layer over the screening services.
// Handlers decode, delegate, and encode; business rules live below.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/screen", h.HandleScreen)
		r.Post("/screen/batch", h.HandleScreenBatch)

		r.Post("/lists/snapshot", h.HandleLoadSnapshot)
		r.Get("/lists/current", h.HandleCurrentSnapshot)
		r.Get("/lists/search", h.HandleSearch)

		r.Get("/jurisdictions/{code}", h.HandleJurisdiction)

		r.Get("/decisions", h.HandleListDecisions)
		r.Get("/decisions/{id}", h.HandleGetDecision)
	})
	return r
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all factor run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/factors/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Post("/", h.HandleRecompute)
		r.Get("/latest", h.HandleGetLatestRun)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRun(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/portfolios", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPortfolios(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/classification", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetClassification(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}

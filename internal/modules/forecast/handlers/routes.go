package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers forecast routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/forecasts", func(r chi.Router) {
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/{siteID}", h.HandleGetSite)
	})
}

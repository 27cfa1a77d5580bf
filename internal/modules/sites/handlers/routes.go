package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers site, map and helper routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/map", h.HandleMap)
		r.Get("/{id}", h.HandleGet)
	})
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/regions", h.HandleRegions)
	r.Get("/admin/resolve", h.HandleResolve)
	r.Post("/band/classify", h.HandleClassify)
	r.Post("/sampling/point", h.HandleSamplePoint)
}

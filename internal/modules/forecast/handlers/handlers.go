// Package handlers provides HTTP handlers for forecast operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Defaults applied to refresh requests that leave fields unset
type Defaults struct {
	YearsAhead  int
	MonthsAhead int
	Workers     int
	RecalcBand  bool
}

// Handler handles forecast HTTP requests
type Handler struct {
	service  *forecast.Service
	store    *forecast.Repository
	defaults Defaults
	log      zerolog.Logger
}

// NewHandler creates a new forecast handler
func NewHandler(service *forecast.Service, store *forecast.Repository, defaults Defaults, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		store:    store,
		defaults: defaults,
		log:      log.With().Str("handler", "forecast").Logger(),
	}
}

// HandleGetSite handles GET /api/forecasts/{siteID}
func (h *Handler) HandleGetSite(w http.ResponseWriter, r *http.Request) {
	siteID, err := strconv.ParseInt(chi.URLParam(r, "siteID"), 10, 64)
	if err != nil || siteID <= 0 {
		http.Error(w, "Invalid site ID", http.StatusBadRequest)
		return
	}

	production, err := h.store.Production(r.Context(), siteID)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", siteID).Msg("Failed to get production forecasts")
		http.Error(w, "Failed to get forecasts", http.StatusInternalServerError)
		return
	}
	environment, err := h.store.Environment(r.Context(), siteID)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", siteID).Msg("Failed to get environment forecasts")
		http.Error(w, "Failed to get forecasts", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"site_id":     siteID,
			"production":  production,
			"environment": environment,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// RefreshRequest is the body of POST /api/forecasts/refresh. Zero values take the defaults.
type RefreshRequest struct {
	SiteIDs     []int64 `json:"site_ids"`
	YearsAhead  int     `json:"years_ahead"`
	MonthsAhead int     `json:"months_ahead"`
	RecalcBand  *bool   `json:"recalc_band"`
}

// HandleRefresh handles POST /api/forecasts/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.YearsAhead < 0 || req.MonthsAhead < 0 {
		http.Error(w, "years_ahead and months_ahead must not be negative", http.StatusBadRequest)
		return
	}

	opts := forecast.RefreshOptions{
		YearsAhead:  h.defaults.YearsAhead,
		MonthsAhead: h.defaults.MonthsAhead,
		Workers:     h.defaults.Workers,
		RecalcBand:  h.defaults.RecalcBand,
		SiteIDs:     req.SiteIDs,
	}
	if req.YearsAhead > 0 {
		opts.YearsAhead = req.YearsAhead
	}
	if req.MonthsAhead > 0 {
		opts.MonthsAhead = req.MonthsAhead
	}
	if req.RecalcBand != nil {
		opts.RecalcBand = *req.RecalcBand
	}

	summary, err := h.service.RefreshAll(r.Context(), opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Forecast refresh failed")
		http.Error(w, "Forecast refresh failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

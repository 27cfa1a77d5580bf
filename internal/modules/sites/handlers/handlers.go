// Package handlers provides HTTP handlers for the site registry, the map and
// the in-process geo and classification helpers.
package handlers

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/geoeco/tracker/internal/admin"
	"github.com/geoeco/tracker/internal/band"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/geo"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/geoeco/tracker/internal/sampling"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

const (
	defaultAlertLimit = 5
	maxListLimit      = 1000
)

// Handler handles site, map and helper HTTP requests
type Handler struct {
	sites    *sites.Repository
	series   *timeseries.Repository
	catalog  *regions.Catalog
	resolver *admin.Resolver
	log      zerolog.Logger
}

// NewHandler creates a new sites handler
func NewHandler(
	siteRepo *sites.Repository,
	series *timeseries.Repository,
	catalog *regions.Catalog,
	resolver *admin.Resolver,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sites:    siteRepo,
		series:   series,
		catalog:  catalog,
		resolver: resolver,
		log:      log.With().Str("handler", "sites").Logger(),
	}
}

// HandleList handles GET /api/sites
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.sites.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sites")
		http.Error(w, "Failed to list sites", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"sites": list,
		"count": len(list),
	})
}

// HandleMap handles GET /api/sites/map, a GeoJSON FeatureCollection of site points
func (h *Handler) HandleMap(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.sites.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sites for map")
		http.Error(w, "Failed to list sites", http.StatusInternalServerError)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, s := range list {
		f := geojson.NewFeature(geo.Point{Lat: s.Lat, Lon: s.Lon}.Orb())
		f.ID = s.ID
		f.Properties["name"] = s.Name
		f.Properties["mineral"] = string(s.Mineral)
		f.Properties["status"] = string(s.Status)
		f.Properties["band"] = string(s.Band)
		f.Properties["governorate"] = s.Governorate
		f.Properties["wilaya"] = s.Wilaya
		f.Properties["geohash"] = s.Geohash
		fc.Append(f)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode site map")
	}
}

// HandleGet handles GET /api/sites/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid site ID", http.StatusBadRequest)
		return
	}

	site, err := h.sites.Get(r.Context(), id)
	if errors.Is(err, sites.ErrNotFound) {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", id).Msg("Failed to get site")
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}

	licences, err := h.sites.Licenses(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", id).Msg("Failed to get licences")
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}
	alerts, err := h.sites.LatestAlerts(r.Context(), id, 20)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", id).Msg("Failed to get alerts")
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}
	production, err := h.series.ProductionHistory(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", id).Msg("Failed to get production history")
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}
	environment, err := h.series.EnvironmentHistory(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("site_id", id).Msg("Failed to get environment history")
		http.Error(w, "Failed to get site", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"site":        site,
		"unit":        site.Mineral.Unit(),
		"licenses":    licences,
		"alerts":      alerts,
		"production":  production,
		"environment": environment,
	})
}

// HandleDashboard handles GET /api/dashboard
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.sites.Count(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count sites")
		http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
		return
	}
	bands, err := h.sites.CountByBand(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count bands")
		http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
		return
	}
	year, err := h.series.LatestYear(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest year")
		http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
		return
	}
	totals := []timeseries.MineralTotal{}
	if year > 0 {
		if totals, err = h.series.ProductionTotalsByMineral(ctx, year); err != nil {
			h.log.Error().Err(err).Msg("Failed to get production totals")
			http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
			return
		}
	}
	alerts, err := h.sites.LatestAlerts(ctx, 0, defaultAlertLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest alerts")
		http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"sites":         total,
		"bands":         bands,
		"latest_year":   year,
		"production":    totals,
		"latest_alerts": alerts,
	})
}

// HandleRegions handles GET /api/regions
func (h *Handler) HandleRegions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.catalog.FeatureCollection()); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode regions")
	}
}

// HandleResolve handles GET /api/admin/resolve?lat=&lon=
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		http.Error(w, "lat and lon are required decimal degrees", http.StatusBadRequest)
		return
	}

	c, km, ok := h.resolver.Nearest(lat, lon)
	if !ok {
		http.Error(w, "No administrative centroids configured", http.StatusServiceUnavailable)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"governorate": c.Governorate,
		"wilaya":      c.Wilaya,
		"distance_km": km,
		"in_country":  h.catalog.PointInCountry(lat, lon),
	})
}

// ClassifyRequest is the body of POST /api/band/classify
type ClassifyRequest struct {
	AQI    float64       `json:"air_quality_index"`
	TDS    float64       `json:"water_tds"`
	Rehab  float64       `json:"rehabilitation_progress"`
	Status domain.Status `json:"status"`
}

// HandleClassify handles POST /api/band/classify
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		http.Error(w, "Unknown status", http.StatusBadRequest)
		return
	}

	h.writeData(w, http.StatusOK, band.Breakdown(req.AQI, req.TDS, req.Rehab, req.Status))
}

// SampleRequest is the body of POST /api/sampling/point
type SampleRequest struct {
	Mineral string  `json:"mineral"`
	Seed    *uint64 `json:"seed"`
}

// HandleSamplePoint handles POST /api/sampling/point. A seed makes the draw reproducible.
func (h *Handler) HandleSamplePoint(w http.ResponseWriter, r *http.Request) {
	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	mineral, err := domain.ParseCategory(req.Mineral)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}
	sampler := sampling.NewSampler(rand.New(rand.NewPCG(seed, seed)), h.catalog, h.log)

	p, err := sampler.SamplePointForCategory(mineral)
	if err != nil {
		h.log.Warn().Err(err).Str("mineral", string(mineral)).Msg("Sampling failed")
		http.Error(w, "Sampling failed", http.StatusUnprocessableEntity)
		return
	}
	governorate, wilaya := h.resolver.Resolve(p.Lat, p.Lon)

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"mineral":     mineral,
		"lat":         p.Lat,
		"lon":         p.Lon,
		"governorate": governorate,
		"wilaya":      wilaya,
		"seed":        seed,
	})
}

func parseFilter(r *http.Request) (sites.Filter, error) {
	q := r.URL.Query()
	f := sites.Filter{
		Status:        domain.Status(q.Get("status")),
		Band:          domain.Band(q.Get("band")),
		Governorate:   q.Get("governorate"),
		GeohashPrefix: q.Get("geohash"),
	}
	if m := q.Get("mineral"); m != "" {
		c, err := domain.ParseCategory(m)
		if err != nil {
			return f, err
		}
		f.Mineral = c
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, errors.New("unknown status")
	}
	if f.Band != "" && !f.Band.Valid() {
		return f, errors.New("unknown band")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
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

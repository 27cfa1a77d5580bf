package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/geoeco/tracker/internal/admin"
	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/regions"
	testingpkg "github.com/geoeco/tracker/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

func setupRouter(t *testing.T) (chi.Router, []int64) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	ctx := context.Background()

	db, cleanup := testingpkg.NewTestDB(t, database.NameCore)
	t.Cleanup(cleanup)

	repo := sites.NewRepository(db.Conn(), regions.Oman(), log)
	require.NoError(t, repo.EnsureMinerals(ctx, nil))
	series := timeseries.NewRepository(db.Conn(), log)

	var ids []int64
	for _, f := range testingpkg.NewSiteFixtures() {
		s := &sites.Site{
			Name: f.Name, Mineral: domain.Category(f.Mineral), Status: domain.Status(f.Status),
			Band: domain.Band(f.Band), Lat: f.Lat, Lon: f.Lon, Governorate: f.Governorate, Wilaya: f.Wilaya,
		}
		require.NoError(t, repo.CreateSite(ctx, nil, s))
		ids = append(ids, s.ID)
	}
	require.NoError(t, series.InsertProduction(ctx, nil, []timeseries.ProductionPoint{
		{SiteID: ids[0], Year: 2024, Quantity: 1200},
		{SiteID: ids[1], Year: 2024, Quantity: 9000},
	}))
	require.NoError(t, repo.CreateAlert(ctx, nil, &sites.Alert{SiteID: ids[0], Level: domain.AlertWarn, Message: "Minor leak contained"}))

	h := NewHandler(repo, series, regions.Oman(), admin.Oman(), log)
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r, ids
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Contains(t, env.Metadata, "timestamp")
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func TestHandleList(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/sites?mineral=copper", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Sites []sites.Site `json:"sites"`
		Count int          `json:"count"`
	}
	decodeData(t, w, &got)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, domain.Copper, got.Sites[0].Mineral)

	tests := []string{"/api/sites?mineral=lithium", "/api/sites?band=blue", "/api/sites?limit=-2"}
	for _, path := range tests {
		assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, path, "").Code, path)
	}
}

func TestHandleMap(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/sites/map?status=active", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Copper", fc.Features[0].Properties.MustString("mineral"))
}

func TestHandleGet(t *testing.T) {
	r, ids := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/sites/"+strconv.FormatInt(ids[2], 10), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Site sites.Site `json:"site"`
		Unit string     `json:"unit"`
	}
	decodeData(t, w, &got)
	assert.Equal(t, domain.Gold, got.Site.Mineral)
	assert.Equal(t, "kg", got.Unit)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/sites/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/sites/x", "").Code)
}

func TestHandleDashboard(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Sites      int                       `json:"sites"`
		Bands      map[string]int            `json:"bands"`
		LatestYear int                       `json:"latest_year"`
		Production []timeseries.MineralTotal `json:"production"`
		Alerts     []sites.Alert             `json:"latest_alerts"`
	}
	decodeData(t, w, &got)
	assert.Equal(t, 3, got.Sites)
	assert.Equal(t, map[string]int{"green": 1, "yellow": 1, "red": 1}, got.Bands)
	assert.Equal(t, 2024, got.LatestYear)
	require.Len(t, got.Production, 2)
	assert.Equal(t, "Gypsum", got.Production[0].Mineral)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, domain.AlertWarn, got.Alerts[0].Level)
}

func TestHandleRegions(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/regions", "")
	require.Equal(t, http.StatusOK, w.Code)

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, len(regions.Oman().Boundary())+len(regions.Oman().Regions()))
}

func TestHandleResolve(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/admin/resolve?lat=17.02&lon=54.09", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Governorate string `json:"governorate"`
		Wilaya      string `json:"wilaya"`
		InCountry   bool   `json:"in_country"`
	}
	decodeData(t, w, &got)
	assert.Equal(t, "Dhofar", got.Governorate)
	assert.Equal(t, "Salalah", got.Wilaya)
	assert.True(t, got.InCountry)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/admin/resolve?lat=abc&lon=1", "").Code)
}

func TestHandleClassify(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/band/classify",
		`{"air_quality_index": 100, "water_tds": 1200, "rehabilitation_progress": 0, "status": "closed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Score float64 `json:"score"`
		Band  string  `json:"band"`
	}
	decodeData(t, w, &got)
	assert.InDelta(t, 20.2, got.Score, 1e-9)
	assert.Equal(t, "red", got.Band)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/band/classify", `{"status": "paused"}`).Code)
}

func TestHandleSamplePoint(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"mineral": "Gypsum", "seed": 42}`
	first := do(t, r, http.MethodPost, "/api/sampling/point", body)
	require.Equal(t, http.StatusOK, first.Code)
	second := do(t, r, http.MethodPost, "/api/sampling/point", body)

	var a, b struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	decodeData(t, first, &a)
	decodeData(t, second, &b)
	assert.Equal(t, a, b, "same seed, same point")

	dhofar, ok := regions.Oman().Lookup(regions.DhofarGypsum)
	require.True(t, ok)
	assert.True(t, dhofar.BBox().Contains(a.Lat, a.Lon))

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/sampling/point", `{"mineral": "Lithium"}`).Code)
}

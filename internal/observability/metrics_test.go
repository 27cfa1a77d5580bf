package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/sites/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sites/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/sites/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.HTTPDurations))
}

func TestRecorders(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.RecordForecast("production", "model")
	c.RecordForecast("production", "model")
	c.RecordForecast("environment", "fallback")
	c.RecordShortfall("Musandam Limestone Belt", 3)
	c.RecordShortfall("Musandam Limestone Belt", 0)
	c.SetSites(412)
	c.RecordJob("refresh_forecasts", nil)
	c.RecordJob("refresh_forecasts", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Forecasts.WithLabelValues("production", "model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Forecasts.WithLabelValues("environment", "fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Shortfall.WithLabelValues("Musandam Limestone Belt")))
	assert.Equal(t, 412.0, testutil.ToFloat64(c.Sites))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.JobRuns.WithLabelValues("refresh_forecasts", "error")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordForecast("production", "model")
		c.RecordShortfall("x", 1)
		c.SetSites(1)
		c.RecordJob("x", nil)
	})
}

func TestNewCollector_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.SetSites(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(second.Sites))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	c.SetSites(5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), "geoeco_sites 5"))
}

// Package observability exposes Prometheus metrics for the HTTP surface,
// forecast refreshes, dataset generation and scheduled jobs.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the tracker's Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	Forecasts *prometheus.CounterVec
	Shortfall *prometheus.CounterVec
	JobRuns   *prometheus.CounterVec
	Sites     prometheus.Gauge
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry returns the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoeco_http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route pattern and status code.",
	}, []string{"method", "route", "code"}), "geoeco_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoeco_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"}), "geoeco_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	forecasts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoeco_forecasts_total",
		Help: "Forecast series computed, labeled by series and outcome (model, fallback, insufficient).",
	}, []string{"series", "outcome"}), "geoeco_forecasts_total")
	if err != nil {
		return nil, err
	}

	shortfall, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoeco_sampling_shortfall_total",
		Help: "Sites that could not be placed during generation, labeled by region.",
	}, []string{"region"}), "geoeco_sampling_shortfall_total")
	if err != nil {
		return nil, err
	}

	jobs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoeco_job_runs_total",
		Help: "Scheduled job runs, labeled by job and result.",
	}, []string{"job", "result"}), "geoeco_job_runs_total")
	if err != nil {
		return nil, err
	}

	sites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoeco_sites",
		Help: "Number of sites created by the latest generation run.",
	}), "geoeco_sites")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		HTTPRequests:  requests,
		HTTPDurations: durations,
		Forecasts:     forecasts,
		Shortfall:     shortfall,
		JobRuns:       jobs,
		Sites:         sites,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordForecast counts one forecast series outcome.
func (c *Collector) RecordForecast(series, outcome string) {
	if c == nil {
		return
	}
	c.Forecasts.WithLabelValues(series, outcome).Inc()
}

// RecordShortfall adds missing sites for a region.
func (c *Collector) RecordShortfall(region string, missing int) {
	if c == nil || missing <= 0 {
		return
	}
	c.Shortfall.WithLabelValues(region).Add(float64(missing))
}

// SetSites sets the current site count
func (c *Collector) SetSites(n int) {
	if c == nil {
		return
	}
	c.Sites.Set(float64(n))
}

// RecordJob counts one scheduled job run.
func (c *Collector) RecordJob(job string, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.JobRuns.WithLabelValues(job, result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}

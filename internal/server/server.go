// Package server provides the HTTP server and routing for the tracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/di"
	forecasthandlers "github.com/geoeco/tracker/internal/modules/forecast/handlers"
	siteshandlers "github.com/geoeco/tracker/internal/modules/sites/handlers"
	"github.com/geoeco/tracker/internal/scheduler"
)

// Generation and job triggers run inline, so requests may take minutes.
const requestTimeout = 5 * time.Minute

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Jobs      *di.JobInstances
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New builds the router and the underlying http.Server
func New(cfg Config) *Server {
	jobs := map[string]scheduler.Job{}
	if cfg.Jobs != nil {
		jobs = cfg.Jobs.ByName()
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		port:      cfg.Port,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Container,
			jobs,
			cfg.Config,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
		s.loggingMiddleware,
	)
	if s.container.Metrics != nil {
		s.router.Use(s.container.Metrics.Middleware)
	}
	s.router.Use(middleware.Timeout(requestTimeout))

	// Read-only browser clients; no cookies are issued
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "application/geo+json"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.container.Metrics != nil {
		s.router.Handle("/metrics", s.container.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		sitesHandler := siteshandlers.NewHandler(
			s.container.SiteRepo,
			s.container.SeriesRepo,
			s.container.Catalog,
			s.container.Resolver,
			s.log,
		)
		sitesHandler.RegisterRoutes(r)

		forecastHandler := forecasthandlers.NewHandler(
			s.container.ForecastService,
			s.container.ForecastRepo,
			forecasthandlers.Defaults{
				YearsAhead:  s.cfg.Forecast.YearsAhead,
				MonthsAhead: s.cfg.Forecast.MonthsAhead,
				Workers:     s.cfg.Forecast.Workers,
				RecalcBand:  s.cfg.Forecast.RecalcBand,
			},
			s.log,
		)
		forecastHandler.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/jobs", s.systemHandlers.HandleListJobs)
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
			r.Post("/generate", s.systemHandlers.HandleGenerate)
			r.Get("/snapshots", s.systemHandlers.HandleListSnapshots)
			r.Post("/snapshots", s.systemHandlers.HandleCreateSnapshot)
		})
	})
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Listening")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Draining HTTP connections")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs each request. Probe endpoints log at debug.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rw := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)

		event := s.log.Info()
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			event = s.log.Debug()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.Status()).
			Int("bytes", rw.BytesWritten()).
			Dur("took", time.Since(began)).
			Msg("Request served")
	})
}

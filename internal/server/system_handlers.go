package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/di"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/generation"
	"github.com/geoeco/tracker/internal/scheduler"
)

// SystemHandlers serves operational endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	container *di.Container
	jobs      map[string]scheduler.Job
	cfg       *config.Config
	started   time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, container *di.Container, jobs map[string]scheduler.Job, cfg *config.Config) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		container: container,
		jobs:      jobs,
		cfg:       cfg,
		started:   time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status         string              `json:"status"` // "healthy" or "degraded"
	UptimeSeconds  int64               `json:"uptime_seconds"`
	Sites          int                 `json:"sites"`
	Bands          map[domain.Band]int `json:"bands"`
	LastGeneration *generation.Run     `json:"last_generation"`
	CPUPercent     float64             `json:"cpu_percent"`
	RAMPercent     float64             `json:"ram_percent"`
	Jobs           int                 `json:"jobs"`
	NextRuns       []time.Time         `json:"next_runs"`
	SnapshotUpload bool                `json:"snapshot_upload"`
}

// HandleSystemStatus returns registry and host status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := SystemStatusResponse{
		Status:         "healthy",
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		Jobs:           len(h.jobs),
		SnapshotUpload: h.container.Snapshots != nil && h.container.Snapshots.RemoteEnabled(),
	}

	bands, err := h.container.SiteRepo.CountByBand(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count sites")
		resp.Status = "degraded"
	} else {
		resp.Bands = bands
		for _, n := range bands {
			resp.Sites += n
		}
	}

	run, err := h.container.Generator.LastRun(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read last generation run")
		resp.Status = "degraded"
	}
	resp.LastGeneration = run

	if h.container.Scheduler != nil {
		resp.NextRuns = h.container.Scheduler.Next()
	}

	resp.CPUPercent, resp.RAMPercent = h.getSystemStats()

	h.writeJSON(w, http.StatusOK, resp)
}

// getSystemStats calculates CPU and RAM usage percentages over a short window
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// DBInfo describes one database file
type DBInfo struct {
	Name  string          `json:"name"`
	Path  string          `json:"path"`
	Stats *database.Stats `json:"stats,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HandleDatabaseStats returns size and page statistics per database
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	dbs := h.container.Databases()
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DBInfo, 0, len(names))
	totalBytes := int64(0)
	for _, name := range names {
		db := dbs[name]
		if db == nil {
			continue
		}
		info := DBInfo{Name: name, Path: db.Path()}
		stats, err := db.Stats(r.Context())
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Stats = stats
			totalBytes += stats.SizeBytes + stats.WALSizeBytes
		}
		out = append(out, info)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":     out,
		"total_size_mb": float64(totalBytes) / 1024 / 1024,
	})
}

// HandleListJobs lists jobs that can be triggered
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// HandleTriggerJob runs a job immediately and waits for it
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		http.Error(w, "Unknown job", http.StatusNotFound)
		return
	}

	var err error
	if h.container.Scheduler != nil {
		err = h.container.Scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"job":     name,
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "job": name})
}

// HandleGenerate rebuilds the dataset. The body overrides individual options.
// POST /api/system/generate
func (h *SystemHandlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	opts := generation.DefaultOptions()
	if h.cfg != nil {
		opts.Seed = h.cfg.Seed
		opts.TargetsJSON = h.cfg.TargetsJSON
	}
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := opts.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.container.Generator.Generate(r.Context(), opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Generation failed")
		http.Error(w, "Generation failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleListSnapshots lists local snapshot files
// GET /api/system/snapshots
func (h *SystemHandlers) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.container.Snapshots.LocalSnapshots()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": snaps})
}

// HandleCreateSnapshot writes a local snapshot, uploading it too when
// ?upload=true and object storage is configured
// POST /api/system/snapshots
func (h *SystemHandlers) HandleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := h.container.Snapshots.WriteLocal(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to write snapshot")
		http.Error(w, "Failed to write snapshot", http.StatusInternalServerError)
		return
	}

	resp := map[string]string{"path": path}
	if r.URL.Query().Get("upload") == "true" {
		if !h.container.Snapshots.RemoteEnabled() {
			http.Error(w, "Snapshot upload is not configured", http.StatusConflict)
			return
		}
		key, err := h.container.Snapshots.Upload(ctx, h.cfg.Snapshot.Prefix)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to upload snapshot")
			http.Error(w, "Failed to upload snapshot", http.StatusBadGateway)
			return
		}
		resp["key"] = key
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

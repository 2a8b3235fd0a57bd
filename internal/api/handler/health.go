package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/audiograbba/internal/repository"
	"github.com/iconidentify/audiograbba/internal/service"
)

var startTime = time.Now()

// WorkerCounter reports how many session workers are running.
type WorkerCounter interface {
	Active() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	sessions repository.SessionRepository
	workers  WorkerCounter
	activity *service.ActivityLog
	tempDir  string
}

// NewHealthHandler creates a new health handler. workers and activity may be nil.
func NewHealthHandler(sessions repository.SessionRepository, workers WorkerCounter, activity *service.ActivityLog, tempDir string) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		workers:  workers,
		activity: activity,
		tempDir:  tempDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Sessions  *SessionStats `json:"sessions,omitempty"`
}

// SessionStats contains session store statistics.
type SessionStats struct {
	Total      int `json:"total"`
	Configured int `json:"configured"`
	Capturing  int `json:"capturing"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.sessions.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sessions: &SessionStats{
			Total:      stats.Total,
			Configured: stats.Configured,
			Capturing:  stats.Capturing,
		},
	})
}

// SystemStats contains process and bot statistics.
type SystemStats struct {
	Uptime         int64                  `json:"uptime_seconds"`
	UptimeHuman    string                 `json:"uptime_human"`
	MemAllocMB     int64                  `json:"mem_alloc_mb"`
	MemSysMB       int64                  `json:"mem_sys_mb"`
	NumGoroutines  int                    `json:"num_goroutines"`
	NumCPU         int                    `json:"num_cpu"`
	ActiveWorkers  int                    `json:"active_workers"`
	Sessions       *SessionStats          `json:"sessions,omitempty"`
	Events         *service.ActivityStats `json:"events,omitempty"`
	TempDir        string                 `json:"temp_dir"`
	DiskFreeBytes  int64                  `json:"disk_free_bytes"`
	DiskTotalBytes int64                  `json:"disk_total_bytes"`
	DiskUsedPct    float64                `json:"disk_used_pct"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		TempDir:       h.tempDir,
	}

	if h.workers != nil {
		stats.ActiveWorkers = h.workers.Active()
	}
	if s, err := h.sessions.Stats(r.Context()); err == nil {
		stats.Sessions = &SessionStats{
			Total:      s.Total,
			Configured: s.Configured,
			Capturing:  s.Capturing,
		}
	}
	if h.activity != nil {
		es := h.activity.Stats()
		stats.Events = &es
	}

	total, free := getDiskStats(h.tempDir)
	stats.DiskTotalBytes = total
	stats.DiskFreeBytes = free
	if total > 0 {
		stats.DiskUsedPct = float64(total-free) / float64(total) * 100
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

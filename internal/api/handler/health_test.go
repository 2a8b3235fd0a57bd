package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/repository"
	"github.com/iconidentify/audiograbba/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingSessions struct {
	repository.SessionRepository
}

func (failingSessions) Stats(ctx context.Context) (*repository.SessionStats, error) {
	return nil, errors.New("store unavailable")
}

type fixedWorkers int

func (f fixedWorkers) Active() int { return int(f) }

func seededSessions(t *testing.T) *repository.InMemorySessionRepository {
	t.Helper()
	repo := repository.NewInMemorySessionRepository()
	ctx := context.Background()
	repo.Update(ctx, 1, func(s *domain.UserSession) error {
		s.SetUploadURL("http://x")
		s.SetRepeatCount(2)
		return nil
	})
	repo.Update(ctx, 2, func(s *domain.UserSession) error {
		s.BeginSettings()
		return nil
	})
	return repo
}

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(repository.NewInMemorySessionRepository(), nil, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Live(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should not be empty")
	}
}

func TestHealthHandler_Ready_Success(t *testing.T) {
	handler := NewHealthHandler(seededSessions(t), nil, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Sessions == nil {
		t.Fatal("session stats should not be nil")
	}
	if resp.Sessions.Total != 2 || resp.Sessions.Configured != 1 || resp.Sessions.Capturing != 1 {
		t.Errorf("sessions = %+v, want total=2 configured=1 capturing=1", resp.Sessions)
	}
}

func TestHealthHandler_Ready_Error(t *testing.T) {
	handler := NewHealthHandler(failingSessions{}, nil, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("status = %q, want %q", resp.Status, "error")
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	activity, err := service.NewActivityLog(service.ActivityLogConfig{RingBufferSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("NewActivityLog failed: %v", err)
	}
	activity.EmitInfo(domain.EventCategorySystem, "test", "started", nil)

	tempDir := t.TempDir()
	handler := NewHealthHandler(seededSessions(t), fixedWorkers(3), activity, tempDir)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats SystemStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.TempDir != tempDir {
		t.Errorf("temp dir = %q, want %q", stats.TempDir, tempDir)
	}
	if stats.ActiveWorkers != 3 {
		t.Errorf("active workers = %d, want 3", stats.ActiveWorkers)
	}
	if stats.Sessions == nil || stats.Sessions.Total != 2 {
		t.Errorf("sessions = %+v, want total 2", stats.Sessions)
	}
	if stats.Events == nil || stats.Events.BufferUsed != 1 {
		t.Errorf("events = %+v, want buffer_used 1", stats.Events)
	}
	if stats.NumCPU <= 0 {
		t.Error("num_cpu should be positive")
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{50*time.Hour + 10*time.Minute, "2d 2h 10m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatUptime(tt.in); got != tt.want {
				t.Errorf("formatUptime(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

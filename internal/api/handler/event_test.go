package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/service"
)

func newTestActivity(t *testing.T) *service.ActivityLog {
	t.Helper()
	activity, err := service.NewActivityLog(service.ActivityLogConfig{RingBufferSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewActivityLog failed: %v", err)
	}
	activity.EmitInfo(domain.EventCategorySession, "conversation", "settings saved", nil)
	activity.EmitWarning(domain.EventCategorySearch, "pipeline", "No suitable videos found.", nil)
	activity.EmitError(domain.EventCategoryDownload, "pipeline", "extract audio failed", nil)
	activity.EmitSuccess(domain.EventCategoryUpload, "pipeline", "Upload successful", nil)
	return activity
}

func TestEventHandler_List(t *testing.T) {
	h := NewEventHandler(newTestActivity(t), testLogger())

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantLimit int
	}{
		{"all", "", 4, 50},
		{"by severity", "?severity=error", 1, 50},
		{"by category", "?category=upload", 1, 50},
		{"by source", "?source=conversation", 1, 50},
		{"by search", "?search=videos", 1, 50},
		{"limit capped", "?limit=1000", 4, 200},
		{"bad limit ignored", "?limit=abc", 4, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+tt.query, nil)
			w := httptest.NewRecorder()

			h.List(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var resp EventListResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", resp.Total, tt.wantTotal)
			}
			if resp.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", resp.Limit, tt.wantLimit)
			}
			if len(resp.Events) != tt.wantTotal {
				t.Errorf("events = %d, want %d", len(resp.Events), tt.wantTotal)
			}
		})
	}
}

func TestEventHandler_ListRejectsUnknownFilters(t *testing.T) {
	h := NewEventHandler(newTestActivity(t), testLogger())

	for _, query := range []string{"?severity=fatal", "?category=export"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+query, nil)
			w := httptest.NewRecorder()

			h.List(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestEventHandler_ListPagination(t *testing.T) {
	h := NewEventHandler(newTestActivity(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=2&offset=1", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	var resp EventListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 2 || !resp.HasMore || resp.Offset != 1 {
		t.Errorf("page = %d events, has_more=%v, offset=%d", len(resp.Events), resp.HasMore, resp.Offset)
	}
	if resp.Events[0].Message != "extract audio failed" {
		t.Errorf("first event on page = %q", resp.Events[0].Message)
	}
}

func TestEventHandler_ListHistoricalWithoutSQLite(t *testing.T) {
	h := NewEventHandler(newTestActivity(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?historical=true", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	var resp EventListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 0 {
		t.Errorf("historical events = %d, want 0 without persistence", len(resp.Events))
	}
}

func TestEventHandler_Stats(t *testing.T) {
	h := NewEventHandler(newTestActivity(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stats", nil)
	w := httptest.NewRecorder()
	h.Stats(w, req)

	var resp EventStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 4 || resp.BufferUsed != 4 || resp.BufferSize != 100 {
		t.Errorf("stats = %+v", resp)
	}
	if resp.BySeverity["error"] != 1 || resp.ByCategory["upload"] != 1 {
		t.Errorf("breakdown = %v / %v", resp.BySeverity, resp.ByCategory)
	}
}

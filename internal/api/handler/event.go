package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/service"
)

// EventHandler serves the activity log.
type EventHandler struct {
	activity *service.ActivityLog
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(activity *service.ActivityLog, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		activity: activity,
		logger:   logger,
	}
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  string          `json:"severity"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventListResponse contains paginated event list.
type EventListResponse struct {
	Events  []EventResponse `json:"events"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// List handles GET /api/v1/events
// Query parameters:
//   - severity: info, warning, error, success
//   - category: session, search, download, delivery, upload, system
//   - source: component that emitted the event
//   - search: substring of the message
//   - limit: max events to return (default 50, max 200)
//   - offset: pagination offset
//   - historical: "true" reads persisted events instead of the ring buffer
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.EventQuery{Limit: 50}

	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			query.Limit = parsed
		}
	}
	if query.Limit > 200 {
		query.Limit = 200
	}
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			query.Offset = parsed
		}
	}

	query.Severity = domain.EventSeverity(q.Get("severity"))
	if query.Severity != "" && !query.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}
	query.Category = domain.EventCategory(q.Get("category"))
	if query.Category != "" && !query.Category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	query.Source = q.Get("source")
	query.Text = q.Get("search")

	var result *domain.EventPage
	var err error
	if q.Get("historical") == "true" {
		result, err = h.activity.QueryHistorical(r.Context(), query)
	} else {
		result, err = h.activity.Query(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Events:  toEventResponses(result.Events),
		Total:   result.Total,
		Limit:   query.Limit,
		Offset:  query.Offset,
		HasMore: result.HasMore,
	})
}

// EventStatsResponse contains activity log statistics.
type EventStatsResponse struct {
	Total         int            `json:"total"`
	BySeverity    map[string]int `json:"by_severity"`
	ByCategory    map[string]int `json:"by_category"`
	BufferSize    int            `json:"buffer_size"`
	BufferUsed    int            `json:"buffer_used"`
	SQLiteEnabled bool           `json:"sqlite_enabled"`
}

// Stats handles GET /api/v1/events/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.activity.Stats()

	bySeverity := map[string]int{}
	byCategory := map[string]int{}
	var total int
	for offset := 0; ; offset += 200 {
		page, err := h.activity.Query(r.Context(), domain.EventQuery{Limit: 200, Offset: offset})
		if err != nil {
			break
		}
		for _, e := range page.Events {
			bySeverity[string(e.Severity)]++
			byCategory[string(e.Category)]++
		}
		total = page.Total
		if !page.HasMore {
			break
		}
	}

	writeJSON(w, http.StatusOK, EventStatsResponse{
		Total:         total,
		BySeverity:    bySeverity,
		ByCategory:    byCategory,
		BufferSize:    stats.BufferSize,
		BufferUsed:    stats.BufferUsed,
		SQLiteEnabled: stats.SQLiteEnabled,
	})
}

func toEventResponses(events []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:        string(e.ID),
			Timestamp: e.Timestamp,
			Severity:  string(e.Severity),
			Category:  string(e.Category),
			Message:   e.Message,
			Source:    e.Source,
			Metadata:  e.Metadata,
		})
	}
	return out
}

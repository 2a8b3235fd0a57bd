package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// ActivityLogConfig configures the activity log.
type ActivityLogConfig struct {
	// RingBufferSize is the number of events to keep in memory.
	// Default: 1000
	RingBufferSize int

	// SQLitePath enables persistence of events when non-empty.
	SQLitePath string

	// RetentionDays is how long to keep persisted events (0 = forever).
	RetentionDays int
}

// ActivityLog records pipeline and session events in an in-memory ring
// buffer with optional SQLite persistence.
type ActivityLog struct {
	cfg    ActivityLogConfig
	logger *slog.Logger

	mu       sync.RWMutex
	events   []domain.Event
	head     int // Next write position
	count    int // Number of events in buffer
	eventSeq uint64

	db *sql.DB
}

// NewActivityLog creates a new activity log.
func NewActivityLog(cfg ActivityLogConfig, logger *slog.Logger) (*ActivityLog, error) {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 1000
	}

	l := &ActivityLog{
		cfg:    cfg,
		logger: logger,
		events: make([]domain.Event, cfg.RingBufferSize),
	}

	if cfg.SQLitePath != "" {
		if err := l.initSQLite(); err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		logger.Info("event persistence enabled", "path", cfg.SQLitePath)
	}

	return l, nil
}

func (l *ActivityLog) initSQLite() error {
	db, err := sql.Open("sqlite", l.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			ts_unix_nano INTEGER NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			source TEXT,
			metadata TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_unix_nano);
		CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("create table: %w", err)
	}

	l.db = db
	return nil
}

// Close closes the database if persistence is enabled.
func (l *ActivityLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Emit records an event.
func (l *ActivityLog) Emit(event domain.Event) {
	if event.ID == "" {
		seq := atomic.AddUint64(&l.eventSeq, 1)
		event.ID = domain.EventID(fmt.Sprintf("evt_%d_%d", time.Now().UnixNano(), seq))
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.events[l.head] = event
	l.head = (l.head + 1) % l.cfg.RingBufferSize
	if l.count < l.cfg.RingBufferSize {
		l.count++
	}
	l.mu.Unlock()

	if l.db != nil {
		l.persist(event)
	}

	level := slog.LevelInfo
	switch event.Severity {
	case domain.EventSeverityWarning:
		level = slog.LevelWarn
	case domain.EventSeverityError:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, "activity",
		"event_id", event.ID,
		"category", event.Category,
		"severity", event.Severity,
		"message", event.Message,
		"source", event.Source,
	)
}

// EmitInfo records an info-level event.
func (l *ActivityLog) EmitInfo(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	l.emit(domain.EventSeverityInfo, category, source, message, metadata)
}

// EmitWarning records a warning-level event.
func (l *ActivityLog) EmitWarning(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	l.emit(domain.EventSeverityWarning, category, source, message, metadata)
}

// EmitError records an error-level event.
func (l *ActivityLog) EmitError(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	l.emit(domain.EventSeverityError, category, source, message, metadata)
}

// EmitSuccess records a success-level event.
func (l *ActivityLog) EmitSuccess(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	l.emit(domain.EventSeveritySuccess, category, source, message, metadata)
}

func (l *ActivityLog) emit(severity domain.EventSeverity, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	l.Emit(domain.Event{
		Severity: severity,
		Category: category,
		Source:   source,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

func (l *ActivityLog) persist(event domain.Event) {
	_, err := l.db.Exec(`
		INSERT INTO events (id, ts_unix_nano, severity, category, message, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(event.ID), event.Timestamp.UnixNano(), string(event.Severity), string(event.Category),
		event.Message, event.Source, string(event.Metadata))
	if err != nil {
		l.logger.Warn("failed to persist event", "event_id", event.ID, "error", err)
	}
}

// Query returns buffered events matching the filter, newest first.
func (l *ActivityLog) Query(ctx context.Context, query domain.EventQuery) (*domain.EventPage, error) {
	query = normalizeQuery(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]domain.Event, 0, l.count)
	for i := 0; i < l.count; i++ {
		idx := (l.head - 1 - i + l.cfg.RingBufferSize) % l.cfg.RingBufferSize
		event := l.events[idx]
		if event.ID == "" {
			continue
		}
		if query.Matches(event) {
			matched = append(matched, event)
		}
	}

	total := len(matched)
	if query.Offset >= total {
		return &domain.EventPage{Events: []domain.Event{}, Total: total}, nil
	}
	end := query.Offset + query.Limit
	if end > total {
		end = total
	}

	return &domain.EventPage{
		Events:  matched[query.Offset:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// QueryHistorical queries persisted events.
func (l *ActivityLog) QueryHistorical(ctx context.Context, query domain.EventQuery) (*domain.EventPage, error) {
	if l.db == nil {
		return &domain.EventPage{Events: []domain.Event{}}, nil
	}
	query = normalizeQuery(query)

	var conditions []string
	var args []interface{}
	if query.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(query.Severity))
	}
	if query.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(query.Category))
	}
	if query.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, query.Source)
	}
	if query.Text != "" {
		conditions = append(conditions, "message LIKE ?")
		args = append(args, "%"+query.Text+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, ts_unix_nano, severity, category, message, source, metadata
		FROM events `+where+`
		ORDER BY ts_unix_nano DESC
		LIMIT ? OFFSET ?
	`, append(args, query.Limit, query.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, query.Limit)
	for rows.Next() {
		var (
			event    domain.Event
			ts       int64
			source   sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&event.ID, &ts, &event.Severity, &event.Category, &event.Message, &source, &metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Timestamp = time.Unix(0, ts)
		event.Source = source.String
		if metadata.Valid && metadata.String != "" {
			event.Metadata = json.RawMessage(metadata.String)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return &domain.EventPage{
		Events:  events,
		Total:   total,
		HasMore: query.Offset+len(events) < total,
	}, nil
}

// GetRecent returns the most recent n events.
func (l *ActivityLog) GetRecent(n int) []domain.Event {
	result, _ := l.Query(context.Background(), domain.EventQuery{Limit: n})
	return result.Events
}

// ActivityStats describes the activity log.
type ActivityStats struct {
	BufferSize    int  `json:"buffer_size"`
	BufferUsed    int  `json:"buffer_used"`
	SQLiteEnabled bool `json:"sqlite_enabled"`
}

// Stats returns statistics about the activity log.
func (l *ActivityLog) Stats() ActivityStats {
	l.mu.RLock()
	used := l.count
	l.mu.RUnlock()

	return ActivityStats{
		BufferSize:    l.cfg.RingBufferSize,
		BufferUsed:    used,
		SQLiteEnabled: l.db != nil,
	}
}

// CleanupOldEvents removes persisted events older than the retention period.
func (l *ActivityLog) CleanupOldEvents(ctx context.Context) error {
	if l.db == nil || l.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	result, err := l.db.ExecContext(ctx, "DELETE FROM events WHERE ts_unix_nano < ?", cutoff.UnixNano())
	if err != nil {
		return fmt.Errorf("delete old events: %w", err)
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		l.logger.Info("cleaned up old events", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}

func normalizeQuery(q domain.EventQuery) domain.EventQuery {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

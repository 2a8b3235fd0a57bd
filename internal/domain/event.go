package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventID identifies one activity log entry.
type EventID string

// EventSeverity tells an operator how to read an event.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
	EventSeveritySuccess EventSeverity = "success"
)

// Valid reports whether s is a known severity.
func (s EventSeverity) Valid() bool {
	switch s {
	case EventSeverityInfo, EventSeverityWarning, EventSeverityError, EventSeveritySuccess:
		return true
	}
	return false
}

// EventCategory is the bot stage that produced an event.
type EventCategory string

const (
	EventCategorySession  EventCategory = "session"
	EventCategorySearch   EventCategory = "search"
	EventCategoryDownload EventCategory = "download"
	EventCategoryDelivery EventCategory = "delivery"
	EventCategoryUpload   EventCategory = "upload"
	EventCategorySystem   EventCategory = "system"
)

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	switch c {
	case EventCategorySession, EventCategorySearch, EventCategoryDownload,
		EventCategoryDelivery, EventCategoryUpload, EventCategorySystem:
		return true
	}
	return false
}

// Event is one entry of the bot's activity log.
type Event struct {
	ID        EventID
	Timestamp time.Time
	Severity  EventSeverity
	Category  EventCategory
	Message   string
	Source    string          // emitting component
	Metadata  json.RawMessage // JSON object, may be nil
}

// EventMetadata is structured detail attached to an event.
type EventMetadata map[string]any

// ToJSON encodes the metadata, or returns nil when there is none.
func (m EventMetadata) ToJSON() json.RawMessage {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventEmitter records activity events.
type EventEmitter interface {
	EmitInfo(category EventCategory, source, message string, metadata EventMetadata)
	EmitWarning(category EventCategory, source, message string, metadata EventMetadata)
	EmitError(category EventCategory, source, message string, metadata EventMetadata)
	EmitSuccess(category EventCategory, source, message string, metadata EventMetadata)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) EmitInfo(EventCategory, string, string, EventMetadata)    {}
func (NopEmitter) EmitWarning(EventCategory, string, string, EventMetadata) {}
func (NopEmitter) EmitError(EventCategory, string, string, EventMetadata)   {}
func (NopEmitter) EmitSuccess(EventCategory, string, string, EventMetadata) {}

// EventQuery selects a page of events. Empty filters match everything.
type EventQuery struct {
	Severity EventSeverity
	Category EventCategory
	Source   string
	Text     string // case-insensitive substring of the message
	Limit    int
	Offset   int
}

// Matches reports whether e passes every filter of q.
func (q EventQuery) Matches(e Event) bool {
	if q.Severity != "" && e.Severity != q.Severity {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if q.Text != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(q.Text)) {
		return false
	}
	return true
}

// EventPage is one page of matching events, newest first.
type EventPage struct {
	Events  []Event
	Total   int
	HasMore bool
}

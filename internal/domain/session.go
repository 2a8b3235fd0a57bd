package domain

import (
	"strconv"
	"time"
)

// UserID identifies the human on the other side of a chat session.
type UserID int64

// String returns the string representation of the UserID.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ChatID identifies the chat replies are delivered to.
type ChatID int64

// String returns the string representation of the ChatID.
func (id ChatID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ConversationState is the configuration-capture state of one user.
type ConversationState string

const (
	StateIdle                ConversationState = "idle"
	StateAwaitingUploadURL   ConversationState = "awaiting_upload_url"
	StateAwaitingRepeatCount ConversationState = "awaiting_repeat_count"
)

// Capturing reports whether free text is consumed by configuration capture.
func (s ConversationState) Capturing() bool {
	return s == StateAwaitingUploadURL || s == StateAwaitingRepeatCount
}

// DefaultRepeatCount applies when no repeat count has been stored.
const DefaultRepeatCount = 1

// UserSession is the per-user configuration and conversation state.
type UserSession struct {
	UserID      UserID
	State       ConversationState
	UploadURL   string
	RepeatCount int // 0 means not set
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// committed is what CancelSettings restores.
	committed settingsSnapshot
}

type settingsSnapshot struct {
	uploadURL   string
	repeatCount int
}

// NewUserSession creates an idle, unconfigured session.
func NewUserSession(id UserID) *UserSession {
	now := time.Now()
	return &UserSession{
		UserID:    id,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Configured returns true once an upload URL has been captured.
func (s *UserSession) Configured() bool {
	return s.UploadURL != ""
}

// Repeats returns the number of pipeline iterations to run.
func (s *UserSession) Repeats() int {
	if s.RepeatCount < 1 {
		return DefaultRepeatCount
	}
	return s.RepeatCount
}

// BeginSettings restarts configuration capture. The values stored before the
// first restart are kept until capture completes or is cancelled.
func (s *UserSession) BeginSettings() {
	if !s.State.Capturing() {
		s.committed = settingsSnapshot{uploadURL: s.UploadURL, repeatCount: s.RepeatCount}
	}
	s.State = StateAwaitingUploadURL
	s.UpdatedAt = time.Now()
}

// SetUploadURL stores the destination verbatim and drops the old repeat count.
func (s *UserSession) SetUploadURL(url string) {
	s.UploadURL = url
	s.RepeatCount = 0
	s.State = StateAwaitingRepeatCount
	s.UpdatedAt = time.Now()
}

// SetRepeatCount stores the repeat count and completes configuration.
func (s *UserSession) SetRepeatCount(n int) {
	s.RepeatCount = n
	s.State = StateIdle
	s.UpdatedAt = time.Now()
}

// CancelSettings leaves configuration capture and restores the values stored
// before it began.
func (s *UserSession) CancelSettings() {
	if s.State.Capturing() {
		s.UploadURL = s.committed.uploadURL
		s.RepeatCount = s.committed.repeatCount
	}
	s.State = StateIdle
	s.UpdatedAt = time.Now()
}

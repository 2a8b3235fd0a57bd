package repository

import (
	"context"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// SessionRepository owns per-user sessions for the lifetime of the process.
type SessionRepository interface {
	// Get returns a copy of the session for a user, or domain.ErrSessionNotFound.
	Get(ctx context.Context, id domain.UserID) (*domain.UserSession, error)

	// Update applies fn to the user's session atomically, creating an idle
	// session first if none exists. The change is discarded if fn fails.
	// Returns a copy of the stored session.
	Update(ctx context.Context, id domain.UserID, fn func(*domain.UserSession) error) (*domain.UserSession, error)

	// Stats returns session statistics.
	Stats(ctx context.Context) (*SessionStats, error)
}

// SessionStats contains session store statistics.
type SessionStats struct {
	Total      int
	Configured int
	Capturing  int
}

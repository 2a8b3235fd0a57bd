package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// InMemorySessionRepository implements SessionRepository using in-memory storage.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*domain.UserSession
}

// NewInMemorySessionRepository creates a new in-memory session repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[domain.UserID]*domain.UserSession),
	}
}

// Get retrieves a session by user ID.
func (r *InMemorySessionRepository) Get(ctx context.Context, id domain.UserID) (*domain.UserSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	cp := *session
	return &cp, nil
}

// Update modifies a session under the write lock.
func (r *InMemorySessionRepository) Update(ctx context.Context, id domain.UserID, fn func(*domain.UserSession) error) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var working domain.UserSession
	if existing, ok := r.sessions[id]; ok {
		working = *existing
	} else {
		working = *domain.NewUserSession(id)
	}

	if err := fn(&working); err != nil {
		return nil, err
	}

	stored := working
	r.sessions[id] = &stored

	cp := working
	return &cp, nil
}

// Stats returns session statistics.
func (r *InMemorySessionRepository) Stats(ctx context.Context) (*SessionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &SessionStats{Total: len(r.sessions)}
	for _, s := range r.sessions {
		if s.Configured() {
			stats.Configured++
		}
		if s.State.Capturing() {
			stats.Capturing++
		}
	}

	return stats, nil
}

// Clear removes all sessions (useful for testing).
func (r *InMemorySessionRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[domain.UserID]*domain.UserSession)
}

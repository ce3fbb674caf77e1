package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore with
// optimistic concurrency on the document revision.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.SessionState)}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return state, nil
}

func (s *SessionStore) Put(_ context.Context, state domain.SessionState) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[state.QuizID]
	if state.Revision == 0 {
		if exists {
			return domain.SessionState{}, domain.ErrConflict
		}
	} else if !exists || current.Revision != state.Revision {
		return domain.SessionState{}, domain.ErrConflict
	}

	state.Revision++
	s.sessions[state.QuizID] = state
	return state, nil
}

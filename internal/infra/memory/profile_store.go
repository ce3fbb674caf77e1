package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewProfileStore(profiles map[string]domain.Profile) *ProfileStore {
	if profiles == nil {
		profiles = make(map[string]domain.Profile)
	}
	return &ProfileStore{profiles: profiles}
}

func (s *ProfileStore) GetProfile(_ context.Context, participantID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[participantID]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return profile, nil
}

// PutProfile registers display data for a participant.
func (s *ProfileStore) PutProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ParticipantID] = profile
	return nil
}

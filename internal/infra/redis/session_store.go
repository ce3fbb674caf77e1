package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// SessionStore keeps the session document as JSON under a single key and
// implements the conditional write with WATCH + MULTI/EXEC so two concurrent
// operator transitions cannot both land.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// sessionDoc carries the revision alongside the state; SessionState excludes
// Revision from its JSON form on purpose.
type sessionDoc struct {
	State    domain.SessionState `json:"state"`
	Revision int64               `json:"revision"`
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.SessionState, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.SessionState{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	state := doc.State
	state.Revision = doc.Revision
	return state, nil
}

func (s *SessionStore) Put(ctx context.Context, state domain.SessionState) (domain.SessionState, error) {
	key := s.key(state.QuizID)
	next := state
	next.Revision = state.Revision + 1

	payload, err := json.Marshal(sessionDoc{State: next, Revision: next.Revision})
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("encode session %s: %w", state.QuizID, err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if state.Revision != 0 {
				return domain.ErrConflict
			}
		case err != nil:
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		default:
			var current sessionDoc
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode session %s: %w", state.QuizID, err)
			}
			if current.Revision != state.Revision {
				return domain.ErrConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// another writer touched the key between read and write
		return domain.SessionState{}, domain.ErrConflict
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	return next, nil
}

func (s *SessionStore) key(sessionID string) string {
	return "session:" + sessionID
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"livequiz-service/internal/domain"
)

// Ledger is an in-memory implementation of app.Ledger. Entries are kept in
// arrival order; dedup happens under the same lock as the append so at most
// one entry per (session, question, participant) survives concurrent retries.
type Ledger struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	entries map[string][]domain.Submission
}

func NewLedger() *Ledger {
	return &Ledger{
		seen:    make(map[string]struct{}),
		entries: make(map[string][]domain.Submission),
	}
}

func (l *Ledger) Append(_ context.Context, sub domain.Submission) error {
	key := dedupKey(sub.SessionID, sub.QuestionIndex, sub.ParticipantID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return domain.ErrDuplicateSubmission
	}
	l.seen[key] = struct{}{}
	l.entries[sub.SessionID] = append(l.entries[sub.SessionID], sub)
	return nil
}

func (l *Ledger) List(_ context.Context, sessionID string) ([]domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.entries[sessionID]
	out := make([]domain.Submission, len(entries))
	copy(out, entries)
	return out, nil
}

func dedupKey(sessionID string, questionIndex int, participantID string) string {
	return fmt.Sprintf("%s:%d:%s", sessionID, questionIndex, participantID)
}

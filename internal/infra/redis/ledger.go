package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// Ledger stores submissions in Redis. Dedup relies on HSETNX per
// (session, question): the first writer for a participant wins and only that
// entry is appended to the session's list. Keys are:
//
//	HSETNX session:{id}:answers:{questionIndex} {participantID} 1
//	RPUSH  session:{id}:ledger                  {submission JSON}
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLedger(client *redis.Client, ttl time.Duration) *Ledger {
	return &Ledger{client: client, ttl: ttl}
}

func (l *Ledger) Append(ctx context.Context, sub domain.Submission) error {
	dedupKey := l.answersKey(sub.SessionID, sub.QuestionIndex)
	ok, err := l.client.HSetNX(ctx, dedupKey, sub.ParticipantID, 1).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		return domain.ErrDuplicateSubmission
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	listKey := l.ledgerKey(sub.SessionID)
	pipe := l.client.Pipeline()
	pipe.RPush(ctx, listKey, payload)
	if l.ttl > 0 {
		pipe.Expire(ctx, dedupKey, l.ttl)
		pipe.Expire(ctx, listKey, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (l *Ledger) List(ctx context.Context, sessionID string) ([]domain.Submission, error) {
	raw, err := l.client.LRange(ctx, l.ledgerKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	subs := make([]domain.Submission, 0, len(raw))
	for _, item := range raw {
		var sub domain.Submission
		if err := json.Unmarshal([]byte(item), &sub); err != nil {
			// a malformed entry degrades aggregation, it must not sink it
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (l *Ledger) answersKey(sessionID string, questionIndex int) string {
	return "session:" + sessionID + ":answers:" + strconv.Itoa(questionIndex)
}

func (l *Ledger) ledgerKey(sessionID string) string {
	return "session:" + sessionID + ":ledger"
}

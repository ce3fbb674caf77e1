package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSessionStoreRoundTripAndCAS(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	created, err := store.Put(ctx, domain.SessionState{
		QuizID:         "q1",
		Phase:          domain.PhaseWaiting,
		TotalQuestions: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", created.Revision)
	}

	got, err := store.Get(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != domain.PhaseWaiting || got.Revision != 1 || got.TotalQuestions != 3 {
		t.Fatalf("round trip lost data: %+v", got)
	}

	got.Phase = domain.PhaseActive
	updated, err := store.Put(ctx, got)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if updated.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", updated.Revision)
	}

	// writing with the old revision must fail
	got.Phase = domain.PhaseRevealed
	if _, err := store.Put(ctx, got); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSessionStoreCreateConflictsWhenPresent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	if _, err := store.Put(ctx, domain.SessionState{QuizID: "q1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Put(ctx, domain.SessionState{QuizID: "q1"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
	}
}

func TestSessionStoreGetMissing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"livequiz-service/internal/domain"
)

func TestLedgerAppendAndList(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewLedger(newClient(mr), time.Minute)

	sub := domain.Submission{
		ID:             "s1",
		SessionID:      "q1",
		QuestionIndex:  0,
		ParticipantID:  "u1",
		SelectedIndex:  2,
		SubmittedAt:    time.Now().UTC().Truncate(time.Millisecond),
		ElapsedSeconds: 6,
	}
	if err := ledger.Append(ctx, sub); err != nil {
		t.Fatalf("append: %v", err)
	}

	subs, err := ledger.List(ctx, "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 || subs[0].ParticipantID != "u1" || subs[0].SelectedIndex != 2 {
		t.Fatalf("round trip lost data: %+v", subs)
	}
}

func TestLedgerRejectsDuplicate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewLedger(newClient(mr), time.Minute)

	sub := domain.Submission{ID: "s1", SessionID: "q1", QuestionIndex: 0, ParticipantID: "u1"}
	if err := ledger.Append(ctx, sub); err != nil {
		t.Fatalf("append: %v", err)
	}

	retry := sub
	retry.ID = "s2"
	if err := ledger.Append(ctx, retry); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	subs, err := ledger.List(ctx, "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected one effective entry, got %d", len(subs))
	}
}

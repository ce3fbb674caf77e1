package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"livequiz-service/internal/domain"
)

func TestLedgerDeduplicates(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	first := domain.Submission{ID: "1", SessionID: "q1", QuestionIndex: 0, ParticipantID: "u1", SelectedIndex: 2}
	if err := ledger.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}

	retry := first
	retry.ID = "2"
	retry.SelectedIndex = 3
	if err := ledger.Append(ctx, retry); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	// same participant, different question is fine
	other := first
	other.ID = "3"
	other.QuestionIndex = 1
	if err := ledger.Append(ctx, other); err != nil {
		t.Fatalf("append other question: %v", err)
	}

	subs, err := ledger.List(ctx, "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 effective entries, got %d", len(subs))
	}
	if subs[0].SelectedIndex != 2 {
		t.Fatalf("first effective entry must survive, got %+v", subs[0])
	}
}

func TestLedgerConcurrentRetriesKeepOneEntry(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	const retries = 32
	var wg sync.WaitGroup
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Append(ctx, domain.Submission{
				SessionID:     "q1",
				QuestionIndex: 0,
				ParticipantID: "u1",
			})
		}()
	}
	wg.Wait()

	subs, err := ledger.List(ctx, "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected exactly one effective entry, got %d", len(subs))
	}
}

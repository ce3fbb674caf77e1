package memory

import (
	"context"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestMarkEndedInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.MarkEnded(ctx, "quiz-1"); err != nil {
		t.Fatalf("mark ended: %v", err)
	}

	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after end: %v", err)
	}
	if quiz.Status != "ended" {
		t.Fatalf("expected ended status visible, got %q", quiz.Status)
	}
	if loader.calls != 2 {
		t.Fatalf("expected cache invalidation to hit loader, calls %d", loader.calls)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Sample",
		Questions: []domain.Question{
			{
				Text:             "What is 2 + 2?",
				Options:          []string{"3", "4", "5", "22"},
				CorrectIndex:     1,
				TimeLimitSeconds: 30,
			},
		},
	}
}

package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].CorrectIndex != 1 {
		t.Fatalf("quiz content lost in cache path: %+v", quiz)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryMarkEndedInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.MarkEnded(ctx, "quiz-1"); err != nil {
		t.Fatalf("mark ended: %v", err)
	}
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cache key invalidated")
	}

	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after end: %v", err)
	}
	if quiz.Status != "ended" {
		t.Fatalf("expected ended status after invalidation, got %q", quiz.Status)
	}
}

func TestQuizRepositoryConcurrentMisses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	quizzes := make(map[string]domain.Quiz, 16)
	for i := 0; i < 16; i++ {
		id := fmt.Sprintf("quiz-%d", i)
		quiz := sampleQuiz()
		quiz.ID = id
		quizzes[id] = quiz
	}
	repo := NewQuizRepository(newClient(mr), memory.NewStaticQuizLoader(quizzes), time.Minute)

	// cold cache for every ID: all loader callbacks run at once and share
	// the jitter source
	var wg sync.WaitGroup
	errs := make(chan error, len(quizzes))
	for id := range quizzes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetQuiz(context.Background(), id); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent get: %v", err)
	}
}

type countingLoader struct {
	memory.QuizLoader
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

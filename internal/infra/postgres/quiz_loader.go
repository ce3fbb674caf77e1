package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres and flips its status on finish.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	var status string
	err := l.pool.QueryRow(ctx, `SELECT data, status FROM quizzes WHERE id=$1`, quizID).Scan(&raw, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.Status = status
	return quiz, nil
}

func (l *QuizLoader) MarkQuizEnded(ctx context.Context, quizID string) error {
	tag, err := l.pool.Exec(ctx, `UPDATE quizzes SET status='ended' WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("mark quiz ended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

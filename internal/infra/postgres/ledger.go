package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// Ledger is the durable submission record. The unique index on
// (quiz_id, question_index, participant_id) is the dedup constraint: under
// concurrent retries exactly one insert lands, the rest report a duplicate.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Append(ctx context.Context, sub domain.Submission) error {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO responses (id, quiz_id, question_index, participant_id, selected_index, elapsed_seconds, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quiz_id, question_index, participant_id) DO NOTHING`,
		sub.ID, sub.SessionID, sub.QuestionIndex, sub.ParticipantID, sub.SelectedIndex, sub.ElapsedSeconds, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateSubmission
	}
	return nil
}

func (l *Ledger) List(ctx context.Context, sessionID string) ([]domain.Submission, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, quiz_id, question_index, participant_id, selected_index, elapsed_seconds, submitted_at
		FROM responses WHERE quiz_id=$1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.QuestionIndex, &sub.ParticipantID,
			&sub.SelectedIndex, &sub.ElapsedSeconds, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

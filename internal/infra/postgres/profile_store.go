package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// ProfileStore reads participant display data from the users table.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) GetProfile(ctx context.Context, participantID string) (domain.Profile, error) {
	profile := domain.Profile{ParticipantID: participantID}
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(display_name, ''), COALESCE(photo_url, ''), COALESCE(email, '') FROM users WHERE id=$1`,
		participantID).Scan(&profile.DisplayName, &profile.PhotoRef, &profile.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

package app

import (
	"math"
	"sort"
	"time"

	"livequiz-service/internal/domain"
)

const (
	basePoints = 1000
	maxBonus   = 500
)

// scoreSubmission computes the points for one ledger entry. A correct answer
// scores 1000 plus a speed bonus in [0, 500]; an incorrect or late answer
// scores 0. Late answers forfeit credit even when the selected index matches.
func scoreSubmission(q domain.Question, sub domain.Submission) (points int, correct bool) {
	limit := float64(q.TimeLimit())
	elapsed := sub.ElapsedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	if sub.SelectedIndex != q.CorrectIndex || elapsed > limit {
		return 0, false
	}
	bonus := (1 - elapsed/limit) * maxBonus
	if bonus < 0 {
		bonus = 0
	}
	return basePoints + int(math.Floor(bonus)), true
}

// buildRanking derives the live leaderboard from the session state, the quiz
// content and the full ledger. It is a pure function: identical inputs yield
// an identical ordering.
//
// Submissions for the current question only count once the phase is revealed
// or finished. Until then a participant who already answered still appears in
// the list with zero added for the in-flight question, so the UI never drops
// and re-adds them.
func buildRanking(state domain.SessionState, questions []domain.Question, subs []domain.Submission, profiles map[string]domain.Profile, now time.Time) domain.Ranking {
	scores := make(map[string]*domain.ParticipantScore)

	ensure := func(participantID string) *domain.ParticipantScore {
		if entry, ok := scores[participantID]; ok {
			return entry
		}
		entry := &domain.ParticipantScore{
			ParticipantID: participantID,
			DisplayName:   displayName(profiles, participantID),
			PhotoRef:      profiles[participantID].PhotoRef,
		}
		scores[participantID] = entry
		return entry
	}

	for _, sub := range subs {
		if sub.QuestionIndex > state.QuestionIndex {
			continue
		}
		if sub.QuestionIndex == state.QuestionIndex &&
			state.Phase != domain.PhaseRevealed && state.Phase != domain.PhaseFinished {
			ensure(sub.ParticipantID)
			continue
		}
		if sub.QuestionIndex >= len(questions) {
			continue
		}
		question := questions[sub.QuestionIndex]
		points, correct := scoreSubmission(question, sub)

		entry := ensure(sub.ParticipantID)
		entry.TotalScore += points
		entry.TotalElapsed += sub.ElapsedSeconds
		if correct {
			entry.CorrectCount++
		}
	}

	entries := make([]domain.ParticipantScore, 0, len(scores))
	for _, entry := range scores {
		entries = append(entries, *entry)
	}
	sortEntries(entries)

	return domain.Ranking{
		SessionID: state.QuizID,
		Entries:   entries,
		UpdatedAt: now,
	}
}

// buildFinal computes the post-run leaderboard: every question counts
// regardless of live phase, with the full report fields attached.
func buildFinal(questions []domain.Question, subs []domain.Submission, profiles map[string]domain.Profile) []domain.FinalRow {
	scores := make(map[string]*domain.ParticipantScore)
	for _, sub := range subs {
		if sub.QuestionIndex >= len(questions) {
			continue
		}
		question := questions[sub.QuestionIndex]
		points, correct := scoreSubmission(question, sub)

		entry, ok := scores[sub.ParticipantID]
		if !ok {
			entry = &domain.ParticipantScore{
				ParticipantID: sub.ParticipantID,
				DisplayName:   displayName(profiles, sub.ParticipantID),
				PhotoRef:      profiles[sub.ParticipantID].PhotoRef,
			}
			scores[sub.ParticipantID] = entry
		}
		entry.TotalScore += points
		entry.TotalElapsed += sub.ElapsedSeconds
		if correct {
			entry.CorrectCount++
		}
	}

	entries := make([]domain.ParticipantScore, 0, len(scores))
	for _, entry := range scores {
		entries = append(entries, *entry)
	}
	sortEntries(entries)

	rows := make([]domain.FinalRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, domain.FinalRow{
			ParticipantScore: entry,
			Email:            profiles[entry.ParticipantID].Email,
			TotalQuestions:   len(questions),
		})
	}
	return rows
}

// sortEntries orders by score desc, aggregate elapsed asc, then participant
// ID so exact ties stay deterministic.
func sortEntries(entries []domain.ParticipantScore) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if entries[i].TotalElapsed != entries[j].TotalElapsed {
			return entries[i].TotalElapsed < entries[j].TotalElapsed
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
}

func displayName(profiles map[string]domain.Profile, participantID string) string {
	if profile, ok := profiles[participantID]; ok && profile.DisplayName != "" {
		return profile.DisplayName
	}
	return "Anonymous"
}

package app

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"livequiz-service/internal/domain"
)

// SessionStore persists the authoritative session document. Put performs a
// conditional write: a zero Revision creates the document (failing with
// domain.ErrConflict when one exists), a non-zero Revision replaces the
// stored document only when revisions still match.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domain.SessionState, error)
	Put(ctx context.Context, state domain.SessionState) (domain.SessionState, error)
}

// Ledger is the append-only submission record. Append deduplicates on
// (session, question, participant) and returns domain.ErrDuplicateSubmission
// for repeats.
type Ledger interface {
	Append(ctx context.Context, sub domain.Submission) error
	List(ctx context.Context, sessionID string) ([]domain.Submission, error)
}

// QuizRepository loads quiz content (from cache/backing store) and flips the
// quiz record to ended when a run finishes.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	MarkEnded(ctx context.Context, quizID string) error
}

// ProfileRepository resolves display data for participants. Absence is
// tolerated; the engine substitutes a placeholder.
type ProfileRepository interface {
	GetProfile(ctx context.Context, participantID string) (domain.Profile, error)
}

const (
	waitingText  = "Waiting for host..."
	finishedText = "Quiz Ended. Thanks for playing."

	// clientElapsedTolerance bounds how far a client-reported elapsed time
	// may diverge from the server-derived one before it is discarded.
	clientElapsedTolerance = 2.0
)

// Engine drives the live session state machine, validates submissions and
// republishes the derived ranking on every change.
type Engine struct {
	sessions SessionStore
	ledger   Ledger
	quizzes  QuizRepository
	profiles ProfileRepository
	hub      *Hub
	now      func() time.Time
}

func NewEngine(sessions SessionStore, ledger Ledger, quizzes QuizRepository, profiles ProfileRepository, hub *Hub) *Engine {
	return NewEngineWithClock(sessions, ledger, quizzes, profiles, hub, time.Now)
}

// NewEngineWithClock allows deterministic timestamps in tests.
func NewEngineWithClock(sessions SessionStore, ledger Ledger, quizzes QuizRepository, profiles ProfileRepository, hub *Hub, now func() time.Time) *Engine {
	return &Engine{
		sessions: sessions,
		ledger:   ledger,
		quizzes:  quizzes,
		profiles: profiles,
		hub:      hub,
		now:      now,
	}
}

// Start initializes a session at question zero in the waiting phase. It is
// idempotent: while a non-finished session exists for the quiz it returns
// that session untouched instead of resetting progress.
func (e *Engine) Start(ctx context.Context, quizID string) (domain.SessionState, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if len(quiz.Questions) == 0 {
		// an empty quiz has no index the session pointer could sit on
		return domain.SessionState{}, domain.ErrOutOfRange
	}

	state := domain.SessionState{
		QuizID:         quizID,
		Phase:          domain.PhaseWaiting,
		QuestionIndex:  0,
		QuestionText:   waitingText,
		TotalQuestions: len(quiz.Questions),
	}

	existing, err := e.sessions.Get(ctx, quizID)
	switch {
	case err == nil:
		if existing.Phase != domain.PhaseFinished {
			return existing, nil
		}
		state.Revision = existing.Revision
	case errors.Is(err, domain.ErrSessionNotFound):
		// first run for this quiz
	default:
		return domain.SessionState{}, err
	}

	stored, err := e.sessions.Put(ctx, state)
	if err != nil {
		return domain.SessionState{}, err
	}
	e.publish(ctx, stored)
	return stored, nil
}

// Push points the session at a question in the waiting phase: text and image
// become visible, options and the correct answer stay hidden.
func (e *Engine) Push(ctx context.Context, quizID string, index int) (domain.SessionState, error) {
	return e.transition(ctx, quizID, func(state domain.SessionState, quiz domain.Quiz) (domain.SessionState, error) {
		if index >= len(quiz.Questions) || index < 0 {
			return state, domain.ErrOutOfRange
		}
		if state.Phase == domain.PhaseWaiting && state.QuestionIndex == index {
			return state, errNoop
		}
		question := quiz.Questions[index]
		state.Phase = domain.PhaseWaiting
		state.QuestionIndex = index
		state.QuestionText = question.Text
		state.ImageRef = question.ImageRef
		state.Options = nil
		state.CorrectIndex = nil
		state.PhaseStartedAt = time.Time{}
		state.TimeLimitSeconds = question.TimeLimit()
		return state, nil
	})
}

// Open activates the current question: options become visible and the answer
// window starts. The index must match the current pointer so a delayed
// double-click cannot advance past the operator's intent.
func (e *Engine) Open(ctx context.Context, quizID string, index int) (domain.SessionState, error) {
	return e.transition(ctx, quizID, func(state domain.SessionState, quiz domain.Quiz) (domain.SessionState, error) {
		if index != state.QuestionIndex {
			return state, domain.ErrStaleIndex
		}
		if state.Phase == domain.PhaseActive {
			return state, errNoop
		}
		question := quiz.Questions[index]
		state.Phase = domain.PhaseActive
		state.Options = question.Options
		state.CorrectIndex = nil
		state.PhaseStartedAt = e.now()
		state.TimeLimitSeconds = question.TimeLimit()
		return state, nil
	})
}

// Reveal exposes the correct answer for the current question, which also
// unlocks its submissions for scoring.
func (e *Engine) Reveal(ctx context.Context, quizID string, index int) (domain.SessionState, error) {
	return e.transition(ctx, quizID, func(state domain.SessionState, quiz domain.Quiz) (domain.SessionState, error) {
		if index != state.QuestionIndex {
			return state, domain.ErrStaleIndex
		}
		if state.Phase == domain.PhaseRevealed {
			return state, errNoop
		}
		if state.Phase != domain.PhaseActive {
			return state, domain.ErrInvalidPhase
		}
		correct := quiz.Questions[index].CorrectIndex
		state.Phase = domain.PhaseRevealed
		state.CorrectIndex = &correct
		return state, nil
	})
}

// Finish ends the run and marks the parent quiz record ended. The quiz-side
// effect is fire-and-forget: a failure is logged, never surfaced.
func (e *Engine) Finish(ctx context.Context, quizID string) (domain.SessionState, error) {
	state, err := e.transition(ctx, quizID, func(state domain.SessionState, quiz domain.Quiz) (domain.SessionState, error) {
		if state.Phase == domain.PhaseFinished {
			return state, errNoop
		}
		state.Phase = domain.PhaseFinished
		state.QuestionText = finishedText
		state.Options = nil
		return state, nil
	})
	if err != nil {
		return state, err
	}
	if err := e.quizzes.MarkEnded(ctx, quizID); err != nil {
		log.Printf("mark quiz %s ended: %v", quizID, err)
	}
	return state, nil
}

// errNoop signals a transition whose target state is already current; the
// call succeeds without a write.
var errNoop = errors.New("transition already applied")

func (e *Engine) transition(ctx context.Context, quizID string, apply func(domain.SessionState, domain.Quiz) (domain.SessionState, error)) (domain.SessionState, error) {
	state, err := e.sessions.Get(ctx, quizID)
	if err != nil {
		return domain.SessionState{}, err
	}
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionState{}, err
	}

	next, err := apply(state, quiz)
	if errors.Is(err, errNoop) {
		return state, nil
	}
	if err != nil {
		return domain.SessionState{}, err
	}

	stored, err := e.sessions.Put(ctx, next)
	if err != nil {
		return domain.SessionState{}, err
	}
	e.publish(ctx, stored)
	return stored, nil
}

// SubmitResult reports the outcome of a submission to the participant.
type SubmitResult struct {
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
	AlreadyAnswered bool    `json:"alreadyAnswered"`
}

// Submit validates and records one answer. Duplicates are benign: the ledger
// keeps the first effective entry and the caller is told the question was
// already answered. Late answers are recorded but score zero.
func (e *Engine) Submit(ctx context.Context, sessionID, participantID string, questionIndex, selectedIndex int, clientElapsed float64) (SubmitResult, error) {
	state, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if state.Phase != domain.PhaseActive || questionIndex != state.QuestionIndex {
		return SubmitResult{}, domain.ErrPhaseClosed
	}

	elapsed := e.effectiveElapsed(state, clientElapsed)
	sub := domain.Submission{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		QuestionIndex:  questionIndex,
		ParticipantID:  participantID,
		SelectedIndex:  selectedIndex,
		SubmittedAt:    e.now(),
		ElapsedSeconds: elapsed,
	}

	if err := e.ledger.Append(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return SubmitResult{ElapsedSeconds: elapsed, AlreadyAnswered: true}, nil
		}
		return SubmitResult{}, err
	}

	e.publishRanking(ctx, state)
	return SubmitResult{ElapsedSeconds: elapsed}, nil
}

// effectiveElapsed derives the scoring-relevant elapsed time from the phase
// origin. The client-reported value is honored only when it stays within
// tolerance of the server-side measurement, or when no origin exists at all.
func (e *Engine) effectiveElapsed(state domain.SessionState, clientElapsed float64) float64 {
	if clientElapsed < 0 {
		clientElapsed = 0
	}
	if state.PhaseStartedAt.IsZero() {
		return clientElapsed
	}
	server := e.now().Sub(state.PhaseStartedAt).Seconds()
	if server < 0 {
		server = 0
	}
	if math.Abs(clientElapsed-server) <= clientElapsedTolerance && clientElapsed > 0 {
		return clientElapsed
	}
	return server
}

// SubscribeState returns a live feed of session snapshots. A late subscriber
// receives the current state immediately, not historical replay.
func (e *Engine) SubscribeState(ctx context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	if _, ok := e.hub.SnapshotState(sessionID); !ok {
		state, err := e.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		e.hub.PublishState(sessionID, state)
	}
	ch, cancel := e.hub.SubscribeState(sessionID)
	return ch, cancel, nil
}

// SubscribeRanking returns a live feed of the ordered leaderboard.
func (e *Engine) SubscribeRanking(ctx context.Context, sessionID string) (<-chan domain.Ranking, func(), error) {
	if _, ok := e.hub.SnapshotRanking(sessionID); !ok {
		state, err := e.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		ranking, err := e.rankingFor(ctx, state)
		if err != nil {
			return nil, nil, err
		}
		e.hub.PublishRanking(sessionID, ranking)
	}
	ch, cancel := e.hub.SubscribeRanking(sessionID)
	return ch, cancel, nil
}

// State returns the current session snapshot.
func (e *Engine) State(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return e.sessions.Get(ctx, sessionID)
}

// FinalLeaderboard aggregates every submission regardless of live phase,
// producing the post-run report rows.
func (e *Engine) FinalLeaderboard(ctx context.Context, quizID string) ([]domain.FinalRow, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	subs, err := e.ledger.List(ctx, quizID)
	if err != nil {
		return nil, err
	}
	profiles := e.fetchProfiles(ctx, subs)
	return buildFinal(quiz.Questions, subs, profiles), nil
}

func (e *Engine) publish(ctx context.Context, state domain.SessionState) {
	e.hub.PublishState(state.QuizID, state)
	e.publishRanking(ctx, state)
}

func (e *Engine) publishRanking(ctx context.Context, state domain.SessionState) {
	ranking, err := e.rankingFor(ctx, state)
	if err != nil {
		// The ranking is derived data; a failed recompute degrades the feed,
		// never the write that triggered it.
		log.Printf("recompute ranking for %s: %v", state.QuizID, err)
		return
	}
	e.hub.PublishRanking(state.QuizID, ranking)
}

func (e *Engine) rankingFor(ctx context.Context, state domain.SessionState) (domain.Ranking, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, state.QuizID)
	if err != nil {
		return domain.Ranking{}, err
	}
	subs, err := e.ledger.List(ctx, state.QuizID)
	if err != nil {
		return domain.Ranking{}, err
	}
	profiles := e.fetchProfiles(ctx, subs)
	ranking := buildRanking(state, quiz.Questions, subs, profiles, e.now())
	ranking.Revision = state.Revision
	return ranking, nil
}

// fetchProfiles resolves display data for every participant in the ledger.
// Lookups run in parallel; a missing or failing profile simply falls back to
// the placeholder name downstream.
func (e *Engine) fetchProfiles(ctx context.Context, subs []domain.Submission) map[string]domain.Profile {
	ids := make(map[string]struct{})
	for _, sub := range subs {
		ids[sub.ParticipantID] = struct{}{}
	}

	var mu sync.Mutex
	profiles := make(map[string]domain.Profile, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for id := range ids {
		g.Go(func() error {
			profile, err := e.profiles.GetProfile(ctx, id)
			if err != nil {
				if !errors.Is(err, domain.ErrProfileNotFound) {
					log.Printf("load profile %s: %v", id, err)
				}
				return nil
			}
			mu.Lock()
			profiles[id] = profile
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return profiles
}

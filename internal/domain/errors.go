package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session exists for a quiz.
	ErrSessionNotFound = errors.New("live session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrProfileNotFound indicates no profile exists for a participant;
	// callers substitute a placeholder.
	ErrProfileNotFound = errors.New("participant profile not found")
	// ErrOutOfRange is returned when a transition targets a question index
	// beyond the quiz.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrStaleIndex is returned when a transition's index no longer matches
	// the session's current question pointer.
	ErrStaleIndex = errors.New("question index does not match current question")
	// ErrInvalidPhase is returned when the session is not in the phase the
	// transition requires.
	ErrInvalidPhase = errors.New("transition not allowed in current phase")
	// ErrPhaseClosed is returned when a submission arrives outside the active
	// window for the current question.
	ErrPhaseClosed = errors.New("submissions are closed for this question")
	// ErrDuplicateSubmission marks a repeat answer for the same question;
	// it is benign and must never double-score.
	ErrDuplicateSubmission = errors.New("answer already submitted")
	// ErrConflict is returned when a conditional session write loses a race
	// with a concurrent transition.
	ErrConflict = errors.New("session modified concurrently")
	// ErrStoreUnavailable wraps transient infrastructure failures; callers
	// may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

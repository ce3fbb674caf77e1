package domain

import "time"

// Phase is the lifecycle stage of a live session's current question.
type Phase string

const (
	// PhaseWaiting shows the question text only; options are hidden.
	PhaseWaiting Phase = "waiting"
	// PhaseActive shows the options and starts the answer window.
	PhaseActive Phase = "active"
	// PhaseRevealed exposes the correct answer and unlocks scores for the
	// current question.
	PhaseRevealed Phase = "revealed"
	// PhaseFinished marks the run as complete.
	PhaseFinished Phase = "finished"
)

// DefaultTimeLimitSeconds applies when a question carries no valid limit.
const DefaultTimeLimitSeconds = 30

// SessionState is the single authoritative document for one live quiz run.
// CorrectIndex is nil unless the phase is revealed or finished; it must never
// reach clients earlier.
type SessionState struct {
	QuizID           string    `json:"quizId"`
	Phase            Phase     `json:"phase"`
	QuestionIndex    int       `json:"questionIndex"`
	QuestionText     string    `json:"questionText"`
	ImageRef         string    `json:"imageRef,omitempty"`
	Options          []string  `json:"options,omitempty"`
	CorrectIndex     *int      `json:"correctIndex,omitempty"`
	PhaseStartedAt   time.Time `json:"phaseStartedAt,omitempty"`
	TimeLimitSeconds int       `json:"timeLimitSeconds,omitempty"`
	TotalQuestions   int       `json:"totalQuestions"`

	// Revision supports compare-and-swap writes; it is store metadata, not
	// part of the client payload.
	Revision int64 `json:"-"`
}

// Question is immutable quiz content owned by the authoring side.
type Question struct {
	Text             string   `json:"text"`
	ImageRef         string   `json:"imageRef,omitempty"`
	Options          []string `json:"options"`
	CorrectIndex     int      `json:"correctIndex"`
	TimeLimitSeconds int      `json:"timeLimit"`
}

// TimeLimit returns the effective answer window in seconds.
func (q Question) TimeLimit() int {
	if q.TimeLimitSeconds <= 0 {
		return DefaultTimeLimitSeconds
	}
	return q.TimeLimitSeconds
}

// Quiz is an ordered collection of questions plus authoring metadata.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status,omitempty"`
	Questions []Question `json:"questions"`
}

// Submission is one append-only ledger entry. At most one effective entry
// exists per (session, question, participant).
type Submission struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	QuestionIndex  int       `json:"questionIndex"`
	ParticipantID  string    `json:"participantId"`
	SelectedIndex  int       `json:"selectedIndex"`
	SubmittedAt    time.Time `json:"submittedAt"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
}

// Profile is display-only participant data from the identity collaborator.
type Profile struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	PhotoRef      string `json:"photoRef,omitempty"`
	Email         string `json:"email,omitempty"`
}

// ParticipantScore is a derived aggregate; the ledger is the source of truth.
type ParticipantScore struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	PhotoRef      string  `json:"photoRef,omitempty"`
	TotalScore    int     `json:"totalScore"`
	TotalElapsed  float64 `json:"totalElapsed"`
	CorrectCount  int     `json:"correctCount"`
}

// Ranking is the ordered live leaderboard for one session.
type Ranking struct {
	SessionID string             `json:"sessionId"`
	Entries   []ParticipantScore `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`

	// Revision is the session revision the ranking was derived from; store
	// metadata, not part of the client payload.
	Revision int64 `json:"-"`
}

// FinalRow is a post-run leaderboard row with the full report fields.
type FinalRow struct {
	ParticipantScore
	Email          string `json:"email,omitempty"`
	TotalQuestions int    `json:"totalQuestions"`
}

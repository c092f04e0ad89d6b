package testsession

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the session's position in its lifecycle.
type Status string

const (
	// StatusPending - issued but never opened.
	StatusPending Status = "pending"
	// StatusInProgress - opened by the applicant, clock running.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - answers submitted and graded. Absorbing.
	StatusCompleted Status = "completed"
	// StatusExpired - deadline passed without a submission. Absorbing.
	StatusExpired Status = "expired"
)

// IsValid checks that the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for absorbing states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION SNAPSHOT
// The session stores a full copy of each drawn question, not a reference.
// Later edits or retirement of bank questions never change an issued test,
// and grading needs no join back to the bank.
// ══════════════════════════════════════════════════════════════════════════════

// QuestionSnapshot is an immutable copy of one question at issuance time.
type QuestionSnapshot struct {
	QuestionID    string              `json:"question_id"`
	Category      question.Category   `json:"category"`
	Text          string              `json:"text"`
	OptionA       string              `json:"option_a"`
	OptionB       string              `json:"option_b"`
	OptionC       string              `json:"option_c"`
	OptionD       string              `json:"option_d"`
	CorrectOption question.Option     `json:"correct_option"`
	Difficulty    question.Difficulty `json:"difficulty"`
}

// Snapshot copies a bank question into session-local form.
func Snapshot(q *question.Question) QuestionSnapshot {
	return QuestionSnapshot{
		QuestionID:    q.ID,
		Category:      q.Category,
		Text:          q.Text,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectOption: q.CorrectOption,
		Difficulty:    q.Difficulty,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is one issued competency test bound to one application.
type Session struct {
	// ID is the internal unique identifier.
	ID string

	// ApplicationID links the session to its mentor application.
	ApplicationID string

	// Token is the opaque credential from the emailed link.
	Token Token

	// Status is the current lifecycle state.
	Status Status

	// Questions is the ordered, immutable snapshot taken at issuance.
	Questions []QuestionSnapshot

	// TimeLimit is the working-time budget once the test is opened.
	TimeLimit time.Duration

	// IssuedAt is when the test was sent.
	IssuedAt time.Time

	// ExpiresAt bounds the validity of the link itself.
	ExpiresAt time.Time

	// StartedAt is set on first access, nil before.
	StartedAt *time.Time

	// CompletedAt is set when answers are graded.
	CompletedAt *time.Time

	// Answers holds the submitted options, index-aligned with Questions.
	Answers []question.Option

	// CorrectCount and Score are fixed at grading.
	CorrectCount int
	Score        float64
}

// Domain errors.
var (
	// ErrNoQuestions - a session cannot be issued without questions.
	ErrNoQuestions = errors.New("session requires at least one question")

	// ErrNotPending - only a never-opened session can be started.
	ErrNotPending = errors.New("session is not pending")

	// ErrNotInProgress - only an opened session can be graded.
	ErrNotInProgress = errors.New("session is not in progress")

	// ErrLinkExpired - the validity window has closed.
	ErrLinkExpired = errors.New("session link has expired")

	// ErrDeadlinePassed - the working-time budget is spent.
	ErrDeadlinePassed = errors.New("session deadline has passed")

	// ErrAnswerCountMismatch - the answers do not align with the questions.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
)

// NewSession issues a session over a freshly drawn question set. `now` is
// the issuance instant; the validity window counts from it.
func NewSession(id, applicationID string, token Token, questions []QuestionSnapshot, timeLimit, validity time.Duration, now time.Time) (*Session, error) {
	if id == "" || applicationID == "" {
		return nil, errors.New("session id and application id are required")
	}
	if !token.IsWellFormed() {
		return nil, errors.New("malformed session token")
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if timeLimit <= 0 || validity <= 0 {
		return nil, errors.New("time limit and validity window must be positive")
	}

	now = now.UTC()
	return &Session{
		ID:            id,
		ApplicationID: applicationID,
		Token:         token,
		Status:        StatusPending,
		Questions:     questions,
		TimeLimit:     timeLimit,
		IssuedAt:      now,
		ExpiresAt:     now.Add(validity),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Time windows
// ─────────────────────────────────────────────────────────────────────────────

// LinkExpired reports whether the validity window has closed without the
// test being completed.
func (s *Session) LinkExpired(now time.Time) bool {
	return s.Status != StatusCompleted && now.After(s.ExpiresAt)
}

// EffectiveDeadline is the moment after which submissions are refused:
// the earlier of the link expiry and started-at plus the time limit.
// Before the session is started only the link expiry applies.
func (s *Session) EffectiveDeadline() time.Time {
	if s.StartedAt == nil {
		return s.ExpiresAt
	}
	workDeadline := s.StartedAt.Add(s.TimeLimit)
	if workDeadline.Before(s.ExpiresAt) {
		return workDeadline
	}
	return s.ExpiresAt
}

// IsOverdue reports whether the session should be lazily or sweep-expired.
func (s *Session) IsOverdue(now time.Time) bool {
	return !s.Status.IsTerminal() && now.After(s.EffectiveDeadline())
}

// RemainingTime returns how long the applicant has left, zero when the
// deadline has passed.
func (s *Session) RemainingTime(now time.Time) time.Duration {
	if remaining := s.EffectiveDeadline().Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Start opens the session on the applicant's first access, fixing the
// working-time deadline.
func (s *Session) Start(now time.Time) error {
	if s.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrNotPending, s.Status)
	}
	if now.After(s.ExpiresAt) {
		return ErrLinkExpired
	}
	now = now.UTC()
	s.StartedAt = &now
	s.Status = StatusInProgress
	return nil
}

// Grade scores an ordered answers slice against the snapshot and completes
// the session. `grace` stretches the working-time bound slightly to absorb
// submit latency; the link expiry is a hard cutoff and gets no grace.
// Unanswered positions are represented by the empty option and grade as
// wrong.
func (s *Session) Grade(answers []question.Option, now time.Time, grace time.Duration) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("%w: %s", ErrNotInProgress, s.Status)
	}
	deadline := s.ExpiresAt
	if work := s.StartedAt.Add(s.TimeLimit + grace); work.Before(deadline) {
		deadline = work
	}
	if now.After(deadline) {
		return ErrDeadlinePassed
	}
	if len(answers) != len(s.Questions) {
		return fmt.Errorf("%w: got %d, want %d", ErrAnswerCountMismatch, len(answers), len(s.Questions))
	}

	correct := 0
	graded := make([]question.Option, len(answers))
	for i, answer := range answers {
		graded[i] = answer.Normalized()
		if graded[i] == s.Questions[i].CorrectOption {
			correct++
		}
	}

	completedAt := now.UTC()
	s.Answers = graded
	s.CorrectCount = correct
	s.Score = ComputeScore(correct, len(s.Questions))
	s.CompletedAt = &completedAt
	s.Status = StatusCompleted
	return nil
}

// Expire marks an overdue session expired.
func (s *Session) Expire() error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("session already %s", s.Status)
	}
	s.Status = StatusExpired
	return nil
}

// ComputeScore converts a correct count into a rounded percentage.
func ComputeScore(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct) / float64(total) * 100)
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

// ApplicantQuestion is the redacted question form served to the applicant.
// The correct option never crosses the API boundary.
type ApplicantQuestion struct {
	Number  int    `json:"number"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// ApplicantView returns the question set without correct markers, in
// snapshot order.
func (s *Session) ApplicantView() []ApplicantQuestion {
	view := make([]ApplicantQuestion, len(s.Questions))
	for i, q := range s.Questions {
		view[i] = ApplicantQuestion{
			Number:  i + 1,
			Text:    q.Text,
			OptionA: q.OptionA,
			OptionB: q.OptionB,
			OptionC: q.OptionC,
			OptionD: q.OptionD,
		}
	}
	return view
}

// String returns a log-safe representation; the token stays redacted.
func (s *Session) String() string {
	return fmt.Sprintf(
		"Session{ID: %s, App: %s, Status: %s, Questions: %d, %s}",
		s.ID, s.ApplicationID, s.Status, len(s.Questions), s.Token,
	)
}

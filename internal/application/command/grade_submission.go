package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE SUBMISSION COMMAND
// Applicant submits the ordered answer sheet. Grading is deterministic
// against the session snapshot, commits exactly once via compare-and-set,
// and feeds the decision engine in the same request.
// ══════════════════════════════════════════════════════════════════════════════

// GradeSubmissionCommand contains the applicant's answers.
type GradeSubmissionCommand struct {
	// Token from the emailed test link.
	Token string

	// Answers is the option letter per question, index-aligned with the
	// question order served at open. Empty string marks an unanswered
	// question.
	Answers []string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c GradeSubmissionCommand) Validate() error {
	if c.Token == "" {
		return errors.New("grade_submission: token is required")
	}
	if len(c.Answers) == 0 {
		return errors.New("grade_submission: answers are required")
	}
	return nil
}

// GradeSubmissionResult contains the graded outcome plus the decision made
// on its back.
type GradeSubmissionResult struct {
	// SessionID of the graded session.
	SessionID string

	// CorrectCount out of TotalQuestions.
	CorrectCount   int
	TotalQuestions int

	// Score is the rounded percentage.
	Score float64

	// Decision is the outcome of the synchronous decision step.
	Decision *DecideApplicationResult

	// Events contains domain events generated by grading itself.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GradeSubmissionHandler handles the GradeSubmissionCommand.
type GradeSubmissionHandler struct {
	sessionRepo testsession.Repository
	appRepo     application.Repository
	decider     *DecideApplicationHandler
	policy      testsession.Policy
	publisher   shared.EventPublisher
	clock       Clock
}

// NewGradeSubmissionHandler creates a new GradeSubmissionHandler.
func NewGradeSubmissionHandler(
	sessionRepo testsession.Repository,
	appRepo application.Repository,
	decider *DecideApplicationHandler,
	policy testsession.Policy,
	publisher shared.EventPublisher,
) *GradeSubmissionHandler {
	return &GradeSubmissionHandler{
		sessionRepo: sessionRepo,
		appRepo:     appRepo,
		decider:     decider,
		policy:      policy,
		publisher:   publisher,
		clock:       SystemClock,
	}
}

// WithClock replaces the time source (tests).
func (h *GradeSubmissionHandler) WithClock(clock Clock) *GradeSubmissionHandler {
	h.clock = clock
	return h
}

// Handle executes the grade submission command.
func (h *GradeSubmissionHandler) Handle(ctx context.Context, cmd GradeSubmissionCommand) (*GradeSubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("grade_submission: validation failed: %w", err)
	}

	token := testsession.Token(cmd.Token).Normalized()
	if !token.IsWellFormed() {
		return nil, shared.ErrSessionNotFound
	}

	// Grading is authoritative; the token cache is deliberately bypassed.
	session, err := h.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("grade_submission: %w", err)
	}

	now := h.clock()

	switch session.Status {
	case testsession.StatusCompleted:
		return nil, shared.ErrTokenAlreadyUsed
	case testsession.StatusExpired:
		return nil, shared.ErrTestWindowClosed
	case testsession.StatusPending:
		return nil, shared.WrapError("testsession", "Submit", shared.ErrInvalidState,
			"test has not been started", nil)
	}

	answers := make([]question.Option, len(cmd.Answers))
	for i, a := range cmd.Answers {
		answers[i] = question.Option(a)
	}

	if err := session.Grade(answers, now, h.policy.SubmitGrace); err != nil {
		switch {
		case errors.Is(err, testsession.ErrDeadlinePassed):
			h.lazyExpire(ctx, session)
			return nil, shared.ErrTestWindowClosed
		case errors.Is(err, testsession.ErrAnswerCountMismatch):
			return nil, shared.ErrMalformedSubmission
		default:
			return nil, fmt.Errorf("grade_submission: %w", err)
		}
	}

	// Exactly one concurrent submitter commits the graded session; the
	// loser observes a conflict and is told the test is already done.
	if err := h.sessionRepo.CompleteIfInProgress(ctx, session); err != nil {
		if shared.IsConflict(err) {
			return nil, shared.ErrTokenAlreadyUsed
		}
		return nil, fmt.Errorf("grade_submission: %w", err)
	}

	if err := h.markApplicationCompleted(ctx, session); err != nil {
		return nil, err
	}

	event := shared.NewTestCompletedEvent(
		session.ID, session.ApplicationID, session.CorrectCount, len(session.Questions), session.Score,
	)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	h.publish(event)

	result := &GradeSubmissionResult{
		SessionID:      session.ID,
		CorrectCount:   session.CorrectCount,
		TotalQuestions: len(session.Questions),
		Score:          session.Score,
		Events:         []shared.Event{event},
	}

	// The decision rides the same request so the applicant learns the
	// outcome immediately.
	decision, err := h.decider.Handle(ctx, DecideApplicationCommand{
		ApplicationID: session.ApplicationID,
		Score:         session.Score,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		// The graded session is already durable; the decision can be
		// re-driven from it.
		return result, fmt.Errorf("grade_submission: decision failed: %w", err)
	}
	result.Decision = decision
	return result, nil
}

func (h *GradeSubmissionHandler) markApplicationCompleted(ctx context.Context, session *testsession.Session) error {
	app, err := h.appRepo.GetByID(ctx, session.ApplicationID)
	if err != nil {
		return fmt.Errorf("grade_submission: %w", err)
	}
	if err := app.MarkTestCompleted(session.Score); err != nil {
		return fmt.Errorf("grade_submission: %w", err)
	}
	if err := h.appRepo.Update(ctx, app); err != nil {
		return fmt.Errorf("grade_submission: %w", err)
	}
	return nil
}

func (h *GradeSubmissionHandler) lazyExpire(ctx context.Context, session *testsession.Session) {
	if err := h.sessionRepo.ExpireIfActive(ctx, session.ID); err != nil {
		return
	}
	h.publish(shared.NewSessionExpiredEvent(session.ID, session.ApplicationID, session.StartedAt != nil))
}

func (h *GradeSubmissionHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(event)
}

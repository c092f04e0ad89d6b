package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND TEST COMMAND
// Administrative action: draws a question set, snapshots it into a new
// session, emails the link. Question selection happens here, at issuance,
// so the set is fixed before the applicant ever opens the link.
// ══════════════════════════════════════════════════════════════════════════════

// SendTestCommand contains the data to issue a competency test.
type SendTestCommand struct {
	// ApplicationID identifies the application under review.
	ApplicationID string

	// IsAdmin records the caller's authorization. Only administrators may
	// issue tests.
	IsAdmin bool

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SendTestCommand) Validate() error {
	if c.ApplicationID == "" {
		return errors.New("send_test: application_id is required")
	}
	return nil
}

// SendTestResult contains the outcome of issuing a test.
type SendTestResult struct {
	// SessionID is the ID of the created session.
	SessionID string

	// Token of the issued session. It travels only inside the invitation
	// email; transport handlers must not echo it and it never goes onto
	// the event bus.
	Token testsession.Token

	// TotalQuestions in the issued test.
	TotalQuestions int

	// ExpiresAt is when the link stops working.
	ExpiresAt time.Time

	// ReplacedExpiredSession is true when a stale previous session was
	// swept aside to make room.
	ReplacedExpiredSession bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SendTestHandler handles the SendTestCommand.
type SendTestHandler struct {
	appRepo     application.Repository
	sessionRepo testsession.Repository
	questions   question.Repository
	selector    *question.Selector
	policy      testsession.Policy
	ids         IDGenerator
	email       EmailSender
	publisher   shared.EventPublisher
	clock       Clock
}

// NewSendTestHandler creates a new SendTestHandler.
func NewSendTestHandler(
	appRepo application.Repository,
	sessionRepo testsession.Repository,
	questions question.Repository,
	selector *question.Selector,
	policy testsession.Policy,
	ids IDGenerator,
	email EmailSender,
	publisher shared.EventPublisher,
) *SendTestHandler {
	return &SendTestHandler{
		appRepo:     appRepo,
		sessionRepo: sessionRepo,
		questions:   questions,
		selector:    selector,
		policy:      policy,
		ids:         ids,
		email:       email,
		publisher:   publisher,
		clock:       SystemClock,
	}
}

// WithClock replaces the time source (tests).
func (h *SendTestHandler) WithClock(clock Clock) *SendTestHandler {
	h.clock = clock
	return h
}

// Handle executes the send test command.
func (h *SendTestHandler) Handle(ctx context.Context, cmd SendTestCommand) (*SendTestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("send_test: validation failed: %w", err)
	}
	if !cmd.IsAdmin {
		return nil, shared.ErrAdminOnly
	}

	now := h.clock()

	app, err := h.appRepo.GetByID(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	if app.Status.IsTerminal() {
		return nil, shared.ErrApplicationTerminal
	}

	// A retryable rejection folds back into the pipeline here: issuing a
	// fresh test after the cooldown implies the retry.
	if app.Status == application.StatusRejectedRetryable {
		if err := app.RequestRetry(now); err != nil {
			if errors.Is(err, application.ErrRetryWindowClosed) {
				return nil, shared.ErrRetryNotYetAllowed
			}
			return nil, fmt.Errorf("send_test: %w", err)
		}
	}

	result := &SendTestResult{Events: make([]shared.Event, 0, 1)}

	// One live session per application. A stale one is swept aside; a
	// live one is a refusal.
	if existing, err := h.sessionRepo.GetActiveByApplication(ctx, app.ID); err == nil {
		if !existing.IsOverdue(now) {
			return nil, shared.ErrSessionAlreadyActive
		}
		if err := h.sessionRepo.ExpireIfActive(ctx, existing.ID); err != nil && !shared.IsConflict(err) {
			return nil, fmt.Errorf("send_test: expire stale session: %w", err)
		}
		result.ReplacedExpiredSession = true
		result.Events = append(result.Events,
			shared.NewSessionExpiredEvent(existing.ID, app.ID, existing.StartedAt != nil))
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	pool, err := h.questions.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("send_test: load question pool: %w", err)
	}

	category := question.CategoryFor(app.Specialization.String())
	drawn, ok := h.selector.Select(pool, category, h.policy.TotalQuestions)
	if !ok {
		return nil, shared.ErrInsufficientQuestions
	}

	snapshots := make([]testsession.QuestionSnapshot, len(drawn))
	for i, q := range drawn {
		snapshots[i] = testsession.Snapshot(q)
	}

	token, err := testsession.NewToken()
	if err != nil {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	session, err := testsession.NewSession(
		h.ids.NewID(), app.ID, token, snapshots, h.policy.TimeLimit, h.policy.Validity, now,
	)
	if err != nil {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	if err := h.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	if app.Status == application.StatusPending {
		if err := app.MarkTestSent(); err != nil {
			return nil, fmt.Errorf("send_test: %w", err)
		}
	}
	if err := h.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("send_test: %w", err)
	}

	// Delivery is best-effort: the session exists whether or not the
	// email lands, and the admin surface still shows the link.
	h.sendInvitation(app, session)

	event := shared.NewTestIssuedEvent(session.ID, app.ID, len(session.Questions), session.ExpiresAt)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	result.Events = append(result.Events, event)
	h.publishAll(result.Events)

	result.SessionID = session.ID
	result.Token = session.Token
	result.TotalQuestions = len(session.Questions)
	result.ExpiresAt = session.ExpiresAt
	return result, nil
}

func (h *SendTestHandler) sendInvitation(app *application.MentorApplication, session *testsession.Session) {
	if h.email == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = h.email.SendTestInvitation(ctx, app.Email.String(), app.FullName, session.Token, session.ExpiresAt)
	}()
}

func (h *SendTestHandler) publishAll(events []shared.Event) {
	if h.publisher == nil {
		return
	}
	for _, e := range events {
		_ = h.publisher.Publish(e)
	}
}

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECIDE APPLICATION COMMAND
// Turns a graded score into an outcome: approval with account
// provisioning, a retryable rejection with a cooldown, or a terminal
// rejection once attempts run out. Invoked synchronously from grading.
// ══════════════════════════════════════════════════════════════════════════════

// DecideApplicationCommand contains the graded score for an application.
type DecideApplicationCommand struct {
	// ApplicationID identifies the application to decide.
	ApplicationID string

	// Score is the graded percentage.
	Score float64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DecideApplicationCommand) Validate() error {
	if c.ApplicationID == "" {
		return errors.New("decide_application: application_id is required")
	}
	if c.Score < 0 || c.Score > 100 {
		return fmt.Errorf("decide_application: score out of range: %v", c.Score)
	}
	return nil
}

// DecideApplicationResult contains the decision outcome.
type DecideApplicationResult struct {
	// Status after the decision.
	Status application.Status

	// Approved is true when the applicant passed.
	Approved bool

	// AccountID is the provisioned mentor account (approvals only).
	AccountID string

	// RetryAllowedAt is set for retryable rejections.
	RetryAllowedAt *time.Time

	// Attempt is the graded-attempt count after this decision.
	Attempt int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DecideApplicationHandler handles the DecideApplicationCommand.
type DecideApplicationHandler struct {
	appRepo     application.Repository
	policy      application.RetryPolicy
	provisioner AccountProvisioner
	email       EmailSender
	publisher   shared.EventPublisher
	clock       Clock
}

// NewDecideApplicationHandler creates a new DecideApplicationHandler.
func NewDecideApplicationHandler(
	appRepo application.Repository,
	policy application.RetryPolicy,
	provisioner AccountProvisioner,
	email EmailSender,
	publisher shared.EventPublisher,
) *DecideApplicationHandler {
	return &DecideApplicationHandler{
		appRepo:     appRepo,
		policy:      policy,
		provisioner: provisioner,
		email:       email,
		publisher:   publisher,
		clock:       SystemClock,
	}
}

// WithClock replaces the time source (tests).
func (h *DecideApplicationHandler) WithClock(clock Clock) *DecideApplicationHandler {
	h.clock = clock
	return h
}

// Handle executes the decide application command.
func (h *DecideApplicationHandler) Handle(ctx context.Context, cmd DecideApplicationCommand) (*DecideApplicationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("decide_application: validation failed: %w", err)
	}

	app, err := h.appRepo.GetByID(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("decide_application: %w", err)
	}

	if app.Status != application.StatusTestCompleted {
		return nil, shared.WrapError("application", "Decide", shared.ErrInvalidState,
			"application is not awaiting a decision", fmt.Errorf("status %s", app.Status))
	}

	if h.policy.Passed(cmd.Score) {
		return h.approve(ctx, app, cmd)
	}
	return h.reject(ctx, app, cmd)
}

// approve provisions the mentor account before flipping the status: if
// provisioning fails the application stays decidable and the grade can be
// re-applied.
func (h *DecideApplicationHandler) approve(ctx context.Context, app *application.MentorApplication, cmd DecideApplicationCommand) (*DecideApplicationResult, error) {
	account, err := h.provisioner.ProvisionMentor(
		ctx, app.Email.String(), app.FullName, app.Specialization.String(),
	)
	if err != nil {
		return nil, shared.WrapError("provisioning", "Create", shared.ErrExternalService,
			"mentor account provisioning failed", err)
	}

	if err := app.Approve(account.AccountID); err != nil {
		return nil, fmt.Errorf("decide_application: %w", err)
	}
	if err := h.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("decide_application: %w", err)
	}

	h.sendApproval(app, account.TempPassword)

	event := shared.NewApplicationApprovedEvent(app.ID, app.Email.String(), cmd.Score).
		WithAccountID(account.AccountID)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	h.publish(event)

	return &DecideApplicationResult{
		Status:    app.Status,
		Approved:  true,
		AccountID: account.AccountID,
		Attempt:   app.TestAttempts,
		Events:    []shared.Event{event},
	}, nil
}

func (h *DecideApplicationHandler) reject(ctx context.Context, app *application.MentorApplication, cmd DecideApplicationCommand) (*DecideApplicationResult, error) {
	attempt := app.TestAttempts + 1
	terminal := h.policy.Exhausted(attempt)

	var retryAllowedAt *time.Time
	if terminal {
		if err := app.RejectTerminal(); err != nil {
			return nil, fmt.Errorf("decide_application: %w", err)
		}
	} else {
		now := h.clock()
		retryAt := now.Add(h.policy.CooldownFor(cmd.Score))
		if err := app.RejectRetryable(now, retryAt); err != nil {
			return nil, fmt.Errorf("decide_application: %w", err)
		}
		retryAllowedAt = app.RetryAllowedAt
	}

	if err := h.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("decide_application: %w", err)
	}

	h.sendRejection(app, cmd.Score, retryAllowedAt)

	event := shared.NewApplicationRejectedEvent(
		app.ID, app.Email.String(), cmd.Score, attempt, terminal, retryAllowedAt,
	)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	h.publish(event)

	return &DecideApplicationResult{
		Status:         app.Status,
		RetryAllowedAt: retryAllowedAt,
		Attempt:        app.TestAttempts,
		Events:         []shared.Event{event},
	}, nil
}

func (h *DecideApplicationHandler) sendApproval(app *application.MentorApplication, tempPassword string) {
	if h.email == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = h.email.SendApprovalNotice(ctx, app.Email.String(), app.FullName, tempPassword)
	}()
}

func (h *DecideApplicationHandler) sendRejection(app *application.MentorApplication, score float64, retryAllowedAt *time.Time) {
	if h.email == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = h.email.SendRejectionNotice(ctx, app.Email.String(), app.FullName, score, retryAllowedAt)
	}()
}

func (h *DecideApplicationHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(event)
}

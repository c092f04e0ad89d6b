package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST RETRY COMMAND
// A retryably-rejected applicant asks to re-enter the pipeline. Allowed
// only once the cooldown has elapsed; the application returns to pending
// and waits for an administrator to issue a new test.
// ══════════════════════════════════════════════════════════════════════════════

// RequestRetryCommand identifies the applicant asking to retry.
type RequestRetryCommand struct {
	// Email of the applicant.
	Email string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RequestRetryCommand) Validate() error {
	if c.Email == "" {
		return errors.New("request_retry: email is required")
	}
	return nil
}

// RequestRetryResult contains the outcome of the retry request.
type RequestRetryResult struct {
	// ApplicationID of the re-opened application.
	ApplicationID string

	// Status after the request (pending on success).
	Status application.Status

	// Attempt is the number of graded attempts already used.
	Attempt int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RequestRetryHandler handles the RequestRetryCommand.
type RequestRetryHandler struct {
	appRepo   application.Repository
	publisher shared.EventPublisher
	clock     Clock
}

// NewRequestRetryHandler creates a new RequestRetryHandler.
func NewRequestRetryHandler(appRepo application.Repository, publisher shared.EventPublisher) *RequestRetryHandler {
	return &RequestRetryHandler{
		appRepo:   appRepo,
		publisher: publisher,
		clock:     SystemClock,
	}
}

// WithClock replaces the time source (tests).
func (h *RequestRetryHandler) WithClock(clock Clock) *RequestRetryHandler {
	h.clock = clock
	return h
}

// Handle executes the request retry command.
func (h *RequestRetryHandler) Handle(ctx context.Context, cmd RequestRetryCommand) (*RequestRetryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("request_retry: validation failed: %w", err)
	}

	email := application.Email(cmd.Email).Normalized()
	app, err := h.appRepo.GetActiveByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("request_retry: %w", err)
	}

	if app.Status.IsTerminal() {
		return nil, shared.ErrApplicationTerminal
	}

	now := h.clock()
	if err := app.RequestRetry(now); err != nil {
		switch {
		case errors.Is(err, application.ErrRetryWindowClosed):
			return nil, shared.ErrRetryNotYetAllowed
		case errors.Is(err, application.ErrIllegalTransition):
			return nil, shared.WrapError("application", "Retry", shared.ErrInvalidState,
				"application is not in a retryable state", fmt.Errorf("status %s", app.Status))
		default:
			return nil, fmt.Errorf("request_retry: %w", err)
		}
	}

	// CAS against the stored status so two concurrent retry requests
	// cannot both re-open the application.
	if err := h.appRepo.TransitionStatus(ctx, app.ID,
		application.StatusRejectedRetryable, application.StatusPending); err != nil {
		return nil, fmt.Errorf("request_retry: %w", err)
	}
	if err := h.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("request_retry: %w", err)
	}

	event := shared.NewRetryRequestedEvent(app.ID, app.Email.String(), app.TestAttempts)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	h.publish(event)

	return &RequestRetryResult{
		ApplicationID: app.ID,
		Status:        app.Status,
		Attempt:       app.TestAttempts,
		Events:        []shared.Event{event},
	}, nil
}

func (h *RequestRetryHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(event)
}

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT APPLICATION COMMAND
// Applicant-facing intake. At most one active application may exist per
// email; resubmission while one is active is a deterministic conflict.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitApplicationCommand contains the applicant-provided data.
type SubmitApplicationCommand struct {
	FullName          string
	Email             string
	PhoneNumber       string
	Specialization    string
	YearsOfExperience int
	LinkedInUrl       string
	Bio               string
	CurrentPosition   string
	Company           string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitApplicationCommand) Validate() error {
	if c.FullName == "" {
		return errors.New("submit_application: full_name is required")
	}
	if c.Email == "" {
		return errors.New("submit_application: email is required")
	}
	if c.Specialization == "" {
		return errors.New("submit_application: specialization is required")
	}
	return nil
}

// SubmitApplicationResult contains the outcome of the intake.
type SubmitApplicationResult struct {
	// ApplicationID is the ID of the created application.
	ApplicationID string

	// Status is always pending for a fresh submission.
	Status application.Status

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitApplicationHandler handles the SubmitApplicationCommand.
type SubmitApplicationHandler struct {
	appRepo   application.Repository
	ids       IDGenerator
	publisher shared.EventPublisher
}

// NewSubmitApplicationHandler creates a new SubmitApplicationHandler.
func NewSubmitApplicationHandler(
	appRepo application.Repository,
	ids IDGenerator,
	publisher shared.EventPublisher,
) *SubmitApplicationHandler {
	return &SubmitApplicationHandler{
		appRepo:   appRepo,
		ids:       ids,
		publisher: publisher,
	}
}

// Handle executes the submit application command.
func (h *SubmitApplicationHandler) Handle(ctx context.Context, cmd SubmitApplicationCommand) (*SubmitApplicationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_application: validation failed: %w", err)
	}

	app, err := application.NewApplication(application.NewApplicationParams{
		ID:                h.ids.NewID(),
		FullName:          cmd.FullName,
		Email:             application.Email(cmd.Email),
		PhoneNumber:       cmd.PhoneNumber,
		Specialization:    application.Specialization(cmd.Specialization),
		YearsOfExperience: cmd.YearsOfExperience,
		LinkedInUrl:       cmd.LinkedInUrl,
		Bio:               cmd.Bio,
		CurrentPosition:   cmd.CurrentPosition,
		Company:           cmd.Company,
	})
	if err != nil {
		return nil, shared.WrapError("application", "Submit", shared.ErrValidation, "invalid application data", err)
	}

	// The unique partial index on active applications is the authority
	// here; concurrent duplicate submits both reach Create and exactly one
	// wins.
	if err := h.appRepo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("submit_application: %w", err)
	}

	event := shared.NewApplicationSubmittedEvent(
		app.ID, app.Email.String(), app.FullName, app.Specialization.String(), false,
	)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	h.publish(event)

	return &SubmitApplicationResult{
		ApplicationID: app.ID,
		Status:        app.Status,
		Events:        []shared.Event{event},
	}, nil
}

func (h *SubmitApplicationHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	// Event delivery is best-effort; intake already succeeded.
	_ = h.publisher.Publish(event)
}

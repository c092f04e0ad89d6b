// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET APPLICATION STATUS QUERY
// Applicant-facing lookup by email. Shows the latest application, terminal
// or not, so a rejected applicant can see their cooldown.
// ══════════════════════════════════════════════════════════════════════════════

// GetApplicationStatusQuery identifies the applicant.
type GetApplicationStatusQuery struct {
	// Email of the applicant.
	Email string
}

// Validate validates the query.
func (q GetApplicationStatusQuery) Validate() error {
	if q.Email == "" {
		return errors.New("get_application_status: email is required")
	}
	return nil
}

// ApplicationStatusView is the applicant-safe projection of an application.
type ApplicationStatusView struct {
	ApplicationID  string             `json:"application_id"`
	FullName       string             `json:"full_name"`
	Specialization string             `json:"specialization"`
	Status         application.Status `json:"status"`
	TestAttempts   int                `json:"test_attempts"`
	FinalScore     *float64           `json:"final_score,omitempty"`
	RetryAllowedAt *time.Time         `json:"retry_allowed_at,omitempty"`
	RetryWait      time.Duration      `json:"-"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// GetApplicationStatusHandler handles the GetApplicationStatusQuery.
type GetApplicationStatusHandler struct {
	appRepo application.Repository
}

// NewGetApplicationStatusHandler creates a new GetApplicationStatusHandler.
func NewGetApplicationStatusHandler(appRepo application.Repository) *GetApplicationStatusHandler {
	return &GetApplicationStatusHandler{appRepo: appRepo}
}

// Handle executes the query.
func (h *GetApplicationStatusHandler) Handle(ctx context.Context, q GetApplicationStatusQuery) (*ApplicationStatusView, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_application_status: validation failed: %w", err)
	}

	email := application.Email(q.Email).Normalized()
	app, err := h.appRepo.GetLatestByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get_application_status: %w", err)
	}

	return &ApplicationStatusView{
		ApplicationID:  app.ID,
		FullName:       app.FullName,
		Specialization: app.Specialization.String(),
		Status:         app.Status,
		TestAttempts:   app.TestAttempts,
		FinalScore:     app.FinalScore,
		RetryAllowedAt: app.RetryAllowedAt,
		RetryWait:      app.RetryWaitRemaining(time.Now().UTC()),
		SubmittedAt:    app.CreatedAt,
		UpdatedAt:      app.UpdatedAt,
	}, nil
}

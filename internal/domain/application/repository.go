package application

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract for mentor applications.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for mentor applications.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create stores a new application.
	// Returns shared.ErrDuplicateApplication when an active (non-terminal)
	// application already exists for the same email.
	Create(ctx context.Context, app *MentorApplication) error

	// GetByID returns an application by its internal ID.
	// Returns shared.ErrApplicationNotFound when absent.
	GetByID(ctx context.Context, id string) (*MentorApplication, error)

	// GetActiveByEmail returns the active (non-terminal) application for
	// the email, if any. Returns shared.ErrApplicationNotFound when absent.
	GetActiveByEmail(ctx context.Context, email Email) (*MentorApplication, error)

	// GetLatestByEmail returns the most recent application for the email
	// regardless of status. Returns shared.ErrApplicationNotFound when absent.
	GetLatestByEmail(ctx context.Context, email Email) (*MentorApplication, error)

	// Update persists all mutable fields of the application.
	// Returns shared.ErrApplicationNotFound when absent.
	Update(ctx context.Context, app *MentorApplication) error

	// ─────────────────────────────────────────────────────────────────────────
	// Conditional Transitions
	// ─────────────────────────────────────────────────────────────────────────

	// TransitionStatus atomically moves the application from one status to
	// another. The update applies only when the stored status still equals
	// `from`; a lost race returns shared.ErrConcurrentModification.
	TransitionStatus(ctx context.Context, id string, from, to Status) error

	// ─────────────────────────────────────────────────────────────────────────
	// Listing
	// ─────────────────────────────────────────────────────────────────────────

	// List returns applications with pagination, newest first.
	List(ctx context.Context, opts ListOptions) ([]*MentorApplication, error)

	// ListByStatus returns applications in a given status with pagination.
	ListByStatus(ctx context.Context, status Status, opts ListOptions) ([]*MentorApplication, error)

	// Count returns the total number of applications.
	Count(ctx context.Context) (int, error)

	// CountByStatus returns the number of applications in a given status.
	CountByStatus(ctx context.Context, status Status) (int, error)
}

// ListOptions carries pagination parameters.
type ListOptions struct {
	// Offset - number of records to skip.
	Offset int

	// Limit - maximum number of records to return.
	Limit int
}

// DefaultListOptions returns sensible pagination defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// WithOffset sets the offset.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit sets the limit.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRY POLICY
// Decision-engine knobs. Values come from config; defaults mirror the
// platform's historical behaviour.
// ══════════════════════════════════════════════════════════════════════════════

// RetryPolicy controls how failed applicants may try again.
type RetryPolicy struct {
	// PassingScore is the minimum percentage to be approved.
	PassingScore float64

	// MaxAttempts is the number of graded tests before rejection becomes
	// terminal.
	MaxAttempts int

	// Cooldown is the wait before a retry after an ordinary failure.
	Cooldown time.Duration

	// LowScoreCooldown is the longer wait applied when the score falls
	// below LowScoreCutoff.
	LowScoreCooldown time.Duration

	// LowScoreCutoff separates ordinary failures from low-score ones.
	LowScoreCutoff float64
}

// DefaultRetryPolicy returns the platform defaults: 70% to pass, three
// attempts, 7-day cooldown stretched to 14 days below 50%.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		PassingScore:     70,
		MaxAttempts:      3,
		Cooldown:         168 * time.Hour,
		LowScoreCooldown: 336 * time.Hour,
		LowScoreCutoff:   50,
	}
}

// CooldownFor returns the cooldown applicable to the given score.
func (p RetryPolicy) CooldownFor(score float64) time.Duration {
	if score < p.LowScoreCutoff {
		return p.LowScoreCooldown
	}
	return p.Cooldown
}

// Passed reports whether the score clears the approval threshold.
func (p RetryPolicy) Passed(score float64) bool {
	return score >= p.PassingScore
}

// Exhausted reports whether the given attempt count (after the current
// failure is recorded) leaves no further tries.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

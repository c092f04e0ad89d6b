// Package application contains the mentor application domain model.
// This is core business logic - there are no external dependencies here.
package application

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Email identifies an applicant. At most one active (non-terminal)
// application may exist per email.
type Email string

// IsValid performs a minimal sanity check; full validation is the job of
// the platform's account layer.
func (e Email) IsValid() bool {
	s := string(e)
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && len(s) <= 256 && !strings.ContainsAny(s, " \t\n\r")
}

// Normalized returns the canonical lowercase form used for uniqueness checks.
func (e Email) Normalized() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// String returns the string representation of the email.
func (e Email) String() string {
	return string(e)
}

// Specialization is the field of expertise the applicant wants to mentor in.
type Specialization string

// Specializations offered on the platform.
var Specializations = []Specialization{
	"Software Engineering",
	"Data Science",
	"Machine Learning",
	"Web Development",
	"Mobile Development",
	"UI/UX Design",
	"DevOps",
	"Cybersecurity",
	"Cloud Computing",
	"Project Management",
	"Product Management",
	"Business Analysis",
	"Digital Marketing",
	"Other",
}

// IsValid checks that the specialization is one the platform offers.
func (s Specialization) IsValid() bool {
	for _, known := range Specializations {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the specialization.
func (s Specialization) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the application's position in the vetting lifecycle.
//
// The rejected state is split into retryable and terminal variants so that
// a retry timestamp cannot coexist with an absorbing state.
type Status string

const (
	// StatusPending - submitted, awaiting administrative review.
	StatusPending Status = "pending"
	// StatusTestSent - a competency test has been issued.
	StatusTestSent Status = "test_sent"
	// StatusTestCompleted - the test was graded, decision in flight.
	StatusTestCompleted Status = "test_completed"
	// StatusApproved - applicant passed; mentor account provisioned. Absorbing.
	StatusApproved Status = "approved"
	// StatusRejectedRetryable - applicant failed but may retry after cooldown.
	StatusRejectedRetryable Status = "rejected_retryable"
	// StatusRejectedTerminal - applicant failed with no attempts left. Absorbing.
	StatusRejectedTerminal Status = "rejected_terminal"
)

// IsValid checks that the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusTestSent, StatusTestCompleted,
		StatusApproved, StatusRejectedRetryable, StatusRejectedTerminal:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for absorbing states.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejectedTerminal
}

// IsActive returns true while the application still occupies the
// one-active-application-per-email slot.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// canTransitionTo encodes the legal state machine:
// Pending → TestSent → TestCompleted → {Approved, RejectedRetryable, RejectedTerminal};
// RejectedRetryable → Pending via an explicit retry request.
func (s Status) canTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusTestSent
	case StatusTestSent:
		return next == StatusTestCompleted
	case StatusTestCompleted:
		return next == StatusApproved || next == StatusRejectedRetryable || next == StatusRejectedTerminal
	case StatusRejectedRetryable:
		return next == StatusPending
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: MENTOR APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// MentorApplication tracks one aspiring mentor through the vetting pipeline.
type MentorApplication struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// FullName is the applicant's display name.
	FullName string

	// Email is the applicant's identity; unique among active applications.
	Email Email

	// PhoneNumber is optional contact information.
	PhoneNumber string

	// Specialization is the area the applicant wants to mentor in.
	Specialization Specialization

	// YearsOfExperience in the specialization.
	YearsOfExperience int

	// LinkedInUrl is an optional profile link.
	LinkedInUrl string

	// Bio is free-text background and motivation.
	Bio string

	// CurrentPosition is the applicant's current job title.
	CurrentPosition string

	// Company is the applicant's current employer.
	Company string

	// Status is the current lifecycle state.
	Status Status

	// TestAttempts counts completed-and-graded tests. It only moves on a
	// decision, never on issuance.
	TestAttempts int

	// RetryAllowedAt is set only while Status == StatusRejectedRetryable.
	RetryAllowedAt *time.Time

	// FinalScore is the most recent graded score (percentage).
	FinalScore *float64

	// AccountID links the provisioned mentor account after approval.
	AccountID string

	// CreatedAt is when the application was first submitted.
	CreatedAt time.Time

	// UpdatedAt is the time of the last mutation.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidEmail - email failed the sanity check.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidFullName - name must be 1-100 chars.
	ErrInvalidFullName = errors.New("invalid full name: must be 1-100 chars")

	// ErrInvalidSpecialization - unknown specialization.
	ErrInvalidSpecialization = errors.New("invalid specialization")

	// ErrInvalidExperience - years of experience out of range.
	ErrInvalidExperience = errors.New("invalid years of experience: must be 0-50")

	// ErrIllegalTransition - the requested status change is not allowed.
	ErrIllegalTransition = errors.New("illegal application status transition")

	// ErrRetryWindowClosed - the cooldown has not elapsed yet.
	ErrRetryWindowClosed = errors.New("retry is not allowed yet")

	// ErrRetryTimestampPast - a retry window must end in the future.
	ErrRetryTimestampPast = errors.New("retry timestamp must be in the future")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewApplicationParams contains the fields needed to create an application.
type NewApplicationParams struct {
	ID                string
	FullName          string
	Email             Email
	PhoneNumber       string
	Specialization    Specialization
	YearsOfExperience int
	LinkedInUrl       string
	Bio               string
	CurrentPosition   string
	Company           string
}

// NewApplication creates a pending application with all fields validated.
func NewApplication(params NewApplicationParams) (*MentorApplication, error) {
	if params.ID == "" {
		return nil, errors.New("application id is required")
	}

	fullName := strings.TrimSpace(params.FullName)
	if len(fullName) == 0 || len(fullName) > 100 {
		return nil, ErrInvalidFullName
	}

	email := params.Email.Normalized()
	if !email.IsValid() {
		return nil, ErrInvalidEmail
	}

	if !params.Specialization.IsValid() {
		return nil, ErrInvalidSpecialization
	}

	if params.YearsOfExperience < 0 || params.YearsOfExperience > 50 {
		return nil, ErrInvalidExperience
	}

	now := time.Now().UTC()

	return &MentorApplication{
		ID:                params.ID,
		FullName:          fullName,
		Email:             email,
		PhoneNumber:       strings.TrimSpace(params.PhoneNumber),
		Specialization:    params.Specialization,
		YearsOfExperience: params.YearsOfExperience,
		LinkedInUrl:       strings.TrimSpace(params.LinkedInUrl),
		Bio:               strings.TrimSpace(params.Bio),
		CurrentPosition:   strings.TrimSpace(params.CurrentPosition),
		Company:           strings.TrimSpace(params.Company),
		Status:            StatusPending,
		TestAttempts:      0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (State Machine)
// ══════════════════════════════════════════════════════════════════════════════

// MarkTestSent records that a test session was issued for this application.
func (a *MentorApplication) MarkTestSent() error {
	return a.transition(StatusTestSent)
}

// MarkTestCompleted records that a graded submission arrived and the
// decision is being made.
func (a *MentorApplication) MarkTestCompleted(score float64) error {
	if err := a.transition(StatusTestCompleted); err != nil {
		return err
	}
	a.FinalScore = &score
	return nil
}

// Approve moves the application to its passing absorbing state and links
// the provisioned mentor account.
func (a *MentorApplication) Approve(accountID string) error {
	if err := a.transition(StatusApproved); err != nil {
		return err
	}
	a.AccountID = accountID
	a.RetryAllowedAt = nil
	return nil
}

// RejectRetryable records a failed attempt that may be retried once the
// cooldown elapses. retryAllowedAt must be strictly after now.
func (a *MentorApplication) RejectRetryable(now, retryAllowedAt time.Time) error {
	if !retryAllowedAt.After(now) {
		return ErrRetryTimestampPast
	}
	if err := a.transition(StatusRejectedRetryable); err != nil {
		return err
	}
	a.TestAttempts++
	t := retryAllowedAt.UTC()
	a.RetryAllowedAt = &t
	return nil
}

// RejectTerminal records a failed attempt with no attempts remaining.
func (a *MentorApplication) RejectTerminal() error {
	if err := a.transition(StatusRejectedTerminal); err != nil {
		return err
	}
	a.TestAttempts++
	a.RetryAllowedAt = nil
	return nil
}

// RequestRetry moves a retryable rejection back to pending. Fails with
// ErrRetryWindowClosed while the cooldown is still running.
func (a *MentorApplication) RequestRetry(now time.Time) error {
	if a.Status != StatusRejectedRetryable {
		return ErrIllegalTransition
	}
	if a.RetryAllowedAt == nil || now.Before(*a.RetryAllowedAt) {
		return ErrRetryWindowClosed
	}
	if err := a.transition(StatusPending); err != nil {
		return err
	}
	a.RetryAllowedAt = nil
	return nil
}

// CanIssueTest reports whether an administrator may issue a test right now.
// The no-active-session precondition is checked separately against the
// session store.
func (a *MentorApplication) CanIssueTest() bool {
	// TestSent is allowed so an expired, never-completed session can be
	// replaced without pushing the application backwards.
	return a.Status == StatusPending || a.Status == StatusTestSent
}

// RetryWaitRemaining returns how long until a retry becomes possible, or
// zero when no cooldown applies.
func (a *MentorApplication) RetryWaitRemaining(now time.Time) time.Duration {
	if a.Status != StatusRejectedRetryable || a.RetryAllowedAt == nil {
		return 0
	}
	if remaining := a.RetryAllowedAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// UpdateDetails refreshes applicant-provided fields on resubmission.
func (a *MentorApplication) UpdateDetails(params NewApplicationParams) error {
	fresh, err := NewApplication(NewApplicationParams{
		ID:                a.ID,
		FullName:          params.FullName,
		Email:             a.Email, // identity never changes on resubmission
		PhoneNumber:       params.PhoneNumber,
		Specialization:    params.Specialization,
		YearsOfExperience: params.YearsOfExperience,
		LinkedInUrl:       params.LinkedInUrl,
		Bio:               params.Bio,
		CurrentPosition:   params.CurrentPosition,
		Company:           params.Company,
	})
	if err != nil {
		return err
	}

	a.FullName = fresh.FullName
	a.PhoneNumber = fresh.PhoneNumber
	a.Specialization = fresh.Specialization
	a.YearsOfExperience = fresh.YearsOfExperience
	a.LinkedInUrl = fresh.LinkedInUrl
	a.Bio = fresh.Bio
	a.CurrentPosition = fresh.CurrentPosition
	a.Company = fresh.Company
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// transition applies a status change after checking legality.
func (a *MentorApplication) transition(next Status) error {
	if !a.Status.canTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// String returns a string representation for logging.
func (a *MentorApplication) String() string {
	return fmt.Sprintf(
		"MentorApplication{ID: %s, Email: %s, Specialization: %s, Status: %s, Attempts: %d}",
		a.ID, a.Email, a.Specialization, a.Status, a.TestAttempts,
	)
}

// Clone creates a deep copy of the application.
func (a *MentorApplication) Clone() *MentorApplication {
	if a == nil {
		return nil
	}

	clone := *a
	if a.RetryAllowedAt != nil {
		t := *a.RetryAllowedAt
		clone.RetryAllowedAt = &t
	}
	if a.FinalScore != nil {
		s := *a.FinalScore
		clone.FinalScore = &s
	}
	return &clone
}

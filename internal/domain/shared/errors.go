// Package shared holds the domain error taxonomy and the domain events
// the vetting pipeline emits. It depends on nothing outside the standard
// library so every domain package can import it freely.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every DomainError wraps exactly one of these so callers
// match behavior with errors.Is instead of string comparison.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")
	ErrTooEarly         = errors.New("not yet allowed")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries where an error happened (Domain, Op), how callers
// should treat it (Kind), and what to tell a human (Message). Err holds
// the underlying cause when one exists.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap exposes the cause when present, else the kind, so both
// errors.Is chains work.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError builds an error with no underlying cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches domain context to an underlying error.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ──────────────────────────────────────────────────────────────────────────────
// Named vetting errors
// ──────────────────────────────────────────────────────────────────────────────

// Application lifecycle.
var (
	ErrApplicationNotFound  = NewDomainError("application", "Find", ErrNotFound, "application not found")
	ErrDuplicateApplication = NewDomainError("application", "Submit", ErrAlreadyExists, "an active application already exists for this email")
	ErrRetryNotYetAllowed   = NewDomainError("application", "Retry", ErrTooEarly, "retry cooldown has not elapsed")
	ErrApplicationTerminal  = NewDomainError("application", "Transition", ErrInvalidState, "application is in a terminal state")
)

// Test sessions.
var (
	ErrSessionNotFound      = NewDomainError("testsession", "Find", ErrNotFound, "test session not found")
	ErrSessionAlreadyActive = NewDomainError("testsession", "Issue", ErrAlreadyExists, "a test session is already active for this application")
	ErrTokenExpired         = NewDomainError("testsession", "Access", ErrExpired, "test link has expired")
	ErrTokenAlreadyUsed     = NewDomainError("testsession", "Access", ErrAlreadyProcessed, "test has already been submitted")
	ErrTestWindowClosed     = NewDomainError("testsession", "Submit", ErrExpired, "time has expired for this test")
	ErrMalformedSubmission  = NewDomainError("testsession", "Submit", ErrInvalidInput, "submitted answers do not match the question set")
)

// Question bank.
var (
	ErrQuestionNotFound      = NewDomainError("question", "Find", ErrNotFound, "question not found")
	ErrInsufficientQuestions = NewDomainError("question", "Select", ErrValueOutOfRange, "not enough active questions for the requested test size")
)

// Authorization and upstreams.
var (
	ErrAdminOnly           = NewDomainError("vetting", "Authorize", ErrUnauthorized, "action requires an administrative actor")
	ErrEmailDeliveryFailed = NewDomainError("email", "Send", ErrExternalService, "failed to deliver email")
	ErrProvisioningFailed  = NewDomainError("provisioning", "Create", ErrExternalService, "failed to provision mentor account")
)

// ──────────────────────────────────────────────────────────────────────────────
// Predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound reports a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports a state or uniqueness conflict the caller lost
// deterministically (duplicate submit, duplicate issue, lost CAS race).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsValidation reports rejected input of any shape.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsTimeWindow reports an elapsed or not-yet-open time window (expired
// link, closed test, active cooldown).
func IsTimeWindow(err error) bool {
	return errors.Is(err, ErrExpired) || errors.Is(err, ErrTooEarly)
}

// IsExternalService reports an upstream failure (email gateway, account
// directory) as opposed to a caller mistake.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

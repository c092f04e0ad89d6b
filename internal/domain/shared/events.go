// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - each event represents something significant that
// happened in the vetting pipeline.
const (
	// Application events
	EventApplicationSubmitted EventType = "vetting.application_submitted"
	EventApplicationApproved  EventType = "vetting.application_approved"
	EventApplicationRejected  EventType = "vetting.application_rejected"
	EventRetryRequested       EventType = "vetting.retry_requested"

	// Test session events
	EventTestIssued     EventType = "vetting.test_issued"
	EventTestStarted    EventType = "vetting.test_started"
	EventTestCompleted  EventType = "vetting.test_completed"
	EventSessionExpired EventType = "vetting.session_expired"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Application Events
// ═══════════════════════════════════════════════════════════════════════════

// ApplicationSubmittedEvent is emitted when a new mentor application arrives.
type ApplicationSubmittedEvent struct {
	BaseEvent
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
	IsResubmission bool   `json:"is_resubmission"`
}

// Payload implements Event interface.
func (e ApplicationSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":           e.Email,
		"full_name":       e.FullName,
		"specialization":  e.Specialization,
		"is_resubmission": e.IsResubmission,
	}
}

// NewApplicationSubmittedEvent creates a new ApplicationSubmittedEvent.
func NewApplicationSubmittedEvent(applicationID, email, fullName, specialization string, resubmission bool) ApplicationSubmittedEvent {
	return ApplicationSubmittedEvent{
		BaseEvent:      NewBaseEvent(EventApplicationSubmitted, applicationID),
		Email:          email,
		FullName:       fullName,
		Specialization: specialization,
		IsResubmission: resubmission,
	}
}

// RetryRequestedEvent is emitted when a rejected applicant re-enters the
// pipeline after the cooldown.
type RetryRequestedEvent struct {
	BaseEvent
	Email   string `json:"email"`
	Attempt int    `json:"attempt"`
}

// Payload implements Event interface.
func (e RetryRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":   e.Email,
		"attempt": e.Attempt,
	}
}

// NewRetryRequestedEvent creates a new RetryRequestedEvent.
func NewRetryRequestedEvent(applicationID, email string, attempt int) RetryRequestedEvent {
	return RetryRequestedEvent{
		BaseEvent: NewBaseEvent(EventRetryRequested, applicationID),
		Email:     email,
		Attempt:   attempt,
	}
}

// ApplicationApprovedEvent is emitted when an applicant passes the test.
type ApplicationApprovedEvent struct {
	BaseEvent
	Email     string  `json:"email"`
	Score     float64 `json:"score"`
	AccountID string  `json:"account_id,omitempty"`
}

// Payload implements Event interface.
func (e ApplicationApprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":      e.Email,
		"score":      e.Score,
		"account_id": e.AccountID,
	}
}

// NewApplicationApprovedEvent creates a new ApplicationApprovedEvent.
func NewApplicationApprovedEvent(applicationID, email string, score float64) ApplicationApprovedEvent {
	return ApplicationApprovedEvent{
		BaseEvent: NewBaseEvent(EventApplicationApproved, applicationID),
		Email:     email,
		Score:     score,
	}
}

// WithAccountID records the provisioned mentor account on the event.
func (e ApplicationApprovedEvent) WithAccountID(accountID string) ApplicationApprovedEvent {
	e.AccountID = accountID
	return e
}

// ApplicationRejectedEvent is emitted when an applicant fails the test.
type ApplicationRejectedEvent struct {
	BaseEvent
	Email          string     `json:"email"`
	Score          float64    `json:"score"`
	Attempt        int        `json:"attempt"`
	Terminal       bool       `json:"terminal"`
	RetryAllowedAt *time.Time `json:"retry_allowed_at,omitempty"`
}

// Payload implements Event interface.
func (e ApplicationRejectedEvent) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"email":    e.Email,
		"score":    e.Score,
		"attempt":  e.Attempt,
		"terminal": e.Terminal,
	}
	if e.RetryAllowedAt != nil {
		payload["retry_allowed_at"] = e.RetryAllowedAt.Format(time.RFC3339)
	}
	return payload
}

// NewApplicationRejectedEvent creates a new ApplicationRejectedEvent.
func NewApplicationRejectedEvent(applicationID, email string, score float64, attempt int, terminal bool, retryAllowedAt *time.Time) ApplicationRejectedEvent {
	return ApplicationRejectedEvent{
		BaseEvent:      NewBaseEvent(EventApplicationRejected, applicationID),
		Email:          email,
		Score:          score,
		Attempt:        attempt,
		Terminal:       terminal,
		RetryAllowedAt: retryAllowedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Test Session Events
// ═══════════════════════════════════════════════════════════════════════════

// TestIssuedEvent is emitted when an administrator sends a test.
type TestIssuedEvent struct {
	BaseEvent
	ApplicationID  string    `json:"application_id"`
	TotalQuestions int       `json:"total_questions"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Payload implements Event interface.
func (e TestIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"application_id":  e.ApplicationID,
		"total_questions": e.TotalQuestions,
		"expires_at":      e.ExpiresAt.Format(time.RFC3339),
	}
}

// NewTestIssuedEvent creates a new TestIssuedEvent. The aggregate is the
// session; the token itself is never placed on the bus.
func NewTestIssuedEvent(sessionID, applicationID string, totalQuestions int, expiresAt time.Time) TestIssuedEvent {
	return TestIssuedEvent{
		BaseEvent:      NewBaseEvent(EventTestIssued, sessionID),
		ApplicationID:  applicationID,
		TotalQuestions: totalQuestions,
		ExpiresAt:      expiresAt,
	}
}

// TestStartedEvent is emitted on the applicant's first access.
type TestStartedEvent struct {
	BaseEvent
	ApplicationID string    `json:"application_id"`
	StartedAt     time.Time `json:"started_at"`
	Deadline      time.Time `json:"deadline"`
}

// Payload implements Event interface.
func (e TestStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"application_id": e.ApplicationID,
		"started_at":     e.StartedAt.Format(time.RFC3339),
		"deadline":       e.Deadline.Format(time.RFC3339),
	}
}

// NewTestStartedEvent creates a new TestStartedEvent.
func NewTestStartedEvent(sessionID, applicationID string, startedAt, deadline time.Time) TestStartedEvent {
	return TestStartedEvent{
		BaseEvent:     NewBaseEvent(EventTestStarted, sessionID),
		ApplicationID: applicationID,
		StartedAt:     startedAt,
		Deadline:      deadline,
	}
}

// TestCompletedEvent is emitted when a submission is graded.
type TestCompletedEvent struct {
	BaseEvent
	ApplicationID  string  `json:"application_id"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Score          float64 `json:"score"`
}

// Payload implements Event interface.
func (e TestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"application_id":  e.ApplicationID,
		"correct_answers": e.CorrectAnswers,
		"total_questions": e.TotalQuestions,
		"score":           e.Score,
	}
}

// NewTestCompletedEvent creates a new TestCompletedEvent.
func NewTestCompletedEvent(sessionID, applicationID string, correct, total int, score float64) TestCompletedEvent {
	return TestCompletedEvent{
		BaseEvent:      NewBaseEvent(EventTestCompleted, sessionID),
		ApplicationID:  applicationID,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Score:          score,
	}
}

// SessionExpiredEvent is emitted when a session passes its deadline
// without a completed submission.
type SessionExpiredEvent struct {
	BaseEvent
	ApplicationID string `json:"application_id"`
	WasStarted    bool   `json:"was_started"`
}

// Payload implements Event interface.
func (e SessionExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"application_id": e.ApplicationID,
		"was_started":    e.WasStarted,
	}
}

// NewSessionExpiredEvent creates a new SessionExpiredEvent.
func NewSessionExpiredEvent(sessionID, applicationID string, wasStarted bool) SessionExpiredEvent {
	return SessionExpiredEvent{
		BaseEvent:     NewBaseEvent(EventSessionExpired, sessionID),
		ApplicationID: applicationID,
		WasStarted:    wasStarted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes domain events.
type EventHandler interface {
	// Handle processes the event.
	Handle(event Event) error

	// CanHandle returns true if this handler can process the event type.
	CanHandle(eventType EventType) bool
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc struct {
	Types   []EventType
	Handler func(event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error {
	return f.Handler(event)
}

// CanHandle implements EventHandler.
func (f EventHandlerFunc) CanHandle(eventType EventType) bool {
	for _, t := range f.Types {
		if t == eventType {
			return true
		}
	}
	return false
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	// Publish publishes a single event.
	Publish(event Event) error
}

// EventSubscriber subscribes handlers to events.
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types.
	Subscribe(handler EventHandler, eventTypes ...EventType) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close shuts down the event bus.
	Close() error
}

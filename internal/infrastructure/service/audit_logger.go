package service

import (
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

// AuditLogger subscribes to every vetting event and writes a structured
// audit line. Event payloads carry no tokens, so logging them whole is
// safe.
type AuditLogger struct {
	log *logger.Logger
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(log *logger.Logger) *AuditLogger {
	return &AuditLogger{log: log.With(logger.Component("audit"))}
}

// Handle implements shared.EventHandler.
func (a *AuditLogger) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for key, value := range event.Payload() {
		fields = append(fields, logger.F(key, value))
	}

	a.log.Info("domain event", fields...)
	return nil
}

// CanHandle implements shared.EventHandler; the audit trail wants all events.
func (a *AuditLogger) CanHandle(shared.EventType) bool {
	return true
}

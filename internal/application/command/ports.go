// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOUND PORTS
// Consumer-side interfaces for the external services commands depend on.
// Implementations live in infrastructure/service.
// ══════════════════════════════════════════════════════════════════════════════

// EmailSender delivers vetting emails to applicants. Delivery is
// best-effort from the pipeline's point of view: a failed send never rolls
// back a state transition.
type EmailSender interface {
	// SendTestInvitation emails the test link.
	SendTestInvitation(ctx context.Context, to, fullName string, token testsession.Token, expiresAt time.Time) error

	// SendApprovalNotice emails the acceptance with provisioned credentials.
	SendApprovalNotice(ctx context.Context, to, fullName, tempPassword string) error

	// SendRejectionNotice emails the outcome of a failed test.
	// retryAllowedAt is nil for terminal rejections.
	SendRejectionNotice(ctx context.Context, to, fullName string, score float64, retryAllowedAt *time.Time) error
}

// ProvisionedAccount is the result of mentor account provisioning.
type ProvisionedAccount struct {
	// AccountID is the platform account identifier.
	AccountID string

	// TempPassword is the generated clear-text password, returned once so
	// it can be mailed. Only its hash is stored.
	TempPassword string

	// Created is false when an existing account was upgraded to mentor.
	Created bool
}

// AccountProvisioner creates or upgrades the platform account for an
// approved mentor.
type AccountProvisioner interface {
	ProvisionMentor(ctx context.Context, email, fullName, specialization string) (*ProvisionedAccount, error)
}

// IDGenerator produces unique identifiers for new aggregates.
type IDGenerator interface {
	NewID() string
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

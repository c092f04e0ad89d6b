package testsession

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// State transitions are compare-and-set: the store applies them only when
// the session is still in the expected status, so concurrent submits,
// sweeps, and re-issues settle deterministically at the storage layer.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for test sessions.
type Repository interface {
	// Create stores a new pending session.
	// Returns shared.ErrSessionAlreadyActive when a non-terminal session
	// already exists for the same application.
	Create(ctx context.Context, session *Session) error

	// GetByID returns a session by ID.
	// Returns shared.ErrSessionNotFound when absent.
	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByToken returns a session by its link token.
	// Returns shared.ErrSessionNotFound when absent.
	GetByToken(ctx context.Context, token Token) (*Session, error)

	// GetActiveByApplication returns the non-terminal session for an
	// application, if any. Returns shared.ErrSessionNotFound when absent.
	GetActiveByApplication(ctx context.Context, applicationID string) (*Session, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Conditional Transitions
	// ─────────────────────────────────────────────────────────────────────────

	// StartIfPending atomically moves pending → in_progress and records
	// startedAt. A session no longer pending returns
	// shared.ErrConcurrentModification.
	StartIfPending(ctx context.Context, id string, startedAt time.Time) error

	// CompleteIfInProgress atomically moves in_progress → completed and
	// persists the graded session (answers, counts, score, completedAt).
	// Exactly one concurrent submitter wins; losers get
	// shared.ErrConcurrentModification.
	CompleteIfInProgress(ctx context.Context, session *Session) error

	// ExpireIfActive atomically moves pending/in_progress → expired.
	// A session already terminal returns shared.ErrConcurrentModification.
	ExpireIfActive(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Sweep
	// ─────────────────────────────────────────────────────────────────────────

	// FindOverdue returns non-terminal sessions whose effective deadline
	// passed before `now`, capped at `limit`.
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*Session, error)
}

// TokenCache is an optional read-through cache for token → session id
// resolution. It is never authoritative: misses and errors fall through to
// the repository, and grading decisions always reload from it.
type TokenCache interface {
	// GetSessionID resolves a token to a session id. ok=false on miss.
	GetSessionID(ctx context.Context, token Token) (id string, ok bool, err error)

	// SetSessionID caches the resolution until the session expires.
	SetSessionID(ctx context.Context, token Token, id string, ttl time.Duration) error

	// Invalidate drops the cached resolution.
	Invalidate(ctx context.Context, token Token) error
}

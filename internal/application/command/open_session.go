package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPEN SESSION COMMAND
// Applicant follows the emailed link. First access starts the clock via a
// compare-and-set transition; subsequent accesses of a running session are
// reads. Expiry is applied lazily here so an overdue session is refused
// even if the sweep has not visited it yet.
// ══════════════════════════════════════════════════════════════════════════════

// OpenSessionCommand contains the link token presented by the applicant.
type OpenSessionCommand struct {
	// Token from the emailed test link.
	Token string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c OpenSessionCommand) Validate() error {
	if c.Token == "" {
		return errors.New("open_session: token is required")
	}
	return nil
}

// OpenSessionResult contains the applicant's view of the test.
type OpenSessionResult struct {
	// SessionID identifies the session for follow-up submission.
	SessionID string

	// Questions in snapshot order, correct markers stripped.
	Questions []testsession.ApplicantQuestion

	// StartedAt is when the clock started (first access time for a fresh
	// open).
	StartedAt time.Time

	// Deadline is the effective submission deadline.
	Deadline time.Time

	// Remaining is the working time left at the moment of this access.
	Remaining time.Duration

	// FirstAccess is true when this call started the session.
	FirstAccess bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// OpenSessionHandler handles the OpenSessionCommand.
type OpenSessionHandler struct {
	sessionRepo testsession.Repository
	cache       testsession.TokenCache
	publisher   shared.EventPublisher
	clock       Clock
}

// NewOpenSessionHandler creates a new OpenSessionHandler. The cache is
// optional; pass nil to resolve tokens against the repository only.
func NewOpenSessionHandler(
	sessionRepo testsession.Repository,
	cache testsession.TokenCache,
	publisher shared.EventPublisher,
) *OpenSessionHandler {
	return &OpenSessionHandler{
		sessionRepo: sessionRepo,
		cache:       cache,
		publisher:   publisher,
		clock:       SystemClock,
	}
}

// WithClock replaces the time source (tests).
func (h *OpenSessionHandler) WithClock(clock Clock) *OpenSessionHandler {
	h.clock = clock
	return h
}

// Handle executes the open session command.
func (h *OpenSessionHandler) Handle(ctx context.Context, cmd OpenSessionCommand) (*OpenSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("open_session: validation failed: %w", err)
	}

	token := testsession.Token(cmd.Token).Normalized()
	if !token.IsWellFormed() {
		// Malformed tokens are indistinguishable from unknown ones to the
		// caller; no storage round-trip needed.
		return nil, shared.ErrSessionNotFound
	}

	session, err := h.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	now := h.clock()

	switch {
	case session.Status == testsession.StatusCompleted:
		return nil, shared.ErrTokenAlreadyUsed
	case session.Status == testsession.StatusExpired:
		return nil, shared.ErrTokenExpired
	case session.IsOverdue(now):
		h.lazyExpire(ctx, session)
		return nil, shared.ErrTokenExpired
	}

	result := &OpenSessionResult{
		SessionID: session.ID,
		Events:    make([]shared.Event, 0, 1),
	}

	if session.Status == testsession.StatusPending {
		if err := h.sessionRepo.StartIfPending(ctx, session.ID, now); err != nil {
			if !shared.IsConflict(err) {
				return nil, fmt.Errorf("open_session: %w", err)
			}
			// Another request (second tab, refresh) started it first;
			// reload and serve the running session.
			session, err = h.sessionRepo.GetByID(ctx, session.ID)
			if err != nil {
				return nil, fmt.Errorf("open_session: %w", err)
			}
			if session.Status != testsession.StatusInProgress {
				return nil, shared.ErrTokenAlreadyUsed
			}
		} else {
			if err := session.Start(now); err != nil {
				return nil, fmt.Errorf("open_session: %w", err)
			}
			result.FirstAccess = true

			event := shared.NewTestStartedEvent(session.ID, session.ApplicationID, now, session.EffectiveDeadline())
			event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
			result.Events = append(result.Events, event)
			h.publishAll(result.Events)
		}
	}

	result.Questions = session.ApplicantView()
	if session.StartedAt != nil {
		result.StartedAt = *session.StartedAt
	}
	result.Deadline = session.EffectiveDeadline()
	result.Remaining = session.RemainingTime(now)
	return result, nil
}

// resolve finds the session for a token, consulting the cache first. The
// cache is never authoritative: a hit still loads the session from the
// repository.
func (h *OpenSessionHandler) resolve(ctx context.Context, token testsession.Token) (*testsession.Session, error) {
	if h.cache != nil {
		if id, ok, err := h.cache.GetSessionID(ctx, token); err == nil && ok {
			session, err := h.sessionRepo.GetByID(ctx, id)
			if err == nil && session.Token == token {
				return session, nil
			}
			// Stale mapping; fall through to the repository.
			_ = h.cache.Invalidate(ctx, token)
		}
	}

	session, err := h.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("open_session: %w", err)
	}

	if h.cache != nil {
		if ttl := time.Until(session.ExpiresAt); ttl > 0 {
			_ = h.cache.SetSessionID(ctx, token, session.ID, ttl)
		}
	}
	return session, nil
}

func (h *OpenSessionHandler) lazyExpire(ctx context.Context, session *testsession.Session) {
	if err := h.sessionRepo.ExpireIfActive(ctx, session.ID); err != nil {
		return
	}
	h.publishAll([]shared.Event{
		shared.NewSessionExpiredEvent(session.ID, session.ApplicationID, session.StartedAt != nil),
	})
}

func (h *OpenSessionHandler) publishAll(events []shared.Event) {
	if h.publisher == nil {
		return
	}
	for _, e := range events {
		_ = h.publisher.Publish(e)
	}
}

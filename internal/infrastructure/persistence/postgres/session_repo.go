package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// Conditional transitions ride on UPDATE ... WHERE status = <expected>;
// a lost race updates zero rows and surfaces as ErrConcurrentModification.
// ══════════════════════════════════════════════════════════════════════════════

const sessionColumns = `
	id, application_id, token, status, questions, time_limit_seconds,
	issued_at, expires_at, started_at, completed_at, answers, correct_count, score
`

// SessionRepository implements testsession.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new pending session. The partial unique index on active
// application_id enforces the one-live-session rule.
func (r *SessionRepository) Create(ctx context.Context, s *testsession.Session) error {
	questionsJSON, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal question snapshot: %w", err)
	}

	query := `
		INSERT INTO test_sessions (
			id, application_id, token, status, questions, time_limit_seconds,
			issued_at, expires_at, started_at, completed_at, answers, correct_count, score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.conn.Exec(ctx, query,
		s.ID,
		s.ApplicationID,
		string(s.Token),
		string(s.Status),
		questionsJSON,
		int64(s.TimeLimit.Seconds()),
		s.IssuedAt,
		s.ExpiresAt,
		s.StartedAt,
		s.CompletedAt,
		nil,
		s.CorrectCount,
		s.Score,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrSessionAlreadyActive
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*testsession.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM test_sessions WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanSession(row)
}

// GetByToken returns a session by its link token.
func (r *SessionRepository) GetByToken(ctx context.Context, token testsession.Token) (*testsession.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM test_sessions WHERE token = $1`

	row := r.conn.QueryRow(ctx, query, string(token))
	return r.scanSession(row)
}

// GetActiveByApplication returns the non-terminal session for an application.
func (r *SessionRepository) GetActiveByApplication(ctx context.Context, applicationID string) (*testsession.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM test_sessions
		WHERE application_id = $1 AND status IN ('pending', 'in_progress')
	`

	row := r.conn.QueryRow(ctx, query, applicationID)
	return r.scanSession(row)
}

// ─────────────────────────────────────────────────────────────────────────────
// Conditional Transitions
// ─────────────────────────────────────────────────────────────────────────────

// StartIfPending atomically moves pending → in_progress.
func (r *SessionRepository) StartIfPending(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE test_sessions
		SET status = 'in_progress', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.conn.Exec(ctx, query, startedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.casFailure(ctx, id, "Start", "session is no longer pending")
	}

	return nil
}

// CompleteIfInProgress atomically moves in_progress → completed and
// persists the graded state. Exactly one concurrent submitter wins.
func (r *SessionRepository) CompleteIfInProgress(ctx context.Context, s *testsession.Session) error {
	answersJSON, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	query := `
		UPDATE test_sessions
		SET status = 'completed',
			answers = $1,
			correct_count = $2,
			score = $3,
			completed_at = $4
		WHERE id = $5 AND status = 'in_progress'
	`

	result, err := r.conn.Exec(ctx, query,
		answersJSON,
		s.CorrectCount,
		s.Score,
		s.CompletedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.casFailure(ctx, s.ID, "Complete", "session is no longer in progress")
	}

	return nil
}

// ExpireIfActive atomically moves pending/in_progress → expired.
func (r *SessionRepository) ExpireIfActive(ctx context.Context, id string) error {
	query := `
		UPDATE test_sessions
		SET status = 'expired'
		WHERE id = $1 AND status IN ('pending', 'in_progress')
	`

	result, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.casFailure(ctx, id, "Expire", "session is already terminal")
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sweep
// ─────────────────────────────────────────────────────────────────────────────

// FindOverdue returns non-terminal sessions whose effective deadline passed
// before now. The effective deadline of an opened session is the earlier of
// link expiry and started_at plus the time limit; before opening only the
// link expiry applies.
func (r *SessionRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*testsession.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM test_sessions
		WHERE status IN ('pending', 'in_progress')
		  AND LEAST(
				expires_at,
				COALESCE(started_at + make_interval(secs => time_limit_seconds), expires_at)
			  ) < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*testsession.Session
	for rows.Next() {
		s, err := r.scanSessionFromRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// casFailure distinguishes a missing session from a lost conditional update.
func (r *SessionRepository) casFailure(ctx context.Context, id, op, message string) error {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM test_sessions WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if !exists {
		return shared.ErrSessionNotFound
	}
	return shared.NewDomainError("testsession", op, shared.ErrConcurrentModification, message)
}

// scanSession scans a single session from a row.
func (r *SessionRepository) scanSession(row pgx.Row) (*testsession.Session, error) {
	s, err := scanSessionFields(row.Scan)
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	return s, err
}

// scanSessionFromRows scans a session while iterating rows.
func (r *SessionRepository) scanSessionFromRows(rows pgx.Rows) (*testsession.Session, error) {
	return scanSessionFields(rows.Scan)
}

// scanSessionFields performs the shared column-to-entity mapping.
func scanSessionFields(scan func(dest ...any) error) (*testsession.Session, error) {
	var s testsession.Session
	var token, status string
	var questionsJSON, answersJSON []byte
	var timeLimitSeconds int64

	err := scan(
		&s.ID,
		&s.ApplicationID,
		&token,
		&status,
		&questionsJSON,
		&timeLimitSeconds,
		&s.IssuedAt,
		&s.ExpiresAt,
		&s.StartedAt,
		&s.CompletedAt,
		&answersJSON,
		&s.CorrectCount,
		&s.Score,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Token = testsession.Token(token).Normalized()
	s.Status = testsession.Status(status)
	s.TimeLimit = time.Duration(timeLimitSeconds) * time.Second

	if err := json.Unmarshal(questionsJSON, &s.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question snapshot: %w", err)
	}
	if len(answersJSON) > 0 {
		var answers []question.Option
		if err := json.Unmarshal(answersJSON, &answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}
		s.Answers = answers
	}

	return &s, nil
}

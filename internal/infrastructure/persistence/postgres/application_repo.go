package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const applicationColumns = `
	id, full_name, email, phone_number, specialization, years_of_experience,
	linkedin_url, bio, current_position, company, status, test_attempts,
	retry_allowed_at, final_score, account_id, created_at, updated_at
`

// ApplicationRepository implements application.Repository for PostgreSQL.
type ApplicationRepository struct {
	conn *Connection
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(conn *Connection) *ApplicationRepository {
	return &ApplicationRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new application. The partial unique index on active
// emails is the authority for the one-active-application rule; its
// violation is translated here.
func (r *ApplicationRepository) Create(ctx context.Context, app *application.MentorApplication) error {
	query := `
		INSERT INTO mentor_applications (
			id, full_name, email, phone_number, specialization, years_of_experience,
			linkedin_url, bio, current_position, company, status, test_attempts,
			retry_allowed_at, final_score, account_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.conn.Exec(ctx, query,
		app.ID,
		app.FullName,
		string(app.Email),
		app.PhoneNumber,
		string(app.Specialization),
		app.YearsOfExperience,
		app.LinkedInUrl,
		app.Bio,
		app.CurrentPosition,
		app.Company,
		string(app.Status),
		app.TestAttempts,
		app.RetryAllowedAt,
		app.FinalScore,
		app.AccountID,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateApplication
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID returns an application by internal ID.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*application.MentorApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM mentor_applications WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanApplication(row)
}

// GetActiveByEmail returns the active (non-terminal) application for the email.
func (r *ApplicationRepository) GetActiveByEmail(ctx context.Context, email application.Email) (*application.MentorApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM mentor_applications
		WHERE email = $1 AND status NOT IN ('approved', 'rejected_terminal')
	`

	row := r.conn.QueryRow(ctx, query, string(email.Normalized()))
	return r.scanApplication(row)
}

// GetLatestByEmail returns the most recent application for the email
// regardless of status.
func (r *ApplicationRepository) GetLatestByEmail(ctx context.Context, email application.Email) (*application.MentorApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM mentor_applications
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, string(email.Normalized()))
	return r.scanApplication(row)
}

// Update persists all mutable fields of the application.
func (r *ApplicationRepository) Update(ctx context.Context, app *application.MentorApplication) error {
	query := `
		UPDATE mentor_applications SET
			full_name = $1,
			phone_number = $2,
			specialization = $3,
			years_of_experience = $4,
			linkedin_url = $5,
			bio = $6,
			current_position = $7,
			company = $8,
			status = $9,
			test_attempts = $10,
			retry_allowed_at = $11,
			final_score = $12,
			account_id = $13,
			updated_at = $14
		WHERE id = $15
	`

	result, err := r.conn.Exec(ctx, query,
		app.FullName,
		app.PhoneNumber,
		string(app.Specialization),
		app.YearsOfExperience,
		app.LinkedInUrl,
		app.Bio,
		app.CurrentPosition,
		app.Company,
		string(app.Status),
		app.TestAttempts,
		app.RetryAllowedAt,
		app.FinalScore,
		app.AccountID,
		time.Now().UTC(),
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrApplicationNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Conditional Transitions
// ─────────────────────────────────────────────────────────────────────────────

// TransitionStatus atomically moves the application between statuses. The
// WHERE clause carries the expected status, so a lost race updates zero
// rows instead of clobbering a concurrent writer.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, id string, from, to application.Status) error {
	query := `
		UPDATE mentor_applications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.conn.Exec(ctx, query,
		string(to),
		time.Now().UTC(),
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to transition application status: %w", err)
	}

	if result.RowsAffected() == 0 {
		exists, existsErr := r.exists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return shared.ErrApplicationNotFound
		}
		return shared.NewDomainError("application", "Transition",
			shared.ErrConcurrentModification,
			fmt.Sprintf("application is no longer %s", from))
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// List returns applications with pagination, newest first.
func (r *ApplicationRepository) List(ctx context.Context, opts application.ListOptions) ([]*application.MentorApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM mentor_applications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	return r.scanApplications(rows)
}

// ListByStatus returns applications in a given status with pagination.
func (r *ApplicationRepository) ListByStatus(ctx context.Context, status application.Status, opts application.ListOptions) ([]*application.MentorApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM mentor_applications
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, string(status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications by status: %w", err)
	}
	defer rows.Close()

	return r.scanApplications(rows)
}

// Count returns the total number of applications.
func (r *ApplicationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM mentor_applications").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of applications in a given status.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, status application.Status) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM mentor_applications WHERE status = $1",
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications by status: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// exists checks if an application exists by ID.
func (r *ApplicationRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM mentor_applications WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check application existence: %w", err)
	}
	return exists, nil
}

// scanApplication scans a single application from a row.
func (r *ApplicationRepository) scanApplication(row pgx.Row) (*application.MentorApplication, error) {
	var app application.MentorApplication
	var email, specialization, status string

	err := row.Scan(
		&app.ID,
		&app.FullName,
		&email,
		&app.PhoneNumber,
		&specialization,
		&app.YearsOfExperience,
		&app.LinkedInUrl,
		&app.Bio,
		&app.CurrentPosition,
		&app.Company,
		&status,
		&app.TestAttempts,
		&app.RetryAllowedAt,
		&app.FinalScore,
		&app.AccountID,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	app.Email = application.Email(email)
	app.Specialization = application.Specialization(specialization)
	app.Status = application.Status(status)

	return &app, nil
}

// scanApplications scans multiple applications from rows.
func (r *ApplicationRepository) scanApplications(rows pgx.Rows) ([]*application.MentorApplication, error) {
	var apps []*application.MentorApplication

	for rows.Next() {
		var app application.MentorApplication
		var email, specialization, status string

		err := rows.Scan(
			&app.ID,
			&app.FullName,
			&email,
			&app.PhoneNumber,
			&specialization,
			&app.YearsOfExperience,
			&app.LinkedInUrl,
			&app.Bio,
			&app.CurrentPosition,
			&app.Company,
			&status,
			&app.TestAttempts,
			&app.RetryAllowedAt,
			&app.FinalScore,
			&app.AccountID,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}

		app.Email = application.Email(email)
		app.Specialization = application.Specialization(specialization)
		app.Status = application.Status(status)

		apps = append(apps, &app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return apps, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const questionColumns = `
	id, category, text, option_a, option_b, option_c, option_d,
	correct_option, difficulty, explanation, is_active
`

// QuestionRepository implements question.Repository for PostgreSQL.
type QuestionRepository struct {
	conn *Connection
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(conn *Connection) *QuestionRepository {
	return &QuestionRepository{conn: conn}
}

// Create stores a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *question.Question) error {
	query := `
		INSERT INTO questions (
			id, category, text, option_a, option_b, option_c, option_d,
			correct_option, difficulty, explanation, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		q.ID,
		string(q.Category),
		q.Text,
		q.OptionA,
		q.OptionB,
		q.OptionC,
		q.OptionD,
		string(q.CorrectOption),
		string(q.Difficulty),
		q.Explanation,
		q.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	return nil
}

// GetByID returns a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*question.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanQuestion(row)
}

// GetActive returns every active question across all categories. The bank
// is small enough to load whole for selection.
func (r *QuestionRepository) GetActive(ctx context.Context) ([]*question.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE is_active`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active questions: %w", err)
	}
	defer rows.Close()

	return r.scanQuestions(rows)
}

// GetActiveByCategory returns active questions for one category.
func (r *QuestionRepository) GetActiveByCategory(ctx context.Context, category question.Category) ([]*question.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE is_active AND category = $1`

	rows, err := r.conn.Query(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query questions by category: %w", err)
	}
	defer rows.Close()

	return r.scanQuestions(rows)
}

// Update persists changes to a question.
func (r *QuestionRepository) Update(ctx context.Context, q *question.Question) error {
	query := `
		UPDATE questions SET
			category = $1,
			text = $2,
			option_a = $3,
			option_b = $4,
			option_c = $5,
			option_d = $6,
			correct_option = $7,
			difficulty = $8,
			explanation = $9,
			is_active = $10,
			updated_at = $11
		WHERE id = $12
	`

	result, err := r.conn.Exec(ctx, query,
		string(q.Category),
		q.Text,
		q.OptionA,
		q.OptionB,
		q.OptionC,
		q.OptionD,
		string(q.CorrectOption),
		string(q.Difficulty),
		q.Explanation,
		q.IsActive,
		time.Now().UTC(),
		q.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrQuestionNotFound
	}

	return nil
}

// Deactivate retires a question from future selection. Sessions that
// already snapshotted it are unaffected.
func (r *QuestionRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE questions SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.conn.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate question: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrQuestionNotFound
	}

	return nil
}

// CountActive returns the number of active questions.
func (r *QuestionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM questions WHERE is_active").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active questions: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanQuestion scans a single question from a row.
func (r *QuestionRepository) scanQuestion(row pgx.Row) (*question.Question, error) {
	var q question.Question
	var category, correctOption, difficulty string

	err := row.Scan(
		&q.ID,
		&category,
		&q.Text,
		&q.OptionA,
		&q.OptionB,
		&q.OptionC,
		&q.OptionD,
		&correctOption,
		&difficulty,
		&q.Explanation,
		&q.IsActive,
	)

	if IsNoRows(err) {
		return nil, shared.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	q.Category = question.Category(category)
	q.CorrectOption = question.Option(correctOption).Normalized()
	q.Difficulty = question.Difficulty(difficulty)

	return &q, nil
}

// scanQuestions scans multiple questions from rows.
func (r *QuestionRepository) scanQuestions(rows pgx.Rows) ([]*question.Question, error) {
	var questions []*question.Question

	for rows.Next() {
		var q question.Question
		var category, correctOption, difficulty string

		err := rows.Scan(
			&q.ID,
			&category,
			&q.Text,
			&q.OptionA,
			&q.OptionB,
			&q.OptionC,
			&q.OptionD,
			&correctOption,
			&difficulty,
			&q.Explanation,
			&q.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}

		q.Category = question.Category(category)
		q.CorrectOption = question.Option(correctOption).Normalized()
		q.Difficulty = question.Difficulty(difficulty)

		questions = append(questions, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return questions, nil
}

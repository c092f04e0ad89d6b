package question

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for the question bank.
type Repository interface {
	// Create stores a new question.
	Create(ctx context.Context, q *Question) error

	// GetByID returns a question by ID.
	// Returns shared.ErrQuestionNotFound when absent.
	GetByID(ctx context.Context, id string) (*Question, error)

	// GetActive returns every active question across all categories.
	// This is the selection pool; the bank is small enough to load whole.
	GetActive(ctx context.Context) ([]*Question, error)

	// GetActiveByCategory returns active questions for one category.
	GetActiveByCategory(ctx context.Context, category Category) ([]*Question, error)

	// Update persists changes to a question.
	// Returns shared.ErrQuestionNotFound when absent.
	Update(ctx context.Context, q *Question) error

	// Deactivate retires a question from future selection without
	// touching sessions that already snapshotted it.
	Deactivate(ctx context.Context, id string) error

	// CountActive returns the number of active questions.
	CountActive(ctx context.Context) (int, error)
}

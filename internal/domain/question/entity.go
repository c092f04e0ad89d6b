// Package question contains the competency test question bank domain model.
package question

import (
	"errors"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Option identifies one of the four answer choices.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// IsValid checks that the option letter is known.
func (o Option) IsValid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	default:
		return false
	}
}

// Normalized returns the uppercase trimmed form so applicant input like
// " b " grades the same as "B".
func (o Option) Normalized() Option {
	return Option(strings.ToUpper(strings.TrimSpace(string(o))))
}

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks that the difficulty is known.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Category groups questions by subject area.
type Category string

// CategoryGeneral is the fallback pool used when a specialization has no
// mapped category or its pool is too small.
const CategoryGeneral Category = "General"

// ══════════════════════════════════════════════════════════════════════════════
// SPECIALIZATION MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// SpecializationMap resolves an applicant's specialization to a question
// category. Unknown specializations fall back to General.
var specializationCategories = map[string]Category{
	"Software Engineering": "Software Engineering",
	"Data Science":         "Data Science",
	"Machine Learning":     "Data Science",
	"Web Development":      "Web Development",
	"Mobile Development":   "Mobile Development",
	"UI/UX Design":         "Design",
	"DevOps":               "DevOps",
	"Cybersecurity":        "Cybersecurity",
	"Cloud Computing":      "DevOps",
	"Project Management":   "Management",
	"Product Management":   "Management",
	"Business Analysis":    "Management",
	"Digital Marketing":    "Marketing",
}

// CategoryFor returns the question category for a specialization.
func CategoryFor(specialization string) Category {
	if cat, ok := specializationCategories[specialization]; ok {
		return cat
	}
	return CategoryGeneral
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: QUESTION
// ══════════════════════════════════════════════════════════════════════════════

// Question is a single multiple-choice item in the bank.
type Question struct {
	// ID is the internal unique identifier.
	ID string

	// Category groups the question by subject area.
	Category Category

	// Text is the question body shown to the applicant.
	Text string

	// Options maps the four choice letters to their text.
	OptionA string
	OptionB string
	OptionC string
	OptionD string

	// CorrectOption is the letter of the right answer. Never leaves the
	// backend.
	CorrectOption Option

	// Difficulty of the question.
	Difficulty Difficulty

	// Explanation is optional rationale shown in admin tooling.
	Explanation string

	// IsActive controls whether the question can be drawn into new tests.
	// Retired questions stay in the bank for issued-session history.
	IsActive bool
}

// Validation errors.
var (
	ErrEmptyText        = errors.New("question text cannot be empty")
	ErrEmptyOption      = errors.New("all four options are required")
	ErrBadCorrectOption = errors.New("correct option must be A, B, C or D")
	ErrBadDifficulty    = errors.New("unknown difficulty")
	ErrEmptyCategory    = errors.New("category cannot be empty")
)

// Validate checks the question's internal consistency.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyText
	}
	if q.Category == "" {
		return ErrEmptyCategory
	}
	for _, opt := range []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD} {
		if strings.TrimSpace(opt) == "" {
			return ErrEmptyOption
		}
	}
	if !q.CorrectOption.IsValid() {
		return ErrBadCorrectOption
	}
	if !q.Difficulty.IsValid() {
		return ErrBadDifficulty
	}
	return nil
}

// OptionText returns the text of the given choice letter, or "" when the
// letter is unknown.
func (q *Question) OptionText(opt Option) string {
	switch opt.Normalized() {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	default:
		return ""
	}
}

// IsCorrect grades a single answer.
func (q *Question) IsCorrect(answer Option) bool {
	return answer.Normalized() == q.CorrectOption
}

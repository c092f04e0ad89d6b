package question

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePool(category Category, difficulty Difficulty, n int, active bool) []*Question {
	pool := make([]*Question, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, &Question{
			ID:            fmt.Sprintf("%s-%s-%d", category, difficulty, i),
			Category:      category,
			Text:          "sample?",
			OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectOption: OptionA,
			Difficulty:    difficulty,
			IsActive:      active,
		})
	}
	return pool
}

func balancedPool(category Category, perDifficulty int) []*Question {
	var pool []*Question
	pool = append(pool, makePool(category, DifficultyEasy, perDifficulty, true)...)
	pool = append(pool, makePool(category, DifficultyMedium, perDifficulty, true)...)
	pool = append(pool, makePool(category, DifficultyHard, perDifficulty, true)...)
	return pool
}

func TestSelect(t *testing.T) {
	t.Run("draws distinct questions from the category", func(t *testing.T) {
		pool := balancedPool("DevOps", 10)
		selector := NewSelector(1)

		selected, ok := selector.Select(pool, "DevOps", 15)
		require.True(t, ok)
		require.Len(t, selected, 15)

		seen := map[string]bool{}
		for _, q := range selected {
			assert.False(t, seen[q.ID], "question %s drawn twice", q.ID)
			seen[q.ID] = true
			assert.Equal(t, Category("DevOps"), q.Category)
		}
	})

	t.Run("approximates the difficulty mix", func(t *testing.T) {
		pool := balancedPool("DevOps", 20)
		selector := NewSelector(7)

		selected, ok := selector.Select(pool, "DevOps", 16)
		require.True(t, ok)

		counts := map[Difficulty]int{}
		for _, q := range selected {
			counts[q.Difficulty]++
		}
		assert.Equal(t, 4, counts[DifficultyEasy])
		assert.Equal(t, 8, counts[DifficultyMedium])
		assert.Equal(t, 4, counts[DifficultyHard])
	})

	t.Run("falls back outside the category when pool is thin", func(t *testing.T) {
		pool := balancedPool("Design", 2) // 6 questions
		pool = append(pool, balancedPool(CategoryGeneral, 10)...)

		selector := NewSelector(3)
		selected, ok := selector.Select(pool, "Design", 15)
		require.True(t, ok)
		require.Len(t, selected, 15)

		fromCategory := 0
		for _, q := range selected {
			if q.Category == "Design" {
				fromCategory++
			}
		}
		// the whole thin category pool is used before falling back
		assert.Equal(t, 6, fromCategory)
	})

	t.Run("prefers General questions when topping up", func(t *testing.T) {
		pool := balancedPool("Design", 1) // 3 questions
		pool = append(pool, balancedPool(CategoryGeneral, 5)...)
		pool = append(pool, balancedPool("Marketing", 5)...)

		selector := NewSelector(11)
		selected, ok := selector.Select(pool, "Design", 10)
		require.True(t, ok)

		counts := map[Category]int{}
		for _, q := range selected {
			counts[q.Category]++
		}
		assert.Equal(t, 3, counts["Design"])
		assert.Equal(t, 7, counts[CategoryGeneral])
		assert.Zero(t, counts["Marketing"])
	})

	t.Run("skips inactive questions", func(t *testing.T) {
		pool := balancedPool("DevOps", 2)
		pool = append(pool, makePool("DevOps", DifficultyMedium, 20, false)...)

		selector := NewSelector(5)
		_, ok := selector.Select(pool, "DevOps", 10)
		assert.False(t, ok, "inactive questions must not satisfy the draw")
	})

	t.Run("fails when the whole active pool is too small", func(t *testing.T) {
		pool := balancedPool("DevOps", 2) // 6 questions total

		selector := NewSelector(5)
		_, ok := selector.Select(pool, "DevOps", 15)
		assert.False(t, ok)
	})

	t.Run("fills the mix from leftovers when buckets are skewed", func(t *testing.T) {
		// Only hard questions available; the 25/50/25 mix cannot hold but
		// the draw must still complete.
		pool := makePool("DevOps", DifficultyHard, 20, true)

		selector := NewSelector(9)
		selected, ok := selector.Select(pool, "DevOps", 15)
		require.True(t, ok)
		assert.Len(t, selected, 15)
	})

	t.Run("safe for concurrent draws", func(t *testing.T) {
		pool := balancedPool("DevOps", 20)
		selector := NewSelector(1)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					selected, ok := selector.Select(pool, "DevOps", 15)
					assert.True(t, ok)
					assert.Len(t, selected, 15)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		pool := balancedPool("DevOps", 10)

		first, ok := NewSelector(42).Select(pool, "DevOps", 15)
		require.True(t, ok)
		second, ok := NewSelector(42).Select(pool, "DevOps", 15)
		require.True(t, ok)

		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, Category("Data Science"), CategoryFor("Machine Learning"))
	assert.Equal(t, Category("DevOps"), CategoryFor("Cloud Computing"))
	assert.Equal(t, CategoryGeneral, CategoryFor("Other"))
	assert.Equal(t, CategoryGeneral, CategoryFor("Unmapped Thing"))
}

func TestQuestionValidate(t *testing.T) {
	valid := func() *Question {
		return &Question{
			ID:            "q1",
			Category:      "DevOps",
			Text:          "What does CI stand for?",
			OptionA:       "Continuous Integration",
			OptionB:       "Central Index",
			OptionC:       "Code Inspection",
			OptionD:       "Container Image",
			CorrectOption: OptionA,
			Difficulty:    DifficultyEasy,
			IsActive:      true,
		}
	}

	assert.NoError(t, valid().Validate())

	q := valid()
	q.Text = " "
	assert.ErrorIs(t, q.Validate(), ErrEmptyText)

	q = valid()
	q.OptionC = ""
	assert.ErrorIs(t, q.Validate(), ErrEmptyOption)

	q = valid()
	q.CorrectOption = "E"
	assert.ErrorIs(t, q.Validate(), ErrBadCorrectOption)

	q = valid()
	q.Difficulty = "impossible"
	assert.ErrorIs(t, q.Validate(), ErrBadDifficulty)
}

func TestGrading(t *testing.T) {
	q := &Question{CorrectOption: OptionB}

	assert.True(t, q.IsCorrect("B"))
	assert.True(t, q.IsCorrect(" b "))
	assert.False(t, q.IsCorrect("A"))
	assert.False(t, q.IsCorrect(""))
}

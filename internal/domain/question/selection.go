package question

import (
	"math/rand"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION SELECTION
// Draws the question set for a new test session. Selection happens once,
// at issuance; the drawn questions are snapshotted into the session.
// ══════════════════════════════════════════════════════════════════════════════

// DifficultyMix describes the target composition of a test.
type DifficultyMix struct {
	Easy   int
	Medium int
	Hard   int
}

// Total returns the number of questions the mix asks for.
func (m DifficultyMix) Total() int {
	return m.Easy + m.Medium + m.Hard
}

// DefaultMix returns the standard composition for a test of the given
// size, weighted toward medium difficulty (roughly 25/50/25).
func DefaultMix(total int) DifficultyMix {
	easy := total / 4
	hard := total / 4
	return DifficultyMix{
		Easy:   easy,
		Medium: total - easy - hard,
		Hard:   hard,
	}
}

// Selector draws random question sets from a pool. One Selector is shared
// across requests; the mutex serializes draws because *rand.Rand is not
// safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector seeded from the given source. Pass a
// fixed seed in tests for reproducible draws.
func NewSelector(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Select draws `count` distinct active questions for the category,
// approximating the difficulty mix. When the category pool is smaller than
// `count`, the remainder is drawn from the rest of the active pool
// (General first). Returns a shuffled slice, or ok=false when the whole
// active pool cannot satisfy the request.
func (s *Selector) Select(pool []*Question, category Category, count int) ([]*Question, bool) {
	if count <= 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*Question, 0, len(pool))
	for _, q := range pool {
		if q.IsActive {
			active = append(active, q)
		}
	}
	if len(active) < count {
		return nil, false
	}

	inCategory := make([]*Question, 0, len(active))
	fallback := make([]*Question, 0, len(active))
	for _, q := range active {
		if q.Category == category {
			inCategory = append(inCategory, q)
		} else {
			fallback = append(fallback, q)
		}
	}

	selected := s.drawMix(inCategory, count)

	// Category pool exhausted: top up from General, then whatever is left.
	if missing := count - len(selected); missing > 0 {
		general, other := splitGeneral(fallback)
		selected = append(selected, s.drawMix(general, missing)...)
		if missing = count - len(selected); missing > 0 {
			selected = append(selected, s.drawMix(other, missing)...)
		}
	}

	if len(selected) < count {
		return nil, false
	}

	s.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected, true
}

// drawMix takes up to `count` questions from the pool, preferring the
// default difficulty composition and filling gaps with whatever remains.
func (s *Selector) drawMix(pool []*Question, count int) []*Question {
	if count <= 0 || len(pool) == 0 {
		return nil
	}

	byDifficulty := map[Difficulty][]*Question{}
	for _, q := range pool {
		byDifficulty[q.Difficulty] = append(byDifficulty[q.Difficulty], q)
	}
	for _, bucket := range byDifficulty {
		s.rng.Shuffle(len(bucket), func(i, j int) {
			bucket[i], bucket[j] = bucket[j], bucket[i]
		})
	}

	mix := DefaultMix(count)
	picked := make([]*Question, 0, count)
	take := func(d Difficulty, n int) {
		bucket := byDifficulty[d]
		if n > len(bucket) {
			n = len(bucket)
		}
		picked = append(picked, bucket[:n]...)
		byDifficulty[d] = bucket[n:]
	}

	take(DifficultyEasy, mix.Easy)
	take(DifficultyMedium, mix.Medium)
	take(DifficultyHard, mix.Hard)

	// Mix unsatisfiable: backfill from leftover buckets in medium-easy-hard
	// order until count is reached or the pool runs dry.
	for _, d := range []Difficulty{DifficultyMedium, DifficultyEasy, DifficultyHard} {
		if len(picked) >= count {
			break
		}
		take(d, count-len(picked))
	}

	return picked
}

// splitGeneral separates the fallback pool into General questions and
// everything else, so General is consumed before other categories leak
// into a specialized test.
func splitGeneral(pool []*Question) (general, other []*Question) {
	for _, q := range pool {
		if q.Category == CategoryGeneral {
			general = append(general, q)
		} else {
			other = append(other, q)
		}
	}
	return general, other
}

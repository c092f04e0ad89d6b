package testsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
)

func snapshots(correct ...question.Option) []QuestionSnapshot {
	out := make([]QuestionSnapshot, len(correct))
	for i, c := range correct {
		out[i] = QuestionSnapshot{
			QuestionID:    "q" + string(rune('1'+i)),
			Category:      "DevOps",
			Text:          "sample?",
			OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectOption: c,
			Difficulty:    question.DifficultyMedium,
		}
	}
	return out
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	token, err := NewToken()
	require.NoError(t, err)

	s, err := NewSession("sess-1", "app-1", token,
		snapshots("A", "B", "C", "D"), 20*time.Minute, 48*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	return s
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)

	assert.Equal(t, StatusPending, s.Status)
	assert.Nil(t, s.StartedAt)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), s.ExpiresAt, time.Minute)

	t.Run("rejects empty question set", func(t *testing.T) {
		token, _ := NewToken()
		_, err := NewSession("s", "a", token, nil, time.Minute, time.Hour, time.Now())
		assert.ErrorIs(t, err, ErrNoQuestions)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		_, err := NewSession("s", "a", "short", snapshots("A"), time.Minute, time.Hour, time.Now())
		assert.Error(t, err)
	})
}

func TestStart(t *testing.T) {
	t.Run("fixes the working deadline", func(t *testing.T) {
		s := newTestSession(t)
		now := time.Now().UTC()

		require.NoError(t, s.Start(now))
		assert.Equal(t, StatusInProgress, s.Status)
		require.NotNil(t, s.StartedAt)
		assert.Equal(t, now.Add(20*time.Minute), s.EffectiveDeadline())
	})

	t.Run("refused after link expiry", func(t *testing.T) {
		s := newTestSession(t)
		err := s.Start(s.ExpiresAt.Add(time.Second))
		assert.ErrorIs(t, err, ErrLinkExpired)
		assert.Equal(t, StatusPending, s.Status)
	})

	t.Run("refused once already started", func(t *testing.T) {
		s := newTestSession(t)
		require.NoError(t, s.Start(time.Now()))
		assert.ErrorIs(t, s.Start(time.Now()), ErrNotPending)
	})
}

func TestEffectiveDeadline(t *testing.T) {
	t.Run("link expiry governs before start", func(t *testing.T) {
		s := newTestSession(t)
		assert.Equal(t, s.ExpiresAt, s.EffectiveDeadline())
	})

	t.Run("time limit governs after a prompt start", func(t *testing.T) {
		s := newTestSession(t)
		now := time.Now().UTC()
		require.NoError(t, s.Start(now))
		assert.True(t, s.EffectiveDeadline().Before(s.ExpiresAt))
	})

	t.Run("link expiry wins when started near the end of the window", func(t *testing.T) {
		s := newTestSession(t)
		late := s.ExpiresAt.Add(-5 * time.Minute) // limit is 20m
		require.NoError(t, s.Start(late))
		assert.Equal(t, s.ExpiresAt, s.EffectiveDeadline())
	})
}

func TestGrade(t *testing.T) {
	started := func(t *testing.T) (*Session, time.Time) {
		t.Helper()
		s := newTestSession(t)
		now := time.Now().UTC()
		require.NoError(t, s.Start(now))
		return s, now
	}

	t.Run("scores aligned answers", func(t *testing.T) {
		s, now := started(t)

		err := s.Grade([]question.Option{"A", "B", "D", "D"}, now.Add(time.Minute), time.Minute)
		require.NoError(t, err)

		assert.Equal(t, StatusCompleted, s.Status)
		assert.Equal(t, 3, s.CorrectCount)
		assert.Equal(t, 75.0, s.Score)
		require.NotNil(t, s.CompletedAt)
	})

	t.Run("normalizes answer case", func(t *testing.T) {
		s, now := started(t)

		require.NoError(t, s.Grade([]question.Option{" a ", "b", "x", ""}, now, time.Minute))
		assert.Equal(t, 2, s.CorrectCount)
		assert.Equal(t, 50.0, s.Score)
	})

	t.Run("rejects misaligned answers", func(t *testing.T) {
		s, now := started(t)

		err := s.Grade([]question.Option{"A", "B"}, now, time.Minute)
		assert.ErrorIs(t, err, ErrAnswerCountMismatch)
		assert.Equal(t, StatusInProgress, s.Status)
	})

	t.Run("refused past the deadline plus grace", func(t *testing.T) {
		s, now := started(t)

		late := now.Add(20*time.Minute + 61*time.Second)
		err := s.Grade([]question.Option{"A", "B", "C", "D"}, late, time.Minute)
		assert.ErrorIs(t, err, ErrDeadlinePassed)
	})

	t.Run("allowed inside the grace window", func(t *testing.T) {
		s, now := started(t)

		justLate := now.Add(20*time.Minute + 30*time.Second)
		err := s.Grade([]question.Option{"A", "B", "C", "D"}, justLate, time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, 100.0, s.Score)
	})

	t.Run("link expiry is a hard cutoff, grace or not", func(t *testing.T) {
		token, err := NewToken()
		require.NoError(t, err)

		// A 10m validity window binds before the 20m working budget.
		issued := time.Now().UTC()
		s, err := NewSession("sess-2", "app-1", token,
			snapshots("A", "B", "C", "D"), 20*time.Minute, 10*time.Minute, issued)
		require.NoError(t, err)
		require.NoError(t, s.Start(issued))

		err = s.Grade([]question.Option{"A", "B", "C", "D"}, s.ExpiresAt.Add(30*time.Second), time.Minute)
		assert.ErrorIs(t, err, ErrDeadlinePassed)
		assert.Equal(t, StatusInProgress, s.Status)
	})

	t.Run("refused before start", func(t *testing.T) {
		s := newTestSession(t)
		err := s.Grade([]question.Option{"A", "B", "C", "D"}, time.Now(), time.Minute)
		assert.ErrorIs(t, err, ErrNotInProgress)
	})

	t.Run("refused after completion", func(t *testing.T) {
		s, now := started(t)
		require.NoError(t, s.Grade([]question.Option{"A", "B", "C", "D"}, now, time.Minute))

		err := s.Grade([]question.Option{"A", "A", "A", "A"}, now, time.Minute)
		assert.ErrorIs(t, err, ErrNotInProgress)
		assert.Equal(t, 100.0, s.Score, "completed score must never change")
	})
}

func TestComputeScore(t *testing.T) {
	assert.Equal(t, 0.0, ComputeScore(0, 15))
	assert.Equal(t, 100.0, ComputeScore(15, 15))
	assert.Equal(t, 67.0, ComputeScore(10, 15)) // 66.67 rounds up
	assert.Equal(t, 73.0, ComputeScore(11, 15))
	assert.Equal(t, 0.0, ComputeScore(0, 0))
}

func TestExpire(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Expire())
	assert.Equal(t, StatusExpired, s.Status)

	assert.Error(t, s.Expire(), "terminal sessions cannot expire twice")
}

func TestIsOverdue(t *testing.T) {
	s := newTestSession(t)

	assert.False(t, s.IsOverdue(time.Now()))
	assert.True(t, s.IsOverdue(s.ExpiresAt.Add(time.Second)))

	require.NoError(t, s.Start(time.Now().UTC()))
	assert.True(t, s.IsOverdue(time.Now().Add(21*time.Minute)))

	require.NoError(t, s.Expire())
	assert.False(t, s.IsOverdue(time.Now().Add(100*time.Hour)), "terminal sessions are never overdue")
}

func TestApplicantView(t *testing.T) {
	s := newTestSession(t)
	view := s.ApplicantView()

	require.Len(t, view, 4)
	assert.Equal(t, 1, view[0].Number)
	assert.Equal(t, "sample?", view[0].Text)
}

func TestSnapshotImmutability(t *testing.T) {
	bank := &question.Question{
		ID:            "q-bank",
		Category:      "DevOps",
		Text:          "original text",
		OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
		CorrectOption: question.OptionA,
		Difficulty:    question.DifficultyEasy,
		IsActive:      true,
	}

	snap := Snapshot(bank)

	bank.Text = "edited after issuance"
	bank.CorrectOption = question.OptionD
	bank.IsActive = false

	assert.Equal(t, "original text", snap.Text)
	assert.Equal(t, question.OptionA, snap.CorrectOption)
}

func TestToken(t *testing.T) {
	t.Run("format and entropy", func(t *testing.T) {
		seen := map[Token]bool{}
		for i := 0; i < 100; i++ {
			token, err := NewToken()
			require.NoError(t, err)
			assert.Len(t, string(token), 40)
			assert.True(t, token.IsWellFormed())
			assert.False(t, seen[token], "token collision")
			seen[token] = true
		}
	})

	t.Run("well-formedness", func(t *testing.T) {
		assert.False(t, Token("").IsWellFormed())
		assert.False(t, Token("zzzz").IsWellFormed())
		assert.False(t, Token("g123456789012345678901234567890123456789").IsWellFormed())
	})

	t.Run("redacted in logs", func(t *testing.T) {
		token, _ := NewToken()
		assert.NotContains(t, token.String(), string(token))
	})
}

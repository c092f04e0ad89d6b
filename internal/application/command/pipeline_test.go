package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixture: the whole pipeline wired over in-memory fakes with a fixed clock.
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	mu  sync.Mutex
	now time.Time

	apps      *memAppRepo
	sessions  *memSessionRepo
	questions *memQuestionRepo
	bus       *recordingBus
	email     *stubEmail
	prov      *stubProvisioner

	submit *SubmitApplicationHandler
	send   *SendTestHandler
	open   *OpenSessionHandler
	grade  *GradeSubmissionHandler
	retry  *RequestRetryHandler
	expire *ExpireSessionsHandler
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func questionPool(category question.Category, n int) []*question.Question {
	difficulties := []question.Difficulty{
		question.DifficultyEasy, question.DifficultyMedium, question.DifficultyHard,
	}
	pool := make([]*question.Question, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, &question.Question{
			ID:            fmt.Sprintf("%s-q%d", category, i),
			Category:      category,
			Text:          fmt.Sprintf("question %d?", i),
			OptionA:       "right", OptionB: "wrong", OptionC: "wrong", OptionD: "wrong",
			CorrectOption: question.OptionA,
			Difficulty:    difficulties[i%3],
			IsActive:      true,
		})
	}
	return pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		now:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		apps:      newMemAppRepo(),
		sessions:  newMemSessionRepo(),
		questions: newMemQuestionRepo(questionPool("Software Engineering", 30)...),
		bus:       &recordingBus{},
		email:     &stubEmail{},
		prov:      &stubProvisioner{},
	}

	ids := &seqIDs{}
	sessionPolicy := testsession.DefaultPolicy()
	retryPolicy := application.DefaultRetryPolicy()

	decider := NewDecideApplicationHandler(f.apps, retryPolicy, f.prov, f.email, f.bus).
		WithClock(f.clock)

	f.submit = NewSubmitApplicationHandler(f.apps, ids, f.bus)
	f.send = NewSendTestHandler(
		f.apps, f.sessions, f.questions, question.NewSelector(1),
		sessionPolicy, ids, f.email, f.bus,
	).WithClock(f.clock)
	f.open = NewOpenSessionHandler(f.sessions, nil, f.bus).WithClock(f.clock)
	f.grade = NewGradeSubmissionHandler(f.sessions, f.apps, decider, sessionPolicy, f.bus).
		WithClock(f.clock)
	f.retry = NewRequestRetryHandler(f.apps, f.bus).WithClock(f.clock)
	f.expire = NewExpireSessionsHandler(f.sessions, f.bus).WithClock(f.clock)

	return f
}

func (f *fixture) submitApplication(t *testing.T, email string) string {
	t.Helper()
	res, err := f.submit.Handle(context.Background(), SubmitApplicationCommand{
		FullName:          "Dana Seri",
		Email:             email,
		Specialization:    "Software Engineering",
		YearsOfExperience: 8,
	})
	require.NoError(t, err)
	return res.ApplicationID
}

func (f *fixture) issueTest(t *testing.T, appID string) *SendTestResult {
	t.Helper()
	res, err := f.send.Handle(context.Background(), SendTestCommand{
		ApplicationID: appID,
		IsAdmin:       true,
	})
	require.NoError(t, err)
	return res
}

func answers(correct, total int) []string {
	out := make([]string, total)
	for i := range out {
		if i < correct {
			out[i] = "A"
		} else {
			out[i] = "B"
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Intake
// ─────────────────────────────────────────────────────────────────────────────

func TestSubmitApplication(t *testing.T) {
	t.Run("creates a pending application", func(t *testing.T) {
		f := newFixture(t)
		id := f.submitApplication(t, "dana@example.com")

		app, err := f.apps.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, application.StatusPending, app.Status)
		assert.Contains(t, f.bus.types(), shared.EventApplicationSubmitted)
	})

	t.Run("second active application for the same email is refused", func(t *testing.T) {
		f := newFixture(t)
		f.submitApplication(t, "dana@example.com")

		_, err := f.submit.Handle(context.Background(), SubmitApplicationCommand{
			FullName:       "Dana Again",
			Email:          "Dana@Example.COM", // normalization collapses case
			Specialization: "Data Science",
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("rejects invalid data", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.submit.Handle(context.Background(), SubmitApplicationCommand{
			FullName:       "Dana",
			Email:          "dana@example.com",
			Specialization: "Fortune Telling",
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Issuing tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSendTest(t *testing.T) {
	t.Run("issues a snapshotted session and moves the application", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")

		res := f.issueTest(t, appID)
		assert.Equal(t, 15, res.TotalQuestions)
		assert.True(t, res.Token.IsWellFormed())
		assert.Equal(t, f.clock().Add(48*time.Hour), res.ExpiresAt)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusTestSent, app.Status)

		session, err := f.sessions.GetByToken(context.Background(), res.Token)
		require.NoError(t, err)
		assert.Len(t, session.Questions, 15)
		assert.Equal(t, testsession.StatusPending, session.Status)
	})

	t.Run("requires an administrator", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")

		_, err := f.send.Handle(context.Background(), SendTestCommand{ApplicationID: appID})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("refuses while a session is live", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		f.issueTest(t, appID)

		_, err := f.send.Handle(context.Background(), SendTestCommand{ApplicationID: appID, IsAdmin: true})
		assert.ErrorIs(t, err, shared.ErrSessionAlreadyActive)
	})

	t.Run("replaces a session that went stale", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		first := f.issueTest(t, appID)

		f.advance(49 * time.Hour)

		res := f.issueTest(t, appID)
		assert.True(t, res.ReplacedExpiredSession)

		old, _ := f.sessions.GetByID(context.Background(), first.SessionID)
		assert.Equal(t, testsession.StatusExpired, old.Status)
	})

	t.Run("fails when the bank cannot fill a test", func(t *testing.T) {
		f := newFixture(t)
		f.questions = newMemQuestionRepo(questionPool("Software Engineering", 5)...)
		f.send.questions = f.questions

		appID := f.submitApplication(t, "dana@example.com")
		_, err := f.send.Handle(context.Background(), SendTestCommand{ApplicationID: appID, IsAdmin: true})
		assert.ErrorIs(t, err, shared.ErrInsufficientQuestions)
	})

	t.Run("refuses terminal applications", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		failTest(t, f, appID, 3) // exhausts all attempts

		_, err := f.send.Handle(context.Background(), SendTestCommand{ApplicationID: appID, IsAdmin: true})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

// failTest runs `rounds` complete failing attempts through the pipeline.
func failTest(t *testing.T, f *fixture, appID string, rounds int) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		res := f.issueTest(t, appID)
		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(res.Token)})
		require.NoError(t, err)
		_, err = f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token:   string(res.Token),
			Answers: answers(0, 15),
		})
		require.NoError(t, err)
		f.advance(400 * time.Hour) // past any cooldown
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Opening sessions
// ─────────────────────────────────────────────────────────────────────────────

func TestOpenSession(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *SendTestResult) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		return f, f.issueTest(t, appID)
	}

	t.Run("first access starts the clock and hides answers", func(t *testing.T) {
		f, issued := setup(t)

		res, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)

		assert.True(t, res.FirstAccess)
		assert.Len(t, res.Questions, 15)
		assert.Equal(t, f.clock().Add(20*time.Minute), res.Deadline)

		session, _ := f.sessions.GetByID(context.Background(), res.SessionID)
		assert.Equal(t, testsession.StatusInProgress, session.Status)
	})

	t.Run("reopening does not restart the clock", func(t *testing.T) {
		f, issued := setup(t)

		first, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)

		f.advance(5 * time.Minute)

		second, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)
		assert.False(t, second.FirstAccess)
		assert.Equal(t, first.Deadline, second.Deadline)
		assert.Less(t, second.Remaining, first.Remaining)
	})

	t.Run("expired link is refused and lazily expired", func(t *testing.T) {
		f, issued := setup(t)
		f.advance(49 * time.Hour)

		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		assert.ErrorIs(t, err, shared.ErrExpired)

		session, _ := f.sessions.GetByID(context.Background(), issued.SessionID)
		assert.Equal(t, testsession.StatusExpired, session.Status)
	})

	t.Run("overdue running session is refused", func(t *testing.T) {
		f, issued := setup(t)

		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)

		f.advance(25 * time.Minute)

		_, err = f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		assert.ErrorIs(t, err, shared.ErrExpired)
	})

	t.Run("completed session is refused", func(t *testing.T) {
		f, issued := setup(t)
		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)
		_, err = f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(15, 15),
		})
		require.NoError(t, err)

		_, err = f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	})

	t.Run("unknown and malformed tokens look identical", func(t *testing.T) {
		f, _ := setup(t)

		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: "nonsense"})
		assert.ErrorIs(t, err, shared.ErrNotFound)

		otherToken, _ := testsession.NewToken()
		_, err = f.open.Handle(context.Background(), OpenSessionCommand{Token: string(otherToken)})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Grading & decisions
// ─────────────────────────────────────────────────────────────────────────────

func TestGradeSubmission(t *testing.T) {
	setup := func(t *testing.T) (*fixture, string, *SendTestResult) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		issued := f.issueTest(t, appID)
		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)
		return f, appID, issued
	}

	t.Run("passing score approves and provisions", func(t *testing.T) {
		f, appID, issued := setup(t)

		res, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(12, 15),
		})
		require.NoError(t, err)

		assert.Equal(t, 12, res.CorrectCount)
		assert.Equal(t, 80.0, res.Score)
		require.NotNil(t, res.Decision)
		assert.True(t, res.Decision.Approved)
		assert.NotEmpty(t, res.Decision.AccountID)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusApproved, app.Status)
		assert.Equal(t, res.Decision.AccountID, app.AccountID)
		assert.Equal(t, 1, f.prov.calls)
	})

	t.Run("failing score rejects with a cooldown", func(t *testing.T) {
		f, appID, issued := setup(t)

		res, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(9, 15), // 60%
		})
		require.NoError(t, err)

		require.NotNil(t, res.Decision)
		assert.False(t, res.Decision.Approved)
		assert.Equal(t, application.StatusRejectedRetryable, res.Decision.Status)
		require.NotNil(t, res.Decision.RetryAllowedAt)
		assert.Equal(t, f.clock().Add(168*time.Hour), *res.Decision.RetryAllowedAt)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, 1, app.TestAttempts)
	})

	t.Run("very low score doubles the cooldown", func(t *testing.T) {
		f, _, issued := setup(t)

		res, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(4, 15), // 27%
		})
		require.NoError(t, err)
		require.NotNil(t, res.Decision.RetryAllowedAt)
		assert.Equal(t, f.clock().Add(336*time.Hour), *res.Decision.RetryAllowedAt)
	})

	t.Run("third failure is terminal", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		failTest(t, f, appID, 3)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusRejectedTerminal, app.Status)
		assert.Equal(t, 3, app.TestAttempts)
		assert.Nil(t, app.RetryAllowedAt)
	})

	t.Run("second submission is refused and the score stands", func(t *testing.T) {
		f, _, issued := setup(t)

		first, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(12, 15),
		})
		require.NoError(t, err)

		_, err = f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(15, 15),
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)

		session, _ := f.sessions.GetByID(context.Background(), issued.SessionID)
		assert.Equal(t, first.Score, session.Score)
	})

	t.Run("concurrent submissions settle on exactly one winner", func(t *testing.T) {
		f, _, issued := setup(t)

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
					Token: string(issued.Token), Answers: answers(15, 15),
				})
				results[i] = err
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("misaligned answer sheet is refused without grading", func(t *testing.T) {
		f, appID, issued := setup(t)

		_, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(5, 10),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusTestSent, app.Status)
	})

	t.Run("submission after the deadline is refused", func(t *testing.T) {
		f, _, issued := setup(t)
		f.advance(22 * time.Minute) // limit 20m + grace 1m

		_, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(15, 15),
		})
		assert.ErrorIs(t, err, shared.ErrExpired)

		session, _ := f.sessions.GetByID(context.Background(), issued.SessionID)
		assert.Equal(t, testsession.StatusExpired, session.Status)
	})

	t.Run("submission inside the grace window counts", func(t *testing.T) {
		f, _, issued := setup(t)
		f.advance(20*time.Minute + 30*time.Second)

		res, err := f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(15, 15),
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, res.Score)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Retry
// ─────────────────────────────────────────────────────────────────────────────

func TestRequestRetry(t *testing.T) {
	rejectedFixture := func(t *testing.T) (*fixture, string) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		issued := f.issueTest(t, appID)
		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)
		_, err = f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(9, 15),
		})
		require.NoError(t, err)
		return f, appID
	}

	t.Run("refused while the cooldown runs", func(t *testing.T) {
		f, _ := rejectedFixture(t)
		f.advance(100 * time.Hour) // cooldown is 168h

		_, err := f.retry.Handle(context.Background(), RequestRetryCommand{Email: "dana@example.com"})
		assert.ErrorIs(t, err, shared.ErrTooEarly)
	})

	t.Run("re-opens the application after the cooldown", func(t *testing.T) {
		f, appID := rejectedFixture(t)
		f.advance(169 * time.Hour)

		res, err := f.retry.Handle(context.Background(), RequestRetryCommand{Email: "dana@example.com"})
		require.NoError(t, err)
		assert.Equal(t, application.StatusPending, res.Status)

		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusPending, app.Status)
		assert.Nil(t, app.RetryAllowedAt)
		assert.Equal(t, 1, app.TestAttempts)
	})

	t.Run("sending a test after the cooldown implies the retry", func(t *testing.T) {
		f, appID := rejectedFixture(t)
		f.advance(169 * time.Hour)

		f.issueTest(t, appID)
		app, _ := f.apps.GetByID(context.Background(), appID)
		assert.Equal(t, application.StatusTestSent, app.Status)
	})

	t.Run("sending a test during the cooldown is refused", func(t *testing.T) {
		f, appID := rejectedFixture(t)
		f.advance(time.Hour)

		_, err := f.send.Handle(context.Background(), SendTestCommand{ApplicationID: appID, IsAdmin: true})
		assert.ErrorIs(t, err, shared.ErrTooEarly)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Expiry sweep
// ─────────────────────────────────────────────────────────────────────────────

func TestExpireSessions(t *testing.T) {
	t.Run("expires overdue sessions and leaves the rest", func(t *testing.T) {
		f := newFixture(t)

		overdueApp := f.submitApplication(t, "late@example.com")
		overdue := f.issueTest(t, overdueApp)

		f.advance(49 * time.Hour)

		freshApp := f.submitApplication(t, "fresh@example.com")
		fresh := f.issueTest(t, freshApp)

		res, err := f.expire.Handle(context.Background(), ExpireSessionsCommand{BatchLimit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Expired)
		assert.Zero(t, res.Lost)

		expired, _ := f.sessions.GetByID(context.Background(), overdue.SessionID)
		assert.Equal(t, testsession.StatusExpired, expired.Status)

		live, _ := f.sessions.GetByID(context.Background(), fresh.SessionID)
		assert.Equal(t, testsession.StatusPending, live.Status)

		assert.Contains(t, f.bus.types(), shared.EventSessionExpired)
	})

	t.Run("completed sessions are never swept", func(t *testing.T) {
		f := newFixture(t)
		appID := f.submitApplication(t, "dana@example.com")
		issued := f.issueTest(t, appID)
		_, err := f.open.Handle(context.Background(), OpenSessionCommand{Token: string(issued.Token)})
		require.NoError(t, err)
		_, err = f.grade.Handle(context.Background(), GradeSubmissionCommand{
			Token: string(issued.Token), Answers: answers(15, 15),
		})
		require.NoError(t, err)

		f.advance(100 * time.Hour)

		res, err := f.expire.Handle(context.Background(), ExpireSessionsCommand{})
		require.NoError(t, err)
		assert.Zero(t, res.Expired)

		session, _ := f.sessions.GetByID(context.Background(), issued.SessionID)
		assert.Equal(t, testsession.StatusCompleted, session.Status)
		assert.Equal(t, 100.0, session.Score)
	})
}

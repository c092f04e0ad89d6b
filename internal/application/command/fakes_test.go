package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory application repository
// ─────────────────────────────────────────────────────────────────────────────

type memAppRepo struct {
	mu   sync.Mutex
	apps map[string]*application.MentorApplication
}

func newMemAppRepo() *memAppRepo {
	return &memAppRepo{apps: make(map[string]*application.MentorApplication)}
}

func (r *memAppRepo) Create(_ context.Context, app *application.MentorApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.apps {
		if existing.Email == app.Email && existing.Status.IsActive() {
			return shared.ErrDuplicateApplication
		}
	}
	r.apps[app.ID] = app.Clone()
	return nil
}

func (r *memAppRepo) GetByID(_ context.Context, id string) (*application.MentorApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, shared.ErrApplicationNotFound
	}
	return app.Clone(), nil
}

func (r *memAppRepo) GetActiveByEmail(_ context.Context, email application.Email) (*application.MentorApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if app.Email == email && app.Status.IsActive() {
			return app.Clone(), nil
		}
	}
	return nil, shared.ErrApplicationNotFound
}

func (r *memAppRepo) GetLatestByEmail(_ context.Context, email application.Email) (*application.MentorApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *application.MentorApplication
	for _, app := range r.apps {
		if app.Email != email {
			continue
		}
		if latest == nil || app.CreatedAt.After(latest.CreatedAt) {
			latest = app
		}
	}
	if latest == nil {
		return nil, shared.ErrApplicationNotFound
	}
	return latest.Clone(), nil
}

func (r *memAppRepo) Update(_ context.Context, app *application.MentorApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return shared.ErrApplicationNotFound
	}
	r.apps[app.ID] = app.Clone()
	return nil
}

func (r *memAppRepo) TransitionStatus(_ context.Context, id string, from, to application.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return shared.ErrApplicationNotFound
	}
	if app.Status != from {
		return shared.WrapError("application", "Transition", shared.ErrConcurrentModification,
			"status changed concurrently", fmt.Errorf("expected %s, found %s", from, app.Status))
	}
	app.Status = to
	return nil
}

func (r *memAppRepo) List(_ context.Context, opts application.ListOptions) ([]*application.MentorApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*application.MentorApplication, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app.Clone())
	}
	return paginate(out, opts), nil
}

func (r *memAppRepo) ListByStatus(_ context.Context, status application.Status, opts application.ListOptions) ([]*application.MentorApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*application.MentorApplication, 0)
	for _, app := range r.apps {
		if app.Status == status {
			out = append(out, app.Clone())
		}
	}
	return paginate(out, opts), nil
}

func (r *memAppRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps), nil
}

func (r *memAppRepo) CountByStatus(_ context.Context, status application.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, app := range r.apps {
		if app.Status == status {
			n++
		}
	}
	return n, nil
}

func paginate(apps []*application.MentorApplication, opts application.ListOptions) []*application.MentorApplication {
	if opts.Offset >= len(apps) {
		return nil
	}
	apps = apps[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(apps) {
		apps = apps[:opts.Limit]
	}
	return apps
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory session repository
// ─────────────────────────────────────────────────────────────────────────────

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*testsession.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*testsession.Session)}
}

func cloneSession(s *testsession.Session) *testsession.Session {
	clone := *s
	clone.Questions = append([]testsession.QuestionSnapshot(nil), s.Questions...)
	clone.Answers = append([]question.Option(nil), s.Answers...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		clone.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

func (r *memSessionRepo) Create(_ context.Context, session *testsession.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.ApplicationID == session.ApplicationID && !existing.Status.IsTerminal() {
			return shared.ErrSessionAlreadyActive
		}
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*testsession.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *memSessionRepo) GetByToken(_ context.Context, token testsession.Token) (*testsession.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Token == token {
			return cloneSession(s), nil
		}
	}
	return nil, shared.ErrSessionNotFound
}

func (r *memSessionRepo) GetActiveByApplication(_ context.Context, applicationID string) (*testsession.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ApplicationID == applicationID && !s.Status.IsTerminal() {
			return cloneSession(s), nil
		}
	}
	return nil, shared.ErrSessionNotFound
}

func (r *memSessionRepo) StartIfPending(_ context.Context, id string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return shared.ErrSessionNotFound
	}
	if s.Status != testsession.StatusPending {
		return shared.WrapError("testsession", "Start", shared.ErrConcurrentModification,
			"session no longer pending", nil)
	}
	t := startedAt.UTC()
	s.StartedAt = &t
	s.Status = testsession.StatusInProgress
	return nil
}

func (r *memSessionRepo) CompleteIfInProgress(_ context.Context, session *testsession.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok {
		return shared.ErrSessionNotFound
	}
	if stored.Status != testsession.StatusInProgress {
		return shared.WrapError("testsession", "Complete", shared.ErrConcurrentModification,
			"session no longer in progress", nil)
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memSessionRepo) ExpireIfActive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return shared.ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		return shared.WrapError("testsession", "Expire", shared.ErrConcurrentModification,
			"session already terminal", nil)
	}
	s.Status = testsession.StatusExpired
	return nil
}

func (r *memSessionRepo) FindOverdue(_ context.Context, now time.Time, limit int) ([]*testsession.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*testsession.Session, 0)
	for _, s := range r.sessions {
		if len(out) >= limit {
			break
		}
		if s.IsOverdue(now) {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory question repository
// ─────────────────────────────────────────────────────────────────────────────

type memQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]*question.Question
}

func newMemQuestionRepo(qs ...*question.Question) *memQuestionRepo {
	r := &memQuestionRepo{questions: make(map[string]*question.Question)}
	for _, q := range qs {
		copied := *q
		r.questions[q.ID] = &copied
	}
	return r
}

func (r *memQuestionRepo) Create(_ context.Context, q *question.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *q
	r.questions[q.ID] = &copied
	return nil
}

func (r *memQuestionRepo) GetByID(_ context.Context, id string) (*question.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, shared.ErrQuestionNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *memQuestionRepo) GetActive(_ context.Context) ([]*question.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*question.Question, 0, len(r.questions))
	for _, q := range r.questions {
		if q.IsActive {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) GetActiveByCategory(_ context.Context, category question.Category) ([]*question.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*question.Question, 0)
	for _, q := range r.questions {
		if q.IsActive && q.Category == category {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) Update(_ context.Context, q *question.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[q.ID]; !ok {
		return shared.ErrQuestionNotFound
	}
	copied := *q
	r.questions[q.ID] = &copied
	return nil
}

func (r *memQuestionRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return shared.ErrQuestionNotFound
	}
	q.IsActive = false
	return nil
}

func (r *memQuestionRepo) CountActive(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.questions {
		if q.IsActive {
			n++
		}
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stub services
// ─────────────────────────────────────────────────────────────────────────────

type stubEmail struct {
	mu          sync.Mutex
	invitations int
	approvals   int
	rejections  int
}

func (s *stubEmail) SendTestInvitation(_ context.Context, _, _ string, _ testsession.Token, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations++
	return nil
}

func (s *stubEmail) SendApprovalNotice(_ context.Context, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals++
	return nil
}

func (s *stubEmail) SendRejectionNotice(_ context.Context, _, _ string, _ float64, _ *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections++
	return nil
}

type stubProvisioner struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (s *stubProvisioner) ProvisionMentor(_ context.Context, email, _, _ string) (*ProvisionedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.calls++
	return &ProvisionedAccount{
		AccountID:    "acct-" + email,
		TempPassword: "temp-secret",
		Created:      true,
	}, nil
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType()
	}
	return out
}

// Package scheduler runs the background jobs of the vetting pipeline,
// chiefly the periodic sweep that expires overdue test sessions.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

// Job is one unit of background work.
type Job interface {
	// Name must be unique within a scheduler.
	Name() string

	// Run does the work. The context ends when the scheduler stops.
	Run(ctx context.Context) error

	// Description is shown in job listings and logs.
	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult records one execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

var (
	ErrNilJob                  = fmt.Errorf("job cannot be nil")
	ErrNilSchedule             = fmt.Errorf("schedule cannot be nil")
	ErrJobAlreadyExists        = fmt.Errorf("job already exists")
	ErrJobNotFound             = fmt.Errorf("job not found")
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")
	ErrSchedulerNotRunning     = fmt.Errorf("scheduler is not running")
)

// SchedulerConfig tunes a Scheduler.
type SchedulerConfig struct {
	Logger *logger.Logger

	// TickRate is the polling granularity for due jobs; schedules finer
	// than the tick rate cannot be honored.
	TickRate time.Duration

	EnableMetrics bool
}

// DefaultSchedulerConfig polls once a second with metrics on.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{TickRate: time.Second, EnableMetrics: true}
}

// jobEntry pairs a Job with its schedule and bookkeeping.
type jobEntry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// Scheduler polls registered jobs and runs the due ones, each in its own
// goroutine. Stop waits for in-flight runs to finish.
type Scheduler struct {
	mu sync.RWMutex

	log      *logger.Logger
	tickRate time.Duration

	jobs      map[string]*jobEntry
	lastRuns  map[string]*JobResult
	running   bool
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *SchedulerMetrics
}

// NewScheduler builds a Scheduler from config.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.TickRate <= 0 {
		config.TickRate = time.Second
	}

	s := &Scheduler{
		log:      config.Logger.With(logger.Component("scheduler")),
		tickRate: config.TickRate,
		jobs:     make(map[string]*jobEntry),
		lastRuns: make(map[string]*JobResult),
	}
	if config.EnableMetrics {
		s.metrics = NewSchedulerMetrics()
	}
	return s
}

// Register adds a job under its own name. The first run lands at the
// schedule's next point after now.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	entry := &jobEntry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().UTC()),
	}
	s.jobs[name] = entry

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("description", job.Description()),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", entry.nextRun),
	)
	return nil
}

// DisableJob stops scheduling the named job; in-flight runs finish.
func (s *Scheduler) DisableJob(jobName string) error {
	return s.setEnabled(jobName, false)
}

// EnableJob resumes scheduling the named job from now.
func (s *Scheduler) EnableJob(jobName string) error {
	return s.setEnabled(jobName, true)
}

func (s *Scheduler) setEnabled(jobName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	entry.enabled = enabled
	if enabled {
		entry.nextRun = entry.schedule.Next(time.Now().UTC())
		s.log.Info("job enabled", logger.String("job", jobName), logger.Time("next_run", entry.nextRun))
	} else {
		s.log.Info("job disabled", logger.String("job", jobName))
	}
	return nil
}

// Start launches the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", logger.Int("jobs_count", jobCount))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.tickRate)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.dispatchDue()
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.log.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) dispatchDue() {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*jobEntry
	for _, entry := range s.jobs {
		if entry.enabled && !entry.nextRun.IsZero() && now.After(entry.nextRun) {
			// Advance before running so a slow job cannot pile up
			// back-to-back executions of itself.
			entry.lastRun = now
			entry.nextRun = entry.schedule.Next(now)
			entry.runCount++
			due = append(due, entry)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		s.wg.Add(1)
		go func(entry *jobEntry) {
			defer s.wg.Done()
			s.execute(s.ctx, entry)
		}(entry)
	}
}

// RunNow executes the named job immediately, off-schedule. The entry's
// run counter is untouched; only the result and metrics record the run.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	entry, ok := s.jobs[jobName]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	s.log.Info("manual job execution", logger.String("job", jobName))
	result := s.execute(ctx, entry)
	return result, result.Error
}

// execute runs one job and records the outcome everywhere it is kept.
func (s *Scheduler) execute(ctx context.Context, entry *jobEntry) *JobResult {
	name := entry.job.Name()
	startedAt := time.Now()

	err := entry.job.Run(ctx)

	result := &JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Success:     err == nil,
		Error:       err,
	}
	result.Duration = result.CompletedAt.Sub(startedAt)

	if s.metrics != nil {
		s.metrics.RecordExecution(name, result.Duration, err == nil)
	}

	s.mu.Lock()
	if err != nil {
		entry.failCount++
	}
	s.lastRuns[name] = result
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
			logger.Err(err),
		)
	} else {
		s.log.Debug("job completed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
		)
	}

	return result
}

// JobInfo describes one registered job for listings.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs snapshots all registered jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entry := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: entry.job.Description(),
			Enabled:     entry.enabled,
			Schedule:    entry.schedule.String(),
			LastRun:     entry.lastRun,
			NextRun:     entry.nextRun,
			RunCount:    entry.runCount,
			FailCount:   entry.failCount,
			LastResult:  s.lastRuns[name],
		})
	}
	return infos
}

// GetMetrics returns the metrics tracker, nil when disabled.
func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics aggregates execution counts and durations.
type SchedulerMetrics struct {
	mu sync.RWMutex

	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	TotalDuration   time.Duration

	ExecutionsByJob map[string]int64
	FailuresByJob   map[string]int64
	LastExecutions  map[string]time.Time
}

// NewSchedulerMetrics builds an empty tracker.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		ExecutionsByJob: make(map[string]int64),
		FailuresByJob:   make(map[string]int64),
		LastExecutions:  make(map[string]time.Time),
	}
}

// RecordExecution folds one run into the aggregates.
func (m *SchedulerMetrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalExecutions++
	m.TotalDuration += duration
	m.ExecutionsByJob[jobName]++
	m.LastExecutions[jobName] = time.Now()

	if success {
		m.TotalSuccesses++
	} else {
		m.TotalFailures++
		m.FailuresByJob[jobName]++
	}
}

// MetricsSnapshot is a consistent point-in-time view.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// Snapshot derives rates under the lock.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.TotalExecutions,
		TotalSuccesses:  m.TotalSuccesses,
		TotalFailures:   m.TotalFailures,
	}
	if m.TotalExecutions > 0 {
		snap.SuccessRate = float64(m.TotalSuccesses) / float64(m.TotalExecutions)
		snap.AverageDuration = m.TotalDuration / time.Duration(m.TotalExecutions)
	}
	return snap
}

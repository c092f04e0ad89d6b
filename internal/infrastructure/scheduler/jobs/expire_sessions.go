// Package jobs contains the scheduled jobs of the vetting pipeline.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireSessionsJob sweeps overdue test sessions and expires them. The
// sweep is a safety net behind lazy expiry: candidates who never come
// back would otherwise leave sessions pinned in pending or in_progress
// forever, blocking the one-active-session rule for their application.
type ExpireSessionsJob struct {
	handler *command.ExpireSessionsHandler
	log     *logger.Logger
	config  ExpireSessionsConfig

	lastRunStats atomic.Value // *ExpireSessionsStats
}

// ExpireSessionsConfig contains configuration for the sweep job.
type ExpireSessionsConfig struct {
	// BatchLimit caps how many sessions one run touches.
	BatchLimit int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultExpireSessionsConfig returns sensible defaults.
func DefaultExpireSessionsConfig() ExpireSessionsConfig {
	return ExpireSessionsConfig{
		BatchLimit: 100,
		Timeout:    30 * time.Second,
	}
}

// ExpireSessionsStats contains statistics from a sweep run.
type ExpireSessionsStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Scanned     int
	Expired     int
	Lost        int
}

// NewExpireSessionsJob creates a new expire sessions job.
func NewExpireSessionsJob(handler *command.ExpireSessionsHandler, log *logger.Logger, config ExpireSessionsConfig) *ExpireSessionsJob {
	if log == nil {
		log = logger.Default()
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 100
	}

	return &ExpireSessionsJob{
		handler: handler,
		log:     log.With(logger.Component("expire_sessions_job")),
		config:  config,
	}
}

// Name returns the job name.
func (j *ExpireSessionsJob) Name() string {
	return "expire_sessions"
}

// Description returns a human-readable description.
func (j *ExpireSessionsJob) Description() string {
	return "Expires test sessions whose validity window or time limit has elapsed"
}

// Run executes one sweep.
func (j *ExpireSessionsJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.handler.Handle(ctx, command.ExpireSessionsCommand{
		BatchLimit: j.config.BatchLimit,
	})
	if err != nil {
		return fmt.Errorf("expire sessions sweep: %w", err)
	}

	stats := &ExpireSessionsStats{
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Scanned:     result.Scanned,
		Expired:     result.Expired,
		Lost:        result.Lost,
	}
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	// Quiet runs stay at debug so the sweep does not flood the log every
	// interval.
	if result.Scanned == 0 {
		j.log.Debug("sweep found no overdue sessions")
		return nil
	}

	j.log.Info("sweep completed",
		logger.Duration("duration", stats.Duration),
		logger.Int("scanned", result.Scanned),
		logger.Int("expired", result.Expired),
		logger.Int("lost_races", result.Lost),
	)

	return nil
}

// LastRunStats returns statistics from the last sweep, nil before the
// first run.
func (j *ExpireSessionsJob) LastRunStats() *ExpireSessionsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ExpireSessionsStats)
}

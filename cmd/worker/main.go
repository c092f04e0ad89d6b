// Package main is the entry point for the vetting background worker.
//
// The worker runs the periodic expiry sweep: overdue test sessions are
// transitioned to expired so abandoned links release their application
// for a fresh invitation. The API server performs lazy expiry on access;
// the sweep catches the sessions nobody touches again.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/messaging"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/persistence/postgres"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/scheduler"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/scheduler/jobs"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/service"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("app", cfg.App.Name+"-worker"),
		logger.String("version", cfg.App.Version),
	)

	if !cfg.Features.IsEnabled(config.FeatureExpirySweep) {
		log.Warn("expiry sweep is disabled by feature flag, worker exiting")
		return nil
	}

	log.Info("starting vetting worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Duration("sweep_interval", cfg.Sweep.Interval),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.Connect(ctx, postgres.Options{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	// The API server owns schema migration; the worker only verifies the
	// connection works before scheduling anything.
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	sessionRepo := postgres.NewSessionRepository(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus with audit trail
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	if err := bus.SubscribeAll(service.NewAuditLogger(log)); err != nil {
		return fmt.Errorf("subscribe audit logger: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	sched := scheduler.NewScheduler(schedCfg)

	sweepJob := jobs.NewExpireSessionsJob(
		command.NewExpireSessionsHandler(sessionRepo, bus),
		log,
		jobs.ExpireSessionsConfig{
			BatchLimit: cfg.Sweep.BatchLimit,
			Timeout:    cfg.Sweep.JobTimeout,
		},
	)

	if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Sweep.Interval)); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", logger.Err(err))
	}

	log.Info("worker stopped")
	return nil
}

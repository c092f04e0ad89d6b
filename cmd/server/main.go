// Package main is the entry point for the mentor vetting API server.
//
// The server exposes the full vetting pipeline over HTTP: application
// intake, test-link resolution, answer grading and the admin surface.
// Background expiry sweeping lives in the worker binary; the server only
// performs lazy expiry on access.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/internal/application/query"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/question"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/messaging"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/persistence/postgres"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/persistence/redis"
	"github.com/gradlink-hub/mentor-vetting/internal/infrastructure/service"
	httpapi "github.com/gradlink-hub/mentor-vetting/internal/interface/http"
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
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)

	log.Info("starting vetting API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("addr", cfg.HTTP.Addr),
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

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	appRepo := postgres.NewApplicationRepository(conn)
	questionRepo := postgres.NewQuestionRepository(conn)
	sessionRepo := postgres.NewSessionRepository(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// Redis token cache (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var tokenCache testsession.TokenCache
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureTokenCache) {
		redisCache, err = redis.NewCache(redisConfigFrom(cfg.Redis))
		if err != nil {
			// The cache only accelerates token lookups; the pipeline is
			// fully functional without it.
			log.Warn("redis unavailable, token cache disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			tokenCache = redis.NewTokenCache(redisCache)
			log.Info("token cache enabled")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus & outbound services
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	if err := bus.SubscribeAll(service.NewAuditLogger(log)); err != nil {
		return fmt.Errorf("subscribe audit logger: %w", err)
	}

	emailSvc := service.NewEmailService(cfg.Email, log,
		cfg.Features.IsEnabled(config.FeatureEmailDelivery))
	provisioner := service.NewProvisioningService(service.NewInMemoryDirectory(), log)
	ids := service.NewIDGenerator()

	// ─────────────────────────────────────────────────────────────────────────
	// Command & query handlers
	// ─────────────────────────────────────────────────────────────────────────
	sessionPolicy := testsession.Policy{
		TotalQuestions: cfg.Vetting.TotalQuestions,
		TimeLimit:      cfg.Vetting.TimeLimit,
		Validity:       cfg.Vetting.ValidityWindow,
		SubmitGrace:    cfg.Vetting.SubmitGrace,
	}
	retryPolicy := application.RetryPolicy{
		PassingScore:     cfg.Vetting.PassingScore,
		MaxAttempts:      cfg.Vetting.MaxAttempts,
		Cooldown:         cfg.Vetting.RetryCooldown,
		LowScoreCooldown: cfg.Vetting.LowScoreCooldown,
		LowScoreCutoff:   cfg.Vetting.LowScoreCutoff,
	}
	selector := question.NewSelector(time.Now().UnixNano())

	decider := command.NewDecideApplicationHandler(appRepo, retryPolicy, provisioner, emailSvc, bus)

	deps := httpapi.Dependencies{
		SubmitApplication:    command.NewSubmitApplicationHandler(appRepo, ids, bus),
		SendTest:             command.NewSendTestHandler(appRepo, sessionRepo, questionRepo, selector, sessionPolicy, ids, emailSvc, bus),
		OpenSession:          command.NewOpenSessionHandler(sessionRepo, tokenCache, bus),
		GradeSubmission:      command.NewGradeSubmissionHandler(sessionRepo, appRepo, decider, sessionPolicy, bus),
		RequestRetry:         command.NewRequestRetryHandler(appRepo, bus),
		GetApplicationStatus: query.NewGetApplicationStatusHandler(appRepo),
		ListApplications:     query.NewListApplicationsHandler(appRepo),
		Logger:               log,
		Flags:                cfg.Features,
		HealthChecker:        &healthChecker{conn: conn, cache: redisCache},
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server & graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.ConfigFrom(cfg.HTTP), deps)
	errCh := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// redisConfigFrom maps the application's Redis settings onto the cache
// package config.
func redisConfigFrom(rc config.RedisConfig) redis.Config {
	c := redis.DefaultConfig()
	c.Host = rc.Host
	c.Port = rc.Port
	c.Password = rc.Password
	c.DB = rc.DB
	if rc.PoolSize > 0 {
		c.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		c.MinIdleConns = rc.MinIdleConns
	}
	if rc.DialTimeout > 0 {
		c.DialTimeout = rc.DialTimeout
	}
	if rc.ReadTimeout > 0 {
		c.ReadTimeout = rc.ReadTimeout
	}
	if rc.WriteTimeout > 0 {
		c.WriteTimeout = rc.WriteTimeout
	}
	return c
}

// healthChecker aggregates the backing services for /health and /ready.
// Redis is optional, so a cache failure degrades the report without
// flipping readiness.
type healthChecker struct {
	conn  *postgres.Connection
	cache *redis.Cache
}

func (h *healthChecker) Check(ctx context.Context) httpapi.HealthStatus {
	status := httpapi.HealthStatus{
		Healthy: true,
		Ready:   true,
		Checks:  make(map[string]string),
	}

	if _, err := h.conn.Health(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Checks["postgres"] = err.Error()
	} else {
		status.Checks["postgres"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}

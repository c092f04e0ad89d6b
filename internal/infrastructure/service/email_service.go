// Package service implements the outbound ports of the vetting pipeline:
// email delivery, mentor account provisioning, and id generation.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
	"github.com/gradlink-hub/mentor-vetting/pkg/circuitbreaker"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
	"github.com/gradlink-hub/mentor-vetting/pkg/retry"
	"github.com/gradlink-hub/mentor-vetting/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL SERVICE
// Implements command.EmailSender against the platform's mail gateway.
// Delivery is best-effort: callers fire these in goroutines and pipeline
// state never depends on the outcome. The retrier absorbs transient
// gateway errors; the breaker stops hammering a gateway that is down.
// ══════════════════════════════════════════════════════════════════════════════

// EmailService sends vetting emails through the HTTP mail gateway.
type EmailService struct {
	cfg     config.EmailConfig
	client  *http.Client
	log     *logger.Logger
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker

	// deliver=false puts the service in log-only mode (local development,
	// FEATURE_VETTING_EMAIL_DELIVERY=false, or no gateway configured).
	deliver bool
}

// NewEmailService creates a new EmailService.
func NewEmailService(cfg config.EmailConfig, log *logger.Logger, deliver bool) *EmailService {
	svcLog := log.With(logger.Component("email"))

	breaker := circuitbreaker.EmailBreaker(func(name string, from, to circuitbreaker.State) {
		svcLog.Warn("circuit breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return &EmailService{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		log:     svcLog,
		retrier: retry.EmailRetrier(),
		breaker: breaker,
		deliver: deliver && cfg.GatewayURL != "",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// command.EmailSender
// ─────────────────────────────────────────────────────────────────────────────

// SendTestInvitation emails the test link. The token rides only in the
// link; it is never logged.
func (s *EmailService) SendTestInvitation(ctx context.Context, to, fullName string, token testsession.Token, expiresAt time.Time) error {
	link := fmt.Sprintf("%s?token=%s", s.cfg.TestLinkBaseURL, string(token))

	msg := gatewayMessage{
		From:    s.cfg.FromAddress,
		To:      to,
		Subject: "Your GradLink mentor competency test",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour mentor application moved to the testing stage. "+
				"Open the link below to take your competency test:\n\n%s\n\n"+
				"The link is valid until %s. Once you open the test, the timer starts "+
				"and cannot be paused.\n\nGood luck!\nThe GradLink Team",
			fullName, link, timeutil.FormatTimestamp(expiresAt),
		),
	}

	if err := s.send(ctx, msg); err != nil {
		return shared.WrapError("email", "SendTestInvitation", shared.ErrExternalService,
			"failed to deliver test invitation", err)
	}

	s.log.Info("test invitation sent", logger.Email(to), logger.String("token", token.String()))
	return nil
}

// SendApprovalNotice emails the acceptance with provisioned credentials.
func (s *EmailService) SendApprovalNotice(ctx context.Context, to, fullName, tempPassword string) error {
	msg := gatewayMessage{
		From:    s.cfg.FromAddress,
		To:      to,
		Subject: "Welcome to GradLink mentoring!",
		Body: fmt.Sprintf(
			"Hi %s,\n\nCongratulations - you passed the competency test and your "+
				"mentor account is ready.\n\nTemporary password: %s\n\n"+
				"Please sign in and change it on first use.\n\nThe GradLink Team",
			fullName, tempPassword,
		),
	}

	if err := s.send(ctx, msg); err != nil {
		return shared.WrapError("email", "SendApprovalNotice", shared.ErrExternalService,
			"failed to deliver approval notice", err)
	}

	s.log.Info("approval notice sent", logger.Email(to))
	return nil
}

// SendRejectionNotice emails the outcome of a failed test.
func (s *EmailService) SendRejectionNotice(ctx context.Context, to, fullName string, score float64, retryAllowedAt *time.Time) error {
	var outcome string
	if retryAllowedAt != nil {
		outcome = fmt.Sprintf(
			"You scored %.0f%%, below the passing threshold. You are welcome to "+
				"try again after %s.",
			score, timeutil.FormatTimestamp(*retryAllowedAt),
		)
	} else {
		outcome = fmt.Sprintf(
			"You scored %.0f%% and have used all available attempts. "+
				"We are unable to accept your mentor application at this time.",
			score,
		)
	}

	msg := gatewayMessage{
		From:    s.cfg.FromAddress,
		To:      to,
		Subject: "Your GradLink mentor test result",
		Body: fmt.Sprintf(
			"Hi %s,\n\nThank you for taking the mentor competency test.\n\n%s\n\nThe GradLink Team",
			fullName, outcome,
		),
	}

	if err := s.send(ctx, msg); err != nil {
		return shared.WrapError("email", "SendRejectionNotice", shared.ErrExternalService,
			"failed to deliver rejection notice", err)
	}

	s.log.Info("rejection notice sent", logger.Email(to), logger.Score(score))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Gateway plumbing
// ─────────────────────────────────────────────────────────────────────────────

// gatewayMessage is the mail gateway's request body.
type gatewayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// send posts the message through the breaker and retrier. In log-only mode
// it records the would-be delivery and succeeds.
func (s *EmailService) send(ctx context.Context, msg gatewayMessage) error {
	if !s.deliver {
		s.log.Info("email delivery disabled, logging only",
			logger.Email(msg.To),
			logger.String("subject", msg.Subject),
		)
		return nil
	}

	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.post(ctx, msg)
		})
	})
}

// post performs one gateway call, classifying failures for the retrier:
// network errors and 5xx are retryable, other statuses are permanent.
func (s *EmailService) post(ctx context.Context, msg gatewayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal gateway message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	gatewayErr := fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return retry.Retryable(gatewayErr)
	}
	return retry.Permanent(gatewayErr)
}

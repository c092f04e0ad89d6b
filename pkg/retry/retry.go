// Package retry implements bounded retries with exponential backoff and
// jitter for the two outbound hops of the vetting pipeline: the email
// gateway and the mentor account directory.
//
// Callers classify their own failures. An operation returns
// Retryable(err) when another attempt might succeed (network fault, 5xx)
// and Permanent(err) when it cannot (4xx, marshaling). Unclassified
// errors stop the loop.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Error classification
// ──────────────────────────────────────────────────────────────────────────────

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient so Do schedules another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as final; Do returns the wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ──────────────────────────────────────────────────────────────────────────────
// Retrier
// ──────────────────────────────────────────────────────────────────────────────

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts counts the first try as attempt one.
	MaxAttempts int

	// InitialDelay is the sleep before the second attempt; each further
	// attempt multiplies it by Multiplier up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor spreads each delay by ±factor to avoid retry herds.
	JitterFactor float64
}

// Retrier runs operations under one Config.
type Retrier struct {
	cfg Config
}

// New builds a Retrier, filling zero Config fields with usable values.
func New(cfg Config) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Retrier{cfg: cfg}
}

// Do runs operation until it succeeds, exhausts MaxAttempts, returns a
// Permanent error, or the context ends. The classification wrapper is
// stripped from the returned error so callers match on their own types.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			return errors.Unwrap(err)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(r.backoffFor(attempt)):
		}
	}

	return lastErr
}

func (r *Retrier) backoffFor(attempt int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if d > float64(r.cfg.MaxDelay) {
		d = float64(r.cfg.MaxDelay)
	}
	if r.cfg.JitterFactor > 0 {
		d += d * r.cfg.JitterFactor * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────────────────────────────────
// Preset retriers
// ──────────────────────────────────────────────────────────────────────────────

// EmailRetrier is tuned for the email gateway. Patient settings:
// invitations tolerate latency, not loss.
func EmailRetrier() *Retrier {
	return New(Config{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     15 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
	})
}

// ProvisioningRetrier is tuned for the account directory. Few fast
// attempts: provisioning blocks an approval response.
func ProvisioningRetrier() *Retrier {
	return New(Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	})
}

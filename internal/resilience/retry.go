// Package resilience provides the exponential-backoff retry loop shared by
// the HTTP client and the adaptive fetcher.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential-backoff retry behavior.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int

	// BaseDelay is the initial delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay between retries; jitter, when
	// enabled, is added after the cap.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor (2.0 is typical).
	Multiplier float64

	// Jitter adds up to 10% random jitter to each delay to avoid thundering herd.
	Jitter bool

	// ErrorChecker decides which errors should trigger a retry. A nil
	// checker retries every non-nil error.
	ErrorChecker RetryableErrorChecker

	// Logger receives retry events. Defaults to slog.Default().
	Logger *slog.Logger

	// OperationName labels log lines for this policy's operation.
	OperationName string
}

// RetryableErrorChecker decides whether an error is transient.
type RetryableErrorChecker interface {
	IsRetryable(err error) bool
}

// DefaultRetryPolicy returns a conservative default: 3 retries, 250ms base
// delay, 2x multiplier, 10% jitter, capped at 10s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// WithRetry executes operation, retrying on failure per policy. Context
// cancellation during a backoff sleep returns ctx.Err() immediately.
func WithRetry(ctx context.Context, policy *RetryPolicy, operation func() error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry",
					"operation", policy.OperationName, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err, policy.ErrorChecker) {
			return lastErr
		}
		if attempt >= policy.MaxRetries {
			logger.Error("operation failed after all retries",
				"operation", policy.OperationName, "max_retries", policy.MaxRetries, "error", lastErr)
			break
		}

		logger.Warn("operation failed, retrying",
			"operation", policy.OperationName, "attempt", attempt+1,
			"max_retries", policy.MaxRetries, "delay", delay, "error", err)

		if !WaitWithContext(ctx, delay) {
			return ctx.Err()
		}
		delay = calculateNextDelay(delay, policy)
	}

	return fmt.Errorf("operation %q failed after %d attempts: %w", policy.OperationName, policy.MaxRetries+1, lastErr)
}

func shouldRetry(err error, checker RetryableErrorChecker) bool {
	if err == nil {
		return false
	}
	if checker != nil {
		return checker.IsRetryable(err)
	}
	return true
}

// WaitWithContext sleeps for delay, returning false early if ctx is
// cancelled first. Shared by WithRetry's backoff loop and callers that
// need a fixed, externally-supplied backoff schedule instead of a
// computed one (e.g. the adaptive fetcher's retry-backoff phase).
func WaitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func calculateNextDelay(currentDelay time.Duration, policy *RetryPolicy) time.Duration {
	nextDelay := time.Duration(float64(currentDelay) * policy.Multiplier)
	if nextDelay > policy.MaxDelay {
		nextDelay = policy.MaxDelay
	}
	if policy.Jitter {
		nextDelay += time.Duration(float64(nextDelay) * 0.1 * rand.Float64())
	}
	return nextDelay
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"atlauth/pkg/logging"

	"github.com/google/uuid"
)

// Policy is an explicit, testable retry policy applied by the session layer
// around outbound network calls. It replaces implicit decorator-style
// wrapping: construct one, inspect it, pass it around.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor between attempts.
	Multiplier float64

	// Jitter adds ±10% randomization to each delay to avoid thundering herds.
	Jitter bool
}

// DefaultPolicy mirrors the defaults proven in production: three attempts,
// one-second base delay, thirty-second cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// RateLimitError indicates the remote service rejected a call for rate
// limiting (HTTP 429 or an exhausted rate-limit header). It carries the
// server's retry hint when one was provided.
type RateLimitError struct {
	// RetryAfter is the server-suggested wait, zero if none was given.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError marks an error as retryable. Wrap network-level failures
// and retryable HTTP statuses in this before returning them from a Do body.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// retryableStatuses are HTTP statuses treated as transient.
var retryableStatuses = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// RetryableStatus reports whether an HTTP status code is transient.
func RetryableStatus(code int) bool {
	return retryableStatuses[code]
}

// IsRetryable classifies an error under this policy. Rate-limit errors and
// explicitly marked transient errors retry; plain timeouts from the net
// layer retry; everything else surfaces immediately.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Do executes fn with bounded exponential backoff and jitter.
//
// fn runs at most MaxAttempts times. Non-retryable errors surface
// immediately; after the final attempt the last error surfaces unchanged so
// callers can classify it with errors.Is/As. A rate-limit Retry-After hint
// overrides the computed backoff for that attempt, capped at MaxDelay.
// Cancellation of ctx stops the loop between attempts.
func (p Policy) Do(ctx context.Context, subsystem string, fn func(ctx context.Context) error) error {
	correlationID := uuid.NewString()[:8]

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt, lastErr)
			logging.Info(subsystem, "[%s] retrying after %s (attempt %d/%d)",
				correlationID, delay.Round(10*time.Millisecond), attempt+1, p.MaxAttempts)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				logging.Info(subsystem, "[%s] retry succeeded on attempt %d", correlationID, attempt+1)
			}
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}
		if !IsRetryable(lastErr) {
			logging.Debug(subsystem, "[%s] non-retryable error: %v", correlationID, lastErr)
			return lastErr
		}

		logging.Warn(subsystem, "[%s] attempt %d/%d failed with retryable error: %v",
			correlationID, attempt+1, p.MaxAttempts, lastErr)
	}

	logging.Error(subsystem, lastErr, "[%s] all %d attempts exhausted", correlationID, p.MaxAttempts)
	return lastErr
}

// delay computes the wait before the given (1-based) retry attempt.
func (p Policy) delay(attempt int, lastErr error) time.Duration {
	// A server-provided rate-limit hint wins over computed backoff.
	var rl *RateLimitError
	if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
		if rl.RetryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return rl.RetryAfter
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		jitter := delay * 0.1
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Package retry bounds collaborator calls with per-attempt timeouts and
// exponential backoff on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// ErrTransient marks failures worth retrying: timeouts, throttling, 5xx, network.
var ErrTransient = errors.New("transient collaborator failure")

// Transient wraps err so that IsTransient reports true.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// Policy bounds one collaborator call: Timeout applies to every attempt,
// Retries is the number of additional attempts after the first.
type Policy struct {
	Retries     int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

func (p Policy) backoff(attempt int) time.Duration {
	if p.BaseBackoff <= 0 {
		return 0
	}
	d := p.BaseBackoff << (attempt - 1)
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		return p.MaxBackoff
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-transient error, or the retry
// budget is spent. An attempt that hits its own timeout while ctx is still live
// counts as transient.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	p.Retries = max(p.Retries, 0)

	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			slog.DebugContext(ctx, "retrying collaborator call",
				"op", op, "attempt", attempt, "backoff_ms", wait.Milliseconds(), "error", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(wait):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = Transient(fmt.Errorf("%s timed out after %s: %w", op, p.Timeout, err))
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, p.Retries+1, lastErr)
}

// Package ratelimit wraps remote calls with requests-per-minute admission and
// retry with exponential backoff. One Caller is owned by exactly one provider
// instance; its limiter state is never shared across endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrExhausted marks a call that kept failing transiently until the retry
// budget ran out. Callers map it onto their own unavailability taxonomy.
var ErrExhausted = errors.New("retry attempts exhausted")

// IsExhausted reports whether err came from an exhausted retry budget.
func IsExhausted(err error) bool { return errors.Is(err, ErrExhausted) }

// Admitter gates call admission. Excess calls queue in submission order
// rather than being rejected. *rate.Limiter satisfies it.
type Admitter interface {
	Wait(ctx context.Context) error
}

// Policy is the retry policy. It is an explicit configuration value, not
// control flow buried in error branches: the delay doubles per attempt,
// capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// PermanentError marks a failure that must not be retried (4xx other than
// rate-limit, malformed response). Do unwraps it before returning.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do fails immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Caller throttles and retries idempotent remote invocations.
type Caller struct {
	limiter Admitter
	policy  Policy
	logger  *zap.Logger
}

// New creates a Caller admitting at most rpm requests per minute.
// rpm <= 0 disables throttling (retries still apply).
func New(rpm int, policy Policy, logger *zap.Logger) *Caller {
	var limiter *rate.Limiter
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return NewWithAdmitter(limiter, policy, logger)
}

// NewWithAdmitter creates a Caller with an injected admitter. Used by tests
// to substitute a deterministic clock.
func NewWithAdmitter(limiter Admitter, policy Policy, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{limiter: limiter, policy: policy.withDefaults(), logger: logger}
}

// Policy returns the effective retry policy.
func (c *Caller) Policy() Policy { return c.policy }

// Do runs op under rate-limit admission, retrying transient failures up to
// MaxAttempts times with exponential backoff. Errors wrapped via Permanent
// surface immediately. Context cancellation aborts both waiting and retries.
func (c *Caller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := c.policy.BaseDelay
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit admission: %w", err)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if attempt == c.policy.MaxAttempts {
			break
		}

		c.logger.Warn("transient call failure, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.policy.MaxDelay {
			delay = c.policy.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.policy.MaxAttempts+1, lastErr)
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// Backoff describes the delay schedule between attempts.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay between retries.
	Max time.Duration

	// Multiplier is applied per attempt by BackoffExponential.
	Multiplier float64

	Strategy BackoffStrategy

	// Jitter adds up to 25% on top of each delay.
	Jitter bool
}

// DefaultBackoff returns the reconnect schedule: 100ms doubling up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    100 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Strategy:   BackoffExponential,
	}
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = def.Multiplier
	}
	return b
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch b.Strategy {
	case BackoffConstant:
		delay = b.Initial
	case BackoffLinear:
		delay = b.Initial * time.Duration(attempt)
	default:
		f := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
		if f > float64(b.Max) {
			f = float64(b.Max)
		}
		delay = time.Duration(f)
	}

	if delay > b.Max {
		delay = b.Max
	}

	if b.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// Backoff is the delay schedule. Zero fields take DefaultBackoff values.
	Backoff Backoff

	// RetryIf determines if an error should trigger a retry.
	// Default: every error except context cancellation.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	config.Backoff = config.Backoff.withDefaults()
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, RetryIf rejects its error, ctx ends, or
// MaxAttempts is reached. Exhaustion returns an error matching both
// ErrMaxRetriesExceeded and the last error from op.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}

		delay := r.config.Backoff.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Package retry runs fallible operations under a bounded exponential backoff
// policy. Callers decide which errors are transient through a Classifier, and
// a classifier may return a server-provided wait hint that overrides the
// computed delay.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter is the upper bound of a uniformly random duration added to
	// every computed delay.
	Jitter time.Duration
	// HintBuffer is added on top of a classifier-provided hint.
	HintBuffer time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// Classifier reports whether err is worth another attempt. A positive hint
// replaces the backoff delay for the next wait.
type Classifier func(err error) (retryable bool, hint time.Duration)

type Operation func(ctx context.Context, attempt int) error

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Backoff returns the delay before the attempt following the given one,
// without jitter: BaseDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Wait is the full delay before retrying after attempt, honoring hint.
func (p Policy) Wait(attempt int, hint time.Duration) time.Duration {
	p = p.withDefaults()
	if hint > 0 {
		return hint + p.HintBuffer
	}
	d := p.Backoff(attempt)
	if p.Jitter > 0 {
		d += time.Duration(p.Rand() * float64(p.Jitter))
	}
	return d
}

// Do runs op until it succeeds, the classifier rejects the error, or the
// attempt ceiling is reached. It returns the number of attempts made and the
// last error.
func Do(ctx context.Context, p Policy, classify Classifier, op Operation) (int, error) {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		retryable, hint := false, time.Duration(0)
		if classify != nil {
			retryable, hint = classify(lastErr)
		}
		if !retryable || attempt == p.MaxAttempts {
			return attempt, lastErr
		}

		if err := p.Sleep(ctx, p.Wait(attempt, hint)); err != nil {
			return attempt, fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return p.MaxAttempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package quota gates calls to the generation service with a per-day request
// counter keyed by the UTC date.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultDailyLimit = 1500

// Counter stores one monotonically increasing count per day key. Increment
// must be a single atomic increment-or-create.
type Counter interface {
	QuotaCount(ctx context.Context, day string) (int64, error)
	IncrementQuota(ctx context.Context, day string) (int64, error)
}

type Ledger struct {
	counter Counter
	limit   int64
	now     func() time.Time
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func NewLedger(counter Counter, limit int64, opts ...Option) *Ledger {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	l := &Ledger{counter: counter, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func (l *Ledger) Limit() int64 {
	return l.limit
}

// CanProceed reports whether today's count is still under the limit.
func (l *Ledger) CanProceed(ctx context.Context) (bool, error) {
	count, err := l.Usage(ctx)
	if err != nil {
		return false, err
	}
	return count < l.limit, nil
}

func (l *Ledger) Usage(ctx context.Context) (int64, error) {
	count, err := l.counter.QuotaCount(ctx, DayKey(l.now()))
	if err != nil {
		return 0, fmt.Errorf("read quota usage: %w", err)
	}
	return count, nil
}

func (l *Ledger) RecordUsage(ctx context.Context) error {
	day := DayKey(l.now())
	count, err := l.counter.IncrementQuota(ctx, day)
	if err != nil {
		return fmt.Errorf("record quota usage: %w", err)
	}
	slog.Debug("Quota usage recorded", "day", day, "count", count, "limit", l.limit)
	return nil
}

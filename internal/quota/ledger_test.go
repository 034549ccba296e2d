package quota

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"novacontent/internal/store"
)

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int64{}}
}

func (m *memCounter) QuotaCount(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day], nil
}

func (m *memCounter) IncrementQuota(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[day]++
	return m.counts[day], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, 3, 15, 8, 0, 0, 0, loc)

	if got := DayKey(local); got != "2026-03-14" {
		t.Errorf("DayKey() = %q, want 2026-03-14", got)
	}
}

func TestCanProceedWithoutCounter(t *testing.T) {
	l := NewLedger(newMemCounter(), 1500)

	ok, err := l.CanProceed(context.Background())
	if err != nil || !ok {
		t.Errorf("CanProceed() = %v, %v, want true, nil", ok, err)
	}
}

func TestCanProceedAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	counter := newMemCounter()
	l := NewLedger(counter, 3, WithClock(fixedClock(now)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(ctx); err != nil {
			t.Fatalf("RecordUsage() error: %v", err)
		}
	}
	if ok, _ := l.CanProceed(ctx); !ok {
		t.Error("CanProceed() = false below limit")
	}

	_ = l.RecordUsage(ctx)
	if ok, _ := l.CanProceed(ctx); ok {
		t.Error("CanProceed() = true at limit")
	}

	tomorrow := NewLedger(counter, 3, WithClock(fixedClock(now.Add(24*time.Hour))))
	if ok, _ := tomorrow.CanProceed(ctx); !ok {
		t.Error("a new day should start from zero")
	}
}

func TestDefaultLimit(t *testing.T) {
	if l := NewLedger(newMemCounter(), 0); l.Limit() != DefaultDailyLimit {
		t.Errorf("Limit() = %d, want %d", l.Limit(), DefaultDailyLimit)
	}
}

func TestConcurrentRecordUsageSQL(t *testing.T) {
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "quota.db")})
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	defer s.Close()

	l := NewLedger(s, 1500)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.RecordUsage(ctx); err != nil {
				t.Errorf("RecordUsage() error: %v", err)
			}
		}()
	}
	wg.Wait()

	usage, err := l.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage() error: %v", err)
	}
	if usage != n {
		t.Errorf("usage = %d, want %d", usage, n)
	}
}

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedisCounter(ctx, addr)
	if err != nil {
		t.Fatalf("NewRedisCounter() error: %v", err)
	}
	defer c.Close()

	c.prefix = "novacontent:test:" + time.Now().Format(time.RFC3339Nano) + ":"
	day := "2026-03-14"

	if n, err := c.QuotaCount(ctx, day); err != nil || n != 0 {
		t.Fatalf("QuotaCount() on missing key = %d, %v", n, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.IncrementQuota(ctx, day); err != nil {
				t.Errorf("IncrementQuota() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := c.QuotaCount(ctx, day); n != 25 {
		t.Errorf("count = %d, want 25", n)
	}
}

func TestNewRedisCounterRequiresAddr(t *testing.T) {
	if _, err := NewRedisCounter(context.Background(), ""); err == nil {
		t.Error("expected error for empty address")
	}
}

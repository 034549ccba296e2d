package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"novacontent/internal/model"
	"novacontent/internal/queue"
	"novacontent/internal/store"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestQueue(t *testing.T, opts queue.Options) (*queue.Queue, *clock) {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "queue.db")})
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	c := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	opts.Now = c.Now
	return queue.New(s, opts), c
}

func renderJob(id int64) model.RenderJob {
	return model.RenderJob{
		ProductionID:      id,
		Niche:             model.Niche{Name: "CRAZY_ANIMAL_FACTS"},
		OutputDestination: "/tmp/video.mp4",
	}
}

func TestEnqueueValidatesPayload(t *testing.T) {
	q, _ := newTestQueue(t, queue.Options{})

	if _, err := q.Enqueue(context.Background(), model.RenderJob{OutputDestination: "/x"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("missing production id: got %v", err)
	}
	if _, err := q.Enqueue(context.Background(), model.RenderJob{ProductionID: 1}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("missing destination: got %v", err)
	}
}

func TestEnqueueAttachesRetryPolicy(t *testing.T) {
	q, _ := newTestQueue(t, queue.Options{})

	job, err := q.Enqueue(context.Background(), renderJob(7))
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if job.ID == "" || job.State != queue.StateWaiting {
		t.Errorf("unexpected job %+v", job)
	}
	if job.MaxAttempts != 3 || job.Backoff != 5*time.Second {
		t.Errorf("policy = %d attempts, %v backoff, want 3 and 5s", job.MaxAttempts, job.Backoff)
	}
	if q.Name() != "RenderQueue" {
		t.Errorf("Name() = %q", q.Name())
	}
}

func TestFailBacksOffExponentiallyThenFails(t *testing.T) {
	q, c := newTestQueue(t, queue.Options{})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, renderJob(1)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	wantDelays := []time.Duration{5 * time.Second, 10 * time.Second}
	for i, delay := range wantDelays {
		job, err := q.Claim(ctx)
		if err != nil || job == nil {
			t.Fatalf("attempt %d: Claim() = %v, %v", i+1, job, err)
		}

		final, err := q.Fail(ctx, job, errors.New("compositor crashed"))
		if err != nil {
			t.Fatalf("Fail() error: %v", err)
		}
		if final {
			t.Fatalf("attempt %d should not be final", i+1)
		}
		if got := job.AvailableAt.Sub(c.Now()); got != delay {
			t.Errorf("attempt %d delay = %v, want %v", i+1, got, delay)
		}

		if early, _ := q.Claim(ctx); early != nil {
			t.Fatalf("job claimed before its backoff elapsed")
		}
		c.Advance(delay)
	}

	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("last Claim() = %v, %v", job, err)
	}
	if job.AttemptsMade != 3 {
		t.Errorf("AttemptsMade = %d, want 3", job.AttemptsMade)
	}

	final, err := q.Fail(ctx, job, errors.New("compositor crashed"))
	if err != nil || !final {
		t.Fatalf("final Fail() = %v, %v, want true", final, err)
	}

	stored, _ := q.Get(ctx, job.ID)
	if stored.State != queue.StateFailed || stored.LastError != "compositor crashed" {
		t.Errorf("stored job = %+v", stored)
	}
}

func TestCompleteAndStats(t *testing.T) {
	q, _ := newTestQueue(t, queue.Options{})
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, renderJob(1))
	_, _ = q.Enqueue(ctx, renderJob(2))

	job, _ := q.Claim(ctx)
	if err := q.Progress(ctx, job.ID, 150); err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	active, _ := q.Get(ctx, job.ID)
	if active.Progress != 100 {
		t.Errorf("progress = %d, want clamp to 100", active.Progress)
	}

	if err := q.Complete(ctx, job, "/videos/1.mp4"); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Counts[queue.StateCompleted] != 1 || stats.Counts[queue.StateWaiting] != 1 || stats.Counts[queue.StateFailed] != 0 {
		t.Errorf("counts = %v", stats.Counts)
	}

	jobs, err := q.List(ctx, queue.StateCompleted, 10)
	if err != nil || len(jobs) != 1 || jobs[0].Result != "/videos/1.mp4" {
		t.Errorf("List(completed) = %+v, %v", jobs, err)
	}
}

func TestRecoverStalled(t *testing.T) {
	q, c := newTestQueue(t, queue.Options{Attempts: 1, StallTimeout: time.Minute})
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, renderJob(1))
	if job, _ := q.Claim(ctx); job == nil {
		t.Fatal("expected a job")
	}

	failed, err := q.RecoverStalled(ctx, nil)
	if err != nil || len(failed) != 0 {
		t.Fatalf("RecoverStalled() before timeout = %v, %v", failed, err)
	}

	c.Advance(2 * time.Minute)
	failed, err = q.RecoverStalled(ctx, nil)
	if err != nil {
		t.Fatalf("RecoverStalled() error: %v", err)
	}
	if len(failed) != 1 || failed[0].Payload.ProductionID != 1 {
		t.Errorf("failed = %+v, want the exhausted job", failed)
	}
}

func TestRecoverStalledRequeuesWithAttemptsLeft(t *testing.T) {
	q, c := newTestQueue(t, queue.Options{Attempts: 3, StallTimeout: time.Minute})
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, renderJob(1))
	_, _ = q.Claim(ctx)

	c.Advance(2 * time.Minute)
	failed, err := q.RecoverStalled(ctx, nil)
	if err != nil || len(failed) != 0 {
		t.Fatalf("RecoverStalled() = %v, %v", failed, err)
	}

	c.Advance(5 * time.Second)
	job, _ := q.Claim(ctx)
	if job == nil || job.AttemptsMade != 2 {
		t.Errorf("expected redelivery with 2 attempts, got %+v", job)
	}
}

func TestHeartbeatKeepsJobActive(t *testing.T) {
	q, c := newTestQueue(t, queue.Options{Attempts: 1, StallTimeout: time.Minute})
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, renderJob(1))
	job, _ := q.Claim(ctx)
	if job == nil {
		t.Fatal("expected a job")
	}

	for range 3 {
		c.Advance(40 * time.Second)
		ok, err := q.Heartbeat(ctx, job.ID)
		if err != nil || !ok {
			t.Fatalf("Heartbeat() = %v, %v", ok, err)
		}
	}

	failed, err := q.RecoverStalled(ctx, nil)
	if err != nil || len(failed) != 0 {
		t.Fatalf("RecoverStalled() = %v, %v", failed, err)
	}
	got, _ := q.Get(ctx, job.ID)
	if got.State != queue.StateActive {
		t.Errorf("State = %s, want active", got.State)
	}

	if err := q.Complete(ctx, got, "/videos/1.mp4"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := q.Heartbeat(ctx, job.ID); ok {
		t.Error("Heartbeat() on a completed job should report false")
	}
}

func TestRecoverStalledSkipsHeldJobs(t *testing.T) {
	q, c := newTestQueue(t, queue.Options{Attempts: 1, StallTimeout: time.Minute})
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, renderJob(1))
	job, _ := q.Claim(ctx)

	c.Advance(2 * time.Minute)
	failed, err := q.RecoverStalled(ctx, func(id string) bool { return id == job.ID })
	if err != nil || len(failed) != 0 {
		t.Fatalf("RecoverStalled() = %v, %v", failed, err)
	}
	got, _ := q.Get(ctx, job.ID)
	if got.State != queue.StateActive {
		t.Errorf("State = %s, want active", got.State)
	}
}

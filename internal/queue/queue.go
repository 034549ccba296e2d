// Package queue is the durable render job queue. Jobs carry a retry policy
// (attempt ceiling and exponential backoff seed); a failed attempt with
// attempts left is rescheduled by moving its availability forward, so no
// goroutine ever sleeps on a backoff.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"novacontent/internal/model"
	"novacontent/pkg/retry"
)

const (
	DefaultName         = "RenderQueue"
	DefaultAttempts     = 3
	DefaultBackoff      = 5 * time.Second
	DefaultStallTimeout = 30 * time.Minute
)

type Options struct {
	Name         string
	Attempts     int
	Backoff      time.Duration
	StallTimeout time.Duration
	Now          func() time.Time
}

type Queue struct {
	backend      Backend
	name         string
	attempts     int
	backoff      time.Duration
	stallTimeout time.Duration
	now          func() time.Time
}

func New(backend Backend, opts Options) *Queue {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Queue{
		backend:      backend,
		name:         opts.Name,
		attempts:     opts.Attempts,
		backoff:      opts.Backoff,
		stallTimeout: opts.StallTimeout,
		now:          opts.Now,
	}
}

func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) Enqueue(ctx context.Context, payload model.RenderJob) (*Job, error) {
	if payload.ProductionID <= 0 {
		return nil, fmt.Errorf("%w: render job needs a production id", model.ErrInvalidInput)
	}
	if payload.OutputDestination == "" {
		return nil, fmt.Errorf("%w: render job needs an output destination", model.ErrInvalidInput)
	}

	now := q.now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       q.name,
		Payload:     payload,
		State:       StateWaiting,
		MaxAttempts: q.attempts,
		Backoff:     q.backoff,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := q.backend.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	slog.Debug("Job enqueued", "queue", q.name, "job_id", job.ID, "production_id", payload.ProductionID)
	return job, nil
}

// Claim hands out the next available job, or nil when none is due.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	job, err := q.backend.ClaimJob(ctx, q.name, q.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (q *Queue) Progress(ctx context.Context, id string, progress int) error {
	progress = max(0, min(progress, 100))
	return q.backend.SetJobProgress(ctx, id, progress, q.now().UTC())
}

// Heartbeat marks an active job as still owned. It returns false once the
// job has left the active state.
func (q *Queue) Heartbeat(ctx context.Context, id string) (bool, error) {
	ok, err := q.backend.TouchJob(ctx, id, q.now().UTC())
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	return ok, nil
}

func (q *Queue) StallTimeout() time.Duration {
	return q.stallTimeout
}

func (q *Queue) Complete(ctx context.Context, job *Job, result string) error {
	ok, err := q.backend.CompleteJob(ctx, job.ID, result, q.now().UTC())
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !ok {
		slog.Warn("Completed job was no longer active", "job_id", job.ID)
	}
	job.State = StateCompleted
	job.Result = result
	job.Progress = 100
	return nil
}

// Fail records a failed attempt. It returns true when the job is out of
// attempts and has moved to failed.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (bool, error) {
	now := q.now().UTC()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if job.Exhausted() {
		if _, err := q.backend.FailJob(ctx, job.ID, msg, now); err != nil {
			return false, fmt.Errorf("fail job: %w", err)
		}
		job.State = StateFailed
		job.LastError = msg
		return true, nil
	}

	next := now.Add(q.retryDelay(job))
	if _, err := q.backend.RetryJob(ctx, job.ID, msg, next, now); err != nil {
		return false, fmt.Errorf("reschedule job: %w", err)
	}
	job.State = StateWaiting
	job.LastError = msg
	job.AvailableAt = next
	return false, nil
}

// retryDelay is backoff * 2^(attemptsMade-1).
func (q *Queue) retryDelay(job *Job) time.Duration {
	policy := retry.Policy{BaseDelay: job.Backoff, Multiplier: 2}
	return policy.Backoff(job.AttemptsMade)
}

// RecoverStalled returns jobs stuck in active past the stall timeout to the
// waiting state, or fails them when they have no attempts left. Jobs that
// were failed are returned so callers can emit their failure events. Jobs
// for which held reports true are left alone.
func (q *Queue) RecoverStalled(ctx context.Context, held func(id string) bool) ([]*Job, error) {
	cutoff := q.now().UTC().Add(-q.stallTimeout)
	stalled, err := q.backend.StalledJobs(ctx, q.name, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stalled jobs: %w", err)
	}

	var failed []*Job
	for _, job := range stalled {
		if held != nil && held(job.ID) {
			continue
		}
		final, err := q.Fail(ctx, job, errors.New("job stalled"))
		if err != nil {
			return failed, err
		}
		slog.Warn("Recovered stalled job", "job_id", job.ID, "attempts", job.AttemptsMade, "final", final)
		if final {
			failed = append(failed, job)
		}
	}
	return failed, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	return q.backend.GetJob(ctx, id)
}

func (q *Queue) List(ctx context.Context, state State, limit int) ([]*Job, error) {
	return q.backend.ListJobs(ctx, q.name, state, limit)
}

type Stats struct {
	Queue  string        `json:"queue"`
	Counts map[State]int `json:"counts"`
}

func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	counts, err := q.backend.CountJobs(ctx, q.name)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	for _, s := range States {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	return &Stats{Queue: q.name, Counts: counts}, nil
}

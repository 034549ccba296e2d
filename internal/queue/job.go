package queue

import (
	"context"
	"errors"
	"time"

	"novacontent/internal/model"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var States = []State{StateWaiting, StateActive, StateCompleted, StateFailed}

var ErrJobNotFound = errors.New("job not found")

// Job is a queued render plus its delivery bookkeeping. AttemptsMade counts
// deliveries, including the one in progress while the job is active.
type Job struct {
	ID           string
	Queue        string
	Payload      model.RenderJob
	State        State
	AttemptsMade int
	MaxAttempts  int
	Backoff      time.Duration
	Progress     int
	LastError    string
	Result       string
	AvailableAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Exhausted reports whether no attempt is left after the current one.
func (j *Job) Exhausted() bool {
	return j.AttemptsMade >= j.MaxAttempts
}

// Backend is the durable job table. Every state change is a guarded
// single-row update so concurrent workers cannot both own a job.
type Backend interface {
	InsertJob(ctx context.Context, job *Job) error
	ClaimJob(ctx context.Context, queue string, now time.Time) (*Job, error)
	SetJobProgress(ctx context.Context, id string, progress int, now time.Time) error
	TouchJob(ctx context.Context, id string, now time.Time) (bool, error)
	CompleteJob(ctx context.Context, id, result string, now time.Time) (bool, error)
	RetryJob(ctx context.Context, id, lastErr string, availableAt, now time.Time) (bool, error)
	FailJob(ctx context.Context, id, lastErr string, now time.Time) (bool, error)
	StalledJobs(ctx context.Context, queue string, before time.Time) ([]*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, queue string, state State, limit int) ([]*Job, error)
	CountJobs(ctx context.Context, queue string) (map[State]int, error)
}

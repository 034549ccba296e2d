// Package worker runs queued render jobs on a fixed number of lanes. Each
// job executes behind a recover, so a crashing render costs one attempt and
// never the lane.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"novacontent/internal/queue"
)

const (
	DefaultPollInterval    = time.Second
	DefaultRecoverInterval = time.Minute
	DefaultHeartbeat       = 30 * time.Second
	errorRetryInterval     = 5 * time.Second
)

// Handler executes one job attempt and returns the result reference.
type Handler func(ctx context.Context, job *queue.Job, progress func(int)) (string, error)

// Listener receives terminal job events. OnFailed is called for every
// failed attempt; final is true once the job is out of attempts.
type Listener interface {
	OnCompleted(ctx context.Context, job *queue.Job, result string)
	OnFailed(ctx context.Context, job *queue.Job, err error, final bool)
}

type Queue interface {
	Name() string
	Claim(ctx context.Context) (*queue.Job, error)
	Progress(ctx context.Context, id string, progress int) error
	Heartbeat(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, job *queue.Job, result string) error
	Fail(ctx context.Context, job *queue.Job, cause error) (bool, error)
	RecoverStalled(ctx context.Context, held func(id string) bool) ([]*queue.Job, error)
}

type Options struct {
	Concurrency     int
	PollInterval    time.Duration
	RecoverInterval time.Duration
	// Heartbeat is how often an in-flight job is marked as still owned. It
	// must stay well below the queue's stall timeout.
	Heartbeat time.Duration
}

type Pool struct {
	queue    Queue
	handler  Handler
	listener Listener
	opts     Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	heldMu sync.Mutex
	held   map[string]struct{}
}

func NewPool(q Queue, handler Handler, listener Listener, opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RecoverInterval <= 0 {
		opts.RecoverInterval = DefaultRecoverInterval
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	return &Pool{queue: q, handler: handler, listener: listener, opts: opts, held: make(map[string]struct{})}
}

func (p *Pool) Concurrency() int {
	return p.opts.Concurrency
}

// Start launches the lanes and returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(p.opts.Concurrency + 1)
	for i := range p.opts.Concurrency {
		go p.runLane(runCtx, i)
	}
	go p.runRecovery(runCtx)

	slog.Info("Worker pool started", "queue", p.queue.Name(), "concurrency", p.opts.Concurrency)
	return nil
}

// Run starts the pool and blocks until ctx is done, then drains in-flight
// jobs.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// Stop stops claiming new jobs and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	slog.Info("Worker pool stopped", "queue", p.queue.Name())
}

func (p *Pool) runLane(ctx context.Context, lane int) {
	defer p.wg.Done()
	logger := slog.With("queue", p.queue.Name(), "lane", lane)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to claim job", "error", err)
			p.wait(ctx, errorRetryInterval)
			continue
		}
		if job == nil {
			p.wait(ctx, p.opts.PollInterval)
			continue
		}

		// A claimed job runs to completion even if the pool is stopping.
		p.process(context.WithoutCancel(ctx), logger, job)
	}
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	logger = logger.With("job_id", job.ID, "production_id", job.Payload.ProductionID, "attempt", job.AttemptsMade)
	logger.Info("Processing job")
	start := time.Now()

	stop := p.hold(ctx, logger, job.ID)
	result, err := p.execute(ctx, job)
	stop()
	if err == nil {
		if err := p.queue.Complete(ctx, job, result); err != nil {
			logger.Error("Failed to mark job completed", "error", err)
			return
		}
		logger.Info("Job completed", "result", result, "duration", time.Since(start))
		if p.listener != nil {
			p.listener.OnCompleted(ctx, job, result)
		}
		return
	}

	final, ferr := p.queue.Fail(ctx, job, err)
	if ferr != nil {
		logger.Error("Failed to record job failure", "error", ferr, "cause", err)
		return
	}
	if final {
		logger.Error("Job failed permanently", "error", err, "attempts", job.AttemptsMade)
	} else {
		logger.Warn("Job attempt failed, will retry", "error", err, "next_attempt_at", job.AvailableAt)
	}
	if p.listener != nil {
		p.listener.OnFailed(ctx, job, err, final)
	}
}

// execute runs the handler behind a recover. A panic becomes an ordinary
// attempt failure.
func (p *Pool) execute(ctx context.Context, job *queue.Job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return p.handler(ctx, job, func(pct int) {
		if perr := p.queue.Progress(ctx, job.ID, pct); perr != nil {
			slog.Warn("Failed to report progress", "job_id", job.ID, "error", perr)
		}
	})
}

// hold registers the job as in flight and refreshes its heartbeat until the
// returned func is called.
func (p *Pool) hold(ctx context.Context, logger *slog.Logger, id string) func() {
	p.heldMu.Lock()
	p.held[id] = struct{}{}
	p.heldMu.Unlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.opts.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if ok, err := p.queue.Heartbeat(ctx, id); err != nil {
					logger.Warn("Failed to refresh job heartbeat", "error", err)
				} else if !ok {
					logger.Warn("Job is no longer active")
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		p.heldMu.Lock()
		delete(p.held, id)
		p.heldMu.Unlock()
	}
}

func (p *Pool) holds(id string) bool {
	p.heldMu.Lock()
	defer p.heldMu.Unlock()
	_, ok := p.held[id]
	return ok
}

func (p *Pool) runRecovery(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.RecoverInterval)
	defer ticker.Stop()

	for {
		p.recoverStalled(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pool) recoverStalled(ctx context.Context) {
	failed, err := p.queue.RecoverStalled(ctx, p.holds)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Stalled job recovery failed", "queue", p.queue.Name(), "error", err)
		}
		return
	}
	if p.listener == nil {
		return
	}
	for _, job := range failed {
		p.listener.OnFailed(ctx, job, errors.New("job stalled"), true)
	}
}

func (p *Pool) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

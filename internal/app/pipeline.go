package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"novacontent/internal/model"
	"novacontent/internal/publish"
	"novacontent/internal/queue"
	"novacontent/internal/worker"
)

var ErrGenerationDisabled = errors.New("script generation is not configured")

type Pipeline struct {
	service *Service
	now     func() time.Time
}

type TriggerRequest struct {
	Topic   string `json:"topic"`
	NicheID int64  `json:"nicheId"`
}

type TriggerResult struct {
	ProductionID int64        `json:"productionId"`
	Status       model.Status `json:"status"`
	JobID        string       `json:"jobId"`
}

var _ worker.Listener = (*Pipeline)(nil)

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service, now: time.Now}
}

// Trigger runs generation and manifest preparation synchronously and
// enqueues the render. The returned status is the record's status when the
// render was handed to the queue.
// Cancelling ctx does not abort work already started.
func (p *Pipeline) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	if req.NicheID <= 0 {
		return nil, fmt.Errorf("%w: nicheId is required", model.ErrInvalidInput)
	}
	if p.service.Generator() == nil {
		return nil, ErrGenerationDisabled
	}

	// A created record must reach rendering or error even if the caller leaves.
	ctx = context.WithoutCancel(ctx)

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = p.service.Config().Generation.Topic
	}

	st := p.service.Store()
	niche, err := st.GetNiche(ctx, req.NicheID)
	if err != nil {
		return nil, err
	}

	prod, err := st.CreateProduction(ctx, niche.ID, topic)
	if err != nil {
		return nil, fmt.Errorf("create production: %w", err)
	}
	logger := slog.With("production", prod.ID, "niche", niche.Name)
	logger.Info("Production triggered", "topic", topic)

	script, err := p.service.Generator().Generate(ctx, *niche, topic)
	if err != nil {
		p.markError(ctx, prod.ID)
		return nil, &model.StageError{Stage: model.StageGeneration, ProductionID: prod.ID, Err: err}
	}

	if err := st.SaveScript(ctx, prod.ID, script, Hashtags(niche.Name, topic)); err != nil {
		p.markError(ctx, prod.ID)
		return nil, &model.StageError{Stage: model.StageGeneration, ProductionID: prod.ID, Err: err}
	}

	// Prepare marks the production as errored itself on failure.
	if _, err := p.service.Assembler().Prepare(ctx, script, prod.ID); err != nil {
		return nil, &model.StageError{Stage: model.StageManifest, ProductionID: prod.ID, Err: err}
	}

	job, err := p.service.Queue().Enqueue(ctx, model.RenderJob{
		ProductionID:      prod.ID,
		Niche:             *niche,
		OutputDestination: p.outputPath(prod.ID),
	})
	if err != nil {
		p.markError(ctx, prod.ID)
		return nil, &model.StageError{Stage: model.StageEnqueue, ProductionID: prod.ID, Err: err}
	}

	logger.Info("Render queued", "job_id", job.ID, "title", script.Title)
	return &TriggerResult{ProductionID: prod.ID, Status: model.StatusRendering, JobID: job.ID}, nil
}

// HandleJob is the worker handler for render jobs.
func (p *Pipeline) HandleJob(ctx context.Context, job *queue.Job, progress func(int)) (string, error) {
	return p.service.Renderer().Render(ctx, job, progress)
}

// OnCompleted publishes the production. A repeated completion for an
// already published production leaves the record untouched.
func (p *Pipeline) OnCompleted(ctx context.Context, job *queue.Job, result string) {
	id := job.Payload.ProductionID
	ok, err := p.service.Store().MarkPublished(ctx, id, result, p.now().UTC())
	if err != nil {
		slog.Error("Failed to mark production published", "production", id, "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		slog.Warn("Production was not rendering, completion ignored", "production", id, "job_id", job.ID)
		return
	}
	slog.Info("Production published", "production", id, "video_url", result)
}

// OnFailed marks the production errored once the job is out of attempts.
// Attempts that will be retried leave the record alone.
func (p *Pipeline) OnFailed(ctx context.Context, job *queue.Job, err error, final bool) {
	if !final {
		return
	}
	slog.Error("Render exhausted its attempts", "production", job.Payload.ProductionID, "job_id", job.ID, "error", err)
	p.markError(ctx, job.Payload.ProductionID)
}

// NewWorkerPool returns a pool that renders this pipeline's jobs.
func (p *Pipeline) NewWorkerPool() *worker.Pool {
	cfg := p.service.Config().Queue
	return worker.NewPool(p.service.Queue(), p.HandleJob, p, worker.Options{
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval,
		Heartbeat:    p.service.Queue().StallTimeout() / 4,
	})
}

// Publish posts a published production's video through the configured
// publisher and returns the post URL.
func (p *Pipeline) Publish(ctx context.Context, productionID int64) (string, error) {
	prod, err := p.service.Store().GetProduction(ctx, productionID)
	if err != nil {
		return "", err
	}
	if prod.Status != model.StatusPublished {
		return "", fmt.Errorf("%w: production %d is %s, not published", model.ErrInvalidInput, productionID, prod.Status)
	}

	cfg := p.service.Config().Publish
	meta := publish.MetadataFor(prod, p.outputPath(productionID), cfg.Privacy)
	meta.Tags = mergeTags(meta.Tags, cfg.DefaultTags)

	url, err := p.service.Publisher().Publish(ctx, meta)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", p.service.Publisher().Platform(), err)
	}
	slog.Info("Production posted", "production", productionID, "platform", p.service.Publisher().Platform(), "url", url)
	return url, nil
}

func (p *Pipeline) markError(ctx context.Context, id int64) {
	if _, err := p.service.Store().MarkError(context.WithoutCancel(ctx), id); err != nil {
		slog.Error("Failed to mark production errored", "production", id, "error", err)
	}
}

func (p *Pipeline) outputPath(id int64) string {
	dir := p.service.Config().Render.OutputDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, fmt.Sprintf("production-%d.mp4", id))
}

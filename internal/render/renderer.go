package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"novacontent/internal/model"
	"novacontent/internal/queue"
)

type Productions interface {
	GetProduction(ctx context.Context, id int64) (*model.Production, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, localPath, name string) (string, error)
}

type Renderer struct {
	productions Productions
	compositor  Compositor
	artifacts   ArtifactStore
	composition string
}

func NewRenderer(productions Productions, compositor Compositor, artifacts ArtifactStore, composition string) *Renderer {
	if composition == "" {
		composition = DefaultComposition
	}
	return &Renderer{
		productions: productions,
		compositor:  compositor,
		artifacts:   artifacts,
		composition: composition,
	}
}

// Render renders one job attempt and returns the stored video reference.
// A production that is already published is not rendered again; its
// existing reference is returned.
func (r *Renderer) Render(ctx context.Context, job *queue.Job, progress func(int)) (string, error) {
	id := job.Payload.ProductionID
	progress(10)

	p, err := r.productions.GetProduction(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load production %d: %w", id, err)
	}
	if p.Status == model.StatusPublished && p.VideoURL != "" {
		slog.Info("Production already published, skipping render", "production", id, "job_id", job.ID)
		progress(100)
		return p.VideoURL, nil
	}
	if p.Manifest == nil {
		return "", fmt.Errorf("production %d: %w", id, model.ErrManifestMissing)
	}
	progress(30)

	progress(50)
	err = r.compositor.Compose(ctx, Request{
		Manifest:    p.Manifest,
		Composition: r.composition,
		Output:      job.Payload.OutputDestination,
	})
	if err != nil {
		return "", err
	}

	ref := job.Payload.OutputDestination
	if r.artifacts != nil {
		ref, err = r.artifacts.Put(ctx, job.Payload.OutputDestination, filepath.Base(job.Payload.OutputDestination))
		if err != nil {
			return "", fmt.Errorf("%w: store artifact: %w", model.ErrRenderFailed, err)
		}
	}

	progress(100)
	slog.Info("Render finished", "production", id, "job_id", job.ID, "output", ref)
	return ref, nil
}

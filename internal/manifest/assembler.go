// Package manifest resolves a script into a render manifest: narration and
// a visual asset for every scene, timed by the measured narration length.
package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"novacontent/internal/model"
	"novacontent/internal/visuals"
	"novacontent/internal/voicecache"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (voicecache.Entry, error)
}

type Store interface {
	SaveManifest(ctx context.Context, id int64, m *model.Manifest) error
	MarkError(ctx context.Context, id int64) (bool, error)
}

type Assembler struct {
	synth   Synthesizer
	visuals visuals.Resolver
	store   Store
	voiceID string
}

func NewAssembler(synth Synthesizer, resolver visuals.Resolver, store Store, voiceID string) *Assembler {
	if resolver == nil {
		resolver = visuals.Placeholder{}
	}
	return &Assembler{synth: synth, visuals: resolver, store: store, voiceID: voiceID}
}

// Prepare resolves every scene concurrently and persists the manifest,
// moving the production to rendering. Any scene failure marks the
// production as errored and nothing is persisted.
func (a *Assembler) Prepare(ctx context.Context, script *model.Script, productionID int64) (*model.Manifest, error) {
	slog.Info("Preparing render manifest", "production", productionID, "scenes", len(script.Scenes))

	m, err := a.resolve(ctx, script)
	if err != nil {
		a.fail(ctx, productionID, err)
		return nil, fmt.Errorf("%w: %w", model.ErrManifestFailed, err)
	}

	if err := a.store.SaveManifest(ctx, productionID, m); err != nil {
		a.fail(ctx, productionID, err)
		return nil, fmt.Errorf("%w: save manifest: %w", model.ErrManifestFailed, err)
	}

	slog.Info("Render manifest ready", "production", productionID, "duration", m.TotalDuration())
	return m, nil
}

// resolve writes each result into its scene's slot so the manifest keeps
// script order whatever order the tasks finish in. Tasks share no context,
// so one failing scene does not abort synthesis already under way for the
// others.
func (a *Assembler) resolve(ctx context.Context, script *model.Script) (*model.Manifest, error) {
	scenes := make([]model.ResolvedScene, len(script.Scenes))

	var g errgroup.Group
	for i, scene := range script.Scenes {
		scenes[i].Text = scene.Text

		g.Go(func() error {
			entry, err := a.synth.Synthesize(ctx, scene.Text, a.voiceID)
			if err != nil {
				return fmt.Errorf("scene %d audio: %w", i+1, err)
			}
			if entry.Duration <= 0 {
				return fmt.Errorf("scene %d audio: %w: non-positive duration", i+1, model.ErrSynthesisFailed)
			}
			scenes[i].AudioURL = entry.URL
			scenes[i].DurationInSeconds = entry.Duration
			return nil
		})

		g.Go(func() error {
			u, err := a.visuals.Resolve(ctx, scene.VisualPrompt)
			if err != nil {
				return fmt.Errorf("scene %d visual: %w", i+1, err)
			}
			scenes[i].AssetURL = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &model.Manifest{Title: script.Title, Scenes: scenes}, nil
}

func (a *Assembler) fail(ctx context.Context, productionID int64, cause error) {
	slog.Error("Manifest preparation failed", "production", productionID, "error", cause)
	// The caller may have gone away; the failure is still recorded.
	if _, err := a.store.MarkError(context.WithoutCancel(ctx), productionID); err != nil {
		slog.Error("Failed to mark production as errored", "production", productionID, "error", err)
	}
}

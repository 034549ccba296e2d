package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"novacontent/internal/generation"
	"novacontent/internal/manifest"
	"novacontent/internal/media"
	"novacontent/internal/publish"
	"novacontent/internal/queue"
	"novacontent/internal/quota"
	"novacontent/internal/render"
	"novacontent/internal/speech"
	"novacontent/internal/speech/elevenlabs"
	"novacontent/internal/storage"
	"novacontent/internal/store"
	"novacontent/internal/visuals"
	"novacontent/internal/voicecache"
	"novacontent/pkg/config"
	"novacontent/pkg/retry"
)

// BuildService wires every component from configuration. The generation
// backend is optional so that worker-only processes need no API key.
func BuildService(ctx context.Context, cfg *config.Config) (*Service, error) {
	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Service, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		_ = st.Close()
		return nil, err
	}

	var counter quota.Counter = st
	if cfg.Quota.Backend == "redis" {
		rc, err := quota.NewRedisCounter(ctx, cfg.RedisAddr)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rc)
		counter = rc
	}
	ledger := quota.NewLedger(counter, cfg.Generation.DailyLimit)

	gen, err := buildGenerator(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	var genClient *generation.Client
	if gen != nil {
		genClient = generation.NewClient(gen, ledger, retry.Policy{
			MaxAttempts: cfg.Generation.MaxAttempts,
			BaseDelay:   cfg.Generation.BaseDelay,
			Multiplier:  2,
			Jitter:      cfg.Generation.Jitter,
			HintBuffer:  cfg.Generation.HintBuffer,
		})
	}

	cache, err := voicecache.New(voicecache.Config{
		Dir:       cfg.Cache.Dir,
		URLPrefix: cfg.Cache.URLPrefix,
		VoiceID:   cfg.Speech.VoiceID,
		ModelID:   cfg.Speech.Model,
		Policy: retry.Policy{
			MaxAttempts: cfg.Speech.MaxAttempts,
			BaseDelay:   cfg.Speech.BaseDelay,
			Multiplier:  2,
			Jitter:      cfg.Speech.Jitter,
		},
	}, buildSpeech(cfg), media.NewDefaultProber(cfg.Speech.FFProbe))
	if err != nil {
		return fail(err)
	}

	assembler := manifest.NewAssembler(cache, buildVisuals(cfg), st, cfg.Speech.VoiceID)

	q := queue.New(st, queue.Options{
		Name:         cfg.Queue.Name,
		Attempts:     cfg.Queue.Attempts,
		Backoff:      cfg.Queue.Backoff,
		StallTimeout: cfg.Queue.StallTimeout,
	})

	artifacts, err := buildArtifacts(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := artifacts.(io.Closer); ok {
		closers = append(closers, c)
	}

	renderer := render.NewRenderer(st, buildCompositor(cfg), artifacts, cfg.Render.Composition)

	return NewService(ServiceOptions{
		Config:    cfg,
		Store:     st,
		Ledger:    ledger,
		Generator: genClient,
		Cache:     cache,
		Assembler: assembler,
		Queue:     q,
		Renderer:  renderer,
		Artifacts: artifacts,
		Publisher: buildPublisher(cfg),
		Closers:   closers,
	}), nil
}

func buildGenerator(ctx context.Context, cfg *config.Config) (generation.Generator, error) {
	switch cfg.Generation.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY not set, script generation disabled")
			return nil, nil
		}
		return generation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Generation.Model, cfg.Generation.Temperature)
	case "groq":
		if cfg.GroqAPIKey == "" {
			slog.Warn("GROQ_API_KEY not set, script generation disabled")
			return nil, nil
		}
		return generation.NewGroqGenerator(cfg.GroqAPIKey, cfg.Groq.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

func buildSpeech(cfg *config.Config) speech.Provider {
	if cfg.Speech.Provider == "elevenlabs" && cfg.ElevenLabsAPIKey != "" {
		return elevenlabs.NewClient(elevenlabs.Config{
			APIKeys:    []string{cfg.ElevenLabsAPIKey},
			VoiceID:    cfg.Speech.VoiceID,
			ModelID:    cfg.Speech.Model,
			Stability:  cfg.Speech.Stability,
			Similarity: cfg.Speech.Similarity,
		})
	}
	if cfg.Speech.Provider == "elevenlabs" {
		slog.Warn("ELEVENLABS_API_KEY not set, using silent stub narration")
	}
	return speech.NewStubProvider(speech.DefaultWordsPerMinute)
}

func buildVisuals(cfg *config.Config) visuals.Resolver {
	if cfg.Visuals.Provider == "search" && cfg.GoogleSearchAPIKey != "" && cfg.GoogleSearchEngineID != "" {
		return visuals.Fallback{Primary: visuals.NewSearchResolver(cfg.GoogleSearchAPIKey, cfg.GoogleSearchEngineID)}
	}
	return visuals.Placeholder{}
}

func buildCompositor(cfg *config.Config) render.Compositor {
	if cfg.Render.Engine == "ffmpeg" {
		return render.NewFFmpegCompositor(cfg.Render.FFmpeg, cfg.Cache.Dir, cfg.Cache.URLPrefix)
	}
	return render.NewCLICompositor(cfg.Render.Command, cfg.Render.Args, cfg.Render.WorkDir)
}

func buildArtifacts(ctx context.Context, cfg *config.Config) (storage.ArtifactStore, error) {
	if cfg.Storage.Backend == "gcs" {
		return storage.NewGCSStorage(ctx, cfg.GCSBucket, cfg.Storage.GCSPrefix)
	}
	local := storage.NewLocalStorage(cfg.Render.OutputDir, cfg.Storage.URLPrefix)
	if err := local.EnsureDirectories(); err != nil {
		return nil, err
	}
	return local, nil
}

func buildPublisher(cfg *config.Config) publish.Publisher {
	if cfg.Publish.Platform == "youtube" && cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		return publish.NewYouTubePublisher(publish.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath))
	}
	return publish.LogPublisher{}
}

// Package generation produces script documents from a niche and a topic
// through an external generation backend, gated by the daily quota ledger.
package generation

import (
	"context"
	"log/slog"
	"time"

	"novacontent/internal/model"
	"novacontent/pkg/retry"
)

const (
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = 10 * time.Second
	DefaultJitter      = 2 * time.Second
	DefaultHintBuffer  = time.Second
)

type QuotaGate interface {
	CanProceed(ctx context.Context) (bool, error)
	RecordUsage(ctx context.Context) error
}

type Client struct {
	gen    Generator
	quota  QuotaGate
	policy retry.Policy
}

func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  2,
		Jitter:      DefaultJitter,
		HintBuffer:  DefaultHintBuffer,
	}
}

func NewClient(gen Generator, quota QuotaGate, policy retry.Policy) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	return &Client{gen: gen, quota: quota, policy: policy}
}

// Generate returns a validated script. A denied quota check fails with
// ErrQuotaExceeded before any backend call. Quota usage is recorded once,
// and only for a script that passed validation.
func (c *Client) Generate(ctx context.Context, niche model.Niche, topic string) (*model.Script, error) {
	ok, err := c.quota.CanProceed(ctx)
	if err != nil {
		return nil, &model.GenerationError{Err: err}
	}
	if !ok {
		return nil, model.ErrQuotaExceeded
	}

	req := Request{
		SystemInstruction: SystemInstruction(niche),
		Prompt:            UserPrompt(niche, topic),
	}

	var script *model.Script
	attempts, err := retry.Do(ctx, c.policy, c.classify, func(ctx context.Context, attempt int) error {
		slog.Info("Generating script", "backend", c.gen.Name(), "niche", niche.Name, "attempt", attempt)

		text, err := c.gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		parsed, err := ParseScript(text)
		if err != nil {
			return err
		}
		script = parsed
		return nil
	})
	if err != nil {
		slog.Error("Script generation failed", "niche", niche.Name, "attempts", attempts, "error", err)
		return nil, &model.GenerationError{Attempts: attempts, Err: err}
	}

	if err := c.quota.RecordUsage(ctx); err != nil {
		slog.Error("Failed to record quota usage", "error", err)
	}

	slog.Info("Script generated", "title", script.Title, "scenes", len(script.Scenes), "attempts", attempts)
	return script, nil
}

func (c *Client) classify(err error) (bool, time.Duration) {
	retryable, hint := classify(err)
	if retryable {
		if hint > 0 {
			slog.Warn("Rate limited, backend requested wait", "wait", hint+c.policy.HintBuffer)
		} else {
			slog.Warn("Rate limited, backing off", "error", err)
		}
	}
	return retryable, hint
}

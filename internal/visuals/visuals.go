// Package visuals turns a scene's visual prompt into an asset URL the
// compositor can load.
package visuals

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	placeholderBase  = "https://placehold.co/1080x1920/000000/FFFFFF/png"
	placeholderWords = 5
)

type Resolver interface {
	Resolve(ctx context.Context, prompt string) (string, error)
}

// Placeholder renders the first words of the prompt onto a solid portrait
// frame. It never fails.
type Placeholder struct{}

func (Placeholder) Resolve(ctx context.Context, prompt string) (string, error) {
	return PlaceholderURL(prompt), nil
}

func PlaceholderURL(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > placeholderWords {
		words = words[:placeholderWords]
	}
	return fmt.Sprintf("%s?text=%s", placeholderBase, url.QueryEscape(strings.Join(words, " ")))
}

// Fallback tries Primary and falls back to a placeholder on error or when
// nothing was found.
type Fallback struct {
	Primary Resolver
}

func (f Fallback) Resolve(ctx context.Context, prompt string) (string, error) {
	if f.Primary != nil {
		u, err := f.Primary.Resolve(ctx, prompt)
		if err == nil && u != "" {
			return u, nil
		}
		if err != nil {
			slog.Warn("Visual lookup failed, using placeholder", "prompt", prompt, "error", err)
		}
	}
	return PlaceholderURL(prompt), nil
}

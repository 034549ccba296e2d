// Package niche holds the built-in content verticals and loads extra ones
// from YAML.
package niche

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"novacontent/internal/model"
)

var CrazyAnimalFacts = model.Niche{
	Name:           "Crazy Animal Facts",
	Tone:           "Excited, sensational, and slightly humorous.",
	TargetAudience: "Teens and young adults on TikTok and YouTube Shorts.",
	VisualStyle:    "Fast-paced cuts, stock footage of animals, bold text overlays, and an energetic background track.",
	PromptTemplate: `Aim for about 30 seconds of narration built around one crazy animal fact.
- The tone must be: {tone}
- The target audience is: {targetAudience}
- The visual style should be: {visualStyle}

Here is the topic for today: {topic}`,
}

var AncientHistorySecrets = model.Niche{
	Name:           "Ancient History Secrets",
	Tone:           "Mysterious, intriguing, and educational.",
	TargetAudience: "History enthusiasts and curious minds on YouTube and Instagram Reels.",
	VisualStyle:    "Cinematic shots of historical sites, ancient artifacts, and map animations. A deep, narrative voiceover with orchestral background music.",
	PromptTemplate: `Aim for about 45 seconds of narration revealing a secret or a lesser-known fact about ancient history.
- The tone must be: {tone}
- The target audience is: {targetAudience}
- The visual style is: {visualStyle}

Today's historical topic is: {topic}`,
}

func Builtin() []model.Niche {
	return []model.Niche{CrazyAnimalFacts, AncientHistorySecrets}
}

type file struct {
	Niches []model.Niche `yaml:"niches"`
}

// LoadFile reads niche definitions from a YAML file with a top level
// "niches" list.
func LoadFile(path string) ([]model.Niche, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read niche file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse niche file: %w", err)
	}

	for i := range f.Niches {
		if err := f.Niches[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: niche %d in %s: %v", model.ErrInvalidInput, i+1, path, err)
		}
	}
	return f.Niches, nil
}

type Store interface {
	UpsertNiche(ctx context.Context, n model.Niche) (int64, error)
}

// Seed upserts the niches by name and returns their ids in input order.
func Seed(ctx context.Context, store Store, niches []model.Niche) ([]int64, error) {
	ids := make([]int64, 0, len(niches))
	for _, n := range niches {
		id, err := store.UpsertNiche(ctx, n)
		if err != nil {
			return ids, fmt.Errorf("seed niche %q: %w", n.Name, err)
		}
		slog.Info("Seeded niche", "id", id, "name", n.Name)
		ids = append(ids, id)
	}
	return ids, nil
}

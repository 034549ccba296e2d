// Package publish hands a finished video to a distribution platform.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"novacontent/internal/model"
)

type Metadata struct {
	Title       string
	Description string
	Tags        []string
	VideoPath   string
	Privacy     string
}

// Publisher posts a video and returns the public URL of the post.
type Publisher interface {
	Publish(ctx context.Context, meta Metadata) (string, error)
	Platform() string
}

// MetadataFor builds publish metadata from a production record.
func MetadataFor(p *model.Production, videoPath, privacy string) Metadata {
	return Metadata{
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		VideoPath:   videoPath,
		Privacy:     privacy,
	}
}

// LogPublisher only logs what would be published. It returns the local
// file URL so dry runs still produce a reference.
type LogPublisher struct{}

func (LogPublisher) Platform() string { return "log" }

func (LogPublisher) Publish(ctx context.Context, meta Metadata) (string, error) {
	if _, err := os.Stat(meta.VideoPath); err != nil {
		return "", fmt.Errorf("video file: %w", err)
	}
	slog.Info("Publish (dry run)", "title", meta.Title, "tags", meta.Tags, "path", meta.VideoPath)
	return "file://" + meta.VideoPath, nil
}

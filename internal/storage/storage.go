// Package storage keeps rendered videos somewhere the rest of the system
// can reference them by URL.
package storage

import (
	"context"
	"time"
)

type Artifact struct {
	Name    string
	URL     string
	Size    int64
	Updated time.Time
}

// ArtifactStore persists a finished render under name and returns its
// reference. Put is idempotent: storing the same name twice overwrites.
type ArtifactStore interface {
	Put(ctx context.Context, localPath, name string) (string, error)
	List(ctx context.Context) ([]Artifact, error)
}

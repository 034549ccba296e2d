package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type LocalStorage struct {
	dir       string
	urlPrefix string
}

func NewLocalStorage(dir, urlPrefix string) *LocalStorage {
	return &LocalStorage{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

func (s *LocalStorage) EnsureDirectories() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Put copies localPath into the storage directory unless it already lives
// there.
func (s *LocalStorage) Put(ctx context.Context, localPath, name string) (string, error) {
	if err := s.EnsureDirectories(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, name)
	same, err := samePath(localPath, dst)
	if err != nil {
		return "", err
	}
	if !same {
		if err := copyFile(localPath, dst); err != nil {
			return "", err
		}
	}
	return s.url(name), nil
}

func (s *LocalStorage) List(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !isVideo(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:    entry.Name(),
			URL:     s.url(entry.Name()),
			Size:    info.Size(),
			Updated: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Updated.After(artifacts[j].Updated) })
	return artifacts, nil
}

func (s *LocalStorage) url(name string) string {
	if s.urlPrefix == "" {
		return filepath.Join(s.dir, name)
	}
	return s.urlPrefix + "/" + name
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("resolve path: %w", err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("resolve path: %w", err)
	}
	return absA == absB, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	return os.Rename(tmp.Name(), dst)
}

func isVideo(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mov", ".mkv", ".webm":
		return true
	}
	return false
}

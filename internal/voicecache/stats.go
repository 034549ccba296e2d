package voicecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

type Stats struct {
	Files  int
	Bytes  int64
	Oldest time.Time
	Newest time.Time
}

// Stats summarizes the cached audio files. Temp and lock files are ignored.
func (c *Cache) Stats() (Stats, error) {
	var st Stats
	err := c.walk(func(path string, info os.FileInfo) error {
		st.Files++
		st.Bytes += info.Size()
		mod := info.ModTime()
		if st.Oldest.IsZero() || mod.Before(st.Oldest) {
			st.Oldest = mod
		}
		if mod.After(st.Newest) {
			st.Newest = mod
		}
		return nil
	})
	return st, err
}

// Prune removes cached files not modified since cutoff and returns how many
// were removed. Lock files older than cutoff that nobody holds go too. The
// pipeline never evicts on its own.
func (c *Cache) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := c.walk(func(path string, info os.FileInfo) error {
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, c.pruneLocks(cutoff)
}

func (c *Cache) pruneLocks(cutoff time.Time) error {
	locks, err := filepath.Glob(filepath.Join(c.dir, "*.lock"))
	if err != nil {
		return fmt.Errorf("list lock files: %w", err)
	}
	for _, path := range locks {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		lock := flock.New(path)
		ok, err := lock.TryLock()
		if err != nil || !ok {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			_ = lock.Unlock()
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
		_ = lock.Unlock()
	}
	return nil
}

func (c *Cache) walk(fn func(path string, info os.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".lock") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if err := fn(filepath.Join(c.dir, name), info); err != nil {
			return err
		}
	}
	return nil
}

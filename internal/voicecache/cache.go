// Package voicecache keeps synthesized narration on disk keyed by the
// content hash of voice and text, so a line is only ever synthesized once.
package voicecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"novacontent/internal/media"
	"novacontent/internal/model"
	"novacontent/internal/speech"
	"novacontent/pkg/retry"
)

const (
	DefaultURLPrefix   = "/voiceovers"
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
	DefaultJitter      = time.Second

	lockRetryDelay = 50 * time.Millisecond
)

// Entry is a cached narration file.
type Entry struct {
	Key      string
	Path     string
	URL      string
	Duration float64
	Hit      bool
}

type Config struct {
	Dir       string
	URLPrefix string
	VoiceID   string
	ModelID   string
	Policy    retry.Policy
}

type Cache struct {
	dir       string
	urlPrefix string
	voiceID   string
	modelID   string
	provider  speech.Provider
	prober    media.Prober
	policy    retry.Policy
	group     singleflight.Group
}

func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  2,
		Jitter:      DefaultJitter,
	}
}

func New(cfg Config, provider speech.Provider, prober media.Prober) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: cache directory is required", model.ErrInvalidInput)
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = DefaultURLPrefix
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = speech.DefaultVoiceID
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = DefaultPolicy()
	}

	return &Cache{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/"),
		voiceID:   cfg.VoiceID,
		modelID:   cfg.ModelID,
		provider:  provider,
		prober:    prober,
		policy:    cfg.Policy,
	}, nil
}

func (c *Cache) Dir() string { return c.dir }

// Key is the hex SHA-256 of voice and text. The separator keeps
// ("ab", "c") and ("a", "bc") apart.
func Key(text, voiceID string) string {
	sum := sha256.Sum256([]byte(voiceID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Synthesize returns the cached narration for text, producing it on a miss.
// Concurrent callers for the same key share one synthesis in-process, and
// a file lock serializes producers across processes. A caller that gives
// up returns early without aborting the synthesis.
func (c *Cache) Synthesize(ctx context.Context, text, voiceID string) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, fmt.Errorf("%w: empty narration text", model.ErrInvalidInput)
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	key := Key(text, voiceID)
	// The shared load outlives any single caller so the result still lands
	// in the cache for the others.
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, text, voiceID)
	})
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

func (c *Cache) load(ctx context.Context, key, text, voiceID string) (Entry, error) {
	name := key + "." + c.provider.Extension()
	entry := Entry{
		Key:  key,
		Path: filepath.Join(c.dir, name),
		URL:  c.urlPrefix + "/" + name,
	}

	if exists(entry.Path) {
		return c.measure(ctx, entry, true)
	}

	lock := flock.New(entry.Path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return Entry{}, fmt.Errorf("%w: lock %s: %v", model.ErrSynthesisFailed, key, err)
	}
	// The lock file stays behind: removing it would let a waiter lock an
	// unlinked inode while another process creates a fresh one. Prune
	// clears stale locks.
	defer func() { _ = lock.Unlock() }()

	// Another process may have finished while we waited on the lock.
	if exists(entry.Path) {
		return c.measure(ctx, entry, true)
	}

	req := speech.Request{Text: text, VoiceID: voiceID, ModelID: c.modelID}
	attempts, err := retry.Do(ctx, c.policy, c.classify, func(ctx context.Context, attempt int) error {
		return c.produce(ctx, req, entry.Path)
	})
	if err != nil {
		slog.Error("Voiceover synthesis failed", "key", key, "attempts", attempts, "error", err)
		return Entry{}, fmt.Errorf("%w: %w", model.ErrSynthesisFailed, err)
	}

	slog.Info("Voiceover synthesized", "key", key, "attempts", attempts)
	return c.measure(ctx, entry, false)
}

// produce writes into a fresh temp file and renames it into place, so a
// failed attempt never leaves a partial file under the final name.
func (c *Cache) produce(ctx context.Context, req speech.Request, dst string) error {
	tmp, err := os.CreateTemp(c.dir, ".synth-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := c.provider.Synthesize(ctx, req, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename into cache: %w", err)
	}
	return nil
}

func (c *Cache) measure(ctx context.Context, entry Entry, hit bool) (Entry, error) {
	dur, err := c.prober.Duration(ctx, entry.Path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: measure %s: %w", model.ErrSynthesisFailed, entry.Key, err)
	}
	entry.Duration = dur
	entry.Hit = hit
	return entry, nil
}

func (c *Cache) classify(err error) (bool, time.Duration) {
	if speech.IsTransient(err) {
		slog.Warn("Synthesizer transient error, retrying", "error", err)
		return true, 0
	}
	return false, 0
}

func exists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"novacontent/internal/model"
	"novacontent/internal/visuals"
	"novacontent/internal/voicecache"
)

type fakeSynth struct {
	mu    sync.Mutex
	order []string
	delay func(text string) time.Duration
	fail  string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voiceID string) (voicecache.Entry, error) {
	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	f.mu.Lock()
	f.order = append(f.order, text)
	f.mu.Unlock()

	if text == f.fail {
		return voicecache.Entry{}, fmt.Errorf("%w: provider down", model.ErrSynthesisFailed)
	}
	return voicecache.Entry{
		URL:      "/voiceovers/" + voicecache.Key(text, voiceID) + ".mp3",
		Duration: float64(len(text)) / 10,
	}, nil
}

type fakeStore struct {
	saved   *model.Manifest
	errored bool
	saveErr error
}

func (s *fakeStore) SaveManifest(ctx context.Context, id int64, m *model.Manifest) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = m
	return nil
}

func (s *fakeStore) MarkError(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.errored = true
	return true, nil
}

func script(texts ...string) *model.Script {
	s := &model.Script{Title: "Test", Hook: "h", Body: "b", CallToAction: "c"}
	for _, t := range texts {
		s.Scenes = append(s.Scenes, model.Scene{Text: t, VisualPrompt: "visual " + t, DurationInSeconds: 5})
	}
	return s
}

func TestPrepareKeepsSceneOrderWhenCompletionIsReversed(t *testing.T) {
	texts := []string{"first scene", "second scene!", "third scene!!!"}
	synth := &fakeSynth{delay: func(text string) time.Duration {
		for i, tx := range texts {
			if tx == text {
				return time.Duration(len(texts)-i) * 30 * time.Millisecond
			}
		}
		return 0
	}}
	st := &fakeStore{}

	m, err := NewAssembler(synth, visuals.Placeholder{}, st, "voice").Prepare(context.Background(), script(texts...), 1)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if synth.order[0] != texts[2] {
		t.Fatalf("test setup: expected reversed completion, got %v", synth.order)
	}
	for i, scene := range m.Scenes {
		if scene.Text != texts[i] {
			t.Errorf("scene %d text = %q, want %q", i, scene.Text, texts[i])
		}
		if scene.AssetURL != visuals.PlaceholderURL("visual "+texts[i]) {
			t.Errorf("scene %d asset = %q", i, scene.AssetURL)
		}
	}
	if st.saved != m {
		t.Error("manifest was not persisted")
	}
	if st.errored {
		t.Error("production should not be marked errored")
	}
}

func TestPrepareUsesMeasuredDuration(t *testing.T) {
	m, err := NewAssembler(&fakeSynth{}, nil, &fakeStore{}, "").Prepare(context.Background(), script("0123456789"), 1)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if got := m.Scenes[0].DurationInSeconds; got != 1.0 {
		t.Errorf("duration = %v, want measured 1.0 not nominal 5", got)
	}
}

func TestPrepareSceneFailureMarksError(t *testing.T) {
	st := &fakeStore{}
	synth := &fakeSynth{fail: "bad"}

	_, err := NewAssembler(synth, nil, st, "").Prepare(context.Background(), script("good", "bad", "also good"), 7)
	if !errors.Is(err, model.ErrManifestFailed) {
		t.Fatalf("expected ErrManifestFailed, got %v", err)
	}
	if !errors.Is(err, model.ErrSynthesisFailed) {
		t.Errorf("expected cause to be ErrSynthesisFailed, got %v", err)
	}
	if st.saved != nil {
		t.Error("no partial manifest may be persisted")
	}
	if !st.errored {
		t.Error("production should be marked errored")
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("no visuals")
}

func TestPrepareVisualFailureMarksError(t *testing.T) {
	st := &fakeStore{}
	_, err := NewAssembler(&fakeSynth{}, failingResolver{}, st, "").Prepare(context.Background(), script("one"), 3)
	if !errors.Is(err, model.ErrManifestFailed) {
		t.Fatalf("expected ErrManifestFailed, got %v", err)
	}
	if !st.errored {
		t.Error("production should be marked errored")
	}
}

func TestPrepareSaveFailureMarksError(t *testing.T) {
	st := &fakeStore{saveErr: errors.New("invalid transition")}
	_, err := NewAssembler(&fakeSynth{}, nil, st, "").Prepare(context.Background(), script("one"), 3)
	if !errors.Is(err, model.ErrManifestFailed) {
		t.Fatalf("expected ErrManifestFailed, got %v", err)
	}
	if !st.errored {
		t.Error("production should be marked errored")
	}
}

type cancelledResolver struct{}

func (cancelledResolver) Resolve(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPrepareMarksErrorAfterCallerCancels(t *testing.T) {
	st := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAssembler(&fakeSynth{}, cancelledResolver{}, st, "").Prepare(ctx, script("one"), 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled cause, got %v", err)
	}
	if !st.errored {
		t.Error("production should be marked errored even though the caller cancelled")
	}
}

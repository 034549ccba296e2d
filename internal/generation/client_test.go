package generation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"novacontent/internal/model"
	"novacontent/pkg/retry"
)

const validResponse = "```json\n" + `{
  "title": "Octopus Secrets",
  "hook": "Three hearts?",
  "body": "Octopuses pump blue blood.",
  "callToAction": "Follow for more!",
  "scenes": [
    {"text": "Meet the octopus.", "visualPrompt": "octopus on a reef", "durationInSeconds": 4},
    {"text": "", "visualPrompt": "dropped scene"},
    {"text": "It has three hearts.", "visualPrompt": "anatomical heart diagram"}
  ]
}` + "\n```"

type fakeGenerator struct {
	calls     int32
	responses []func() (string, error)
	lastReq   Request
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastReq = req
	idx := int(n) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]()
}

func respond(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

type fakeQuota struct {
	allow    bool
	recorded int32
}

func (q *fakeQuota) CanProceed(ctx context.Context) (bool, error) { return q.allow, nil }

func (q *fakeQuota) RecordUsage(ctx context.Context) error {
	atomic.AddInt32(&q.recorded, 1)
	return nil
}

type waits struct {
	got []time.Duration
}

func (w *waits) sleep(ctx context.Context, d time.Duration) error {
	w.got = append(w.got, d)
	return nil
}

func testPolicy(w *waits) retry.Policy {
	p := DefaultPolicy()
	p.Sleep = w.sleep
	p.Rand = func() float64 { return 0 }
	return p
}

var testNiche = model.Niche{
	Name:           "CRAZY_ANIMAL_FACTS",
	Tone:           "Energetic and witty",
	TargetAudience: "Curious teens",
	VisualStyle:    "Vibrant close-ups",
	PromptTemplate: "Keep it about {topic} for {targetAudience}.",
}

func TestGenerateQuotaDenied(t *testing.T) {
	gen := &fakeGenerator{responses: []func() (string, error){respond(validResponse)}}
	quota := &fakeQuota{allow: false}
	c := NewClient(gen, quota, testPolicy(&waits{}))

	_, err := c.Generate(context.Background(), testNiche, "octopuses")
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
	if quota.recorded != 0 {
		t.Errorf("usage recorded %d times, want 0", quota.recorded)
	}
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{responses: []func() (string, error){respond(validResponse)}}
	quota := &fakeQuota{allow: true}
	c := NewClient(gen, quota, testPolicy(&waits{}))

	script, err := c.Generate(context.Background(), testNiche, "octopuses")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if script.Title != "Octopus Secrets" {
		t.Errorf("Title = %q", script.Title)
	}
	if len(script.Scenes) != 2 {
		t.Fatalf("scenes = %d, want 2 after dropping the incomplete one", len(script.Scenes))
	}
	if script.Scenes[0].DurationInSeconds != 4 || script.Scenes[1].DurationInSeconds != model.DefaultSceneDuration {
		t.Errorf("durations = %v, %v", script.Scenes[0].DurationInSeconds, script.Scenes[1].DurationInSeconds)
	}
	if quota.recorded != 1 {
		t.Errorf("usage recorded %d times, want 1", quota.recorded)
	}

	if !strings.Contains(gen.lastReq.SystemInstruction, "Energetic and witty") {
		t.Error("system instruction missing tone")
	}
	if !strings.Contains(gen.lastReq.Prompt, "octopuses") {
		t.Error("prompt missing topic")
	}
}

func TestGenerateInvalidResponseNotRecorded(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"missing title", `{"hook":"h","body":"b","callToAction":"c","scenes":[{"text":"t","visualPrompt":"v"}]}`},
		{"all scenes dropped", `{"title":"t","hook":"h","body":"b","callToAction":"c","scenes":[{"text":"t"}]}`},
		{"no scenes", `{"title":"t","hook":"h","body":"b","callToAction":"c"}`},
		{"not json", `Sorry, I cannot help with that.`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{responses: []func() (string, error){respond(tt.response)}}
			quota := &fakeQuota{allow: true}
			c := NewClient(gen, quota, testPolicy(&waits{}))

			_, err := c.Generate(context.Background(), testNiche, "x")
			if !errors.Is(err, model.ErrGenerationFailed) {
				t.Fatalf("expected ErrGenerationFailed, got %v", err)
			}
			if quota.recorded != 0 {
				t.Errorf("usage recorded %d times, want 0", quota.recorded)
			}
			if gen.calls != 1 {
				t.Errorf("generator called %d times, want 1", gen.calls)
			}
		})
	}
}

func TestGenerateRetriesRateLimitWithBackoff(t *testing.T) {
	rateLimited := &RateLimitError{Err: errors.New("429 Too Many Requests")}
	gen := &fakeGenerator{responses: []func() (string, error){
		fail(rateLimited),
		fail(rateLimited),
		respond(validResponse),
	}}
	quota := &fakeQuota{allow: true}
	w := &waits{}
	c := NewClient(gen, quota, testPolicy(w))

	if _, err := c.Generate(context.Background(), testNiche, "x"); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if quota.recorded != 1 {
		t.Errorf("usage recorded %d times, want 1", quota.recorded)
	}

	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(w.got) != 2 || w.got[0] != want[0] || w.got[1] != want[1] {
		t.Errorf("waits = %v, want %v", w.got, want)
	}
}

func TestGenerateHonorsRetryHint(t *testing.T) {
	hinted := &RateLimitError{Err: errors.New("Resource exhausted. Please retry in 12.3451s.")}
	gen := &fakeGenerator{responses: []func() (string, error){fail(hinted), respond(validResponse)}}
	w := &waits{}
	c := NewClient(gen, &fakeQuota{allow: true}, testPolicy(w))

	if _, err := c.Generate(context.Background(), testNiche, "x"); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	want := 12346*time.Millisecond + time.Second
	if len(w.got) != 1 || w.got[0] != want {
		t.Errorf("waits = %v, want [%v]", w.got, want)
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	gen := &fakeGenerator{responses: []func() (string, error){fail(&RateLimitError{Err: errors.New("429")})}}
	quota := &fakeQuota{allow: true}
	c := NewClient(gen, quota, testPolicy(&waits{}))

	_, err := c.Generate(context.Background(), testNiche, "x")

	var genErr *model.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Attempts != DefaultMaxAttempts || gen.calls != DefaultMaxAttempts {
		t.Errorf("attempts = %d, calls = %d, want %d", genErr.Attempts, gen.calls, DefaultMaxAttempts)
	}
	if quota.recorded != 0 {
		t.Errorf("usage recorded %d times, want 0", quota.recorded)
	}
}

func TestGenerateOtherErrorIsNotRetried(t *testing.T) {
	gen := &fakeGenerator{responses: []func() (string, error){fail(errors.New("permission denied"))}}
	w := &waits{}
	c := NewClient(gen, &fakeQuota{allow: true}, testPolicy(w))

	_, err := c.Generate(context.Background(), testNiche, "x")

	var genErr *model.GenerationError
	if !errors.As(err, &genErr) || genErr.Attempts != 1 {
		t.Fatalf("expected GenerationError after 1 attempt, got %v", err)
	}
	if len(w.got) != 0 {
		t.Errorf("unexpected waits %v", w.got)
	}
}

func TestRetryHint(t *testing.T) {
	tests := []struct {
		msg  string
		want time.Duration
		ok   bool
	}{
		{"Please retry in 3s.", 3 * time.Second, true},
		{"quota hit. Please retry in 0.5s", 500 * time.Millisecond, true},
		{"Please retry in 1.0001s", 1001 * time.Millisecond, true},
		{"retry later", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := RetryHint(tt.msg)
			if ok != tt.ok || got != tt.want {
				t.Errorf("RetryHint() = %v, %v, want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestUserPromptFallsBackToDefaultTopic(t *testing.T) {
	got := UserPrompt(model.Niche{}, "  ")
	if got != "Generate a viral video script about a surprising fact." {
		t.Errorf("UserPrompt() = %q", got)
	}

	withTemplate := UserPrompt(testNiche, "sloths")
	if !strings.HasSuffix(withTemplate, "Keep it about sloths for Curious teens.") {
		t.Errorf("template not appended: %q", withTemplate)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"{\"a\":1}", `{"a":1}`},
		{"  ```json{\"a\":1}```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseScriptFieldPresence(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{"empty text fields", `{"title":"","hook":"","body":"","callToAction":"","scenes":[{"text":"t","visualPrompt":"v"}]}`, ""},
		{"missing hook", `{"title":"t","body":"b","callToAction":"c","scenes":[{"text":"t","visualPrompt":"v"}]}`, "missing hook"},
		{"missing callToAction", `{"title":"t","hook":"h","body":"b","scenes":[{"text":"t","visualPrompt":"v"}]}`, "missing callToAction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := ParseScript(tt.text)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseScript() error: %v", err)
				}
				if script.Title != "" || len(script.Scenes) != 1 {
					t.Errorf("ParseScript() = %+v", script)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseScript() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

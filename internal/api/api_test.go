package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"novacontent/internal/app"
	"novacontent/internal/model"
	"novacontent/internal/queue"
)

type fakeTrigger struct {
	got app.TriggerRequest
	res *app.TriggerResult
	err error
}

func (f *fakeTrigger) Trigger(ctx context.Context, req app.TriggerRequest) (*app.TriggerResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeProductions map[int64]*model.Production

func (f fakeProductions) GetProduction(ctx context.Context, id int64) (*model.Production, error) {
	p, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrProductionNotFound, id)
	}
	return p, nil
}

func (f fakeProductions) ListProductions(ctx context.Context, limit int) ([]*model.Production, error) {
	var out []*model.Production
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

type fakeQueue struct {
	jobs []*queue.Job
}

func (f *fakeQueue) Stats(ctx context.Context) (*queue.Stats, error) {
	counts := map[queue.State]int{}
	for _, s := range queue.States {
		counts[s] = 0
	}
	for _, j := range f.jobs {
		counts[j.State]++
	}
	return &queue.Stats{Queue: queue.DefaultName, Counts: counts}, nil
}

func (f *fakeQueue) List(ctx context.Context, state queue.State, limit int) ([]*queue.Job, error) {
	var out []*queue.Job
	for _, j := range f.jobs {
		if state == "" || j.State == state {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeQueue) Get(ctx context.Context, id string) (*queue.Job, error) {
	for _, j := range f.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
}

func newTestRouter(tr *fakeTrigger, prods fakeProductions, q *fakeQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{Handler: NewHandler(tr, prods, q), Debug: true})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return env.Error
}

func TestTriggerAccepted(t *testing.T) {
	tr := &fakeTrigger{res: &app.TriggerResult{ProductionID: 7, Status: model.StatusRendering, JobID: "job-1"}}
	r := newTestRouter(tr, nil, &fakeQueue{})

	w := do(r, http.MethodPost, "/trigger", `{"topic":"Future of AI","nicheId":1}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if tr.got.Topic != "Future of AI" || tr.got.NicheID != 1 {
		t.Errorf("trigger got %+v", tr.got)
	}

	var res app.TriggerResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.ProductionID != 7 || res.Status != model.StatusRendering {
		t.Errorf("response = %+v", res)
	}
}

func TestTriggerErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"missing niche", `{"topic":"x"}`, nil, http.StatusBadRequest, "invalid_input"},
		{"malformed body", `{`, nil, http.StatusBadRequest, "invalid_input"},
		{"unknown niche", `{"nicheId":99}`, fmt.Errorf("%w: 99", model.ErrNicheNotFound), http.StatusNotFound, "niche_not_found"},
		{"quota", `{"nicheId":1}`, &model.StageError{Stage: model.StageGeneration, Err: model.ErrQuotaExceeded}, http.StatusTooManyRequests, "quota_exceeded"},
		{"generation", `{"nicheId":1}`, &model.StageError{Stage: model.StageGeneration, ProductionID: 3, Err: &model.GenerationError{Attempts: 10, Err: fmt.Errorf("boom")}}, http.StatusBadGateway, "generation_failed"},
		{"manifest", `{"nicheId":1}`, &model.StageError{Stage: model.StageManifest, ProductionID: 3, Err: model.ErrManifestFailed}, http.StatusBadGateway, "manifest_failed"},
		{"generation disabled", `{"nicheId":1}`, app.ErrGenerationDisabled, http.StatusServiceUnavailable, "generation_disabled"},
		{"unexpected", `{"nicheId":1}`, fmt.Errorf("disk full"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeTrigger{err: tt.err}, nil, &fakeQueue{})
			w := do(r, http.MethodPost, "/trigger", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := decodeError(t, w); got.Code != tt.wantErr || got.Message == "" {
				t.Errorf("error = %+v, want code %s", got, tt.wantErr)
			}
		})
	}
}

func TestStageErrorMessageCarriesStage(t *testing.T) {
	err := &model.StageError{Stage: model.StageManifest, Err: model.ErrManifestFailed}
	r := newTestRouter(&fakeTrigger{err: err}, nil, &fakeQueue{})

	w := do(r, http.MethodPost, "/trigger", `{"nicheId":1}`)
	if msg := decodeError(t, w).Message; !strings.HasPrefix(msg, "manifest: ") {
		t.Errorf("message = %q, want manifest prefix", msg)
	}
}

func TestGetProduction(t *testing.T) {
	prods := fakeProductions{
		4: {ID: 4, NicheID: 1, Title: "Octopus hearts", Status: model.StatusPublished, VideoURL: "/videos/production-4.mp4"},
	}
	r := newTestRouter(&fakeTrigger{}, prods, &fakeQueue{})

	w := do(r, http.MethodGet, "/productions/4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p model.Production
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.VideoURL != "/videos/production-4.mp4" || p.Status != model.StatusPublished {
		t.Errorf("production = %+v", p)
	}

	if w := do(r, http.MethodGet, "/productions/5", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing production status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/productions/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestListProductionsEmpty(t *testing.T) {
	r := newTestRouter(&fakeTrigger{}, fakeProductions{}, &fakeQueue{})
	w := do(r, http.MethodGet, "/productions", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"productions":[]`) {
		t.Errorf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestQueueDashboard(t *testing.T) {
	now := time.Now()
	q := &fakeQueue{jobs: []*queue.Job{
		{ID: "a", State: queue.StateCompleted, Payload: model.RenderJob{ProductionID: 1}, Progress: 100, CreatedAt: now},
		{ID: "b", State: queue.StateWaiting, Payload: model.RenderJob{ProductionID: 2}, CreatedAt: now},
		{ID: "c", State: queue.StateFailed, Payload: model.RenderJob{ProductionID: 3}, LastError: "render failed", CreatedAt: now},
	}}
	r := newTestRouter(&fakeTrigger{}, nil, q)

	w := do(r, http.MethodGet, "/admin/queues", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Queue  string              `json:"queue"`
		Counts map[queue.State]int `json:"counts"`
		Jobs   []jobView           `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Queue != queue.DefaultName || len(body.Jobs) != 3 {
		t.Errorf("dashboard = %+v", body)
	}
	if body.Counts[queue.StateFailed] != 1 || body.Counts[queue.StateActive] != 0 {
		t.Errorf("counts = %v", body.Counts)
	}

	w = do(r, http.MethodGet, "/admin/queues?state=failed", "")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].LastError != "render failed" {
		t.Errorf("filtered jobs = %+v", body.Jobs)
	}

	if w := do(r, http.MethodGet, "/admin/queues/jobs/zzz", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", w.Code)
	}
}

func TestIndex(t *testing.T) {
	r := newTestRouter(&fakeTrigger{}, nil, &fakeQueue{})
	w := do(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || w.Body.String() != "NovaContent Engine is running" {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}
}

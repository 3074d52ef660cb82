package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelgate/modelgate/internal/control"
	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/state"
)

type fakeSession struct {
	loaded     []control.LoadedModel
	downloaded []control.DownloadedModel

	listErr   error
	loadErr   error
	unloadErr error
	healthy   bool

	lastLoadKey, lastLoadInstance     string
	lastUnloadKey, lastUnloadInstance string
}

func (f *fakeSession) ListModels(ctx context.Context) ([]control.LoadedModel, []control.DownloadedModel, error) {
	return f.loaded, f.downloaded, f.listErr
}

func (f *fakeSession) LoadModel(ctx context.Context, modelKey, instanceID string, cfg *control.LoadConfig) error {
	f.lastLoadKey, f.lastLoadInstance = modelKey, instanceID
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, control.LoadedModel{Path: modelKey, Identifier: instanceID})
	return nil
}

func (f *fakeSession) UnloadModel(ctx context.Context, modelKey, instanceID string) error {
	f.lastUnloadKey, f.lastUnloadInstance = modelKey, instanceID
	return f.unloadErr
}

func (f *fakeSession) Health(ctx context.Context) bool { return f.healthy }

func newTestHandlers() (*Handlers, *fakeSession) {
	fs := &fakeSession{healthy: true}
	store := state.New()
	bus := eventbus.New(16, nil)
	return New(store, bus, fs, nil), fs
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string]interface{}
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("got status %v, want ok", body["status"])
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Error("missing uptime_seconds")
	}
}

func TestHealth_ShuttingDown(t *testing.T) {
	store := state.New()
	bus := eventbus.New(16, nil)
	fs := &fakeSession{}
	h := New(store, bus, fs, func() bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var body map[string]interface{}
	decodeJSON(t, rec, &body)
	if body["status"] != "shutting_down" {
		t.Errorf("got status %v, want shutting_down", body["status"])
	}
}

func TestListModels_Success(t *testing.T) {
	h, fs := newTestHandlers()
	fs.loaded = []control.LoadedModel{{Path: "llama-3", Identifier: "llama-3:1"}}

	req := httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	rec := httptest.NewRecorder()
	h.ListModels(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body modelsResponse
	decodeJSON(t, rec, &body)
	if len(body.Loaded) != 1 || body.Loaded[0].Identifier != "llama-3:1" {
		t.Errorf("got %+v", body)
	}
}

func TestListModels_ControlFailureReturns503(t *testing.T) {
	h, fs := newTestHandlers()
	fs.listErr = &control.UnavailableError{Message: "backend unavailable"}

	req := httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	rec := httptest.NewRecorder()
	h.ListModels(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
}

func TestLoadModel_Success(t *testing.T) {
	h, fs := newTestHandlers()

	body := `{"model_key":"llama-3-8b-instruct","instance_id":"llama-3-8b-instruct:1"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LoadModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	if fs.lastLoadKey != "llama-3-8b-instruct" {
		t.Errorf("got load key %q", fs.lastLoadKey)
	}

	active := h.store.ActiveModel()
	if active.ModelKey == nil || *active.ModelKey != "llama-3-8b-instruct" {
		t.Errorf("expected active model set by default activate=true, got %+v", active)
	}
}

func TestLoadModel_NoActivate(t *testing.T) {
	h, _ := newTestHandlers()

	body := `{"model_key":"llama-3-8b-instruct","activate":false}`
	req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LoadModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	active := h.store.ActiveModel()
	if active.ModelKey != nil {
		t.Errorf("expected no active model, got %+v", active)
	}
}

func TestLoadModel_MissingModelKeyReturns400(t *testing.T) {
	h, _ := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.LoadModel(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	var body validationError
	decodeJSON(t, rec, &body)
	if len(body.Details) != 1 {
		t.Errorf("got details %v", body.Details)
	}
}

func TestLoadModel_NumericBoundsRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative gpu layers", `{"model_key":"m","load_config":{"gpu":{"layers":-1}}}`},
		{"zero rope frequency base", `{"model_key":"m","load_config":{"rope_frequency_base":0}}`},
		{"negative rope frequency base", `{"model_key":"m","load_config":{"rope_frequency_base":-0.5}}`},
		{"zero rope frequency scale", `{"model_key":"m","load_config":{"rope_frequency_scale":0}}`},
		{"negative rope frequency scale", `{"model_key":"m","load_config":{"rope_frequency_scale":-1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers()
			req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.LoadModel(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400, body %s", rec.Code, rec.Body.String())
			}
			var body validationError
			decodeJSON(t, rec, &body)
			if len(body.Details) != 1 {
				t.Errorf("got details %v", body.Details)
			}
		})
	}
}

func TestLoadModel_NumericBoundsAccepted(t *testing.T) {
	h, _ := newTestHandlers()
	body := `{"model_key":"m","load_config":{"gpu":{"layers":0},"rope_frequency_base":1.0,"rope_frequency_scale":0.5}}`
	req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LoadModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestLoadModel_BackendFailureReturns500AndRecordsError(t *testing.T) {
	h, fs := newTestHandlers()
	fs.loadErr = errTest("boom")

	req := httptest.NewRequest(http.MethodPost, "/admin/models/load", strings.NewReader(`{"model_key":"m"}`))
	rec := httptest.NewRecorder()
	h.LoadModel(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", rec.Code)
	}
	snap := h.store.Snapshot()
	if snap.Debug.TotalErrors != 1 {
		t.Errorf("got total errors %d, want 1", snap.Debug.TotalErrors)
	}
}

func TestUnloadModel_Success(t *testing.T) {
	h, _ := newTestHandlers()
	key := "llama-3"
	h.store.SetActiveModel(state.ActiveModel{ModelKey: &key, InstanceID: "llama-3:1"})

	req := httptest.NewRequest(http.MethodPost, "/admin/models/unload", strings.NewReader(`{"instance_id":"llama-3:1"}`))
	rec := httptest.NewRecorder()
	h.UnloadModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	active := h.store.ActiveModel()
	if active.ModelKey != nil {
		t.Errorf("expected active model cleared, got %+v", active)
	}
}

func TestUnloadModel_NotFound(t *testing.T) {
	h, fs := newTestHandlers()
	fs.unloadErr = &control.NotFoundError{Message: "no matching loaded model"}

	req := httptest.NewRequest(http.MethodPost, "/admin/models/unload", strings.NewReader(`{"model_key":"ghost"}`))
	rec := httptest.NewRecorder()
	h.UnloadModel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestUnloadModel_MissingKeyReturns400(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodPost, "/admin/models/unload", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.UnloadModel(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestActivateModel_NoBackendCall(t *testing.T) {
	h, fs := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/admin/models/activate", strings.NewReader(`{"model_key":"m","instance_id":"m:1"}`))
	rec := httptest.NewRecorder()
	h.ActivateModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if fs.lastLoadKey != "" {
		t.Error("activate must not call the backend")
	}
	active := h.store.ActiveModel()
	if active.ModelKey == nil || *active.ModelKey != "m" {
		t.Errorf("got active model %+v", active)
	}
}

func TestDebugStatus_TruncatesRecentRequests(t *testing.T) {
	h, _ := newTestHandlers()
	for i := 0; i < 15; i++ {
		h.store.AppendRequest(state.RequestRecord{RequestID: "r", Status: state.RequestCompleted, Timestamp: time.Now()})
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/status", nil)
	rec := httptest.NewRecorder()
	h.DebugStatus(rec, req)

	var snap state.Snapshot
	decodeJSON(t, rec, &snap)
	if len(snap.Debug.RecentRequests) != state.DebugStatusRequestsLimit {
		t.Errorf("got %d recent requests, want %d", len(snap.Debug.RecentRequests), state.DebugStatusRequestsLimit)
	}
}

func TestDebugMetrics_ReturnsShape(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/debug/metrics", nil)
	rec := httptest.NewRecorder()
	h.DebugMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var m state.Metrics
	decodeJSON(t, rec, &m)
}

func TestDebugStream_EmitsConnectedEventThenClosesOnDisconnect(t *testing.T) {
	h, _ := newTestHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/debug/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.DebugStream(rec, req)
		close(done)
	}()

	// Give the handler a moment to write the synthetic connected event.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DebugStream did not return after context cancellation")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Errorf("expected connected event in body, got %q", body)
	}
	if !strings.Contains(body, "Debug stream connected") {
		t.Errorf("expected connected message, got %q", body)
	}
}

func TestDebugStream_RelaysPublishedEvents(t *testing.T) {
	store := state.New()
	bus := eventbus.New(16, nil)
	h := New(store, bus, &fakeSession{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/debug/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.DebugStream(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	bus.Publish(eventbus.EventModelActivate, map[string]string{"model_key": "m"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: model_activate") {
		t.Errorf("expected model_activate event, got %q", body)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

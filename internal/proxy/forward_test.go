package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/state"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path      string
		wantPath  string
		wantMatch bool
	}{
		{"/v1/chat/completions", "/v1/chat/completions", true},
		{"/chat/completions", "/v1/chat/completions", true},
		{"/completions", "/v1/completions", true},
		{"/models", "/v1/models", true},
		{"/embeddings", "/v1/embeddings", true},
		{"/images/generations", "/v1/images/generations", true},
		{"/audio/transcriptions", "/v1/audio/transcriptions", true},
		{"/audio/translations", "/v1/audio/translations", true},
		{"/health", "", false},
		{"/admin/models", "", false},
		{"/debug/stream", "", false},
		{"/unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, match := NormalizePath(tt.path)
			if match != tt.wantMatch {
				t.Fatalf("got match=%v, want %v", match, tt.wantMatch)
			}
			if got != tt.wantPath {
				t.Errorf("got path %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestGenerateRequestID_Format(t *testing.T) {
	id := GenerateRequestID()
	if !regexp.MustCompile(`^req_\d+_[0-9a-f]{6}$`).MatchString(id) {
		t.Errorf("id %q does not match expected format", id)
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestCopyForwardHeaders_ExcludesHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Host", "example.com")
	src.Set("Connection", "keep-alive")
	src.Set("Transfer-Encoding", "chunked")
	src.Set("Content-Length", "123")
	src.Set("X-Api-Key", "secret")
	src.Set("Authorization", "Bearer token")

	dst := http.Header{}
	CopyForwardHeaders(dst, src)

	for _, excluded := range []string{"Host", "Connection", "Transfer-Encoding", "Content-Length", "X-Api-Key"} {
		if dst.Get(excluded) != "" {
			t.Errorf("expected %q to be excluded, got %q", excluded, dst.Get(excluded))
		}
	}
	if dst.Get("Authorization") != "Bearer token" {
		t.Error("expected Authorization to be copied through")
	}
}

func newTestHandler(t *testing.T, backendURL string) *Handler {
	t.Helper()
	store := state.New()
	bus := eventbus.New(16, nil)
	backendCfg := config.BackendConfig{HTTPBaseURL: backendURL}
	proxyCfg := config.ProxyConfig{Timeout: 0, StreamTimeout: 0}
	return NewHandler(backendCfg, proxyCfg, store, bus, nil)
}

func TestHandler_InjectsActiveModelWhenAbsent(t *testing.T) {
	var receivedBody map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp1","choices":[]}`))
	}))
	defer backend.Close()

	h := newTestHandler(t, backend.URL)
	key := "llama-3-8b-instruct"
	h.store.SetActiveModel(state.ActiveModel{ModelKey: &key, InstanceID: "llama-3-8b-instruct:1"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if receivedBody["model"] != "llama-3-8b-instruct:1" {
		t.Errorf("got model %v, want instance id", receivedBody["model"])
	}
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rec.Code)
	}
}

func TestHandler_DoesNotOverwriteExistingModel(t *testing.T) {
	var receivedBody map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp1","choices":[]}`))
	}))
	defer backend.Close()

	h := newTestHandler(t, backend.URL)
	key := "llama-3-8b-instruct"
	h.store.SetActiveModel(state.ActiveModel{ModelKey: &key, InstanceID: "llama-3-8b-instruct:1"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"custom-model","messages":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if receivedBody["model"] != "custom-model" {
		t.Errorf("got model %v, want custom-model unchanged", receivedBody["model"])
	}
}

func TestHandler_SamplingDefaultsDoNotOverrideRequestValues(t *testing.T) {
	var receivedBody map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	h := newTestHandler(t, backend.URL)
	temp := 0.7
	h.store.SetActiveModel(state.ActiveModel{
		DefaultInference: state.DefaultInference{Temperature: &temp},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[],"temperature":0.2}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if receivedBody["temperature"] != 0.2 {
		t.Errorf("got temperature %v, want request value preserved (0.2)", receivedBody["temperature"])
	}
}

func TestHandler_PassesThroughBackendStatusAndBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request from backend"}`))
	}))
	defer backend.Close()

	h := newTestHandler(t, backend.URL)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bad request from backend") {
		t.Errorf("body not passed through: %q", rec.Body.String())
	}
}

func TestHandler_RecordsRequestOnCompletion(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer backend.Close()

	h := newTestHandler(t, backend.URL)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	snap := h.store.Snapshot()
	if snap.Debug.TotalRequests != 1 {
		t.Fatalf("got total requests %d, want 1", snap.Debug.TotalRequests)
	}
	if len(snap.Debug.RecentRequests) != 1 {
		t.Fatalf("got %d recent requests, want 1", len(snap.Debug.RecentRequests))
	}
	rec2 := snap.Debug.RecentRequests[0]
	if rec2.Status != state.RequestCompleted {
		t.Errorf("got status %q, want completed", rec2.Status)
	}
	if rec2.TokenUsage == nil || rec2.TokenUsage.Total != 15 {
		t.Errorf("got token usage %+v, want total 15", rec2.TokenUsage)
	}
}

func TestHandler_UnreachableBackendReturns503(t *testing.T) {
	h := newTestHandler(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", rec.Code)
	}
}

func TestHandler_UnmatchedRouteReturns404(t *testing.T) {
	h := newTestHandler(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

// disconnectingResponseWriter simulates a client that closes its connection
// mid-stream: the first write succeeds, every write after it fails the way
// http.ResponseWriter.Write does against a broken pipe.
type disconnectingResponseWriter struct {
	header  http.Header
	writes  int
	failAt  int
	written bytes.Buffer
}

func newDisconnectingResponseWriter(failAt int) *disconnectingResponseWriter {
	return &disconnectingResponseWriter{header: http.Header{}, failAt: failAt}
}

func (w *disconnectingResponseWriter) Header() http.Header { return w.header }

func (w *disconnectingResponseWriter) WriteHeader(int) {}

func (w *disconnectingResponseWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.failAt {
		return 0, errors.New("write: broken pipe")
	}
	return w.written.Write(p)
}

func TestHandler_RelayStream_ClientDisconnectMidStreamRecordsFailure(t *testing.T) {
	h := newTestHandler(t, "http://127.0.0.1:1")

	errSub := h.bus.Subscribe(eventbus.EventError)
	defer errSub.Close()

	// One chunk per Read, so the second chunk reaches the failing write.
	body := io.NopCloser(io.MultiReader(
		strings.NewReader("data: chunk-one\n\n"),
		strings.NewReader("data: chunk-two\n\n"),
	))
	resp := &http.Response{StatusCode: http.StatusOK, Body: body}

	w := newDisconnectingResponseWriter(1)
	h.relayStream(w, resp, "req_disconnect", time.Now())

	select {
	case ev := <-errSub.Events():
		var payload map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("failed to decode event payload: %v", err)
		}
		if payload["request_id"] != "req_disconnect" {
			t.Errorf("got request_id %v, want req_disconnect", payload["request_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected an inference error event after the client disconnected mid-stream")
	}

	snap := h.store.Snapshot()
	if len(snap.Debug.RecentRequests) != 1 {
		t.Fatalf("got %d recent requests, want 1", len(snap.Debug.RecentRequests))
	}
	if got := snap.Debug.RecentRequests[0].Status; got != state.RequestFailed {
		t.Errorf("got status %q, want failed", got)
	}
}

func TestHandler_RelayStream_CompletesCleanlyOnEOF(t *testing.T) {
	h := newTestHandler(t, "http://127.0.0.1:1")

	body := io.NopCloser(strings.NewReader("data: chunk-one\n\n"))
	resp := &http.Response{StatusCode: http.StatusOK, Body: body}

	rec := httptest.NewRecorder()
	h.relayStream(rec, resp, "req_ok", time.Now())

	snap := h.store.Snapshot()
	if len(snap.Debug.RecentRequests) != 1 {
		t.Fatalf("got %d recent requests, want 1", len(snap.Debug.RecentRequests))
	}
	if got := snap.Debug.RecentRequests[0].Status; got != state.RequestCompleted {
		t.Errorf("got status %q, want completed", got)
	}
}

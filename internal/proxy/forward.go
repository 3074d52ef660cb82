package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/proxy/types"
	"github.com/modelgate/modelgate/internal/state"
	"github.com/modelgate/modelgate/internal/telemetry/metrics"
	"github.com/modelgate/modelgate/internal/telemetry/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("modelgate")

// sampling default field-name mapping, request field -> ActiveModel field.
// The gateway only fills a field in when it is absent from the request.
type samplingField struct {
	requestKey string
	inject     func(defaults state.DefaultInference) (interface{}, bool)
}

var samplingFields = []samplingField{
	{"temperature", func(d state.DefaultInference) (interface{}, bool) {
		if d.Temperature == nil {
			return nil, false
		}
		return *d.Temperature, true
	}},
	{"max_tokens", func(d state.DefaultInference) (interface{}, bool) {
		if d.MaxTokens == nil {
			return nil, false
		}
		return *d.MaxTokens, true
	}},
	{"top_p", func(d state.DefaultInference) (interface{}, bool) {
		if d.TopP == nil {
			return nil, false
		}
		return *d.TopP, true
	}},
	{"top_k", func(d state.DefaultInference) (interface{}, bool) {
		if d.TopK == nil {
			return nil, false
		}
		return *d.TopK, true
	}},
	{"repeat_penalty", func(d state.DefaultInference) (interface{}, bool) {
		if d.RepeatPenalty == nil {
			return nil, false
		}
		return *d.RepeatPenalty, true
	}},
	{"stop", func(d state.DefaultInference) (interface{}, bool) {
		if len(d.StopStrings) == 0 {
			return nil, false
		}
		return d.StopStrings, true
	}},
	{"stream", func(d state.DefaultInference) (interface{}, bool) {
		if d.Stream == nil {
			return nil, false
		}
		return *d.Stream, true
	}},
}

// Handler is the Proxy Path: it forwards OpenAI-compatible HTTP calls to
// the backend, augmenting chat/completions requests with the active model
// and sampling defaults, relaying streaming responses verbatim, and
// publishing lifecycle events.
type Handler struct {
	backendBaseURL string
	proxyTimeout   time.Duration
	streamTimeout  time.Duration

	client *http.Client

	store     *state.Store
	bus       *eventbus.Bus
	collector *metrics.Collector
}

// NewHandler builds a Handler with a pooled HTTP transport sized for a
// single-backend LAN deployment.
func NewHandler(backendCfg config.BackendConfig, proxyCfg config.ProxyConfig, store *state.Store, bus *eventbus.Bus, collector *metrics.Collector) *Handler {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Handler{
		backendBaseURL: backendCfg.HTTPBaseURL,
		proxyTimeout:   proxyCfg.Timeout,
		streamTimeout:  proxyCfg.StreamTimeout,
		client:         &http.Client{Transport: transport},
		store:          store,
		bus:            bus,
		collector:      collector,
	}
}

// ServeHTTP implements the Proxy Path for a single request. Callers are
// expected to have already confirmed, via NormalizePath, that r.URL.Path is
// proxy-eligible; ServeHTTP itself does the canonical-path rewrite.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	targetPath, ok := NormalizePath(r.URL.Path)
	if !ok {
		WriteErrorResponse(w, types.NewErrorResponse("not found", types.ErrorTypeNotFound, "", ""))
		return
	}

	requestID := GenerateRequestID()
	start := time.Now()

	spanCtx, span := tracer.Start(r.Context(), "proxy.request",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.String("http.method", r.Method),
			attribute.String("http.target", targetPath),
		),
	)
	r = r.WithContext(spanCtx)
	defer span.End()

	h.bus.Publish(eventbus.EventInferenceStart, map[string]string{
		"request_id": requestID,
		"method":     r.Method,
		"path":       targetPath,
	})

	body, err := h.prepareBody(r, targetPath)
	if err != nil {
		h.publishError(requestID, err, start)
		WriteErrorResponse(w, HandleError(err))
		h.recordCompletion(requestID, state.RequestFailed, time.Since(start), nil)
		tracing.SetError(span, err)
		return
	}

	streaming := requestWantsStream(body)

	timeout := h.proxyTimeout
	if streaming {
		timeout = h.streamTimeout
	}

	ctx := r.Context()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	upstreamReq, err := h.buildUpstreamRequest(ctx, r, targetPath, body)
	if err != nil {
		h.publishError(requestID, err, start)
		WriteErrorResponse(w, HandleError(err))
		h.recordCompletion(requestID, state.RequestFailed, time.Since(start), nil)
		tracing.SetError(span, err)
		return
	}

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		transportErr := &TransportError{Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded), Err: err}
		h.publishError(requestID, transportErr, start)

		if streaming {
			SetSSEHeaders(w)
			WriteSSEError(w, HandleError(transportErr))
		} else {
			WriteErrorResponse(w, HandleError(transportErr))
		}
		h.recordCompletion(requestID, state.RequestFailed, time.Since(start), nil)
		tracing.SetError(span, transportErr)
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	tracing.SetStatus(span, nil)

	if streaming {
		h.relayStream(w, resp, requestID, start)
		return
	}

	h.relayBuffered(w, resp, requestID, start)
}

// prepareBody reads and, for chat/completions and completions POSTs,
// augments the request body with the active model and sampling defaults.
// Non-JSON or non-augmentable requests are returned unmodified.
func (h *Handler) prepareBody(r *http.Request, targetPath string) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := readLimitedBody(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return body, nil
	}
	if r.Method != http.MethodPost || !IsChatOrCompletions(targetPath) {
		return body, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Not a JSON object; forward as-is and let the backend reject it.
		return body, nil
	}

	active := h.store.ActiveModel()

	if _, hasModel := payload["model"]; !hasModel {
		if active.InstanceID != "" {
			payload["model"] = active.InstanceID
		} else if active.ModelKey != nil {
			payload["model"] = *active.ModelKey
		}
	}

	for _, field := range samplingFields {
		if _, present := payload[field.requestKey]; present {
			continue
		}
		if value, ok := field.inject(active.DefaultInference); ok {
			payload[field.requestKey] = value
		}
	}

	augmented, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Message: "failed to re-encode augmented request", Code: "invalid_json"}
	}
	return augmented, nil
}

func requestWantsStream(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Stream
}

func (h *Handler) buildUpstreamRequest(ctx context.Context, r *http.Request, targetPath string, body []byte) (*http.Request, error) {
	url := h.backendBaseURL + targetPath
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, bodyReader)
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("failed to build upstream request: %v", err), Code: "internal_error"}
	}

	CopyForwardHeaders(req.Header, r.Header)
	if body != nil {
		req.ContentLength = int64(len(body))
	}

	return req, nil
}

// relayBuffered handles the non-streaming path: read the full backend
// response, record token usage if present, and pass the status and body
// through unchanged.
func (h *Handler) relayBuffered(w http.ResponseWriter, resp *http.Response, requestID string, start time.Time) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		transportErr := &TransportError{Err: err}
		h.publishError(requestID, transportErr, start)
		WriteErrorResponse(w, HandleError(transportErr))
		h.recordCompletion(requestID, state.RequestFailed, time.Since(start), nil)
		return
	}

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)

	usage := extractTokenUsage(data)

	elapsed := time.Since(start)
	h.bus.Publish(eventbus.EventInferenceComplete, map[string]interface{}{
		"request_id":    requestID,
		"total_time_ms": elapsed.Milliseconds(),
		"token_usage":   usage,
	})

	status := state.RequestCompleted
	if resp.StatusCode >= 400 {
		status = state.RequestFailed
	}
	h.recordCompletion(requestID, status, elapsed, usage)
}

// relayStream handles the streaming path: pipe backend chunks to the
// client verbatim until EOF, client disconnect, or a read error.
func (h *Handler) relayStream(w http.ResponseWriter, resp *http.Response, requestID string, start time.Time) {
	SetSSEHeaders(w)
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if werr := WriteRawSSEChunk(w, buf[:n]); werr != nil {
				h.recordStreamOutcome(requestID, start, werr)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				h.recordStreamOutcome(requestID, start, nil)
				return
			}
			h.recordStreamOutcome(requestID, start, err)
			return
		}
	}
}

func (h *Handler) recordStreamOutcome(requestID string, start time.Time, streamErr error) {
	elapsed := time.Since(start)
	if streamErr != nil {
		h.publishError(requestID, streamErr, start)
		h.recordCompletion(requestID, state.RequestFailed, elapsed, nil)
		return
	}
	h.bus.Publish(eventbus.EventInferenceComplete, map[string]interface{}{
		"request_id":    requestID,
		"total_time_ms": elapsed.Milliseconds(),
	})
	h.recordCompletion(requestID, state.RequestCompleted, elapsed, nil)
}

func (h *Handler) publishError(requestID string, err error, start time.Time) {
	slog.Error("proxy request failed", "request_id", requestID, "error", err)
	h.bus.Publish(eventbus.EventError, map[string]interface{}{
		"request_id":    requestID,
		"error":         err.Error(),
		"total_time_ms": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) recordCompletion(requestID, status string, elapsed time.Duration, usage *state.TokenUsage) {
	timeMs := elapsed.Milliseconds()
	h.store.AppendRequest(state.RequestRecord{
		RequestID:  requestID,
		Status:     status,
		TimeMs:     &timeMs,
		TokenUsage: usage,
		Timestamp:  time.Now(),
	})

	if h.collector != nil {
		model := ""
		if active := h.store.ActiveModel(); active.ModelKey != nil {
			model = *active.ModelKey
		}
		tokens := 0
		if usage != nil {
			tokens = usage.Total
		}
		h.collector.RecordRequest(model, status, elapsed, tokens)
	}
}

// extractTokenUsage pulls prompt/completion/total token counts out of a
// backend JSON response's top-level "usage" object, if present.
func extractTokenUsage(body []byte) *state.TokenUsage {
	var probe struct {
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Usage == nil {
		return nil
	}
	return &state.TokenUsage{
		Prompt:     probe.Usage.PromptTokens,
		Completion: probe.Usage.CompletionTokens,
		Total:      probe.Usage.TotalTokens,
	}
}

// Package admin implements the gateway's Admin + Debug Surface: model
// lifecycle endpoints, state/metrics introspection, and the debug SSE
// stream.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/control"
	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/proxy"
	"github.com/modelgate/modelgate/internal/proxy/middleware"
	"github.com/modelgate/modelgate/internal/state"
)

// Handlers holds the dependencies shared by every admin/debug endpoint.
type Handlers struct {
	store   *state.Store
	bus     *eventbus.Bus
	control control.Session

	// startedAt backs /health's uptime field. It is the same process start
	// time state.Store uses internally; kept here too so /health doesn't
	// need a Store round trip.
	startedAt time.Time

	// shuttingDown is flipped just before the server stops accepting new
	// connections, so /health can report it.
	shuttingDown func() bool
}

// New builds the admin/debug handler set. shuttingDown may be nil, in
// which case /health always reports healthy.
func New(store *state.Store, bus *eventbus.Bus, ctrl control.Session, shuttingDown func() bool) *Handlers {
	return &Handlers{
		store:        store,
		bus:          bus,
		control:      ctrl,
		startedAt:    time.Now(),
		shuttingDown: shuttingDown,
	}
}

// validationError is the shape returned by every admin endpoint's 400
// response: a single top-level message plus a list of per-field problems.
type validationError struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

func writeValidationError(w http.ResponseWriter, details []string) {
	_ = proxy.WriteJSONResponse(w, http.StatusBadRequest, validationError{
		Error:   "Validation failed",
		Details: details,
	})
}

type simpleError struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = proxy.WriteJSONResponse(w, status, simpleError{Error: message})
}

// Health implements GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt).Seconds()
	if h.store != nil {
		uptime = h.store.UptimeSeconds()
	}

	status := "ok"
	if h.shuttingDown != nil && h.shuttingDown() {
		status = "shutting_down"
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": uptime,
	})
}

// modelsResponse is the body of GET /admin/models.
type modelsResponse struct {
	Loaded     []control.LoadedModel     `json:"loaded"`
	Downloaded []control.DownloadedModel `json:"downloaded"`
}

// ListModels implements GET /admin/models.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	loaded, downloaded, err := h.control.ListModels(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "admin: list_models failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, modelsResponse{Loaded: loaded, Downloaded: downloaded})
}

type loadModelRequest struct {
	ModelKey         string                  `json:"model_key"`
	InstanceID       string                  `json:"instance_id,omitempty"`
	LoadConfig       *control.LoadConfig     `json:"load_config,omitempty"`
	DefaultInference *state.DefaultInference `json:"default_inference,omitempty"`
	Activate         *bool                   `json:"activate,omitempty"`
}

// LoadModel implements POST /admin/models/load.
func (h *Handlers) LoadModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req loadModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []string{"body must be valid JSON"})
		return
	}

	var details []string
	if req.ModelKey == "" {
		details = append(details, "model_key is required")
	}
	details = validateLoadConfig(req.LoadConfig, details)
	if len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	activate := true
	if req.Activate != nil {
		activate = *req.Activate
	}

	start := time.Now()
	h.bus.Publish(eventbus.EventModelLoadStart, map[string]interface{}{
		"request_id": requestID,
		"model_key":   req.ModelKey,
		"instance_id": req.InstanceID,
	})
	h.store.SetStatus(state.StatusLoadingModel)
	h.store.SetOperation(&state.OperationInfo{
		Kind:      state.OperationLoad,
		ModelKey:  req.ModelKey,
		Progress:  0,
		StartedAt: start,
	})

	err := h.control.LoadModel(ctx, req.ModelKey, req.InstanceID, req.LoadConfig)

	h.store.ClearOperation()
	totalMs := time.Since(start).Milliseconds()

	if err != nil {
		h.store.SetStatus(state.StatusError)
		h.store.AppendRequest(state.RequestRecord{
			RequestID: requestID, Status: state.RequestFailed, Timestamp: time.Now(),
		})
		slog.ErrorContext(ctx, "admin: load_model failed", "request_id", requestID, "model_key", req.ModelKey, "error", err)
		h.bus.Publish(eventbus.EventError, map[string]interface{}{
			"request_id": requestID, "error": err.Error(), "total_time_ms": totalMs,
		})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if activate {
		active := state.ActiveModel{
			ModelKey:   &req.ModelKey,
			InstanceID: req.InstanceID,
		}
		if req.DefaultInference != nil {
			active.DefaultInference = *req.DefaultInference
		}
		h.store.SetActiveModel(active)
	}
	h.store.SetStatus(state.StatusIdle)

	h.bus.Publish(eventbus.EventModelLoadComplete, map[string]interface{}{
		"request_id": requestID, "model_key": req.ModelKey, "instance_id": req.InstanceID,
		"total_time_ms": totalMs,
	})

	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":        "loaded",
		"model_key":     req.ModelKey,
		"instance_id":   req.InstanceID,
		"activated":     activate,
		"total_time_ms": totalMs,
		"message":       fmt.Sprintf("model %s loaded", req.ModelKey),
	})
}

func validateLoadConfig(cfg *control.LoadConfig, details []string) []string {
	if cfg == nil {
		return details
	}
	if cfg.ContextLength != nil && *cfg.ContextLength <= 0 {
		details = append(details, "load_config.context_length must be positive")
	}
	if cfg.GPU != nil && cfg.GPU.Ratio != nil && (*cfg.GPU.Ratio < 0 || *cfg.GPU.Ratio > 1) {
		details = append(details, "load_config.gpu.ratio must be between 0 and 1")
	}
	if cfg.GPU != nil && cfg.GPU.Layers != nil && *cfg.GPU.Layers < 0 {
		details = append(details, "load_config.gpu.layers must be non-negative")
	}
	if cfg.CPUThreads != nil && *cfg.CPUThreads <= 0 {
		details = append(details, "load_config.cpu_threads must be positive")
	}
	if cfg.RopeFrequencyBase != nil && *cfg.RopeFrequencyBase <= 0 {
		details = append(details, "load_config.rope_frequency_base must be positive")
	}
	if cfg.RopeFrequencyScale != nil && *cfg.RopeFrequencyScale <= 0 {
		details = append(details, "load_config.rope_frequency_scale must be positive")
	}
	return details
}

type unloadModelRequest struct {
	ModelKey   string `json:"model_key"`
	InstanceID string `json:"instance_id,omitempty"`
}

// UnloadModel implements POST /admin/models/unload.
func (h *Handlers) UnloadModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req unloadModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []string{"body must be valid JSON"})
		return
	}
	if req.ModelKey == "" && req.InstanceID == "" {
		writeValidationError(w, []string{"model_key or instance_id is required"})
		return
	}

	start := time.Now()
	h.bus.Publish(eventbus.EventModelUnloadStart, map[string]interface{}{
		"request_id": requestID, "model_key": req.ModelKey, "instance_id": req.InstanceID,
	})

	err := h.control.UnloadModel(ctx, req.ModelKey, req.InstanceID)
	totalMs := time.Since(start).Milliseconds()
	if err != nil {
		h.bus.Publish(eventbus.EventError, map[string]interface{}{
			"request_id": requestID, "error": err.Error(), "total_time_ms": totalMs,
		})
	}

	var notFound *control.NotFoundError
	if errors.As(err, &notFound) {
		_ = proxy.WriteJSONResponse(w, http.StatusNotFound, map[string]interface{}{
			"status":  "not_found",
			"message": notFound.Error(),
		})
		return
	}
	if err != nil {
		h.store.AppendRequest(state.RequestRecord{
			RequestID: requestID, Status: state.RequestFailed, Timestamp: time.Now(),
		})
		slog.ErrorContext(ctx, "admin: unload_model failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.store.ActiveModelMatches(req.ModelKey, req.InstanceID) {
		h.store.ClearActiveModel()
	}

	h.bus.Publish(eventbus.EventModelUnloadComplete, map[string]interface{}{
		"request_id": requestID, "model_key": req.ModelKey, "instance_id": req.InstanceID,
		"total_time_ms": totalMs,
	})

	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":        "unloaded",
		"model_key":     req.ModelKey,
		"instance_id":   req.InstanceID,
		"total_time_ms": totalMs,
	})
}

type activateModelRequest struct {
	ModelKey         string                  `json:"model_key"`
	InstanceID       string                  `json:"instance_id,omitempty"`
	DefaultInference *state.DefaultInference `json:"default_inference,omitempty"`
}

// ActivateModel implements POST /admin/models/activate. No backend call is
// made; this only updates which model the proxy injects into requests that
// don't specify one.
func (h *Handlers) ActivateModel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req activateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []string{"body must be valid JSON"})
		return
	}
	if req.ModelKey == "" {
		writeValidationError(w, []string{"model_key is required"})
		return
	}

	active := state.ActiveModel{ModelKey: &req.ModelKey, InstanceID: req.InstanceID}
	if req.DefaultInference != nil {
		active.DefaultInference = *req.DefaultInference
	}
	h.store.SetActiveModel(active)

	h.bus.Publish(eventbus.EventModelActivate, map[string]interface{}{
		"request_id": requestID, "model_key": req.ModelKey, "instance_id": req.InstanceID,
	})

	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "activated",
		"model_key":   req.ModelKey,
		"instance_id": req.InstanceID,
	})
}

// DebugStatus implements GET /debug/status.
func (h *Handlers) DebugStatus(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.store.Snapshot())
}

// DebugMetrics implements GET /debug/metrics.
func (h *Handlers) DebugMetrics(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.store.Metrics())
}

// keepAliveInterval matches the Event Bus's own keep-alive cadence so a
// debug stream subscriber learns about a dead SSE write within one cycle.
const keepAliveInterval = 30 * time.Second

// DebugStream implements GET /debug/stream: an SSE relay of every Event
// Bus event, scoped to this connection's lifetime.
func (h *Handlers) DebugStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proxy.SetSSEHeaders(w)

	sub := h.bus.Subscribe("debug_stream")
	defer sub.Close()

	if err := writeSSEEvent(w, "connected", map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "Debug stream connected",
	}); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev.Type, ev.Payload); err != nil {
				slog.WarnContext(ctx, "admin: debug stream write failed, disconnecting", "error", err)
				return
			}

		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

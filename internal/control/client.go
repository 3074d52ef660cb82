// Package control implements the gateway's Control Client: the persistent
// connection used to list, load, and unload models on the backend.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/modelgate/modelgate/internal/telemetry/metrics"
	"github.com/modelgate/modelgate/internal/telemetry/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("modelgate")

const (
	// connectRetries is the number of connection attempts made before a
	// call gives up with an UnavailableError.
	connectRetries = 3

	// connectRetryGap is the pause between connection attempts.
	connectRetryGap = 2 * time.Second

	// dialTimeout bounds a single connection attempt, including the
	// liveness probe.
	dialTimeout = 5 * time.Second

	defaultCallTimeout = 10 * time.Second
)

// wireRequest is the JSON envelope sent to the backend over the control
// websocket.
type wireRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// wireResponse is the JSON envelope the backend replies with.
type wireResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Client is a websocket-backed Session that connects to the backend
// lazily, on first use, and reconnects transparently after any I/O or
// protocol failure.
//
// A single in-flight connection attempt is shared across concurrent
// callers: if two goroutines call ListModels at the same moment while no
// connection exists, only one dial happens and both wait on its result.
// Every request/response exchange on the shared connection runs under
// callMu, one at a time, so list_models and health calls wait for an
// in-flight load_model or unload_model exchange. load_model and
// unload_model calls are additionally serialized against each other by
// opMu, per the backend's single-outstanding-mutation contract.
type Client struct {
	url string

	collector *metrics.Collector

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting chan struct{}
	connectErr error

	// callMu serializes request/response exchanges on conn, which carries
	// no per-call correlation and allows only one reader at a time.
	callMu sync.Mutex

	opMu sync.Mutex
}

// NewClient builds a Client targeting the backend's control-channel URL.
// The connection is not established until the first call.
func NewClient(controlURL string, collector *metrics.Collector) *Client {
	return &Client{url: controlURL, collector: collector}
}

// DeriveControlURL turns an http(s) base URL into its ws(s) control-channel
// equivalent, used when the configuration leaves control_url unset.
func DeriveControlURL(httpBaseURL string) (string, error) {
	u, err := url.Parse(httpBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// ensureConnected returns a live connection, dialing and probing one if
// necessary. Concurrent callers observing no connection and no in-flight
// attempt each start their own attempt only if they arrive strictly
// sequentially; callers arriving while an attempt is already running wait
// on it instead of dialing again, and receive its error if it fails.
func (c *Client) ensureConnected(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	if c.connecting != nil {
		wait := c.connecting
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		conn, err := c.conn, c.connectErr
		c.mu.Unlock()
		if conn == nil && err != nil {
			return nil, err
		}
		return c.ensureConnected(ctx)
	}

	done := make(chan struct{})
	c.connecting = done
	c.mu.Unlock()

	conn, err := c.connectWithRetry(ctx)

	c.mu.Lock()
	c.conn = conn
	c.connectErr = err
	c.connecting = nil
	c.mu.Unlock()
	close(done)

	if c.collector != nil {
		c.collector.SetControlHealthy(err == nil)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// connectWithRetry dials the backend and performs one liveness probe
// (list_loaded), retrying up to connectRetries times with connectRetryGap
// between attempts before giving up.
func (c *Client) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		conn, err := c.dialAndProbe(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.WarnContext(ctx, "control channel connect attempt failed",
			"attempt", attempt, "max_attempts", connectRetries, "error", err)
		if attempt < connectRetries {
			select {
			case <-time.After(connectRetryGap):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, &UnavailableError{Message: "backend unavailable", Cause: lastErr}
}

func (c *Client) dialAndProbe(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial control channel: %w", err)
	}

	if _, err := doCall(dialCtx, conn, "list_loaded", nil); err != nil {
		conn.Close(websocket.StatusInternalError, "liveness probe failed")
		return nil, fmt.Errorf("liveness probe: %w", err)
	}
	return conn, nil
}

// invalidate drops the current connection so the next call reconnects. It
// is called whenever a call observes an I/O or protocol failure that
// leaves the connection's state unknown.
func (c *Client) invalidate(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.collector != nil {
		c.collector.SetControlHealthy(false)
	}
	conn.Close(websocket.StatusInternalError, "control channel invalidated")
}

// call ensures a connection exists, issues action with params, and
// invalidates the connection on any transport-level failure so the next
// caller reconnects from scratch.
func (c *Client) call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	conn, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	result, err := doCall(callCtx, conn, action, params)
	if err != nil {
		c.invalidate(conn)
		return nil, err
	}
	return result, nil
}

func doCall(ctx context.Context, conn *websocket.Conn, action string, params interface{}) (json.RawMessage, error) {
	req := wireRequest{Action: action}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", action, err)
		}
		req.Params = encoded
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		return nil, fmt.Errorf("write %s request: %w", action, err)
	}

	var resp wireResponse
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s failed: %s", action, resp.Error)
	}
	return resp.Result, nil
}

// ListModels implements Session.
func (c *Client) ListModels(ctx context.Context) ([]LoadedModel, []DownloadedModel, error) {
	result, err := c.call(ctx, "list_models", nil)
	if err != nil {
		return nil, nil, err
	}
	var payload struct {
		Loaded     []LoadedModel     `json:"loaded"`
		Downloaded []DownloadedModel `json:"downloaded"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode list_models result: %w", err)
	}
	return payload.Loaded, payload.Downloaded, nil
}

type loadModelParams struct {
	ModelKey   string      `json:"model_key"`
	InstanceID string      `json:"instance_id,omitempty"`
	LoadConfig *LoadConfig `json:"load_config,omitempty"`
}

// LoadModel implements Session.
func (c *Client) LoadModel(ctx context.Context, modelKey, instanceID string, cfg *LoadConfig) error {
	ctx, span := tracer.Start(ctx, "control.load_model",
		trace.WithAttributes(
			attribute.String("model_key", modelKey),
			attribute.String("instance_id", instanceID),
		),
	)
	defer span.End()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	_, err := c.call(ctx, "load_model", loadModelParams{
		ModelKey:   modelKey,
		InstanceID: instanceID,
		LoadConfig: cfg,
	})
	tracing.SetStatus(span, err)
	return err
}

type unloadModelParams struct {
	ModelKey   string `json:"model_key,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
}

// UnloadModel implements Session. Resolution against the backend's loaded
// set (instance ID first, then model key) is the backend's responsibility;
// a backend response indicating no match is surfaced as *NotFoundError.
func (c *Client) UnloadModel(ctx context.Context, modelKey, instanceID string) error {
	ctx, span := tracer.Start(ctx, "control.unload_model",
		trace.WithAttributes(
			attribute.String("model_key", modelKey),
			attribute.String("instance_id", instanceID),
		),
	)
	defer span.End()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	_, err := c.call(ctx, "unload_model", unloadModelParams{
		ModelKey:   modelKey,
		InstanceID: instanceID,
	})
	if err != nil && isNotFound(err) {
		notFound := &NotFoundError{Message: err.Error()}
		tracing.SetStatus(span, notFound)
		return notFound
	}
	tracing.SetStatus(span, err)
	return err
}

// Health implements Session. Unlike the other calls it treats any failure,
// including an exhausted connect-retry budget, as an unhealthy backend
// rather than propagating an error.
func (c *Client) Health(ctx context.Context) bool {
	_, err := c.call(ctx, "health", nil)
	healthy := err == nil
	if c.collector != nil {
		c.collector.SetControlHealthy(healthy)
	}
	return healthy
}

func isNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found") ||
		strings.Contains(strings.ToLower(err.Error()), "no matching")
}

var _ Session = (*Client)(nil)

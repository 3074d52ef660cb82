// Package eventbus implements a single-process publish/subscribe fan-out for
// the gateway's lifecycle and telemetry events (inference start/complete,
// model load/unload, tailer-derived debug lines).
package eventbus

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelgate/modelgate/internal/telemetry/metrics"
)

const (
	// DefaultQueueCapacity is the outbound queue size for a new subscriber
	// when none is specified.
	DefaultQueueCapacity = 512

	// KeepAliveInterval is how often an idle subscriber receives a
	// keep-alive comment to prevent intermediaries from closing the
	// connection.
	KeepAliveInterval = 30 * time.Second
)

// Event type tags. Gateway lifecycle events are published by the proxy and
// admin surfaces; backend telemetry events are published by the log tailer.
const (
	EventInferenceStart      = "inference_start"
	EventInferenceComplete   = "inference_complete"
	EventModelLoadStart      = "model_load_start"
	EventModelLoadProgress   = "model_load_progress"
	EventModelLoadComplete   = "model_load_complete"
	EventModelUnloadStart    = "model_unload_start"
	EventModelUnloadComplete = "model_unload_complete"
	EventModelActivate       = "model_activate"
	EventError               = "error"

	EventDebugLog                = "debug_log"
	EventLMStudioChatStart        = "lmstudio_chat_start"
	EventLMStudioSamplingParams   = "lmstudio_sampling_params"
	EventLMStudioPromptProgress   = "lmstudio_prompt_progress"
	EventLMStudioCacheStats       = "lmstudio_cache_stats"
	EventLMStudioTokenInfo        = "lmstudio_token_info"
	EventLMStudioProcessingStart  = "lmstudio_processing_start"
	EventLMStudioMonthTransition  = "lmstudio_month_transition"
)

// Event is a single tagged, timestamped, JSON-serializable message.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Subscriber receives events published after it subscribed.
type Subscriber struct {
	ID   string
	kind string
	ch   chan Event
	bus  *Bus
}

type registration struct {
	ch   chan Event
	kind string
}

// Events returns the subscriber's inbound channel. The channel is closed
// when the subscriber unsubscribes.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and releases the subscriber's queue. Idempotent.
func (s *Subscriber) Close() {
	s.bus.unsubscribe(s.ID)
}

// Bus is a thread-safe, in-process event bus. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]registration
	queueCap    int
	collector   *metrics.Collector
}

// New creates a Bus whose subscriber queues have the given capacity. A
// non-positive capacity falls back to DefaultQueueCapacity. collector may be
// nil, in which case drop counts are not recorded.
func New(queueCapacity int, collector *metrics.Collector) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Bus{
		subscribers: make(map[string]registration),
		queueCap:    queueCapacity,
		collector:   collector,
	}
}

// Publish stamps and serializes payload once, then offers the event to
// every currently-subscribed subscriber's queue. A full queue drops the
// event for that subscriber only; other subscribers are unaffected. Publish
// never blocks on a slow subscriber.
func (b *Bus) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("eventbus: failed to marshal event payload", "type", eventType, "error", err)
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	}

	// The read lock is held across the offers so unsubscribe cannot close a
	// channel while it is being offered an event. Every offer is
	// non-blocking (a full queue takes the default branch), so concurrent
	// Subscribe/unsubscribe calls wait at most one pass over the registry.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, reg := range b.subscribers {
		select {
		case reg.ch <- event:
		default:
			if b.collector != nil {
				b.collector.RecordEventDropped(reg.kind)
			}
		}
	}
}

// Subscribe registers a new subscriber and returns it. kind identifies the
// subscriber's role (e.g. "debug_stream" for an admin SSE client) and is
// used to label dropped-event metrics. The caller must call Close (or
// Unsubscribe) when done, typically on client disconnect.
func (b *Bus) Subscribe(kind string) *Subscriber {
	ch := make(chan Event, b.queueCap)
	id := uuid.NewString()

	b.mu.Lock()
	b.subscribers[id] = registration{ch: ch, kind: kind}
	b.mu.Unlock()

	return &Subscriber{ID: id, kind: kind, ch: ch, bus: b}
}

// Unsubscribe removes a subscriber by ID and closes its channel. Idempotent.
func (b *Bus) Unsubscribe(id string) {
	b.unsubscribe(id)
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	reg, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		close(reg.ch)
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

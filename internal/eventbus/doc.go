// Package eventbus implements the gateway's single-process publish/subscribe
// fan-out.
//
// # Overview
//
// Three producers publish tagged JSON events: the proxy path (inference
// lifecycle), the admin surface (model load/unload/activate), and the log
// tailer (parsed backend log lines). Any number of subscribers — in
// practice, one per connected /debug/stream client — receive every event
// published after they subscribed, each through its own bounded queue.
//
// # Usage
//
//	bus := eventbus.New(eventbus.DefaultQueueCapacity, collector)
//
//	sub := bus.Subscribe("debug_stream")
//	defer sub.Close()
//
//	for event := range sub.Events() {
//	    // write event to the SSE response
//	}
//
//	bus.Publish(eventbus.EventInferenceStart, map[string]any{
//	    "request_id": "req_172..._a1b2c3",
//	})
//
// # Backpressure
//
// Publish never blocks on a slow subscriber. Each subscriber has a fixed
// capacity outbound channel; when it is full, the event is dropped for that
// subscriber only and counted against telemetry/metrics' event-drop counter,
// labeled by the subscriber's kind. Other subscribers, and the publishing
// goroutine, are unaffected.
//
// # Ordering
//
// Within a single subscriber, delivery order equals publish order, since
// each subscriber has its own ordered channel. No ordering guarantee holds
// across subscribers.
//
// # Concurrency
//
// Publish offers the event to each subscriber's channel while holding the
// registry's read lock, so Unsubscribe never closes a channel that Publish
// is offering to. Every offer is non-blocking, so a Subscribe or
// Unsubscribe call from another goroutine waits at most one pass over the
// current subscribers.
package eventbus

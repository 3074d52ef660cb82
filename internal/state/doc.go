// Package state implements the gateway's AppState: the active model record,
// the in-progress operation gauge, and a bounded history of recent proxied
// requests.
//
// # Overview
//
// AppState is a single in-memory value, exclusively owned by the process.
// All reads and writes go through Store, which serializes access behind one
// RWMutex. No I/O ever happens while the lock is held; callers read or
// mutate fields and release immediately.
//
// # Derived metrics
//
// Store.Metrics computes averages, percentiles, error rate, and
// tokens-per-second on demand from the RecentRequests ring buffer at query
// time. Nothing is precomputed or cached; this keeps the mutation path (a
// single append per request) cheap and leaves the cost of aggregation to
// the comparatively rare /debug/metrics caller.
//
// # Usage
//
//	store := state.New()
//
//	store.SetActiveModel(state.ActiveModel{
//	    ModelKey:   ptr("llama-3-8b-instruct"),
//	    InstanceID: "llama-3-8b-instruct:2",
//	})
//
//	store.AppendRequest(state.RequestRecord{
//	    RequestID: "req_1700000000000_a1b2c3",
//	    Status:    state.RequestCompleted,
//	    TimeMs:    ptrInt64(842),
//	    Timestamp: time.Now(),
//	})
//
//	metrics := store.Metrics()
package state

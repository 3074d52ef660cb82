// Package state holds the gateway's single in-memory AppState value: the
// active model record, the current long-running operation (if any), and a
// bounded history of recent proxied requests. Every field is guarded by one
// mutex; no I/O ever happens while it is held.
package state

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"time"
)

// RecentRequestsLimit bounds the ring buffer of RequestRecord values kept
// for derived metrics.
const RecentRequestsLimit = 100

// DebugStatusRequestsLimit is how many recent requests /debug/status
// returns, separate from the larger window used for metric derivation.
const DebugStatusRequestsLimit = 10

// Status values for DebugState.Status.
const (
	StatusIdle                 = "idle"
	StatusLoadingModel         = "loading_model"
	StatusProcessingInference  = "processing_inference"
	StatusError                = "error"
)

// Operation kinds for OperationInfo.Kind.
const (
	OperationLoad      = "load"
	OperationUnload    = "unload"
	OperationInference = "inference"
)

// Request record statuses.
const (
	RequestPending   = "pending"
	RequestCompleted = "completed"
	RequestFailed    = "failed"
)

// DefaultInference is a sparse record of sampling defaults applied to
// proxied requests that don't already set the corresponding field.
type DefaultInference struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	StopStrings   []string `json:"stop_strings,omitempty"`
	Stream        *bool    `json:"stream,omitempty"`
}

// ActiveModel describes the model the gateway currently injects into
// requests that don't specify one. A nil ModelKey means no model is active.
type ActiveModel struct {
	ModelKey         *string          `json:"model_key"`
	InstanceID       string           `json:"instance_id,omitempty"`
	DefaultInference DefaultInference `json:"default_inference"`
}

// OperationInfo describes a long-running operation in progress. At most one
// exists at a time; it is cleared before any new one is assigned.
type OperationInfo struct {
	Kind      string    `json:"kind"`
	ModelKey  string    `json:"model_key,omitempty"`
	Progress  int       `json:"progress,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// TokenUsage mirrors the backend's usage object.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// RequestRecord is one entry in the recent-requests ring buffer. A
// Completed record always has a non-nil TimeMs.
type RequestRecord struct {
	RequestID  string      `json:"request_id"`
	Status     string      `json:"status"`
	TimeMs     *int64      `json:"time_ms,omitempty"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DebugState is the mutable operational view of the gateway.
type DebugState struct {
	Status           string
	CurrentOperation *OperationInfo
	RecentRequests   []RequestRecord
	TotalRequests    int64
	TotalErrors      int64
}

// Store owns the gateway's AppState and serializes all access behind one
// mutex. The zero value is not usable; construct with New.
type Store struct {
	mu sync.RWMutex

	activeModel ActiveModel
	debug       DebugState

	startedAt time.Time
}

// New creates an empty Store with no active model and an idle debug state.
func New() *Store {
	return &Store{
		activeModel: ActiveModel{ModelKey: nil},
		debug: DebugState{
			Status:         StatusIdle,
			RecentRequests: make([]RequestRecord, 0, RecentRequestsLimit),
		},
		startedAt: time.Now(),
	}
}

// ActiveModel returns a copy of the current active model record.
func (s *Store) ActiveModel() ActiveModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeModel
}

// SetActiveModel overwrites the active model record.
func (s *Store) SetActiveModel(m ActiveModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeModel = m
}

// ClearActiveModel sets the active model to "none active".
func (s *Store) ClearActiveModel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeModel = ActiveModel{ModelKey: nil}
}

// ActiveModelMatches reports whether an unload target is the active model,
// for deciding whether an unload should clear it. A non-empty instanceID is
// matched against the active instance ID; otherwise modelKey is matched
// against the active model key.
func (s *Store) ActiveModelMatches(modelKey, instanceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeModel.ModelKey == nil {
		return false
	}
	if instanceID != "" {
		return s.activeModel.InstanceID == instanceID
	}
	return *s.activeModel.ModelKey == modelKey
}

// SetOperation installs the current long-running operation, replacing any
// prior one.
func (s *Store) SetOperation(op *OperationInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug.CurrentOperation = op
}

// ClearOperation clears the current operation.
func (s *Store) ClearOperation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug.CurrentOperation = nil
}

// SetStatus sets the debug status.
func (s *Store) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug.Status = status
}

// AppendRequest records a request outcome, evicting the oldest entry once
// the ring buffer exceeds RecentRequestsLimit, and updates the running
// counters. Call this after the response has been committed to the client.
func (s *Store) AppendRequest(rec RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debug.RecentRequests = append(s.debug.RecentRequests, rec)
	if len(s.debug.RecentRequests) > RecentRequestsLimit {
		s.debug.RecentRequests = s.debug.RecentRequests[len(s.debug.RecentRequests)-RecentRequestsLimit:]
	}

	s.debug.TotalRequests++
	if rec.Status == RequestFailed {
		s.debug.TotalErrors++
	}
}

// Snapshot returns a copy of the full AppState, with RecentRequests
// truncated to the last DebugStatusRequestsLimit entries, as served by
// /debug/status.
type Snapshot struct {
	ActiveModel ActiveModel
	Debug       DebugState
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.debug.RecentRequests
	if len(recent) > DebugStatusRequestsLimit {
		recent = recent[len(recent)-DebugStatusRequestsLimit:]
	}
	recentCopy := make([]RequestRecord, len(recent))
	copy(recentCopy, recent)

	return Snapshot{
		ActiveModel: s.activeModel,
		Debug: DebugState{
			Status:           s.debug.Status,
			CurrentOperation: s.debug.CurrentOperation,
			RecentRequests:   recentCopy,
			TotalRequests:    s.debug.TotalRequests,
			TotalErrors:      s.debug.TotalErrors,
		},
	}
}

// Metrics is the derived view served by /debug/metrics. Every average and
// percentage is rounded to two decimal places.
type Metrics struct {
	TotalRequests       int64       `json:"total_requests"`
	TotalErrors         int64       `json:"total_errors"`
	ErrorRate           float64     `json:"error_rate"`
	CompletedCount      int         `json:"completed_count"`
	MinTimeMs           int64       `json:"min_time_ms"`
	MedianTimeMs        int64       `json:"median_time_ms"`
	MaxTimeMs           int64       `json:"max_time_ms"`
	AvgTimeMs           float64     `json:"avg_time_ms"`
	AvgTokensPerSec     float64     `json:"avg_tokens_per_sec"`
	PromptTokens        int         `json:"prompt_tokens"`
	CompletionTokens    int         `json:"completion_tokens"`
	AvgPromptTokens     float64     `json:"avg_prompt_tokens"`
	AvgCompletionTokens float64     `json:"avg_completion_tokens"`
	Model               ActiveModel `json:"model"`
	System              SystemInfo  `json:"system"`
}

// SystemInfo is the system block of /debug/metrics.
type SystemInfo struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Platform      string  `json:"platform"`
	NumGoroutine  int     `json:"num_goroutine"`
	MemAllocBytes uint64  `json:"mem_alloc_bytes"`
}

// Metrics computes the derived metrics view on demand from RecentRequests.
// Nothing is precomputed; this walks the ring buffer at call time.
func (s *Store) Metrics() Metrics {
	s.mu.RLock()
	recent := make([]RequestRecord, len(s.debug.RecentRequests))
	copy(recent, s.debug.RecentRequests)
	totalRequests := s.debug.TotalRequests
	totalErrors := s.debug.TotalErrors
	activeModel := s.activeModel
	startedAt := s.startedAt
	s.mu.RUnlock()

	m := Metrics{
		TotalRequests: totalRequests,
		TotalErrors:   totalErrors,
		Model:         activeModel,
	}

	if totalRequests > 0 {
		m.ErrorRate = round2(float64(totalErrors) / float64(totalRequests) * 100)
	}

	var times []int64
	var tokensPerSecSamples []float64
	var promptTotal, completionTotal, tokenSampleCount int

	for _, r := range recent {
		if r.Status != RequestCompleted || r.TimeMs == nil {
			continue
		}
		m.CompletedCount++
		times = append(times, *r.TimeMs)

		if r.TokenUsage != nil {
			promptTotal += r.TokenUsage.Prompt
			completionTotal += r.TokenUsage.Completion
			tokenSampleCount++

			if *r.TimeMs > 0 {
				seconds := float64(*r.TimeMs) / 1000
				tokensPerSecSamples = append(tokensPerSecSamples, float64(r.TokenUsage.Total)/seconds)
			}
		}
	}

	if len(times) > 0 {
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		m.MinTimeMs = times[0]
		m.MaxTimeMs = times[len(times)-1]
		m.MedianTimeMs = median(times)

		var sum int64
		for _, t := range times {
			sum += t
		}
		m.AvgTimeMs = round2(float64(sum) / float64(len(times)))
	}

	if len(tokensPerSecSamples) > 0 {
		var sum float64
		for _, v := range tokensPerSecSamples {
			sum += v
		}
		m.AvgTokensPerSec = round2(sum / float64(len(tokensPerSecSamples)))
	}

	m.PromptTokens = promptTotal
	m.CompletionTokens = completionTotal
	if tokenSampleCount > 0 {
		m.AvgPromptTokens = round2(float64(promptTotal) / float64(tokenSampleCount))
		m.AvgCompletionTokens = round2(float64(completionTotal) / float64(tokenSampleCount))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.System = SystemInfo{
		UptimeSeconds: round2(time.Since(startedAt).Seconds()),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		NumGoroutine:  runtime.NumGoroutine(),
		MemAllocBytes: memStats.Alloc,
	}

	return m
}

// UptimeSeconds returns the process uptime, derived from process start.
func (s *Store) UptimeSeconds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return round2(time.Since(s.startedAt).Seconds())
}

func median(sorted []int64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package state

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func TestStore_NewHasNoActiveModel(t *testing.T) {
	s := New()
	m := s.ActiveModel()
	if m.ModelKey != nil {
		t.Errorf("got model key %v, want nil", *m.ModelKey)
	}
	if s.Snapshot().Debug.Status != StatusIdle {
		t.Errorf("got status %q, want %q", s.Snapshot().Debug.Status, StatusIdle)
	}
}

func TestStore_SetAndClearActiveModel(t *testing.T) {
	s := New()
	s.SetActiveModel(ActiveModel{ModelKey: strPtr("llama-3-8b"), InstanceID: "llama-3-8b:1"})

	m := s.ActiveModel()
	if m.ModelKey == nil || *m.ModelKey != "llama-3-8b" {
		t.Fatalf("got %+v, want model key llama-3-8b", m)
	}

	s.ClearActiveModel()
	if s.ActiveModel().ModelKey != nil {
		t.Error("expected active model cleared")
	}
}

func TestStore_ActiveModelMatches(t *testing.T) {
	s := New()
	s.SetActiveModel(ActiveModel{ModelKey: strPtr("llama-3-8b"), InstanceID: "llama-3-8b:1"})

	if !s.ActiveModelMatches("llama-3-8b", "") {
		t.Error("expected match on key alone")
	}
	if !s.ActiveModelMatches("llama-3-8b", "llama-3-8b:1") {
		t.Error("expected match on key and instance")
	}
	if s.ActiveModelMatches("llama-3-8b", "llama-3-8b:2") {
		t.Error("expected no match on wrong instance")
	}
	if s.ActiveModelMatches("other-model", "") {
		t.Error("expected no match on wrong key")
	}
}

func TestStore_OperationLifecycle(t *testing.T) {
	s := New()
	if s.Snapshot().Debug.CurrentOperation != nil {
		t.Fatal("expected no operation initially")
	}

	s.SetOperation(&OperationInfo{Kind: OperationLoad, ModelKey: "llama-3-8b", StartedAt: time.Now()})
	op := s.Snapshot().Debug.CurrentOperation
	if op == nil || op.Kind != OperationLoad {
		t.Fatalf("got %+v, want load operation", op)
	}

	s.ClearOperation()
	if s.Snapshot().Debug.CurrentOperation != nil {
		t.Error("expected operation cleared")
	}
}

func TestStore_AppendRequestRingBufferEviction(t *testing.T) {
	s := New()
	for i := 0; i < RecentRequestsLimit+10; i++ {
		s.AppendRequest(RequestRecord{
			RequestID: "req",
			Status:    RequestCompleted,
			TimeMs:    i64Ptr(1),
			Timestamp: time.Now(),
		})
	}

	snap := s.Snapshot()
	if snap.Debug.TotalRequests != RecentRequestsLimit+10 {
		t.Errorf("got total requests %d, want %d", snap.Debug.TotalRequests, RecentRequestsLimit+10)
	}
	if len(snap.Debug.RecentRequests) != DebugStatusRequestsLimit {
		t.Errorf("got %d recent requests in snapshot, want %d", len(snap.Debug.RecentRequests), DebugStatusRequestsLimit)
	}
}

func TestStore_AppendRequestCountsErrors(t *testing.T) {
	s := New()
	s.AppendRequest(RequestRecord{RequestID: "a", Status: RequestCompleted, TimeMs: i64Ptr(10)})
	s.AppendRequest(RequestRecord{RequestID: "b", Status: RequestFailed})
	s.AppendRequest(RequestRecord{RequestID: "c", Status: RequestFailed})

	snap := s.Snapshot()
	if snap.Debug.TotalRequests != 3 {
		t.Errorf("got total requests %d, want 3", snap.Debug.TotalRequests)
	}
	if snap.Debug.TotalErrors != 2 {
		t.Errorf("got total errors %d, want 2", snap.Debug.TotalErrors)
	}
}

func TestStore_MetricsEmptyStore(t *testing.T) {
	s := New()
	m := s.Metrics()
	if m.TotalRequests != 0 || m.ErrorRate != 0 || m.CompletedCount != 0 {
		t.Errorf("expected all-zero metrics on empty store, got %+v", m)
	}
}

func TestStore_MetricsComputesMinMedianMaxAvg(t *testing.T) {
	s := New()
	for _, ms := range []int64{100, 200, 300} {
		s.AppendRequest(RequestRecord{
			RequestID: "r",
			Status:    RequestCompleted,
			TimeMs:    i64Ptr(ms),
		})
	}

	m := s.Metrics()
	if m.MinTimeMs != 100 {
		t.Errorf("got min %d, want 100", m.MinTimeMs)
	}
	if m.MaxTimeMs != 300 {
		t.Errorf("got max %d, want 300", m.MaxTimeMs)
	}
	if m.MedianTimeMs != 200 {
		t.Errorf("got median %d, want 200", m.MedianTimeMs)
	}
	if m.AvgTimeMs != 200 {
		t.Errorf("got avg %v, want 200", m.AvgTimeMs)
	}
	if m.CompletedCount != 3 {
		t.Errorf("got completed count %d, want 3", m.CompletedCount)
	}
}

func TestStore_MetricsErrorRateRounding(t *testing.T) {
	s := New()
	s.AppendRequest(RequestRecord{RequestID: "a", Status: RequestCompleted, TimeMs: i64Ptr(1)})
	s.AppendRequest(RequestRecord{RequestID: "b", Status: RequestCompleted, TimeMs: i64Ptr(1)})
	s.AppendRequest(RequestRecord{RequestID: "c", Status: RequestFailed})

	m := s.Metrics()
	// 1/3 * 100 = 33.333... -> rounds to 33.33
	if m.ErrorRate != 33.33 {
		t.Errorf("got error rate %v, want 33.33", m.ErrorRate)
	}
}

func TestStore_MetricsTokensPerSecond(t *testing.T) {
	s := New()
	s.AppendRequest(RequestRecord{
		RequestID: "a",
		Status:    RequestCompleted,
		TimeMs:    i64Ptr(1000),
		TokenUsage: &TokenUsage{
			Prompt:     10,
			Completion: 90,
			Total:      100,
		},
	})

	m := s.Metrics()
	if m.AvgTokensPerSec != 100 {
		t.Errorf("got tokens/sec %v, want 100", m.AvgTokensPerSec)
	}
	if m.AvgPromptTokens != 10 {
		t.Errorf("got avg prompt tokens %v, want 10", m.AvgPromptTokens)
	}
	if m.AvgCompletionTokens != 90 {
		t.Errorf("got avg completion tokens %v, want 90", m.AvgCompletionTokens)
	}
}

func TestStore_UptimeSecondsIncreases(t *testing.T) {
	s := New()
	first := s.UptimeSeconds()
	time.Sleep(10 * time.Millisecond)
	second := s.UptimeSeconds()
	if second < first {
		t.Errorf("got uptime decrease: %v -> %v", first, second)
	}
}

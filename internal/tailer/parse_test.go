package tailer

import (
	"testing"

	"github.com/modelgate/modelgate/internal/eventbus"
)

func TestParseLine_WellFormed(t *testing.T) {
	raw := "[2026-08-03 10:15:30][INFO] server started"
	base, typed := ParseLine(raw)
	if base == nil {
		t.Fatal("expected a parsed line")
	}
	if base.Timestamp != "2026-08-03 10:15:30" || base.Level != "INFO" || base.Message != "server started" {
		t.Errorf("got %+v", base)
	}
	if base.Raw != raw {
		t.Errorf("got raw %q, want %q", base.Raw, raw)
	}
	if len(typed) != 0 {
		t.Errorf("expected no typed events, got %+v", typed)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []string{
		"no prefix at all",
		"[2026-08-03 10:15:30] missing level",
		"[2026-08-03 10:15:30][TRACE] unknown level",
		"",
	}
	for _, raw := range tests {
		base, typed := ParseLine(raw)
		if base != nil || typed != nil {
			t.Errorf("ParseLine(%q) = %+v, %+v, want nil, nil", raw, base, typed)
		}
	}
}

func TestParseLine_ChatStart(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][INFO] Running chat completion on conversation abc123")
	assertSingleType(t, typed, eventbus.EventLMStudioChatStart)
}

func TestParseLine_SamplingParams(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][DEBUG] Sampling params: temp=0.800000, top_k=40, top_p=0.950000, unknown_field=99")
	ev := assertSingleType(t, typed, eventbus.EventLMStudioSamplingParams)
	if ev.Data["temp"] != 0.8 {
		t.Errorf("got temp %v", ev.Data["temp"])
	}
	if ev.Data["top_k"] != int64(40) {
		t.Errorf("got top_k %v", ev.Data["top_k"])
	}
	if _, present := ev.Data["unknown_field"]; present {
		t.Error("unknown_field should not be extracted")
	}
}

func TestParseLine_PromptProgress(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][DEBUG] Prompt processing progress: 42.50%")
	ev := assertSingleType(t, typed, eventbus.EventLMStudioPromptProgress)
	if ev.Data["progress"] != 42.5 {
		t.Errorf("got progress %v", ev.Data["progress"])
	}
}

func TestParseLine_CacheStats(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][DEBUG] Cache reuse summary: 120/200 of prompt (60.00%), 100 prefix, 20 non-prefix")
	ev := assertSingleType(t, typed, eventbus.EventLMStudioCacheStats)
	if ev.Data["reused"] != int64(120) || ev.Data["total"] != int64(200) {
		t.Errorf("got %+v", ev.Data)
	}
	if ev.Data["percentage"] != 60.0 {
		t.Errorf("got percentage %v", ev.Data["percentage"])
	}
}

func TestParseLine_GenerateLine(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][DEBUG] Generate: n_ctx=4096, n_batch=512, n_predict=-1, n_keep=0")
	ev := assertSingleType(t, typed, eventbus.EventLMStudioTokenInfo)
	if ev.Data["n_ctx"] != int64(4096) || ev.Data["n_predict"] != int64(-1) {
		t.Errorf("got %+v", ev.Data)
	}
}

func TestParseLine_TotalPromptTokens(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][DEBUG] Total prompt tokens: 128")
	ev := assertSingleType(t, typed, eventbus.EventLMStudioTokenInfo)
	if ev.Data["total_prompt_tokens"] != int64(128) {
		t.Errorf("got %+v", ev.Data)
	}
}

func TestParseLine_ProcessingStart(t *testing.T) {
	_, typed := ParseLine("[2026-08-03 10:15:30][INFO] BeginProcessingPrompt for request req_1")
	assertSingleType(t, typed, eventbus.EventLMStudioProcessingStart)
}

func assertSingleType(t *testing.T, typed []TypedEvent, want string) TypedEvent {
	t.Helper()
	if len(typed) != 1 {
		t.Fatalf("got %d typed events, want 1: %+v", len(typed), typed)
	}
	if typed[0].Type != want {
		t.Fatalf("got type %q, want %q", typed[0].Type, want)
	}
	return typed[0]
}

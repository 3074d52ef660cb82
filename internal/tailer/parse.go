package tailer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/modelgate/modelgate/internal/eventbus"
)

// lineLevels is the set of levels a well-formed log line may carry.
var lineLevels = map[string]bool{"INFO": true, "DEBUG": true, "WARN": true, "ERROR": true}

var linePattern = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\]\[([A-Z]+)\] (.*)$`)

// DebugLogEvent is the always-emitted event for every well-formed line.
type DebugLogEvent struct {
	Timestamp string
	Level     string
	Message   string
	Raw       string
}

// TypedEvent is an additional event a line's message may trigger on top of
// its DebugLogEvent, keyed by the eventbus event-type constant it maps to.
type TypedEvent struct {
	Type string
	Data map[string]interface{}
}

// ParseLine parses one raw log line. It returns nil, nil for malformed
// lines (missing the "[timestamp][LEVEL] " prefix or carrying an unknown
// level), per the tailer's "malformed lines are ignored" contract.
func ParseLine(raw string) (*DebugLogEvent, []TypedEvent) {
	m := linePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil
	}
	timestamp, level, message := m[1], m[2], m[3]
	if !lineLevels[level] {
		return nil, nil
	}

	base := &DebugLogEvent{Timestamp: timestamp, Level: level, Message: message, Raw: raw}
	return base, matchTypedEvents(message)
}

func matchTypedEvents(message string) []TypedEvent {
	var events []TypedEvent

	if strings.Contains(message, "Running chat completion on conversation") {
		events = append(events, TypedEvent{
			Type: eventbus.EventLMStudioChatStart,
			Data: map[string]interface{}{"message": message},
		})
	}

	if ev, ok := parseSamplingParams(message); ok {
		events = append(events, ev)
	}
	if ev, ok := parsePromptProgress(message); ok {
		events = append(events, ev)
	}
	if ev, ok := parseCacheStats(message); ok {
		events = append(events, ev)
	}
	if ev, ok := parseGenerateLine(message); ok {
		events = append(events, ev)
	}
	if ev, ok := parseTotalPromptTokens(message); ok {
		events = append(events, ev)
	}
	if ev, ok := parsePromptTokensToDecode(message); ok {
		events = append(events, ev)
	}
	if strings.Contains(message, "BeginProcessingPrompt") {
		events = append(events, TypedEvent{
			Type: eventbus.EventLMStudioProcessingStart,
			Data: map[string]interface{}{"message": "prompt processing started"},
		})
	}

	return events
}

// samplingParamKeys is the allow-list of keys extracted from a
// "Sampling params:" line; keys outside this set are ignored.
var samplingParamKeys = map[string]bool{
	"repeat_last_n": true, "repeat_penalty": true, "frequency_penalty": true,
	"presence_penalty": true, "dry_multiplier": true, "dry_base": true,
	"dry_allowed_length": true, "dry_penalty_last_n": true, "top_k": true,
	"top_p": true, "min_p": true, "xtc_probability": true, "xtc_threshold": true,
	"typical_p": true, "top_n_sigma": true, "temp": true, "mirostat": true,
	"mirostat_lr": true, "mirostat_ent": true,
}

var kvFragmentPattern = regexp.MustCompile(`(\w+)=(-?[0-9.]+)`)

func parseSamplingParams(message string) (TypedEvent, bool) {
	idx := strings.Index(message, "Sampling params:")
	if idx < 0 {
		return TypedEvent{}, false
	}
	tail := message[idx+len("Sampling params:"):]

	data := map[string]interface{}{}
	for _, m := range kvFragmentPattern.FindAllStringSubmatch(tail, -1) {
		key, raw := m[1], m[2]
		if !samplingParamKeys[key] {
			continue
		}
		data[key] = parseNumber(raw)
	}
	if len(data) == 0 {
		return TypedEvent{}, false
	}
	return TypedEvent{Type: eventbus.EventLMStudioSamplingParams, Data: data}, true
}

var promptProgressPattern = regexp.MustCompile(`Prompt processing progress: ([0-9.]+)%`)

func parsePromptProgress(message string) (TypedEvent, bool) {
	m := promptProgressPattern.FindStringSubmatch(message)
	if m == nil {
		return TypedEvent{}, false
	}
	progress, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return TypedEvent{}, false
	}
	return TypedEvent{
		Type: eventbus.EventLMStudioPromptProgress,
		Data: map[string]interface{}{"progress": progress, "message": message},
	}, true
}

var cacheStatsPattern = regexp.MustCompile(
	`Cache reuse summary: (\d+)/(\d+) of prompt \(([0-9.]+)%\), (\d+) prefix, (\d+) non-prefix`)

func parseCacheStats(message string) (TypedEvent, bool) {
	m := cacheStatsPattern.FindStringSubmatch(message)
	if m == nil {
		return TypedEvent{}, false
	}
	reused, _ := strconv.ParseInt(m[1], 10, 64)
	total, _ := strconv.ParseInt(m[2], 10, 64)
	percentage, _ := strconv.ParseFloat(m[3], 64)
	prefix, _ := strconv.ParseInt(m[4], 10, 64)
	nonPrefix, _ := strconv.ParseInt(m[5], 10, 64)
	return TypedEvent{
		Type: eventbus.EventLMStudioCacheStats,
		Data: map[string]interface{}{
			"reused": reused, "total": total, "percentage": percentage,
			"prefix": prefix, "non_prefix": nonPrefix, "message": message,
		},
	}, true
}

var generateLinePattern = regexp.MustCompile(
	`Generate: n_ctx=(\d+), n_batch=(\d+), n_predict=(-?\d+), n_keep=(\d+)`)

func parseGenerateLine(message string) (TypedEvent, bool) {
	m := generateLinePattern.FindStringSubmatch(message)
	if m == nil {
		return TypedEvent{}, false
	}
	data := map[string]interface{}{}
	for i, key := range []string{"n_ctx", "n_batch", "n_predict", "n_keep"} {
		if v, err := strconv.ParseInt(m[i+1], 10, 64); err == nil {
			data[key] = v
		}
	}
	return TypedEvent{Type: eventbus.EventLMStudioTokenInfo, Data: data}, true
}

var totalPromptTokensPattern = regexp.MustCompile(`Total prompt tokens: (\d+)`)

func parseTotalPromptTokens(message string) (TypedEvent, bool) {
	m := totalPromptTokensPattern.FindStringSubmatch(message)
	if m == nil {
		return TypedEvent{}, false
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	return TypedEvent{
		Type: eventbus.EventLMStudioTokenInfo,
		Data: map[string]interface{}{"total_prompt_tokens": n},
	}, true
}

var promptTokensToDecodePattern = regexp.MustCompile(`Prompt tokens to decode: (\d+)`)

func parsePromptTokensToDecode(message string) (TypedEvent, bool) {
	m := promptTokensToDecodePattern.FindStringSubmatch(message)
	if m == nil {
		return TypedEvent{}, false
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	return TypedEvent{
		Type: eventbus.EventLMStudioTokenInfo,
		Data: map[string]interface{}{"prompt_tokens_to_decode": n},
	}, true
}

// parseNumber renders a numeric fragment as an int64 when it has no
// fractional part, otherwise as a float64.
func parseNumber(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

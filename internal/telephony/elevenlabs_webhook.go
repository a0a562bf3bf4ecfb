package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types that carry call state.
const (
	EventPostCallTranscription = "post_call_transcription"
	EventConversationUpdate    = "conversation_update"
)

var ErrMalformedEvent = errors.New("telephony: malformed webhook event")

// Event is the provider-agnostic view of one ElevenLabs webhook delivery.
type Event struct {
	Type string

	CallSID        string
	ConversationID string
	AgentID        string

	// Status is the raw provider status ("done", "failed", "processing", ...).
	Status string

	DurationSeconds int
	// Cost is normalized: provider cost units divided by 100.
	Cost float64

	Transcript string
	Summary    string
	HasAudio   bool

	StartedAt      *time.Time
	ExternalNumber string
}

// IsReconcilable reports whether the event type carries call state.
func (e Event) IsReconcilable() bool {
	return e.Type == EventPostCallTranscription || e.Type == EventConversationUpdate
}

type fieldPath []string

// Ordered alias lists. The first non-empty value wins, searching the data object
// before the top-level body.
var (
	callSIDPaths = []fieldPath{
		{"call_sid"},
		{"callSid"},
		{"metadata", "phone_call", "call_sid"},
		{"metadata", "phone_call", "callSid"},
	}
	conversationIDPaths = []fieldPath{
		{"conversation_id"},
		{"conversationId"},
	}
	agentIDPaths = []fieldPath{
		{"agent_id"},
		{"agentId"},
	}
	statusPaths = []fieldPath{
		{"status"},
	}
	durationPaths = []fieldPath{
		{"metadata", "call_duration_secs"},
		{"call_duration_secs"},
	}
	costPaths = []fieldPath{
		{"metadata", "cost"},
		{"cost"},
	}
	summaryPaths = []fieldPath{
		{"analysis", "transcript_summary"},
		{"analysis", "summary"},
		{"summary"},
	}
	hasAudioPaths = []fieldPath{
		{"has_audio"},
		{"hasAudio"},
	}
	startTimePaths = []fieldPath{
		{"metadata", "start_time_unix_secs"},
		{"start_time_unix_secs"},
	}
	externalNumberPaths = []fieldPath{
		{"metadata", "phone_call", "external_number"},
		{"external_number"},
	}
	transcriptPaths = []fieldPath{
		{"transcript"},
	}
)

// DecodeEvent parses a raw webhook body. Fields are read from the "data" object
// and fall back to the top level when data is absent or lacks them.
func DecodeEvent(raw []byte) (Event, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if root == nil {
		return Event{}, ErrMalformedEvent
	}

	scopes := make([]map[string]any, 0, 2)
	if data, ok := root["data"].(map[string]any); ok {
		scopes = append(scopes, data)
	}
	scopes = append(scopes, root)

	ev := Event{
		Type:           asString(root["type"]),
		CallSID:        firstString(scopes, callSIDPaths),
		ConversationID: firstString(scopes, conversationIDPaths),
		AgentID:        firstString(scopes, agentIDPaths),
		Status:         firstString(scopes, statusPaths),
		Summary:        firstString(scopes, summaryPaths),
		ExternalNumber: firstString(scopes, externalNumberPaths),
	}
	if v, ok := firstNumber(scopes, durationPaths); ok {
		ev.DurationSeconds = int(v)
	}
	if v, ok := firstNumber(scopes, costPaths); ok {
		ev.Cost = v / 100
	}
	if v, ok := firstValue(scopes, hasAudioPaths); ok {
		ev.HasAudio = asBool(v)
	}
	if v, ok := firstNumber(scopes, startTimePaths); ok && v > 0 {
		t := time.Unix(int64(v), 0).UTC()
		ev.StartedAt = &t
	}
	if v, ok := firstValue(scopes, transcriptPaths); ok {
		ev.Transcript = FlattenTranscript(v)
	}
	return ev, nil
}

// TranscriptSegment is one speaker turn.
type TranscriptSegment struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// FlattenTranscript renders speaker turns as "role: message" lines in received
// order. Turns without text (tool calls) are skipped. A transcript that is
// already a string is returned trimmed.
func FlattenTranscript(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []TranscriptSegment:
		lines := make([]string, 0, len(t))
		for _, seg := range t {
			if line, ok := segmentLine(seg.Role, seg.Message); ok {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			role := asString(m["role"])
			if role == "" {
				role = asString(m["speaker"])
			}
			msg := asString(m["message"])
			if msg == "" {
				msg = asString(m["text"])
			}
			if line, ok := segmentLine(role, msg); ok {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

func segmentLine(role, msg string) (string, bool) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", false
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = "unknown"
	}
	return role + ": " + msg, true
}

func lookup(obj map[string]any, p fieldPath) (any, bool) {
	var cur any = obj
	for _, key := range p {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func firstValue(scopes []map[string]any, paths []fieldPath) (any, bool) {
	for _, scope := range scopes {
		for _, p := range paths {
			if v, ok := lookup(scope, p); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func firstString(scopes []map[string]any, paths []fieldPath) string {
	for _, scope := range scopes {
		for _, p := range paths {
			v, ok := lookup(scope, p)
			if !ok {
				continue
			}
			if s := strings.TrimSpace(asString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(scopes []map[string]any, paths []fieldPath) (float64, bool) {
	for _, scope := range scopes {
		for _, p := range paths {
			v, ok := lookup(scope, p)
			if !ok {
				continue
			}
			if n, ok := asNumber(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	default:
		return false
	}
}

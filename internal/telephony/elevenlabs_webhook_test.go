package telephony

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_PostCallTranscription(t *testing.T) {
	raw := []byte(`{
		"type": "post_call_transcription",
		"event_timestamp": 1739537297,
		"data": {
			"agent_id": "agent_ext_1",
			"conversation_id": "conv_1",
			"status": "done",
			"has_audio": true,
			"transcript": [
				{"role": "agent", "message": "Hi, this is the front desk."},
				{"role": "user", "message": null},
				{"role": "user", "message": "I'd like a table for two."}
			],
			"metadata": {
				"start_time_unix_secs": 1739537000,
				"call_duration_secs": 125,
				"cost": 296,
				"phone_call": {"call_sid": "CA123", "external_number": "+919876543210"}
			},
			"analysis": {"transcript_summary": "Caller scheduled a reservation for two."}
		}
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, EventPostCallTranscription, ev.Type)
	assert.True(t, ev.IsReconcilable())
	assert.Equal(t, "CA123", ev.CallSID)
	assert.Equal(t, "conv_1", ev.ConversationID)
	assert.Equal(t, "agent_ext_1", ev.AgentID)
	assert.Equal(t, "done", ev.Status)
	assert.Equal(t, 125, ev.DurationSeconds)
	assert.InDelta(t, 2.96, ev.Cost, 1e-9)
	assert.True(t, ev.HasAudio)
	assert.Equal(t, "+919876543210", ev.ExternalNumber)
	assert.Equal(t, "Caller scheduled a reservation for two.", ev.Summary)
	assert.Equal(t, "agent: Hi, this is the front desk.\nuser: I'd like a table for two.", ev.Transcript)
	require.NotNil(t, ev.StartedAt)
	assert.Equal(t, time.Unix(1739537000, 0).UTC(), *ev.StartedAt)
}

func TestDecodeEvent_TopLevelFallback(t *testing.T) {
	raw := []byte(`{
		"type": "conversation_update",
		"callSid": "CA9",
		"status": "failed",
		"call_duration_secs": "30",
		"cost": 50,
		"summary": "No one answered."
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "CA9", ev.CallSID)
	assert.Equal(t, "failed", ev.Status)
	assert.Equal(t, 30, ev.DurationSeconds)
	assert.InDelta(t, 0.5, ev.Cost, 1e-9)
	assert.Equal(t, "No one answered.", ev.Summary)
	assert.Empty(t, ev.ConversationID)
}

func TestDecodeEvent_DataWinsOverTopLevel(t *testing.T) {
	raw := []byte(`{"type":"conversation_update","call_sid":"top","summary":"top summary",
		"data":{"call_sid":"inner","analysis":{"summary":""}}}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "inner", ev.CallSID)
	assert.Equal(t, "top summary", ev.Summary)
}

func TestDecodeEvent_AnalysisSummaryBeforeTopLevel(t *testing.T) {
	raw := []byte(`{"type":"post_call_transcription","data":{"summary":"plain","analysis":{"transcript_summary":"analysis"}}}`)
	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "analysis", ev.Summary)
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"call_initiation_failure","data":{"call_sid":"CA1"}}`))
	require.NoError(t, err)
	assert.False(t, ev.IsReconcilable())
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `[1,2]`, `null`} {
		_, err := DecodeEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEvent, "body %q", raw)
	}
}

func TestFlattenTranscript(t *testing.T) {
	assert.Equal(t, "already flat", FlattenTranscript("  already flat "))
	assert.Equal(t, "", FlattenTranscript(nil))
	assert.Equal(t,
		"agent: one\nunknown: two\nuser: three",
		FlattenTranscript([]TranscriptSegment{{"agent", "one"}, {"", "two"}, {"user", "  "}, {"user", "three"}}),
	)
	assert.Equal(t,
		"speaker_a: hi",
		FlattenTranscript([]any{map[string]any{"speaker": "speaker_a", "text": "hi"}, "junk"}),
	)
}

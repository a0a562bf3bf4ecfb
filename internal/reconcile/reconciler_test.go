package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"voice-platform/internal/agents"
	"voice-platform/internal/calls"
	"voice-platform/internal/outbound"
	"voice-platform/internal/outcome"
	"voice-platform/internal/telephony"
	"voice-platform/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "whsec_test"
	agentUUID  = "0b7f4c1e-3d2a-4f5b-8c6d-9e0a1b2c3d4e"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeLLM struct {
	mu     sync.Mutex
	answer string
	err    error
	n      int
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return f.answer, f.err
}

type fakePlacer struct {
	res telephony.OutboundCallResult
}

func (f fakePlacer) PlaceOutboundCall(ctx context.Context, req telephony.OutboundCallRequest) (telephony.OutboundCallResult, error) {
	return f.res, nil
}

type fixture struct {
	rec    *Reconciler
	calls  *calls.MemoryRepo
	agents *agents.MemoryRepo
	usage  *usage.MemoryRecorder
	llm    *fakeLLM
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		calls: calls.NewMemoryRepo(),
		agents: agents.NewMemoryRepo(agents.Agent{
			ID: agentUUID, TenantID: "t1", ExternalAgentID: "agent_ext_1", Name: "Front desk",
		}),
		usage: usage.NewMemoryRecorder(),
		llm:   &fakeLLM{answer: "neutral"},
	}
	f.rec = New(Deps{
		Verifier:   telephony.Verifier{Secret: testSecret},
		Calls:      f.calls,
		Agents:     f.agents,
		Classifier: outcome.NewClassifier(f.llm, nil),
		Usage:      f.usage,
	})
	f.rec.clock = func() time.Time { return fixedNow }
	f.rec.newID = func() string { return "inbound-1" }
	return f
}

func (f fixture) seedCall(t *testing.T, c calls.Call) {
	t.Helper()
	if c.TenantID == "" {
		c.TenantID = "t1"
	}
	if c.Direction == "" {
		c.Direction = calls.DirectionOutbound
	}
	if c.Status == "" {
		c.Status = calls.CallStatusInitiated
	}
	c.CreatedAt = fixedNow.Add(-time.Hour)
	require.NoError(t, f.calls.Create(context.Background(), c))
}

func signed(t *testing.T, payload any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	ts := strconv.FormatInt(fixedNow.Unix(), 10)
	return body, telephony.FormatSignatureHeader(body, testSecret, ts)
}

func transcriptionPayload(callSID, convID, status string, duration int, summary string) map[string]any {
	return map[string]any{
		"type": telephony.EventPostCallTranscription,
		"data": map[string]any{
			"agent_id":        "agent_ext_1",
			"conversation_id": convID,
			"status":          status,
			"metadata": map[string]any{
				"call_duration_secs": duration,
				"cost":               250,
				"phone_call": map[string]any{
					"call_sid":        callSID,
					"external_number": "+919876543210",
				},
			},
			"analysis": map[string]any{"transcript_summary": summary},
			"transcript": []any{
				map[string]any{"role": "agent", "message": "Hello"},
				map[string]any{"role": "user", "message": "Hi"},
			},
			"has_audio": true,
		},
	}
}

func TestHandleCallback_InvalidSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})
	body, _ := signed(t, transcriptionPayload("CA1", "conv1", "done", 60, "ok"))

	for _, header := range []string{"", "garbage", "t=1,v0=deadbeef"} {
		_, err := f.rec.HandleCallback(context.Background(), body, header)
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, err, telephony.ErrInvalidSignature)
	}

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusInitiated, got.Status)
	assert.Empty(t, got.Transcript)
	assert.Zero(t, f.usage.Invocations())
	assert.Zero(t, f.llm.n)
}

func TestHandleCallback_EmptySecretFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.rec.verifier = telephony.Verifier{}
	body, header := signed(t, transcriptionPayload("CA1", "conv1", "done", 60, "ok"))

	_, err := f.rec.HandleCallback(context.Background(), body, header)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHandleCallback_IgnoredEventsAreAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	cases := []struct {
		name    string
		payload any
		reason  string
	}{
		{"unknown type", map[string]any{"type": "audio_chunk", "data": map[string]any{"call_sid": "CA1", "status": "done"}}, SkipIgnoredType},
		{"no ids", map[string]any{"type": telephony.EventConversationUpdate, "data": map[string]any{"status": "done"}}, SkipNoCorrelation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, header := signed(t, tc.payload)
			res, err := f.rec.HandleCallback(context.Background(), body, header)
			require.NoError(t, err)
			assert.False(t, res.Handled)
			assert.Equal(t, tc.reason, res.Reason)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		body := []byte(`{"type":`)
		header := telephony.FormatSignatureHeader(body, testSecret, "1")
		res, err := f.rec.HandleCallback(context.Background(), body, header)
		require.NoError(t, err)
		assert.Equal(t, SkipMalformed, res.Reason)
	})

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusInitiated, got.Status)
	assert.Equal(t, 1, f.calls.Count())
	assert.Zero(t, f.usage.Invocations())
}

func TestHandleCallback_CompletesCallAndRecordsUsage(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "interested"
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "conv1", "done", 61, "Caller wants a demo"))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)

	assert.True(t, res.Handled)
	assert.False(t, res.Created)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, calls.CallStatusCompleted, res.Status)
	assert.Equal(t, calls.OutcomeInterested, res.Outcome)
	assert.Equal(t, 2, res.UsageMinutes)

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 61, got.DurationSeconds)
	assert.InDelta(t, 2.5, got.Cost, 1e-9)
	assert.Equal(t, "conv1", got.ConversationID)
	assert.Equal(t, "Caller wants a demo", got.Summary)
	assert.Contains(t, got.Transcript, "agent: Hello")
	assert.True(t, got.HasAudio)
	require.NotNil(t, got.EndedAt)

	acct, err := f.usage.GetAccount(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, acct.MinutesUsed)
}

func TestHandleCallback_NonTerminalStatusKeepsLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "", "processing", 30, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusInitiated, res.Status)
	assert.Equal(t, calls.OutcomeNeutral, res.Outcome)
	assert.Zero(t, res.UsageMinutes)
	assert.Zero(t, f.usage.Invocations())
	assert.Zero(t, f.llm.n, "empty summary must not reach the classifier")
}

func TestHandleCallback_FailedStatus(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "", "failed", 0, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusFailed, res.Status)
	assert.Zero(t, f.usage.Invocations())
}

func TestHandleCallback_CompletedCallStaysCompleted(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "conv1", "done", 125, ""))
	_, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)

	body, header = signed(t, transcriptionPayload("CA1", "conv1", "failed", 0, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, res.Status)

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, got.Status)
	assert.Len(t, f.usage.Entries(), 1)
}

func TestHandleCallback_FailedCallIsNotRevivedOrBilled(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1", Status: calls.CallStatusFailed, Notes: "busy"})

	body, header := signed(t, transcriptionPayload("CA1", "conv1", "done", 30, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusFailed, res.Status)
	assert.Zero(t, res.UsageMinutes)

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusFailed, got.Status)
	assert.Equal(t, "busy", got.Notes)
	assert.Zero(t, f.usage.Invocations())
}

func TestHandleCallback_FallsBackToConversationID(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", ConversationID: "conv1"})

	body, header := signed(t, transcriptionPayload("CA-unknown", "conv1", "done", 10, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CallID)
	assert.False(t, res.Created)

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "CA-unknown", got.CallSID)
	assert.Equal(t, 1, f.calls.Count())
}

func TestHandleCallback_CreatesInboundCallForKnownAgent(t *testing.T) {
	f := newFixture(t)

	body, header := signed(t, transcriptionPayload("CA9", "conv9", "done", 45, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "inbound-1", res.CallID)

	got, err := f.calls.Get(context.Background(), "t1", "inbound-1")
	require.NoError(t, err)
	assert.Equal(t, calls.DirectionInbound, got.Direction)
	assert.Equal(t, agentUUID, got.AgentID)
	assert.Equal(t, "+919876543210", got.PhoneNumber)
	assert.Equal(t, "IN", got.Region)
	assert.Equal(t, calls.CallStatusCompleted, got.Status)
	assert.Equal(t, 1, res.UsageMinutes)
}

func TestHandleCallback_UnresolvableTenantIsSkipped(t *testing.T) {
	f := newFixture(t)
	payload := transcriptionPayload("CA9", "conv9", "done", 45, "")
	payload["data"].(map[string]any)["agent_id"] = "agent_unknown"

	body, header := signed(t, payload)
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, SkipTenantUnresolved, res.Reason)
	assert.Zero(t, f.calls.Count())
	assert.Zero(t, f.usage.Invocations())
}

func TestHandleCallback_RepeatedDeliveryConverges(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "needs_follow_up"
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "conv1", "done", 90, "Call back next week"))

	first, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	afterFirst, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)

	second, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	afterSecond, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, afterSecond)

	// The recorder is called on every delivery; the ledger charges once.
	assert.Equal(t, 2, f.usage.Invocations())
	assert.Len(t, f.usage.Entries(), 1)
	acct, err := f.usage.GetAccount(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, acct.MinutesUsed)
}

type failingRecorder struct{}

func (failingRecorder) RecordUsage(ctx context.Context, tenantID string, minutes int, key string) (usage.LedgerEntry, error) {
	return usage.LedgerEntry{}, errors.New("db down")
}

func TestHandleCallback_UsageFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.rec.usage = failingRecorder{}
	f.seedCall(t, calls.Call{ID: "c1", CallSID: "CA1"})

	body, header := signed(t, transcriptionPayload("CA1", "", "done", 60, ""))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, "c1", res.CallID)

	got, err := f.calls.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, got.Status)
}

func TestPlaceThenReconcile(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "reservation_made"

	placer := fakePlacer{res: telephony.OutboundCallResult{CallSID: "CA-e2e", ConversationID: "conv-e2e"}}
	svc := outbound.NewService(outbound.Deps{
		Calls:         f.calls,
		Agents:        f.agents,
		Placer:        placer,
		PhoneNumberID: "pn_1",
	})

	placed, err := svc.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		TenantID: "t1", AgentRef: "agent_ext_1", PhoneNumber: "98765 43210", ContactName: "Asha",
	})
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusInitiated, placed.Status)
	assert.Equal(t, "CA-e2e", placed.CallSID)

	body, header := signed(t, transcriptionPayload("CA-e2e", "conv-e2e", "done", 125, "Guest scheduled a reservation for four"))
	res, err := f.rec.HandleCallback(context.Background(), body, header)
	require.NoError(t, err)
	assert.Equal(t, placed.CallID, res.CallID)

	got, err := f.calls.Get(context.Background(), "t1", placed.CallID)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, got.Status)
	assert.Equal(t, 125, got.DurationSeconds)
	assert.Equal(t, calls.OutcomeReservationMade, got.Outcome)
	assert.Equal(t, calls.DirectionOutbound, got.Direction)
	assert.Equal(t, "+919876543210", got.PhoneNumber)

	acct, err := f.usage.GetAccount(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, acct.MinutesUsed)
}

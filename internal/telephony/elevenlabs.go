package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const outboundCallPath = "/v1/convai/twilio/outbound-call"

// OutboundCallRequest asks the provider to dial ToNumber with an agent.
type OutboundCallRequest struct {
	AgentID            string `json:"agent_id"`
	AgentPhoneNumberID string `json:"agent_phone_number_id"`
	ToNumber           string `json:"to_number"`
	StartMessage       string `json:"agent_start_message,omitempty"`
}

type OutboundCallResult struct {
	CallSID        string
	ConversationID string
	Message        string
}

// PlacementError is a non-success answer from the provider placement API.
type PlacementError struct {
	StatusCode int
	Message    string
}

func (e *PlacementError) Error() string {
	if e.StatusCode == 0 {
		return "telephony: placement rejected: " + e.Message
	}
	return fmt.Sprintf("telephony: placement failed (%d): %s", e.StatusCode, e.Message)
}

// CallPlacer is what the orchestrator needs from the voice provider.
type CallPlacer interface {
	PlaceOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
}

// ElevenLabsClient talks to the ElevenLabs conversational AI API.
type ElevenLabsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

type ElevenLabsOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewElevenLabsClient(opts ElevenLabsOptions) *ElevenLabsClient {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ElevenLabsClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    hc,
		log:     log,
	}
}

// Keys the provider has used for the call-leg id, in preference order.
var callSIDResponseKeys = []string{"callSid", "call_sid", "call_id"}

func (c *ElevenLabsClient) PlaceOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OutboundCallResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+outboundCallPath, bytes.NewReader(body))
	if err != nil {
		return OutboundCallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OutboundCallResult{}, fmt.Errorf("telephony: outbound call request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OutboundCallResult{}, fmt.Errorf("telephony: read outbound call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("elevenlabs outbound call failed", "status", resp.StatusCode)
		return OutboundCallResult{}, &PlacementError{StatusCode: resp.StatusCode, Message: errorText(raw, resp.Status)}
	}

	var payload map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return OutboundCallResult{}, fmt.Errorf("telephony: decode outbound call response: %w", err)
		}
	}
	if ok, present := payload["success"].(bool); present && !ok {
		return OutboundCallResult{}, &PlacementError{StatusCode: resp.StatusCode, Message: errorText(raw, "provider reported failure")}
	}

	out := OutboundCallResult{
		ConversationID: asString(payload["conversation_id"]),
		Message:        asString(payload["message"]),
	}
	for _, k := range callSIDResponseKeys {
		if v := strings.TrimSpace(asString(payload[k])); v != "" {
			out.CallSID = v
			break
		}
	}
	return out, nil
}

// errorText extracts a human-readable reason from a provider error body.
func errorText(raw []byte, fallback string) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, k := range []string{"message", "error"} {
			if s := strings.TrimSpace(asString(payload[k])); s != "" {
				return s
			}
		}
		if d, ok := payload["detail"].(map[string]any); ok {
			if s := strings.TrimSpace(asString(d["message"])); s != "" {
				return s
			}
		}
		if s := strings.TrimSpace(asString(payload["detail"])); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		if len(s) > 500 {
			s = s[:500]
		}
		return s
	}
	return fallback
}

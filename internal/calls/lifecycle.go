package calls

import (
	"strings"
	"time"
)

// IsTerminal reports whether no further status transition happens for s.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// IsCorrelatable reports whether the call can be matched to provider callbacks.
func (c Call) IsCorrelatable() bool {
	return c.CallSID != "" || c.ConversationID != ""
}

// ApplyProviderStatus maps a provider call status onto the local lifecycle.
// Only terminal provider statuses move the call, and a call that is already
// completed or failed keeps its status. It reports whether the call is
// completed and the provider reported it done, so a redelivered "done" on a
// completed call still reports true.
func (c *Call) ApplyProviderStatus(providerStatus string) (completed bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "done", "completed":
		if !c.Status.IsTerminal() {
			c.Status = CallStatusCompleted
		}
		return c.Status == CallStatusCompleted
	case "failed":
		if !c.Status.IsTerminal() {
			c.Status = CallStatusFailed
		}
	}
	return false
}

// MarkInitiated records a successful placement.
func (c *Call) MarkInitiated(callSID, conversationID string, now time.Time) {
	c.Status = CallStatusInitiated
	if callSID != "" {
		c.CallSID = callSID
	}
	if conversationID != "" && c.ConversationID == "" {
		c.ConversationID = conversationID
	}
	c.StartedAt = &now
	c.UpdatedAt = now
}

// MarkFailed records a failed placement and keeps the provider's reason.
func (c *Call) MarkFailed(reason string, now time.Time) {
	c.Status = CallStatusFailed
	c.Notes = reason
	c.UpdatedAt = now
}

package reporting

import (
	"time"

	"voice-platform/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// CallsSummaryRequest requests aggregated call metrics for one tenant.
type CallsSummaryRequest struct {
	TenantID   string    `json:"tenant_id"`
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
}

type CallsSummary struct {
	TenantID   string `json:"tenant_id"`
	CampaignID string `json:"campaign_id,omitempty"`

	TotalCalls int                      `json:"total_calls"`
	ByStatus   map[calls.CallStatus]int `json:"by_status"`
	ByOutcome  map[calls.Outcome]int    `json:"by_outcome"`
	// ByRegion keys are ISO region codes; "unknown" when the number had none.
	ByRegion map[string]int `json:"by_region"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
	BillableMinutes        int `json:"billable_minutes"`

	TotalCost      float64 `json:"total_cost"`
	CallsWithAudio int     `json:"calls_with_audio"`
}

// ConversionsRequest scopes conversion metrics. CampaignID is optional.
type ConversionsRequest struct {
	TenantID   string    `json:"tenant_id"`
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
}

type Conversions struct {
	TenantID   string `json:"tenant_id"`
	CampaignID string `json:"campaign_id,omitempty"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	Conversions    int `json:"conversions"`

	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ConversionOutcomes are the outcomes counted as a conversion.
var ConversionOutcomes = map[calls.Outcome]bool{
	calls.OutcomeOrderPlaced:          true,
	calls.OutcomeReservationMade:      true,
	calls.OutcomeAppointmentScheduled: true,
}

package calls

import "time"

// Call is the local record of one telephony interaction with the voice provider.
//
// Multi-tenant invariant: TenantID is required on every row.
//
// Correlation: a call is matched to provider callbacks by CallSID (call-leg id) or
// ConversationID. Both may arrive independently; either is enough once present.
type Call struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	AgentID         string `json:"agent_id,omitempty" db:"agent_id"`
	ExternalAgentID string `json:"external_agent_id,omitempty" db:"external_agent_id"`

	CallSID        string `json:"call_sid,omitempty" db:"call_sid"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`

	Direction   Direction `json:"direction" db:"direction"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	// Region is the ISO-3166 region of PhoneNumber when it can be determined.
	Region        string `json:"region,omitempty" db:"region"`
	ContactName   string `json:"contact_name,omitempty" db:"contact_name"`
	CustomMessage string `json:"custom_message,omitempty" db:"custom_message"`
	CampaignID    string `json:"campaign_id,omitempty" db:"campaign_id"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is the call duration reported by the provider.
	DurationSeconds int `json:"duration" db:"duration"`
	// Cost is in normalized currency units (provider units / 100).
	Cost float64 `json:"cost" db:"cost"`

	Transcript string  `json:"transcript,omitempty" db:"transcript"`
	Summary    string  `json:"summary,omitempty" db:"summary"`
	Outcome    Outcome `json:"outcome" db:"outcome"`
	HasAudio   bool    `json:"has_audio" db:"has_audio"`

	// Notes keeps provider error text for failed placements.
	Notes string `json:"notes,omitempty" db:"notes"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// Outcome is the business classification of a finished call.
// Values are persisted; keep them stable.
type Outcome string

const (
	OutcomeOrderPlaced          Outcome = "order_placed"
	OutcomeReservationMade      Outcome = "reservation_made"
	OutcomeInquiryAnswered      Outcome = "inquiry_answered"
	OutcomeComplaintLogged      Outcome = "complaint_logged"
	OutcomeAppointmentScheduled Outcome = "appointment_scheduled"
	OutcomeHighlyInterested     Outcome = "highly_interested"
	OutcomeInterested           Outcome = "interested"
	OutcomeNeedsFollowUp        Outcome = "needs_follow_up"
	OutcomeConsidering          Outcome = "considering"
	OutcomeNeutral              Outcome = "neutral"
	OutcomeNotInterested        Outcome = "not_interested"
	OutcomeWrongNumber          Outcome = "wrong_number"
	OutcomeNoAnswer             Outcome = "no_answer"
)

// Outcomes lists every canonical outcome label in prompt order.
var Outcomes = []Outcome{
	OutcomeOrderPlaced,
	OutcomeReservationMade,
	OutcomeInquiryAnswered,
	OutcomeComplaintLogged,
	OutcomeAppointmentScheduled,
	OutcomeHighlyInterested,
	OutcomeInterested,
	OutcomeNeedsFollowUp,
	OutcomeConsidering,
	OutcomeNeutral,
	OutcomeNotInterested,
	OutcomeWrongNumber,
	OutcomeNoAnswer,
}

// IsCanonical reports whether o is one of Outcomes.
func (o Outcome) IsCanonical() bool {
	for _, c := range Outcomes {
		if o == c {
			return true
		}
	}
	return false
}

// Package outbound places outbound AI calls through the voice provider.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voice-platform/internal/agents"
	"voice-platform/internal/calls"
	"voice-platform/internal/phone"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest    = errors.New("outbound: invalid request")
	ErrAgentNotFound     = errors.New("outbound: agent not found")
	ErrPlacementFailed   = errors.New("outbound: call placement failed")
	ErrTooManyPlacements = errors.New("outbound: too many calls in flight")
)

// AuditLog receives best-effort records of placement problems. *audit.Service satisfies it.
type AuditLog interface {
	LogPlacementFailed(ctx context.Context, tenantID, callID, campaignID, reason string) error
	LogReconciliationRisk(ctx context.Context, tenantID, callID, message string, metadata any) error
}

// Limiter caps concurrent placements per tenant. Acquire returns a release func.
type Limiter interface {
	Acquire(ctx context.Context, tenantID string) (release func(), err error)
}

type PlaceCallRequest struct {
	TenantID      string
	AgentRef      string
	PhoneNumber   string
	ContactName   string
	CustomMessage string
	CampaignID    string
}

type PlaceCallResult struct {
	CallID      string           `json:"id"`
	Status      calls.CallStatus `json:"status"`
	CallSID     string           `json:"call_sid,omitempty"`
	ContactName string           `json:"contact_name,omitempty"`
	PhoneNumber string           `json:"phone_number"`
}

type Deps struct {
	Calls  calls.Repository
	Agents agents.Repository
	Placer telephony.CallPlacer

	// PhoneNumberID is the provider-side caller number used for every placement.
	PhoneNumberID string

	Audit   AuditLog
	Limiter Limiter
	Logger  *slog.Logger
}

type Service struct {
	calls         calls.Repository
	agents        agents.Repository
	placer        telephony.CallPlacer
	phoneNumberID string
	audit         AuditLog
	limiter       Limiter
	log           *slog.Logger

	clock func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		calls:         d.Calls,
		agents:        d.Agents,
		placer:        d.Placer,
		phoneNumberID: d.PhoneNumberID,
		audit:         d.Audit,
		limiter:       d.Limiter,
		log:           log,
		clock:         time.Now,
		newID:         uuid.NewString,
	}
}

// PlaceCall resolves the agent, records a queued call, asks the provider to dial
// and moves the call to initiated or failed.
//
// The queued record is written before the provider is contacted so every attempt
// leaves a trace. Once the provider has accepted the call, local write failures
// are logged and audited rather than returned: retrying would dial twice.
func (s *Service) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.AgentRef = strings.TrimSpace(req.AgentRef)
	if req.TenantID == "" || req.AgentRef == "" || strings.TrimSpace(req.PhoneNumber) == "" {
		return PlaceCallResult{}, ErrInvalidRequest
	}

	log := s.log.With("tenant_id", req.TenantID, "agent_ref", req.AgentRef)

	agent, err := agents.Resolve(ctx, s.agents, req.AgentRef, req.TenantID)
	if err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			metrics.CallPlacement("agent_not_found")
			return PlaceCallResult{}, fmt.Errorf("%w: %s", ErrAgentNotFound, req.AgentRef)
		}
		return PlaceCallResult{}, fmt.Errorf("outbound: resolve agent: %w", err)
	}

	number := phone.Normalize(req.PhoneNumber)
	if len(number) < 2 {
		return PlaceCallResult{}, ErrInvalidRequest
	}

	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx, req.TenantID)
		if err != nil {
			if errors.Is(err, ErrTooManyPlacements) {
				metrics.CallPlacement("throttled")
			}
			return PlaceCallResult{}, err
		}
		defer release()
	}

	now := s.clock().UTC()
	call := calls.Call{
		ID:              s.newID(),
		TenantID:        req.TenantID,
		AgentID:         agent.ID,
		ExternalAgentID: agent.ExternalAgentID,
		Direction:       calls.DirectionOutbound,
		PhoneNumber:     number,
		Region:          phone.Region(number),
		ContactName:     strings.TrimSpace(req.ContactName),
		CustomMessage:   req.CustomMessage,
		CampaignID:      req.CampaignID,
		Status:          calls.CallStatusQueued,
		Outcome:         calls.OutcomeNeutral,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.calls.Create(ctx, call); err != nil {
		return PlaceCallResult{}, fmt.Errorf("outbound: create call: %w", err)
	}
	log = log.With("call_id", call.ID)

	placed, err := s.placer.PlaceOutboundCall(ctx, telephony.OutboundCallRequest{
		AgentID:            agent.ExternalAgentID,
		AgentPhoneNumberID: s.phoneNumberID,
		ToNumber:           number,
		StartMessage:       req.CustomMessage,
	})
	if err != nil {
		return s.failPlacement(ctx, log, call, err)
	}

	call.MarkInitiated(placed.CallSID, placed.ConversationID, s.clock().UTC())
	if err := s.calls.Update(ctx, call); err != nil {
		log.Error("call placed but local update failed", "call_sid", placed.CallSID, "err", err)
		s.auditRisk(ctx, log, call, "call placed but local update failed", map[string]string{
			"call_sid": placed.CallSID,
			"error":    err.Error(),
		})
	}
	if err := s.agents.TouchLastCalled(ctx, req.TenantID, agent.ID, s.clock().UTC()); err != nil {
		log.Warn("agent last_called_at update failed", "agent_id", agent.ID, "err", err)
	}

	if !call.IsCorrelatable() {
		log.Warn("provider returned no call identifiers; callbacks cannot be matched")
		s.auditRisk(ctx, log, call, "placed call has no provider identifiers", nil)
	}

	metrics.CallPlacement("initiated")
	log.Info("outbound call initiated", "call_sid", call.CallSID)

	return PlaceCallResult{
		CallID:      call.ID,
		Status:      call.Status,
		CallSID:     call.CallSID,
		ContactName: call.ContactName,
		PhoneNumber: call.PhoneNumber,
	}, nil
}

func (s *Service) failPlacement(ctx context.Context, log *slog.Logger, call calls.Call, cause error) (PlaceCallResult, error) {
	reason := cause.Error()
	var perr *telephony.PlacementError
	if errors.As(cause, &perr) {
		reason = perr.Message
	}

	call.MarkFailed(reason, s.clock().UTC())
	var persistErr error
	if err := s.calls.Update(ctx, call); err != nil {
		log.Error("failed placement could not be recorded", "err", err)
		persistErr = fmt.Errorf("outbound: record failed placement: %w", err)
	}
	if s.audit != nil {
		if err := s.audit.LogPlacementFailed(ctx, call.TenantID, call.ID, call.CampaignID, reason); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}

	metrics.CallPlacement("failed")
	log.Warn("outbound call placement failed", "reason", reason)
	return PlaceCallResult{
		CallID:      call.ID,
		Status:      call.Status,
		ContactName: call.ContactName,
		PhoneNumber: call.PhoneNumber,
	}, errors.Join(fmt.Errorf("%w: %w", ErrPlacementFailed, cause), persistErr)
}

func (s *Service) auditRisk(ctx context.Context, log *slog.Logger, call calls.Call, msg string, meta any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogReconciliationRisk(ctx, call.TenantID, call.ID, msg, meta); err != nil {
		log.Warn("audit append failed", "err", err)
	}
}

package reporting

import (
	"context"
	"errors"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/usage"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations must
// filter by tenant.
type Repository interface {
	ListCalls(ctx context.Context, tenantID string, from, to time.Time, campaignID string) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" || !req.Range.valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.TenantID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{
		TenantID:   req.TenantID,
		CampaignID: req.CampaignID,
		ByStatus:   map[calls.CallStatus]int{},
		ByOutcome:  map[calls.Outcome]int{},
		ByRegion:   map[string]int{},
	}
	for _, c := range rows {
		out.TotalCalls++
		out.ByStatus[c.Status]++
		if c.Outcome != "" {
			out.ByOutcome[c.Outcome]++
		}
		region := c.Region
		if region == "" {
			region = "unknown"
		}
		out.ByRegion[region]++

		out.TotalDurationSeconds += c.DurationSeconds
		if c.Status == calls.CallStatusCompleted {
			out.BillableMinutes += usage.BillableMinutes(c.DurationSeconds)
		}
		out.TotalCost += c.Cost
		if c.HasAudio {
			out.CallsWithAudio++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) Conversions(ctx context.Context, req ConversionsRequest) (Conversions, error) {
	if req.TenantID == "" || !req.Range.valid() {
		return Conversions{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Conversions{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.TenantID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return Conversions{}, err
	}

	out := Conversions{TenantID: req.TenantID, CampaignID: req.CampaignID}
	out.CallsAttempted = len(rows)
	for _, c := range rows {
		if c.Status == calls.CallStatusCompleted {
			out.CallsConnected++
		}
		if ConversionOutcomes[c.Outcome] {
			out.Conversions++
		}
	}

	if out.CallsAttempted > 0 {
		out.ConnectionRate = float64(out.CallsConnected) / float64(out.CallsAttempted)
		out.ConversionRate = float64(out.Conversions) / float64(out.CallsAttempted)
	}
	return out, nil
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, tenantID, actorUserID, actorRole, ip, message string, metadata any) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
		Metadata:    encodeMetadata(metadata),
	})
}

func (s *Service) LogPlacementFailed(ctx context.Context, tenantID, callID, campaignID, reason string) error {
	return s.Append(ctx, Event{
		TenantID:   tenantID,
		Type:       EventTypePlacementFailed,
		CallID:     callID,
		CampaignID: campaignID,
		Message:    reason,
	})
}

func (s *Service) LogReconciliationRisk(ctx context.Context, tenantID, callID, message string, metadata any) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeReconciliationRisk,
		CallID:   callID,
		Message:  message,
		Metadata: encodeMetadata(metadata),
	})
}

func encodeMetadata(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

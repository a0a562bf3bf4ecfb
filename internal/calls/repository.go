package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Repository persists call records. There is no delete: calls are only removed by
// external CRUD tooling.
//
// FindByCallSID and FindByConversationID are not tenant-scoped; provider callbacks
// carry no tenant and rely on provider ids being globally unique.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Update(ctx context.Context, c Call) error
	Get(ctx context.Context, tenantID, id string) (Call, error)
	FindByCallSID(ctx context.Context, callSID string) (Call, error)
	FindByConversationID(ctx context.Context, conversationID string) (Call, error)
	List(ctx context.Context, tenantID string, f ListFilter) ([]Call, error)
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	From       time.Time
	To         time.Time
	CampaignID string
	Status     CallStatus
	Limit      int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

func (f ListFilter) matches(c Call) bool {
	if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !c.CreatedAt.Before(f.To) {
		return false
	}
	if f.CampaignID != "" && c.CampaignID != f.CampaignID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

func validateForWrite(c Call) error {
	if c.ID == "" || c.TenantID == "" {
		return ErrInvalidArgument
	}
	if c.Direction != DirectionInbound && c.Direction != DirectionOutbound {
		return ErrInvalidArgument
	}
	return nil
}

package agents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Agent is a tenant-scoped AI calling agent configured at the voice provider.
// This service reads agents for lookup and only writes LastCalledAt.
type Agent struct {
	ID              string     `json:"id" db:"id"`
	TenantID        string     `json:"tenant_id" db:"tenant_id"`
	ExternalAgentID string     `json:"external_agent_id" db:"external_agent_id"`
	Name            string     `json:"name" db:"name"`
	LastCalledAt    *time.Time `json:"last_called_at,omitempty" db:"last_called_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

var ErrNotFound = errors.New("agents: not found")

type Repository interface {
	FindByExternalID(ctx context.Context, externalID, tenantID string) (Agent, error)
	FindByID(ctx context.Context, id, tenantID string) (Agent, error)
	// FindByExternalIDAnyTenant resolves the owning tenant of an agent from provider callbacks.
	FindByExternalIDAnyTenant(ctx context.Context, externalID string) (Agent, error)
	TouchLastCalled(ctx context.Context, tenantID, id string, at time.Time) error
}

// LooksLikeInternalID reports whether ref has the shape of an internal agent id.
func LooksLikeInternalID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// Resolve finds an agent by external id first, then by internal id when ref looks like one.
func Resolve(ctx context.Context, repo Repository, ref, tenantID string) (Agent, error) {
	if ref == "" || tenantID == "" {
		return Agent{}, ErrNotFound
	}
	a, err := repo.FindByExternalID(ctx, ref, tenantID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Agent{}, err
	}
	if !LooksLikeInternalID(ref) {
		return Agent{}, ErrNotFound
	}
	return repo.FindByID(ctx, ref, tenantID)
}

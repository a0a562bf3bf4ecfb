package agents

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]Agent
}

func NewMemoryRepo(seed ...Agent) *MemoryRepo {
	r := &MemoryRepo{agents: map[string]Agent{}}
	for _, a := range seed {
		r.agents[a.ID] = a
	}
	return r
}

func (r *MemoryRepo) Put(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

func (r *MemoryRepo) FindByExternalID(ctx context.Context, externalID, tenantID string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.ExternalAgentID == externalID && a.TenantID == tenantID {
			return a, nil
		}
	}
	return Agent{}, ErrNotFound
}

func (r *MemoryRepo) FindByID(ctx context.Context, id, tenantID string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.TenantID != tenantID {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) FindByExternalIDAnyTenant(ctx context.Context, externalID string) (Agent, error) {
	if externalID == "" {
		return Agent{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.ExternalAgentID == externalID {
			return a, nil
		}
	}
	return Agent{}, ErrNotFound
}

func (r *MemoryRepo) TouchLastCalled(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.TenantID != tenantID {
		return ErrNotFound
	}
	a.LastCalledAt = &at
	a.UpdatedAt = at
	r.agents[id] = a
	return nil
}

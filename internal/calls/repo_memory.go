package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string]Call{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	if err := validateForWrite(c); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; ok {
		return ErrInvalidArgument
	}
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) error {
	if err := validateForWrite(c); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.calls[c.ID]
	if !ok || existing.TenantID != c.TenantID {
		return ErrNotFound
	}
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.TenantID != tenantID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) FindByCallSID(ctx context.Context, callSID string) (Call, error) {
	if callSID == "" {
		return Call{}, ErrNotFound
	}
	return r.findFirst(func(c Call) bool { return c.CallSID == callSID })
}

func (r *MemoryRepo) FindByConversationID(ctx context.Context, conversationID string) (Call, error) {
	if conversationID == "" {
		return Call{}, ErrNotFound
	}
	return r.findFirst(func(c Call) bool { return c.ConversationID == conversationID })
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, f ListFilter) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.TenantID == tenantID && f.matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Count returns the number of stored calls across all tenants.
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// findFirst returns the oldest matching call so lookups are deterministic.
func (r *MemoryRepo) findFirst(match func(Call) bool) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		found Call
		ok    bool
	)
	for _, c := range r.calls {
		if !match(c) {
			continue
		}
		if !ok || c.CreatedAt.Before(found.CreatedAt) {
			found, ok = c, true
		}
	}
	if !ok {
		return Call{}, ErrNotFound
	}
	return found, nil
}

package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRecorder mirrors Service semantics in memory, including idempotency.
// Used by tests and local runs without Postgres.
type MemoryRecorder struct {
	mu          sync.Mutex
	clock       func() time.Time
	accounts    map[string]Account
	ledger      []LedgerEntry
	actions     []AdminUsageAction
	invocations int
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{clock: time.Now, accounts: map[string]Account{}}
}

func (m *MemoryRecorder) GetAccount(ctx context.Context, tenantID string) (Account, error) {
	if tenantID == "" {
		return Account{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[tenantID]
	if !ok {
		return Account{TenantID: tenantID}, nil
	}
	return a, nil
}

func (m *MemoryRecorder) RecordUsage(ctx context.Context, tenantID string, minutes int, idempotencyKey string) (LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invocations++

	if err := validateUsageReq(tenantID, int64(minutes), idempotencyKey); err != nil {
		return LedgerEntry{}, err
	}
	if e, ok := m.findLocked(tenantID, idempotencyKey); ok {
		return e, nil
	}

	now := m.clock().UTC()
	e := LedgerEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Type:           EntryTypeUsage,
		Minutes:        int64(minutes),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
	m.ledger = append(m.ledger, e)
	m.applyLocked(tenantID, e.Minutes, 0, now)
	return e, nil
}

func (m *MemoryRecorder) GrantMinutes(ctx context.Context, tenantID, adminUserID, adminRole string, req GrantRequest) (AdminUsageAction, LedgerEntry, Account, error) {
	if adminUserID == "" || adminRole == "" || req.Reason == "" {
		return AdminUsageAction{}, LedgerEntry{}, Account{}, ErrInvalidArgument
	}
	if err := validateUsageReq(tenantID, req.Minutes, req.IdempotencyKey); err != nil {
		return AdminUsageAction{}, LedgerEntry{}, Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.findLocked(tenantID, req.IdempotencyKey); ok {
		var act AdminUsageAction
		for _, a := range m.actions {
			if a.RelatedLedgerID == e.ID {
				act = a
			}
		}
		return act, e, m.accounts[tenantID], nil
	}

	now := m.clock().UTC()
	e := LedgerEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Type:           EntryTypeGrant,
		Minutes:        req.Minutes,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}
	m.ledger = append(m.ledger, e)
	acct := m.applyLocked(tenantID, 0, req.Minutes, now)

	act := AdminUsageAction{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		AdminUserID:     adminUserID,
		AdminRole:       adminRole,
		Action:          AdminActionGrantMinutes,
		Reason:          req.Reason,
		Minutes:         req.Minutes,
		RelatedLedgerID: e.ID,
		Metadata:        req.Metadata,
		CreatedAt:       now,
	}
	m.actions = append(m.actions, act)
	return act, e, acct, nil
}

// Invocations counts RecordUsage calls, including replays and rejected ones.
func (m *MemoryRecorder) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}

func (m *MemoryRecorder) Entries() []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LedgerEntry, len(m.ledger))
	copy(out, m.ledger)
	return out
}

func (m *MemoryRecorder) findLocked(tenantID, key string) (LedgerEntry, bool) {
	for _, e := range m.ledger {
		if e.TenantID == tenantID && e.IdempotencyKey == key {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

func (m *MemoryRecorder) applyLocked(tenantID string, usedDelta, quotaDelta int64, now time.Time) Account {
	a := m.accounts[tenantID]
	a.TenantID = tenantID
	a.MinutesUsed += usedDelta
	a.MinutesQuota += quotaDelta
	a.UpdatedAt = now
	m.accounts[tenantID] = a
	return a
}

package usage

import "time"

// Account is the per-tenant usage projection, updated atomically alongside
// ledger inserts. No code should change it without writing a LedgerEntry.
type Account struct {
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	MinutesUsed int64  `json:"minutes_used" db:"minutes_used"`
	// MinutesQuota of zero means unlimited.
	MinutesQuota int64     `json:"minutes_quota" db:"minutes_quota"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (a Account) Unlimited() bool { return a.MinutesQuota <= 0 }

// Remaining returns the minutes left under the quota; -1 when unlimited.
func (a Account) Remaining() int64 {
	if a.Unlimited() {
		return -1
	}
	if r := a.MinutesQuota - a.MinutesUsed; r > 0 {
		return r
	}
	return 0
}

func (a Account) Exhausted() bool {
	return !a.Unlimited() && a.MinutesUsed >= a.MinutesQuota
}

// LedgerEntry is an immutable append-only usage record.
//
// Multi-tenant invariant: tenant_id required.
// Idempotency: (tenant_id, idempotency_key) is unique; replays return the first entry.
type LedgerEntry struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id" db:"tenant_id"`
	Type     EntryType `json:"type" db:"type"`

	// Minutes is always positive; Type says which projection column it moves.
	Minutes int64 `json:"minutes" db:"minutes"`

	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeUsage EntryType = "usage" // billable call minutes
	EntryTypeGrant EntryType = "grant" // quota increase
)

// AdminUsageAction tracks privileged manual quota changes. The quota change
// itself is always a LedgerEntry; this row records who did it and why.
type AdminUsageAction struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	AdminUserID string `json:"admin_user_id" db:"admin_user_id"`
	// AdminRole records the role at the time of action (may include hidden roles).
	AdminRole string `json:"admin_role" db:"admin_role"`

	Action  AdminActionType `json:"action" db:"action"`
	Reason  string          `json:"reason,omitempty" db:"reason"`
	Minutes int64           `json:"minutes" db:"minutes"`

	RelatedLedgerID string `json:"related_ledger_id,omitempty" db:"related_ledger_id"`
	Metadata        string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AdminActionType string

const AdminActionGrantMinutes AdminActionType = "grant_minutes"

type GrantRequest struct {
	Minutes        int64  `json:"minutes"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

// BillableMinutes rounds a call duration up to whole minutes.
func BillableMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}

// CallIdempotencyKey is the ledger key for a call's usage; one charge per call.
func CallIdempotencyKey(callID string) string {
	return "call:" + callID + ":usage"
}

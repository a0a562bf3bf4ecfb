package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the tables from migrations/001_init.sql:
// - usage_accounts (projection)
// - usage_ledger (immutable append-only, UNIQUE (tenant_id, idempotency_key))
// - admin_usage_actions

func getAccount(ctx context.Context, db *sql.DB, tenantID string) (Account, error) {
	const q = `
SELECT tenant_id, minutes_used, minutes_quota, updated_at
FROM usage_accounts
WHERE tenant_id = $1
`
	var a Account
	if err := db.QueryRowContext(ctx, q, tenantID).Scan(
		&a.TenantID,
		&a.MinutesUsed,
		&a.MinutesQuota,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// lockAccount creates the tenant's account row if needed and locks it to
// serialize concurrent usage writes per tenant.
func lockAccount(ctx context.Context, tx *sql.Tx, tenantID string, now time.Time) (Account, error) {
	const ensure = `
INSERT INTO usage_accounts (tenant_id, minutes_used, minutes_quota, updated_at)
VALUES ($1, 0, 0, $2)
ON CONFLICT (tenant_id) DO NOTHING
`
	if _, err := tx.ExecContext(ctx, ensure, tenantID, now); err != nil {
		return Account{}, err
	}

	const q = `
SELECT tenant_id, minutes_used, minutes_quota, updated_at
FROM usage_accounts
WHERE tenant_id = $1
FOR UPDATE
`
	var a Account
	if err := tx.QueryRowContext(ctx, q, tenantID).Scan(
		&a.TenantID,
		&a.MinutesUsed,
		&a.MinutesQuota,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func findLedgerByIdempotency(ctx context.Context, tx *sql.Tx, tenantID, key string) (LedgerEntry, bool, error) {
	const q = `
SELECT id, tenant_id, type, minutes, idempotency_key, metadata, created_at
FROM usage_ledger
WHERE tenant_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var e LedgerEntry
	err := tx.QueryRowContext(ctx, q, tenantID, key).Scan(
		&e.ID,
		&e.TenantID,
		&e.Type,
		&e.Minutes,
		&e.IdempotencyKey,
		&e.Metadata,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LedgerEntry{}, false, nil
		}
		return LedgerEntry{}, false, err
	}
	return e, true, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e LedgerEntry) error {
	const q = `
INSERT INTO usage_ledger (
  id, tenant_id, type, minutes, idempotency_key, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Type,
		e.Minutes,
		e.IdempotencyKey,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func applyDelta(ctx context.Context, tx *sql.Tx, tenantID string, usedDelta, quotaDelta int64, now time.Time) (Account, error) {
	const q = `
UPDATE usage_accounts
SET minutes_used = minutes_used + $2,
    minutes_quota = minutes_quota + $3,
    updated_at = $4
WHERE tenant_id = $1
RETURNING tenant_id, minutes_used, minutes_quota, updated_at
`
	var a Account
	if err := tx.QueryRowContext(ctx, q, tenantID, usedDelta, quotaDelta, now).Scan(
		&a.TenantID,
		&a.MinutesUsed,
		&a.MinutesQuota,
		&a.UpdatedAt,
	); err != nil {
		return Account{}, err
	}
	return a, nil
}

func insertAdminAction(ctx context.Context, tx *sql.Tx, a AdminUsageAction) error {
	const q = `
INSERT INTO admin_usage_actions (
  id, tenant_id, admin_user_id, admin_role, action, reason,
  minutes, related_ledger_id, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := tx.ExecContext(ctx, q,
		a.ID,
		a.TenantID,
		a.AdminUserID,
		a.AdminRole,
		a.Action,
		a.Reason,
		a.Minutes,
		a.RelatedLedgerID,
		a.Metadata,
		a.CreatedAt,
	)
	return err
}

func findAdminActionByLedger(ctx context.Context, tx *sql.Tx, tenantID, ledgerID string) (AdminUsageAction, bool, error) {
	const q = `
SELECT id, tenant_id, admin_user_id, admin_role, action, reason,
       minutes, related_ledger_id, metadata, created_at
FROM admin_usage_actions
WHERE tenant_id = $1 AND related_ledger_id = $2
LIMIT 1
`
	var a AdminUsageAction
	err := tx.QueryRowContext(ctx, q, tenantID, ledgerID).Scan(
		&a.ID,
		&a.TenantID,
		&a.AdminUserID,
		&a.AdminRole,
		&a.Action,
		&a.Reason,
		&a.Minutes,
		&a.RelatedLedgerID,
		&a.Metadata,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUsageAction{}, false, nil
		}
		return AdminUsageAction{}, false, err
	}
	return a, true, nil
}

package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-platform/pkg/metrics"
	"voice-platform/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("usage: not found")
	ErrInvalidArgument = errors.New("usage: invalid argument")
)

// Recorder is the usage-accounting collaborator used at call completion.
type Recorder interface {
	RecordUsage(ctx context.Context, tenantID string, minutes int, idempotencyKey string) (LedgerEntry, error)
}

// AccountReader is the read side used by middleware and handlers.
type AccountReader interface {
	GetAccount(ctx context.Context, tenantID string) (Account, error)
}

// Service provides usage operations backed by Postgres.
//
// Invariants:
// - No projection update without a ledger entry
// - Ledger is append-only
// - All writes run in a DB transaction holding the tenant's account row lock
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

// GetAccount returns the tenant's projection; a tenant with no usage yet has a zero account.
func (s *Service) GetAccount(ctx context.Context, tenantID string) (Account, error) {
	if tenantID == "" {
		return Account{}, ErrInvalidArgument
	}
	a, err := getAccount(ctx, s.db, tenantID)
	if errors.Is(err, ErrNotFound) {
		return Account{TenantID: tenantID}, nil
	}
	return a, err
}

func (s *Service) RecordUsage(ctx context.Context, tenantID string, minutes int, idempotencyKey string) (LedgerEntry, error) {
	if err := validateUsageReq(tenantID, int64(minutes), idempotencyKey); err != nil {
		return LedgerEntry{}, err
	}

	now := s.clock().UTC()
	var out LedgerEntry
	created := false

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := lockAccount(ctx, tx, tenantID, now); err != nil {
			return err
		}

		if existing, ok, err := findLedgerByIdempotency(ctx, tx, tenantID, idempotencyKey); err != nil {
			return err
		} else if ok {
			out = existing
			return nil
		}

		entry := LedgerEntry{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			Type:           EntryTypeUsage,
			Minutes:        int64(minutes),
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
		}
		if err := insertLedger(ctx, tx, entry); err != nil {
			return err
		}
		if _, err := applyDelta(ctx, tx, tenantID, entry.Minutes, 0, now); err != nil {
			return err
		}
		out = entry
		created = true
		return nil
	})
	if err == nil && created {
		metrics.UsageMinutes(minutes)
	}
	return out, err
}

// GrantMinutes raises a tenant's quota. Replays with the same idempotency key
// return the original action.
func (s *Service) GrantMinutes(ctx context.Context, tenantID, adminUserID, adminRole string, req GrantRequest) (AdminUsageAction, LedgerEntry, Account, error) {
	if adminUserID == "" || adminRole == "" || req.Reason == "" {
		return AdminUsageAction{}, LedgerEntry{}, Account{}, ErrInvalidArgument
	}
	if err := validateUsageReq(tenantID, req.Minutes, req.IdempotencyKey); err != nil {
		return AdminUsageAction{}, LedgerEntry{}, Account{}, err
	}

	now := s.clock().UTC()

	var (
		outAction AdminUsageAction
		outEntry  LedgerEntry
		outAcct   Account
	)
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acct, err := lockAccount(ctx, tx, tenantID, now)
		if err != nil {
			return err
		}

		if existing, ok, err := findLedgerByIdempotency(ctx, tx, tenantID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outEntry = existing
			outAcct = acct
			act, ok, err := findAdminActionByLedger(ctx, tx, tenantID, existing.ID)
			if err != nil {
				return err
			}
			if ok {
				outAction = act
			}
			return nil
		}

		entry := LedgerEntry{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			Type:           EntryTypeGrant,
			Minutes:        req.Minutes,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
			CreatedAt:      now,
		}
		if err := insertLedger(ctx, tx, entry); err != nil {
			return err
		}
		a, err := applyDelta(ctx, tx, tenantID, 0, req.Minutes, now)
		if err != nil {
			return err
		}

		action := AdminUsageAction{
			ID:              uuid.NewString(),
			TenantID:        tenantID,
			AdminUserID:     adminUserID,
			AdminRole:       adminRole,
			Action:          AdminActionGrantMinutes,
			Reason:          req.Reason,
			Minutes:         req.Minutes,
			RelatedLedgerID: entry.ID,
			Metadata:        req.Metadata,
			CreatedAt:       now,
		}
		if err := insertAdminAction(ctx, tx, action); err != nil {
			return err
		}

		outAction = action
		outEntry = entry
		outAcct = a
		return nil
	})

	return outAction, outEntry, outAcct, err
}

func validateUsageReq(tenantID string, minutes int64, idempotencyKey string) error {
	if tenantID == "" || idempotencyKey == "" {
		return ErrInvalidArgument
	}
	if minutes <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

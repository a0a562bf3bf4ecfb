package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const agentColumns = `id, tenant_id, external_agent_id, name, last_called_at, created_at, updated_at`

func (r *PostgresRepo) FindByExternalID(ctx context.Context, externalID, tenantID string) (Agent, error) {
	const q = `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id = $1 AND external_agent_id = $2 LIMIT 1`
	return scanAgent(r.db.QueryRowContext(ctx, q, tenantID, externalID))
}

func (r *PostgresRepo) FindByID(ctx context.Context, id, tenantID string) (Agent, error) {
	const q = `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id = $1 AND id = $2`
	return scanAgent(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) FindByExternalIDAnyTenant(ctx context.Context, externalID string) (Agent, error) {
	if externalID == "" {
		return Agent{}, ErrNotFound
	}
	const q = `SELECT ` + agentColumns + ` FROM agents WHERE external_agent_id = $1 ORDER BY created_at LIMIT 1`
	return scanAgent(r.db.QueryRowContext(ctx, q, externalID))
}

func (r *PostgresRepo) TouchLastCalled(ctx context.Context, tenantID, id string, at time.Time) error {
	const q = `UPDATE agents SET last_called_at = $3, updated_at = $3 WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, id, at)
	if err != nil {
		return fmt.Errorf("agents: touch last called: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgent(row *sql.Row) (Agent, error) {
	var (
		a          Agent
		lastCalled sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.ExternalAgentID, &a.Name, &lastCalled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("agents: scan: %w", err)
	}
	if lastCalled.Valid {
		t := lastCalled.Time
		a.LastCalledAt = &t
	}
	return a, nil
}

package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voice-platform/internal/calls"
)

// PostgresRepo reads the columns reporting needs straight from the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, tenantID string, from, to time.Time, campaignID string) ([]calls.Call, error) {
	const q = `
SELECT id, tenant_id, campaign_id, status, outcome, region, duration, cost, has_audio, created_at
FROM calls
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR campaign_id = $4)
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to, campaignID)
	if err != nil {
		return nil, fmt.Errorf("reporting: list calls: %w", err)
	}
	defer rows.Close()

	out := make([]calls.Call, 0)
	for rows.Next() {
		var (
			c       calls.Call
			status  string
			outcome string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.CampaignID, &status, &outcome, &c.Region,
			&c.DurationSeconds, &c.Cost, &c.HasAudio, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("reporting: scan call: %w", err)
		}
		c.Status = calls.CallStatus(status)
		c.Outcome = calls.Outcome(outcome)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: list calls: %w", err)
	}
	return out, nil
}

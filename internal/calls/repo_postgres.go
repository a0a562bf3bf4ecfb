package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresRepo stores calls in the calls table (see migrations/001_init.sql).
//
// Unknown provider ids are stored as empty strings; partial unique indexes on
// call_sid and conversation_id skip empty values.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `id, tenant_id, agent_id, external_agent_id, call_sid, conversation_id,
direction, phone_number, region, contact_name, custom_message, campaign_id, status,
duration, cost, transcript, summary, outcome, has_audio, notes,
started_at, ended_at, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	if err := validateForWrite(c); err != nil {
		return err
	}
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.TenantID, c.AgentID, c.ExternalAgentID, c.CallSID, c.ConversationID,
		string(c.Direction), c.PhoneNumber, c.Region, c.ContactName, c.CustomMessage, c.CampaignID, string(c.Status),
		c.DurationSeconds, c.Cost, c.Transcript, c.Summary, string(c.Outcome), c.HasAudio, c.Notes,
		c.StartedAt, c.EndedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Update(ctx context.Context, c Call) error {
	if err := validateForWrite(c); err != nil {
		return err
	}
	const q = `
UPDATE calls SET
	agent_id = $3, external_agent_id = $4, call_sid = $5, conversation_id = $6,
	phone_number = $7, region = $8, contact_name = $9, custom_message = $10, campaign_id = $11,
	status = $12, duration = $13, cost = $14, transcript = $15, summary = $16, outcome = $17,
	has_audio = $18, notes = $19, started_at = $20, ended_at = $21, updated_at = $22
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.TenantID, c.ID, c.AgentID, c.ExternalAgentID, c.CallSID, c.ConversationID,
		c.PhoneNumber, c.Region, c.ContactName, c.CustomMessage, c.CampaignID,
		string(c.Status), c.DurationSeconds, c.Cost, c.Transcript, c.Summary, string(c.Outcome),
		c.HasAudio, c.Notes, c.StartedAt, c.EndedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("calls: update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE tenant_id = $1 AND id = $2`
	return scanCall(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) FindByCallSID(ctx context.Context, callSID string) (Call, error) {
	if callSID == "" {
		return Call{}, ErrNotFound
	}
	q := `SELECT ` + callColumns + ` FROM calls WHERE call_sid = $1 ORDER BY created_at LIMIT 1`
	return scanCall(r.db.QueryRowContext(ctx, q, callSID))
}

func (r *PostgresRepo) FindByConversationID(ctx context.Context, conversationID string) (Call, error) {
	if conversationID == "" {
		return Call{}, ErrNotFound
	}
	q := `SELECT ` + callColumns + ` FROM calls WHERE conversation_id = $1 ORDER BY created_at LIMIT 1`
	return scanCall(r.db.QueryRowContext(ctx, q, conversationID))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, f ListFilter) ([]Call, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.CampaignID != "" {
		add("campaign_id = $%d", f.CampaignID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	args = append(args, f.limit())
	q := fmt.Sprintf(`SELECT %s FROM calls WHERE %s ORDER BY created_at DESC, id LIMIT $%d`,
		callColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("calls: list: %w", err)
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: list: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c                          Call
		direction, status, outcome string
		startedAt, endedAt         sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.TenantID, &c.AgentID, &c.ExternalAgentID, &c.CallSID, &c.ConversationID,
		&direction, &c.PhoneNumber, &c.Region, &c.ContactName, &c.CustomMessage, &c.CampaignID, &status,
		&c.DurationSeconds, &c.Cost, &c.Transcript, &c.Summary, &outcome, &c.HasAudio, &c.Notes,
		&startedAt, &endedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, fmt.Errorf("calls: scan: %w", err)
	}
	c.Direction = Direction(direction)
	c.Status = CallStatus(status)
	c.Outcome = Outcome(outcome)
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

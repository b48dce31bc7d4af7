package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append is idempotent on the entry id so redelivered queue messages do not
// duplicate journal lines.
func (r *JournalRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	var details []byte
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = raw
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO journal_entries (
	id, actor_id, action, resource_type, resource_id, resource_name, details, ip_address, user_agent, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`,
		entry.ID, entry.ActorID, string(entry.Action), entry.ResourceType, entry.ResourceID, entry.ResourceName,
		details, entry.IPAddress, entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

func (r *JournalRepository) List(ctx context.Context, filter domain.JournalFilter) ([]domain.AuditEntry, error) {
	query := `
SELECT id, actor_id, action, resource_type, resource_id, resource_name, details, ip_address, user_agent, occurred_at
FROM journal_entries
WHERE 1=1
`
	args := make([]any, 0, 7)
	add := func(clause string, value any) {
		args = append(args, value)
		query += "AND " + clause + " $" + strconv.Itoa(len(args)) + "\n"
	}
	if filter.ActorID != "" {
		add("actor_id =", filter.ActorID)
	}
	if filter.Action != "" {
		add("action =", string(filter.Action))
	}
	if filter.ResourceType != "" {
		add("resource_type =", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id =", filter.ResourceID)
	}
	if filter.From != nil {
		add("occurred_at >=", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <=", *filter.To)
	}
	query += "ORDER BY occurred_at DESC\n"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += "LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

func scanJournalEntry(row rowScanner) (domain.AuditEntry, error) {
	var entry domain.AuditEntry
	var action string
	var details []byte
	err := row.Scan(
		&entry.ID,
		&entry.ActorID,
		&action,
		&entry.ResourceType,
		&entry.ResourceID,
		&entry.ResourceName,
		&details,
		&entry.IPAddress,
		&entry.UserAgent,
		&entry.Timestamp,
	)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	entry.Action = domain.AuditAction(action)
	return entry, nil
}

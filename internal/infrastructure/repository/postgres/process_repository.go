package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

// ProcessRepository reads governance process ownership. Processes are managed
// by another service; this side never writes them.
type ProcessRepository struct {
	db *sql.DB
}

func NewProcessRepository(db *sql.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

func (r *ProcessRepository) GetOwnerAndCreator(ctx context.Context, processID string) (*domain.Process, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, created_by
FROM processes
WHERE id = $1
`, processID)

	var p domain.Process
	if err := row.Scan(&p.ID, &p.OwnerID, &p.CreatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get process", fmt.Errorf("process not found: id=%s", processID))
		}
		return nil, fmt.Errorf("get process: %w", err)
	}
	return &p, nil
}

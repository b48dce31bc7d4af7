package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_comments (id, document_id, user_id, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, comment.ID, comment.DocumentID, comment.UserID, comment.Content, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) ListComments(ctx context.Context, documentID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, user_id, content, created_at
FROM document_comments
WHERE document_id = $1
ORDER BY created_at ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

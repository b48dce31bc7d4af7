package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const maxCommentLength = 4000

type CommentUseCase struct {
	documents *DocumentUseCase
	store     ports.CommentStore
	audit     ports.AuditSink
	now       func() time.Time
}

func NewCommentUseCase(documents *DocumentUseCase, store ports.CommentStore, audit ports.AuditSink) *CommentUseCase {
	return &CommentUseCase{
		documents: documents,
		store:     store,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *CommentUseCase) List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Comment, error) {
	if _, err := uc.documents.readable(ctx, actor, documentID, "list comments", "access to this confidential document is not allowed"); err != nil {
		return nil, err
	}
	comments, err := uc.store.ListComments(ctx, documentID)
	if err != nil {
		return nil, storageError("list comments", err)
	}
	return comments, nil
}

func (uc *CommentUseCase) Add(ctx context.Context, actor domain.Actor, documentID, content string) (*domain.Comment, error) {
	const op = "add comment"
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Invalid(op, "comment content is required")
	}
	if len([]rune(content)) > maxCommentLength {
		return nil, domain.Invalid(op, "comment is too long")
	}

	doc, err := uc.documents.readable(ctx, actor, documentID, op, "access to this confidential document is not allowed")
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		UserID:     actor.ID,
		Content:    content,
		CreatedAt:  uc.now(),
	}
	if err := uc.store.AddComment(ctx, comment); err != nil {
		return nil, storageError(op, err)
	}

	recordAudit(ctx, uc.audit, actor, domain.AuditEntry{
		Action:       domain.AuditModify,
		ResourceType: domain.ResourceDocument,
		ResourceID:   doc.ID,
		ResourceName: doc.Name,
		Details:      map[string]any{"action": "comment_added"},
	}, uc.now(), uc.documents.auditTimeout)
	return comment, nil
}

package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

// DocumentService is the inbound contract for document lifecycle operations.
// Every call carries the acting identity explicitly.
type DocumentService interface {
	Create(ctx context.Context, actor domain.Actor, input domain.CreateDocumentInput, body io.Reader) (*domain.Document, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error)
	List(ctx context.Context, actor domain.Actor, filter domain.DocumentFilter) ([]domain.Document, error)
	History(ctx context.Context, actor domain.Actor, id string) ([]domain.VersionEntry, error)
	UpdateMetadata(ctx context.Context, actor domain.Actor, id string, patch domain.MetadataPatch) (*domain.Document, error)
	AddVersion(ctx context.Context, actor domain.Actor, id string, input domain.NewVersionInput, body io.Reader) (*domain.Document, error)
	Download(ctx context.Context, actor domain.Actor, id string) (*domain.Download, error)
	DownloadVersion(ctx context.Context, actor domain.Actor, id, versionID string) (*domain.Download, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
}

// CommentService is the inbound contract for document discussion threads.
type CommentService interface {
	List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Comment, error)
	Add(ctx context.Context, actor domain.Actor, documentID, content string) (*domain.Comment, error)
}

// JournalService is the inbound read model over the audit journal.
type JournalService interface {
	List(ctx context.Context, actor domain.Actor, filter domain.JournalFilter) ([]domain.AuditEntry, error)
	Export(ctx context.Context, actor domain.Actor, filter domain.JournalFilter, w io.Writer) error
	ExportContentType() string
}

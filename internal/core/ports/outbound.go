package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

// DocumentRepository reads document state and opens transactions for every
// multi-step mutation.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]domain.VersionEntry, error)
	GetVersion(ctx context.Context, documentID, versionID string) (*domain.VersionEntry, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error
}

// DocumentTx is the transactional view of the document store. LockByID
// serializes writers on the same document until the transaction ends.
type DocumentTx interface {
	LockByID(ctx context.Context, id string) (*domain.Document, error)
	Insert(ctx context.Context, doc *domain.Document) error
	Update(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
	ReplaceGrants(ctx context.Context, documentID string, grants domain.PermissionSet) error
	AppendVersion(ctx context.Context, entry *domain.VersionEntry) error
	ListVersions(ctx context.Context, documentID string) ([]domain.VersionEntry, error)
	DeleteVersions(ctx context.Context, documentID string) error
}

// ObjectStorage stores document revisions. Open and Delete report a missing
// key with the domain.ErrNotFound kind.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ProcessDirectory resolves the owner and creator of a governance process.
type ProcessDirectory interface {
	GetOwnerAndCreator(ctx context.Context, processID string) (*domain.Process, error)
}

// CommentStore persists document comments.
type CommentStore interface {
	AddComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, documentID string) ([]domain.Comment, error)
}

// JournalStore persists and queries audit entries.
type JournalStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter domain.JournalFilter) ([]domain.AuditEntry, error)
}

// AuditQueue carries audit entries from the API to the journal writer.
type AuditQueue interface {
	PublishAudit(ctx context.Context, entry domain.AuditEntry) error
	SubscribeAudit(ctx context.Context, handler func(context.Context, domain.AuditEntry) error) error
}

// JournalExporter renders journal entries into a downloadable workbook.
type JournalExporter interface {
	ContentType() string
	Export(entries []domain.AuditEntry, w io.Writer) error
}

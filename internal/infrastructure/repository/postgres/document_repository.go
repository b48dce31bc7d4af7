package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const documentColumns = `id, name, kind, reference_type, reference_id, description, tags, status, confidential,
	storage_key, original_filename, size_bytes, content_type, version, uploaded_by, validated_by, validated_at,
	created_at, updated_at`

const versionColumns = `id, document_id, version, storage_key, original_filename, content_type, size_bytes, comment, uploaded_by, created_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return getDocument(ctx, r.db, id, "")
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + "\nFROM documents\nWHERE 1=1\n"
	args := make([]any, 0, 5)
	add := func(clause string, value any) {
		args = append(args, value)
		query += "AND " + strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))) + "\n"
	}
	if filter.Kind != "" {
		add("kind = ?", string(filter.Kind))
	}
	if filter.RefType != "" {
		add("reference_type = ?", string(filter.RefType))
	}
	if filter.RefID != "" {
		add("reference_id = ?", filter.RefID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+search+"%")
	}
	query += "ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	for i := range out {
		if !out[i].Confidential {
			continue
		}
		grants, err := loadGrants(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Grants = grants
	}
	return out, nil
}

func (r *DocumentRepository) ListVersions(ctx context.Context, documentID string) ([]domain.VersionEntry, error) {
	return listVersions(ctx, r.db, documentID)
}

func (r *DocumentRepository) GetVersion(ctx context.Context, documentID, versionID string) (*domain.VersionEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE document_id = $1 AND id = $2
`, documentID, versionID)

	entry, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get version", fmt.Errorf("version not found: id=%s", versionID))
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &entry, nil
}

// WithinTx runs fn in a single database transaction, committing only when fn
// returns nil.
func (r *DocumentRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.DocumentTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &documentTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type documentTx struct {
	tx *sql.Tx
}

// LockByID reads the document with a row lock held until the transaction
// ends, serializing concurrent writers on the same document.
func (t *documentTx) LockByID(ctx context.Context, id string) (*domain.Document, error) {
	return getDocument(ctx, t.tx, id, "FOR UPDATE")
}

func (t *documentTx) Insert(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := marshalTags(doc.Tags)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO documents (
	id, name, kind, reference_type, reference_id, description, tags, status, confidential,
	storage_key, original_filename, size_bytes, content_type, version, uploaded_by, validated_by, validated_at,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`,
		doc.ID, doc.Name, string(doc.Kind), string(doc.RefType), doc.RefID, doc.Description, tagsJSON,
		string(doc.Status), doc.Confidential, doc.StorageKey, doc.OriginalFilename, doc.Size, doc.ContentType,
		doc.Version, doc.UploadedBy, doc.ValidatedBy, doc.ValidatedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (t *documentTx) Update(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := marshalTags(doc.Tags)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx, `
UPDATE documents
SET name = $2, description = $3, tags = $4, status = $5, confidential = $6,
	storage_key = $7, original_filename = $8, size_bytes = $9, content_type = $10, version = $11,
	validated_by = $12, validated_at = $13, updated_at = $14
WHERE id = $1
`,
		doc.ID, doc.Name, doc.Description, tagsJSON, string(doc.Status), doc.Confidential,
		doc.StorageKey, doc.OriginalFilename, doc.Size, doc.ContentType, doc.Version,
		doc.ValidatedBy, doc.ValidatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectAffected(result, "update document", domain.ErrDocumentNotFound)
}

func (t *documentTx) Delete(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectAffected(result, "delete document", domain.ErrDocumentNotFound)
}

// ReplaceGrants clears every grant of the document and inserts the new set.
func (t *documentTx) ReplaceGrants(ctx context.Context, documentID string, grants domain.PermissionSet) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM document_grants WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}
	for _, userID := range grants.IDs() {
		_, err := t.tx.ExecContext(ctx, `
INSERT INTO document_grants (document_id, user_id)
VALUES ($1, $2)
ON CONFLICT (document_id, user_id) DO NOTHING
`, documentID, userID)
		if err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
	}
	return nil
}

func (t *documentTx) AppendVersion(ctx context.Context, entry *domain.VersionEntry) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO document_versions (`+versionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, entry.ID, entry.DocumentID, entry.Version, entry.StorageKey, entry.OriginalFilename, entry.ContentType, entry.Size,
		entry.Comment, entry.UploadedBy, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append version: %w", err)
	}
	return nil
}

func (t *documentTx) ListVersions(ctx context.Context, documentID string) ([]domain.VersionEntry, error) {
	return listVersions(ctx, t.tx, documentID)
}

func (t *documentTx) DeleteVersions(ctx context.Context, documentID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM document_versions WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	return nil
}

func getDocument(ctx context.Context, q queryer, id, lockClause string) (*domain.Document, error) {
	query := "SELECT " + documentColumns + "\nFROM documents\nWHERE id = $1\n" + lockClause
	doc, err := scanDocument(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	grants, err := loadGrants(ctx, q, id)
	if err != nil {
		return nil, err
	}
	doc.Grants = grants
	return &doc, nil
}

func loadGrants(ctx context.Context, q queryer, documentID string) (domain.PermissionSet, error) {
	rows, err := q.QueryContext(ctx, `
SELECT user_id
FROM document_grants
WHERE document_id = $1
ORDER BY user_id
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		ids = append(ids, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return domain.NewPermissionSet(ids...), nil
}

func listVersions(ctx context.Context, q queryer, documentID string) ([]domain.VersionEntry, error) {
	rows, err := q.QueryContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE document_id = $1
ORDER BY created_at DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.VersionEntry, 0)
	for rows.Next() {
		entry, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var kind, refType, status string
	var tagsRaw []byte
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&kind,
		&refType,
		&doc.RefID,
		&doc.Description,
		&tagsRaw,
		&status,
		&doc.Confidential,
		&doc.StorageKey,
		&doc.OriginalFilename,
		&doc.Size,
		&doc.ContentType,
		&doc.Version,
		&doc.UploadedBy,
		&doc.ValidatedBy,
		&doc.ValidatedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &doc.Tags); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	doc.Kind = domain.DocumentKind(kind)
	doc.RefType = domain.ReferenceType(refType)
	doc.Status = domain.DocumentStatus(status)
	doc.Grants = domain.NewPermissionSet()
	return doc, nil
}

func scanVersion(row rowScanner) (domain.VersionEntry, error) {
	var entry domain.VersionEntry
	err := row.Scan(
		&entry.ID,
		&entry.DocumentID,
		&entry.Version,
		&entry.StorageKey,
		&entry.OriginalFilename,
		&entry.ContentType,
		&entry.Size,
		&entry.Comment,
		&entry.UploadedBy,
		&entry.CreatedAt,
	)
	return entry, err
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return raw, nil
}

package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/policy"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const (
	msgGranteesRequired = "at least one user must be granted access to a confidential document"
	msgToggleForbidden  = "only the owner or creator of the linked process can change confidentiality"
	msgToggleUploader   = "only the uploader can change confidentiality of this document"
)

type DocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	processes ports.ProcessDirectory
	audit     ports.AuditSink
	observer  ports.OperationObserver
	now       func() time.Time

	auditTimeout time.Duration
}

func NewDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	processes ports.ProcessDirectory,
	audit ports.AuditSink,
	observer ports.OperationObserver,
) *DocumentUseCase {
	if observer == nil {
		observer = ports.NoopObserver
	}
	return &DocumentUseCase{
		repo:      repo,
		storage:   storage,
		processes: processes,
		audit:     audit,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },

		auditTimeout: defaultAuditTimeout,
	}
}

// WithAuditTimeout bounds how long a single journal write may hold an
// operation.
func (uc *DocumentUseCase) WithAuditTimeout(timeout time.Duration) *DocumentUseCase {
	if timeout > 0 {
		uc.auditTimeout = timeout
	}
	return uc
}

func (uc *DocumentUseCase) Create(
	ctx context.Context,
	actor domain.Actor,
	input domain.CreateDocumentInput,
	body io.Reader,
) (doc *domain.Document, err error) {
	const op = "create document"
	defer func() { uc.observer.ObserveOperation("create", outcome(err)) }()

	if body == nil {
		return nil, domain.Invalid(op, "file is required")
	}
	doc, err = uc.newDocument(actor, input)
	if err != nil {
		return nil, err
	}

	if input.Confidential {
		doc.Confidential = true
		doc.Grants = domain.NewPermissionSet(input.Grantees...)
		if err := uc.authorizeConfidentiality(ctx, op, doc, actor); err != nil {
			return nil, err
		}
		if doc.Grants.Len() == 0 {
			return nil, domain.Invalid(op, msgGranteesRequired)
		}
	}

	doc.StorageKey = newStorageKey(input.File.OriginalFilename)
	if err := uc.storage.Save(ctx, doc.StorageKey, body); err != nil {
		return nil, storageError("save to object storage", err)
	}

	err = uc.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		if doc.Confidential && doc.Grants.Len() == 0 {
			return domain.Invalid(op, msgGranteesRequired)
		}
		if err := tx.Insert(ctx, doc); err != nil {
			return err
		}
		if doc.Confidential {
			return tx.ReplaceGrants(ctx, doc.ID, doc.Grants)
		}
		return nil
	})
	if err != nil {
		uc.discardBlob(ctx, doc.StorageKey)
		return nil, storageError(op, err)
	}

	uc.record(ctx, actor, domain.AuditCreate, doc, map[string]any{
		"process_id":     doc.RefID,
		"version":        doc.Version,
		"confidential":   doc.Confidential,
		"grantees_count": doc.Grants.Len(),
	})
	return doc, nil
}

func (uc *DocumentUseCase) newDocument(actor domain.Actor, input domain.CreateDocumentInput) (*domain.Document, error) {
	const op = "create document"
	if strings.TrimSpace(actor.ID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, op, errActorMissing)
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.KindGeneral
	}
	if !kind.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown document kind %q", input.Kind))
	}
	if !input.RefType.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown reference type %q", input.RefType))
	}
	refID := strings.TrimSpace(input.RefID)
	if input.RefType != "" && refID == "" {
		return nil, domain.Invalid(op, "reference id is required with a reference type")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.File.OriginalFilename
	}
	contentType := input.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := uc.now()
	return &domain.Document{
		ID:               uuid.NewString(),
		Name:             name,
		Kind:             kind,
		RefType:          input.RefType,
		RefID:            refID,
		Description:      input.Description,
		Tags:             tags,
		Status:           domain.StatusDraft,
		OriginalFilename: input.File.OriginalFilename,
		Size:             input.File.Size,
		ContentType:      contentType,
		Version:          domain.InitialVersion(input.Major, input.Minor, input.Patch).String(),
		UploadedBy:       actor.ID,
		Grants:           domain.NewPermissionSet(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (uc *DocumentUseCase) Get(ctx context.Context, actor domain.Actor, id string) (doc *domain.Document, err error) {
	defer func() { uc.observer.ObserveOperation("read", outcome(err)) }()

	doc, err = uc.readable(ctx, actor, id, "read document", "access to this confidential document is not allowed")
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.AuditRead, doc, map[string]any{"process_id": doc.RefID})
	return doc, nil
}

func (uc *DocumentUseCase) List(ctx context.Context, actor domain.Actor, filter domain.DocumentFilter) ([]domain.Document, error) {
	docs, err := uc.repo.List(ctx, filter)
	if err != nil {
		uc.observer.ObserveOperation("list", outcome(err))
		return nil, storageError("list documents", err)
	}

	out := make([]domain.Document, 0, len(docs))
	for i := range docs {
		allowed, err := uc.canRead(ctx, &docs[i], actor.ID)
		if err != nil {
			uc.observer.ObserveOperation("list", outcome(err))
			return nil, err
		}
		if allowed {
			out = append(out, docs[i])
		}
	}
	uc.observer.ObserveOperation("list", outcome(nil))

	if filter.RefType == domain.RefProcess && filter.RefID != "" {
		uc.recordEntry(ctx, actor, domain.AuditEntry{
			Action:       domain.AuditRead,
			ResourceType: domain.ResourceProcess,
			ResourceID:   filter.RefID,
			Details: map[string]any{
				"action":          "list_documents",
				"documents_count": len(out),
			},
		})
	}
	return out, nil
}

func (uc *DocumentUseCase) History(ctx context.Context, actor domain.Actor, id string) ([]domain.VersionEntry, error) {
	if _, err := uc.readable(ctx, actor, id, "list versions", "access to this confidential document is not allowed"); err != nil {
		return nil, err
	}
	versions, err := uc.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, storageError("list versions", err)
	}
	return versions, nil
}

func (uc *DocumentUseCase) AddVersion(
	ctx context.Context,
	actor domain.Actor,
	id string,
	input domain.NewVersionInput,
	body io.Reader,
) (updated *domain.Document, err error) {
	const op = "add version"
	defer func() { uc.observer.ObserveOperation("add_version", outcome(err)) }()

	if body == nil {
		return nil, domain.Invalid(op, "file is required")
	}

	key := newStorageKey(input.File.OriginalFilename)
	if err := uc.storage.Save(ctx, key, body); err != nil {
		return nil, storageError("save to object storage", err)
	}

	var previous string
	err = uc.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		doc, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		allowed := policy.CanDeleteOrAddVersion(doc, actor.ID)
		uc.observer.ObserveDecision(string(policy.CheckDeleteOrVersion), allowed)
		if !allowed {
			return domain.Forbidden(op, "only authorized users can add a version to this confidential document")
		}

		if err := uc.preserveOutgoingRevision(ctx, tx, doc); err != nil {
			return err
		}

		now := uc.now()
		previous = doc.Version
		contentType := input.File.ContentType
		if contentType == "" {
			contentType = doc.ContentType
		}
		entry := &domain.VersionEntry{
			ID:               uuid.NewString(),
			DocumentID:       doc.ID,
			Version:          domain.NextVersion(doc.Version),
			StorageKey:       key,
			OriginalFilename: input.File.OriginalFilename,
			ContentType:      contentType,
			Size:             input.File.Size,
			Comment:          strings.TrimSpace(input.Comment),
			UploadedBy:       actor.ID,
			CreatedAt:        now,
		}
		if err := tx.AppendVersion(ctx, entry); err != nil {
			return err
		}

		doc.Version = entry.Version
		doc.StorageKey = key
		doc.OriginalFilename = entry.OriginalFilename
		doc.Size = entry.Size
		doc.ContentType = entry.ContentType
		doc.UpdatedAt = now
		if err := tx.Update(ctx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		uc.discardBlob(ctx, key)
		return nil, storageError(op, err)
	}

	uc.record(ctx, actor, domain.AuditModify, updated, map[string]any{
		"action":           "new_version",
		"previous_version": previous,
		"new_version":      updated.Version,
		"comment":          strings.TrimSpace(input.Comment),
	})
	return updated, nil
}

// preserveOutgoingRevision keeps the file that is about to stop being current
// reachable from the ledger. Only the initial upload lacks an entry.
func (uc *DocumentUseCase) preserveOutgoingRevision(ctx context.Context, tx ports.DocumentTx, doc *domain.Document) error {
	if doc.StorageKey == "" {
		return nil
	}
	versions, err := tx.ListVersions(ctx, doc.ID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.StorageKey == doc.StorageKey {
			return nil
		}
	}
	return tx.AppendVersion(ctx, &domain.VersionEntry{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		Version:          domain.ParseVersion(doc.Version).String(),
		StorageKey:       doc.StorageKey,
		OriginalFilename: doc.OriginalFilename,
		ContentType:      doc.ContentType,
		Size:             doc.Size,
		UploadedBy:       doc.UploadedBy,
		CreatedAt:        doc.CreatedAt,
	})
}

func (uc *DocumentUseCase) UpdateMetadata(
	ctx context.Context,
	actor domain.Actor,
	id string,
	patch domain.MetadataPatch,
) (updated *domain.Document, err error) {
	const op = "update document"
	defer func() { uc.observer.ObserveOperation("update", outcome(err)) }()

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	details := map[string]any{}
	err = uc.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		doc, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		allowed := policy.CanModifyMetadata(doc, actor.ID)
		uc.observer.ObserveDecision(string(policy.CheckModifyMetadata), allowed)
		if !allowed {
			return domain.Forbidden(op, "only authorized users can modify this confidential document")
		}

		toggled := patch.Confidential != nil && *patch.Confidential != doc.Confidential
		if toggled {
			if err := uc.authorizeConfidentiality(ctx, op, doc, actor); err != nil {
				return err
			}
			details["confidential_change"] = *patch.Confidential
		}

		now := uc.now()
		applyPatch(doc, patch, actor, now, details)

		confidential := doc.Confidential
		if patch.Confidential != nil {
			confidential = *patch.Confidential
		}
		grants, grantsChanged, err := resolveGrants(doc, patch, confidential, toggled)
		if err != nil {
			return err
		}
		if confidential && grants.Len() == 0 {
			return domain.Invalid(op, msgGranteesRequired)
		}

		if grantsChanged {
			if err := tx.ReplaceGrants(ctx, doc.ID, grants); err != nil {
				return err
			}
		}
		doc.Confidential = confidential
		doc.Grants = grants
		doc.UpdatedAt = now
		if err := tx.Update(ctx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, storageError(op, err)
	}

	if len(details) == 0 {
		details = nil
	}
	uc.record(ctx, actor, domain.AuditModify, updated, details)
	return updated, nil
}

func validatePatch(patch domain.MetadataPatch) error {
	const op = "update document"
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Invalid(op, "name cannot be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Invalid(op, fmt.Sprintf("unknown status %q", *patch.Status))
	}
	return nil
}

func applyPatch(doc *domain.Document, patch domain.MetadataPatch, actor domain.Actor, now time.Time, details map[string]any) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name != doc.Name {
			details["name_change"] = doc.Name + " → " + name
		}
		doc.Name = name
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.Tags != nil {
		doc.Tags = append([]string{}, (*patch.Tags)...)
	}
	if patch.Status != nil {
		if *patch.Status != doc.Status {
			details["status_change"] = string(doc.Status) + " → " + string(*patch.Status)
		}
		doc.Status = *patch.Status
		if doc.Status == domain.StatusValidated {
			validator := actor.ID
			if patch.ValidatedBy != nil && strings.TrimSpace(*patch.ValidatedBy) != "" {
				validator = strings.TrimSpace(*patch.ValidatedBy)
			}
			at := now
			doc.ValidatedBy = validator
			doc.ValidatedAt = &at
		}
	}
}

// resolveGrants computes the grant set that must hold after the update.
// Confidentiality and grants move in lockstep: a non-confidential document
// never keeps live grants.
func resolveGrants(
	doc *domain.Document,
	patch domain.MetadataPatch,
	confidential, toggled bool,
) (domain.PermissionSet, bool, error) {
	const op = "update document"
	if !confidential {
		if patch.Grantees != nil && len(domain.NewPermissionSet(*patch.Grantees...)) > 0 {
			return nil, false, domain.Invalid(op, "grants only apply to confidential documents")
		}
		return domain.NewPermissionSet(), toggled || doc.Grants.Len() > 0, nil
	}
	if patch.Grantees != nil {
		return domain.NewPermissionSet(*patch.Grantees...), true, nil
	}
	if toggled {
		return domain.NewPermissionSet(), true, nil
	}
	return doc.Grants, false, nil
}

func (uc *DocumentUseCase) Delete(ctx context.Context, actor domain.Actor, id string) (err error) {
	const op = "delete document"
	defer func() { uc.observer.ObserveOperation("delete", outcome(err)) }()

	var deleted *domain.Document
	err = uc.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		doc, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		allowed := policy.CanDeleteOrAddVersion(doc, actor.ID)
		uc.observer.ObserveDecision(string(policy.CheckDeleteOrVersion), allowed)
		if !allowed {
			return domain.Forbidden(op, "only authorized users can delete this confidential document")
		}

		versions, err := tx.ListVersions(ctx, doc.ID)
		if err != nil {
			return err
		}
		for _, key := range storageKeys(doc, versions) {
			if err := uc.storage.Delete(ctx, key); err != nil {
				if domain.IsKind(err, domain.ErrNotFound) {
					slog.Warn("document_file_missing", "document_id", doc.ID, "storage_key", key)
					continue
				}
				return storageError("delete stored file", err)
			}
		}

		if err := tx.DeleteVersions(ctx, doc.ID); err != nil {
			return err
		}
		if err := tx.ReplaceGrants(ctx, doc.ID, domain.NewPermissionSet()); err != nil {
			return err
		}
		if err := tx.Delete(ctx, doc.ID); err != nil {
			return err
		}
		deleted = doc
		return nil
	})
	if err != nil {
		return storageError(op, err)
	}

	uc.record(ctx, actor, domain.AuditDelete, deleted, nil)
	return nil
}

func (uc *DocumentUseCase) Download(ctx context.Context, actor domain.Actor, id string) (dl *domain.Download, err error) {
	defer func() { uc.observer.ObserveOperation("download", outcome(err)) }()

	doc, err := uc.readable(ctx, actor, id, "download document", "access to this confidential document is not allowed")
	if err != nil {
		return nil, err
	}
	body, err := uc.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, storageError("open stored file", err)
	}

	uc.record(ctx, actor, domain.AuditDownload, doc, map[string]any{
		"version":    doc.Version,
		"process_id": doc.RefID,
	})
	return &domain.Download{
		Filename:    doc.OriginalFilename,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		Version:     doc.Version,
		Body:        body,
	}, nil
}

func (uc *DocumentUseCase) DownloadVersion(
	ctx context.Context,
	actor domain.Actor,
	id, versionID string,
) (dl *domain.Download, err error) {
	defer func() { uc.observer.ObserveOperation("download_version", outcome(err)) }()

	doc, err := uc.readable(ctx, actor, id, "download version", "access to this confidential document is not allowed")
	if err != nil {
		return nil, err
	}
	version, err := uc.repo.GetVersion(ctx, doc.ID, versionID)
	if err != nil {
		return nil, storageError("get version", err)
	}
	body, err := uc.storage.Open(ctx, version.StorageKey)
	if err != nil {
		return nil, storageError("open stored file", err)
	}

	uc.record(ctx, actor, domain.AuditDownload, doc, map[string]any{
		"version":       version.Version,
		"download_kind": "previous_version",
		"process_id":    doc.RefID,
	})
	return &domain.Download{
		Filename:    fmt.Sprintf("%s_v%s", version.OriginalFilename, version.Version),
		ContentType: version.ContentType,
		Size:        version.Size,
		Version:     version.Version,
		Body:        body,
	}, nil
}

// readable loads a document and rejects actors that fail the read rule.
func (uc *DocumentUseCase) readable(ctx context.Context, actor domain.Actor, id, op, reason string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(op, err)
	}
	allowed, err := uc.canRead(ctx, doc, actor.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.Forbidden(op, reason)
	}
	return doc, nil
}

// canRead resolves the linked process only when the verdict can depend on it.
// A linked process that no longer exists grants nothing.
func (uc *DocumentUseCase) canRead(ctx context.Context, doc *domain.Document, actorID string) (bool, error) {
	var process *domain.Process
	if doc.Confidential && doc.ProcessLinked() && doc.UploadedBy != actorID && !doc.Grants.Has(actorID) {
		p, err := uc.processes.GetOwnerAndCreator(ctx, doc.RefID)
		switch {
		case err == nil:
			process = p
		case domain.IsKind(err, domain.ErrNotFound):
		default:
			return false, storageError("lookup process", err)
		}
	}
	allowed := policy.CanRead(doc, actorID, process)
	uc.observer.ObserveDecision(string(policy.CheckRead), allowed)
	return allowed, nil
}

func (uc *DocumentUseCase) authorizeConfidentiality(ctx context.Context, op string, doc *domain.Document, actor domain.Actor) error {
	var process *domain.Process
	if doc.ProcessLinked() {
		p, err := uc.processes.GetOwnerAndCreator(ctx, doc.RefID)
		if err != nil {
			return storageError("lookup process", err)
		}
		process = p
	}
	allowed := policy.CanSetConfidentiality(doc, actor.ID, process)
	uc.observer.ObserveDecision(string(policy.CheckConfidentiality), allowed)
	if allowed {
		return nil
	}
	if doc.ProcessLinked() {
		return domain.Forbidden(op, msgToggleForbidden)
	}
	return domain.Forbidden(op, msgToggleUploader)
}

func (uc *DocumentUseCase) discardBlob(ctx context.Context, key string) {
	if err := uc.storage.Delete(ctx, key); err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		slog.Warn("orphan_blob_cleanup_failed", "storage_key", key, "error", err)
	}
}

func (uc *DocumentUseCase) record(ctx context.Context, actor domain.Actor, action domain.AuditAction, doc *domain.Document, details map[string]any) {
	if doc == nil {
		return
	}
	uc.recordEntry(ctx, actor, domain.AuditEntry{
		Action:       action,
		ResourceType: domain.ResourceDocument,
		ResourceID:   doc.ID,
		ResourceName: doc.Name,
		Details:      details,
	})
}

func (uc *DocumentUseCase) recordEntry(ctx context.Context, actor domain.Actor, entry domain.AuditEntry) {
	recordAudit(ctx, uc.audit, actor, entry, uc.now(), uc.auditTimeout)
}

func storageKeys(doc *domain.Document, versions []domain.VersionEntry) []string {
	seen := make(map[string]struct{}, len(versions)+1)
	keys := make([]string, 0, len(versions)+1)
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	add(doc.StorageKey)
	for _, v := range versions {
		add(v.StorageKey)
	}
	return keys
}

func newStorageKey(filename string) string {
	return fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}

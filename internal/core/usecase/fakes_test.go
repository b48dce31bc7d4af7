package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

// memStore is a transactional in-memory document store. WithinTx holds the
// store lock for the whole callback and rolls state back on error.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	versions map[string][]domain.VersionEntry

	failReplaceGrants error
	failAppendVersion error
	replaceCalls      int
}

func newMemStore() *memStore {
	return &memStore{
		docs:     map[string]*domain.Document{},
		versions: map[string][]domain.VersionEntry{},
	}
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (s *memStore) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.RefType != "" && doc.RefType != filter.RefType {
			continue
		}
		if filter.RefID != "" && doc.RefID != filter.RefID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(doc.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListVersions(_ context.Context, documentID string) ([]domain.VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionsNewestFirst(documentID), nil
}

func (s *memStore) GetVersion(_ context.Context, documentID, versionID string) (*domain.VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[documentID] {
		if v.ID == versionID {
			out := v
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get version", errors.New(versionID))
}

func (s *memStore) WithinTx(ctx context.Context, fn func(context.Context, ports.DocumentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make(map[string]*domain.Document, len(s.docs))
	for id, doc := range s.docs {
		docs[id] = doc.Clone()
	}
	versions := make(map[string][]domain.VersionEntry, len(s.versions))
	for id, entries := range s.versions {
		versions[id] = append([]domain.VersionEntry(nil), entries...)
	}

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.docs = docs
		s.versions = versions
		return err
	}
	return nil
}

func (s *memStore) versionsNewestFirst(documentID string) []domain.VersionEntry {
	entries := append([]domain.VersionEntry(nil), s.versions[documentID]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries
}

func (s *memStore) grantees(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil
	}
	return doc.Grants.IDs()
}

type memTx struct {
	s *memStore
}

func (tx *memTx) LockByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := tx.s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (tx *memTx) Insert(_ context.Context, doc *domain.Document) error {
	stored := doc.Clone()
	stored.Grants = domain.NewPermissionSet()
	tx.s.docs[doc.ID] = stored
	return nil
}

// Update persists document fields only; grants change through ReplaceGrants.
func (tx *memTx) Update(_ context.Context, doc *domain.Document) error {
	current, ok := tx.s.docs[doc.ID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	stored := doc.Clone()
	stored.Grants = current.Grants
	tx.s.docs[doc.ID] = stored
	return nil
}

func (tx *memTx) Delete(_ context.Context, id string) error {
	if _, ok := tx.s.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(tx.s.docs, id)
	return nil
}

func (tx *memTx) ReplaceGrants(_ context.Context, documentID string, grants domain.PermissionSet) error {
	tx.s.replaceCalls++
	if doc, ok := tx.s.docs[documentID]; ok {
		doc.Grants = domain.NewPermissionSet()
	}
	if tx.s.failReplaceGrants != nil {
		return tx.s.failReplaceGrants
	}
	doc, ok := tx.s.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Grants = grants.Clone()
	return nil
}

func (tx *memTx) AppendVersion(_ context.Context, entry *domain.VersionEntry) error {
	if tx.s.failAppendVersion != nil {
		return tx.s.failAppendVersion
	}
	tx.s.versions[entry.DocumentID] = append(tx.s.versions[entry.DocumentID], *entry)
	return nil
}

func (tx *memTx) ListVersions(_ context.Context, documentID string) ([]domain.VersionEntry, error) {
	return tx.s.versionsNewestFirst(documentID), nil
}

func (tx *memTx) DeleteVersions(_ context.Context, documentID string) error {
	delete(tx.s.versions, documentID)
	return nil
}

type memBlobs struct {
	mu        sync.Mutex
	objects   map[string]string
	saveErr   error
	deleteErr error
	deleted   []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string]string{}}
}

func (b *memBlobs) Save(_ context.Context, key string, data io.Reader) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = string(raw)
	return nil
}

func (b *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", errors.New(key))
	}
	return io.NopCloser(strings.NewReader(raw)), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.objects[key]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete object", errors.New(key))
	}
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type processFake struct {
	processes map[string]domain.Process
	err       error
	calls     int
}

func (f *processFake) GetOwnerAndCreator(_ context.Context, id string) (*domain.Process, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.processes[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get process", errors.New(id))
	}
	return &p, nil
}

type auditFake struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *auditFake) Record(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

func (f *auditFake) actions() []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *auditFake) last() domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return domain.AuditEntry{}
	}
	return f.entries[len(f.entries)-1]
}

type observerFake struct {
	mu         sync.Mutex
	operations map[string]int
	denied     map[string]int
}

func newObserverFake() *observerFake {
	return &observerFake{operations: map[string]int{}, denied: map[string]int{}}
}

func (o *observerFake) ObserveOperation(operation, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations[operation+"/"+outcome]++
}

func (o *observerFake) ObserveDecision(check string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !allowed {
		o.denied[check]++
	}
}

// stallingAuditSink blocks until its context ends and reports why it ended.
type stallingAuditSink struct {
	done chan error
}

func newStallingAuditSink() *stallingAuditSink {
	return &stallingAuditSink{done: make(chan error, 16)}
}

func (s *stallingAuditSink) Record(ctx context.Context, _ domain.AuditEntry) error {
	<-ctx.Done()
	s.done <- ctx.Err()
	return ctx.Err()
}

// ctxAuditSink records the context state seen at call time.
type ctxAuditSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *ctxAuditSink) Record(ctx context.Context, _ domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, ctx.Err())
	return nil
}

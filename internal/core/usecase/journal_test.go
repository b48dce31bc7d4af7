package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

type journalStoreFake struct {
	filter  domain.JournalFilter
	entries []domain.AuditEntry
	err     error
}

func (f *journalStoreFake) Append(_ context.Context, entry *domain.AuditEntry) error {
	f.entries = append(f.entries, *entry)
	return f.err
}

func (f *journalStoreFake) List(_ context.Context, filter domain.JournalFilter) ([]domain.AuditEntry, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type exporterFake struct {
	exported int
	err      error
}

func (f *exporterFake) ContentType() string { return "text/csv" }

func (f *exporterFake) Export(entries []domain.AuditEntry, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	f.exported = len(entries)
	_, err := io.WriteString(w, "ok")
	return err
}

func TestJournalListScopesNonAdminToOwnEntries(t *testing.T) {
	store := &journalStoreFake{}
	uc := NewJournalUseCase(store, nil, 0)

	if _, err := uc.List(context.Background(), actor("u1"), domain.JournalFilter{ActorID: "u2"}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if store.filter.ActorID != "u1" {
		t.Fatalf("expected filter scoped to u1, got %q", store.filter.ActorID)
	}
	if store.filter.Limit != defaultJournalLimit {
		t.Fatalf("expected default limit, got %d", store.filter.Limit)
	}
}

func TestJournalListAdminKeepsRequestedActor(t *testing.T) {
	store := &journalStoreFake{}
	uc := NewJournalUseCase(store, nil, 50)
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	if _, err := uc.List(context.Background(), admin, domain.JournalFilter{ActorID: "u2", Limit: 5000}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if store.filter.ActorID != "u2" {
		t.Fatalf("expected admin filter to keep u2, got %q", store.filter.ActorID)
	}
	if store.filter.Limit != maxJournalLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxJournalLimit, store.filter.Limit)
	}

	if _, err := uc.List(context.Background(), admin, domain.JournalFilter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if store.filter.ActorID != "" || store.filter.Limit != 50 {
		t.Fatalf("unexpected admin filter %+v", store.filter)
	}
}

func TestJournalListValidatesFilter(t *testing.T) {
	uc := NewJournalUseCase(&journalStoreFake{}, nil, 0)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	cases := []domain.JournalFilter{
		{Action: "approve"},
		{From: &from, To: &to},
	}
	for _, filter := range cases {
		if _, err := uc.List(context.Background(), actor("u1"), filter); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", filter, err)
		}
	}
	if _, err := uc.List(context.Background(), domain.Actor{}, domain.JournalFilter{}); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestJournalExportWritesEntries(t *testing.T) {
	store := &journalStoreFake{entries: []domain.AuditEntry{{ID: "a"}, {ID: "b"}}}
	exporter := &exporterFake{}
	uc := NewJournalUseCase(store, exporter, 0)

	var buf bytes.Buffer
	if err := uc.Export(context.Background(), actor("u1"), domain.JournalFilter{}, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exporter.exported != 2 || buf.String() != "ok" {
		t.Fatalf("unexpected export: %d entries, %q", exporter.exported, buf.String())
	}
	if uc.ExportContentType() != "text/csv" {
		t.Fatalf("unexpected content type %q", uc.ExportContentType())
	}
}

func TestJournalExportFailureIsStorageError(t *testing.T) {
	uc := NewJournalUseCase(&journalStoreFake{}, &exporterFake{err: errors.New("zip: write failed")}, 0)

	err := uc.Export(context.Background(), actor("u1"), domain.JournalFilter{}, io.Discard)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

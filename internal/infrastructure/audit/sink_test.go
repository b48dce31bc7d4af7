package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

type journalStoreFake struct {
	appended []domain.AuditEntry
	err      error
}

func (f *journalStoreFake) Append(_ context.Context, entry *domain.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, *entry)
	return nil
}

func (f *journalStoreFake) List(context.Context, domain.JournalFilter) ([]domain.AuditEntry, error) {
	return nil, errors.New("not implemented")
}

type queueFake struct {
	published []domain.AuditEntry
	err       error
}

func (f *queueFake) PublishAudit(_ context.Context, entry domain.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, entry)
	return nil
}

func (f *queueFake) SubscribeAudit(context.Context, func(context.Context, domain.AuditEntry) error) error {
	return errors.New("not implemented")
}

func TestQueueSinkPublishes(t *testing.T) {
	queue := &queueFake{}
	store := &journalStoreFake{}
	sink := NewQueueSink(queue, NewJournalSink(store))

	if err := sink.Record(context.Background(), domain.AuditEntry{ID: "j-1", Action: domain.AuditRead}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(queue.published) != 1 || len(store.appended) != 0 {
		t.Fatalf("expected queue delivery only, got queue=%d store=%d", len(queue.published), len(store.appended))
	}
}

func TestQueueSinkFallsBackToJournal(t *testing.T) {
	queue := &queueFake{err: domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))}
	store := &journalStoreFake{}
	sink := NewQueueSink(queue, NewJournalSink(store))

	if err := sink.Record(context.Background(), domain.AuditEntry{ID: "j-1", Action: domain.AuditRead}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.appended) != 1 || store.appended[0].ID != "j-1" {
		t.Fatalf("expected fallback write, got %+v", store.appended)
	}
}

func TestConsumerReportsOutcome(t *testing.T) {
	outcomes := []string{}
	store := &journalStoreFake{}
	consumer := NewConsumer(store, func(outcome string) { outcomes = append(outcomes, outcome) })

	if err := consumer.Handle(context.Background(), domain.AuditEntry{ID: "j-1"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	store.err = errors.New("db down")
	if err := consumer.Handle(context.Background(), domain.AuditEntry{ID: "j-2"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(outcomes) != 2 || outcomes[0] != "ok" || outcomes[1] != "error" {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

// Package audit delivers journal entries either straight to the journal
// store or through the message queue to the journal worker.
package audit

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

// JournalSink appends entries to the journal store synchronously.
type JournalSink struct {
	store ports.JournalStore
}

func NewJournalSink(store ports.JournalStore) *JournalSink {
	return &JournalSink{store: store}
}

func (s *JournalSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	return s.store.Append(ctx, &entry)
}

// QueueSink publishes entries for the journal worker. When publishing fails
// the entry is written through the fallback so it is not lost.
type QueueSink struct {
	queue    ports.AuditQueue
	fallback ports.AuditSink
}

func NewQueueSink(queue ports.AuditQueue, fallback ports.AuditSink) *QueueSink {
	return &QueueSink{queue: queue, fallback: fallback}
}

func (s *QueueSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	err := s.queue.PublishAudit(ctx, entry)
	if err == nil {
		return nil
	}
	if s.fallback == nil {
		return err
	}
	slog.Warn("audit_publish_failed_fallback", "entry_id", entry.ID, "error", err)
	return s.fallback.Record(ctx, entry)
}

// Consumer persists entries received from the queue. It is the worker side
// of QueueSink.
type Consumer struct {
	store    ports.JournalStore
	observer func(outcome string)
}

func NewConsumer(store ports.JournalStore, observer func(outcome string)) *Consumer {
	if observer == nil {
		observer = func(string) {}
	}
	return &Consumer{store: store, observer: observer}
}

func (c *Consumer) Handle(ctx context.Context, entry domain.AuditEntry) error {
	if err := c.store.Append(ctx, &entry); err != nil {
		c.observer("error")
		return err
	}
	c.observer("ok")
	return nil
}

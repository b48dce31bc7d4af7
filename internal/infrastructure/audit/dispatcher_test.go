package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

// gatedSink blocks every Record until release is closed.
type gatedSink struct {
	release chan struct{}

	mu       sync.Mutex
	recorded []domain.AuditEntry
}

func newGatedSink() *gatedSink {
	return &gatedSink{release: make(chan struct{})}
}

func (s *gatedSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, entry)
	return nil
}

func (s *gatedSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recorded)
}

func TestDispatcherRecordDoesNotWaitForSink(t *testing.T) {
	sink := newGatedSink()
	d := NewDispatcher(sink, DispatcherOptions{Buffer: 4, Timeout: time.Second})

	start := time.Now()
	for _, id := range []string{"j-1", "j-2"} {
		if err := d.Record(context.Background(), domain.AuditEntry{ID: id, Action: domain.AuditRead}); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Record waited %s on a stalled sink", elapsed)
	}

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected queued entries to be delivered on close, got %d", sink.count())
	}
}

func TestDispatcherRejectsWhenBufferIsFull(t *testing.T) {
	sink := newGatedSink()
	dropped := 0
	d := NewDispatcher(sink, DispatcherOptions{Buffer: 1, Timeout: time.Second, OnDrop: func() { dropped++ }})
	defer func() {
		close(sink.release)
		_ = d.Close(context.Background())
	}()

	var rejected error
	for i := 0; i < 3 && rejected == nil; i++ {
		rejected = d.Record(context.Background(), domain.AuditEntry{ID: "j", Action: domain.AuditRead})
	}
	if !domain.IsKind(rejected, domain.ErrTemporary) {
		t.Fatalf("expected temporary error once the buffer fills, got %v", rejected)
	}
	if dropped != 1 {
		t.Fatalf("expected one drop, got %d", dropped)
	}
}

func TestDispatcherBoundsEachDelivery(t *testing.T) {
	sink := newGatedSink()
	d := NewDispatcher(sink, DispatcherOptions{Buffer: 2, Timeout: 20 * time.Millisecond})

	if err := d.Record(context.Background(), domain.AuditEntry{ID: "j-1", Action: domain.AuditRead}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() should finish once the stalled delivery times out: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("stalled delivery should not have been recorded")
	}
	if err := d.Record(context.Background(), domain.AuditEntry{ID: "j-2", Action: domain.AuditRead}); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected closed dispatcher to reject entries, got %v", err)
	}
}

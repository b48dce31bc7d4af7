package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

var (
	errBufferFull = errors.New("audit buffer is full")
	errClosed     = errors.New("audit dispatcher is closed")
)

type DispatcherOptions struct {
	Buffer  int
	Timeout time.Duration
	// OnDrop is called for every entry rejected because the buffer is full.
	OnDrop func()
}

// Dispatcher hands entries to a single background writer so a slow journal
// or broker never holds the operation that produced the entry. Record only
// enqueues; delivery failures are logged by the writer.
type Dispatcher struct {
	next    ports.AuditSink
	timeout time.Duration
	onDrop  func()

	mu      sync.RWMutex
	closed  bool
	entries chan domain.AuditEntry
	done    chan struct{}
}

func NewDispatcher(next ports.AuditSink, opts DispatcherOptions) *Dispatcher {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	onDrop := opts.OnDrop
	if onDrop == nil {
		onDrop = func() {}
	}

	d := &Dispatcher{
		next:    next,
		timeout: timeout,
		onDrop:  onDrop,
		entries: make(chan domain.AuditEntry, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Record(_ context.Context, entry domain.AuditEntry) error {
	const op = "dispatch audit entry"
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return domain.WrapError(domain.ErrTemporary, op, errClosed)
	}
	select {
	case d.entries <- entry:
		return nil
	default:
		d.onDrop()
		return domain.WrapError(domain.ErrTemporary, op, errBufferFull)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for entry := range d.entries {
		d.deliver(entry)
	}
}

func (d *Dispatcher) deliver(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.Record(ctx, entry); err != nil {
		slog.Warn("audit_delivery_failed",
			"entry_id", entry.ID,
			"action", entry.Action,
			"resource_id", entry.ResourceID,
			"error", err,
		)
	}
}

// Close stops accepting entries and waits until the queued ones are
// delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.entries)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

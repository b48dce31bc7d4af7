package ports

import (
	"context"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

// AuditSink records access and mutation events. Callers treat a returned
// error as a warning; it never fails the operation being audited.
type AuditSink interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// OperationObserver receives the outcome of every document operation and
// access decision.
type OperationObserver interface {
	ObserveOperation(operation, outcome string)
	ObserveDecision(check string, allowed bool)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, string) {}
func (noopObserver) ObserveDecision(string, bool) {}

// NoopObserver discards observations.
var NoopObserver OperationObserver = noopObserver{}

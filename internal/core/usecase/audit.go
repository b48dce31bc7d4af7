package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const defaultAuditTimeout = 5 * time.Second

// recordAudit stamps the entry with the actor's request context and hands it
// to the sink. The sink call is detached from request cancellation and bounded
// by timeout. A failing sink never fails the operation that triggered it.
func recordAudit(ctx context.Context, sink ports.AuditSink, actor domain.Actor, entry domain.AuditEntry, now time.Time, timeout time.Duration) {
	if sink == nil {
		return
	}
	if timeout <= 0 {
		timeout = defaultAuditTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ActorID = actor.ID
	entry.IPAddress = actor.IPAddress
	entry.UserAgent = actor.UserAgent
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if err := sink.Record(ctx, entry); err != nil {
		slog.Warn("audit_record_failed",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err,
		)
	}
}

// storageError keeps classified errors intact and marks anything else as a
// storage failure.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrInvalidInput,
		domain.ErrUnauthorized,
		domain.ErrStorage,
		domain.ErrTemporary,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return domain.WrapError(domain.ErrStorage, op, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

package usecase

import (
	"context"
	"io"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

type JournalUseCase struct {
	store        ports.JournalStore
	exporter     ports.JournalExporter
	defaultLimit int
}

func NewJournalUseCase(store ports.JournalStore, exporter ports.JournalExporter, defaultLimit int) *JournalUseCase {
	if defaultLimit <= 0 || defaultLimit > maxJournalLimit {
		defaultLimit = defaultJournalLimit
	}
	return &JournalUseCase{
		store:        store,
		exporter:     exporter,
		defaultLimit: defaultLimit,
	}
}

// List returns journal entries newest first. Non-admin actors only ever see
// their own entries regardless of the requested actor filter.
func (uc *JournalUseCase) List(ctx context.Context, actor domain.Actor, filter domain.JournalFilter) ([]domain.AuditEntry, error) {
	filter, err := uc.scope(actor, filter)
	if err != nil {
		return nil, err
	}
	entries, err := uc.store.List(ctx, filter)
	if err != nil {
		return nil, storageError("list journal", err)
	}
	return entries, nil
}

func (uc *JournalUseCase) Export(ctx context.Context, actor domain.Actor, filter domain.JournalFilter, w io.Writer) error {
	if uc.exporter == nil {
		return domain.WrapError(domain.ErrStorage, "export journal", errExporterMissing)
	}
	entries, err := uc.List(ctx, actor, filter)
	if err != nil {
		return err
	}
	if err := uc.exporter.Export(entries, w); err != nil {
		return domain.WrapError(domain.ErrStorage, "export journal", err)
	}
	return nil
}

func (uc *JournalUseCase) ExportContentType() string {
	if uc.exporter == nil {
		return "application/octet-stream"
	}
	return uc.exporter.ContentType()
}

func (uc *JournalUseCase) scope(actor domain.Actor, filter domain.JournalFilter) (domain.JournalFilter, error) {
	const op = "list journal"
	if actor.ID == "" {
		return filter, domain.WrapError(domain.ErrUnauthorized, op, errActorMissing)
	}
	if !actor.IsAdmin() {
		filter.ActorID = actor.ID
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return filter, domain.Invalid(op, "unknown action "+string(filter.Action))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, domain.Invalid(op, "end date precedes start date")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = uc.defaultLimit
	case filter.Limit > maxJournalLimit:
		filter.Limit = maxJournalLimit
	}
	return filter, nil
}

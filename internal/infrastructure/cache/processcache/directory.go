// Package processcache fronts the process directory with a bounded,
// expiring LRU so confidential reads do not hit the database on every check.
package processcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/core/ports"
	"github.com/kirillkom/docs-governance/internal/infrastructure/resilience"
)

// Directory caches found processes only; a NotFound answer is always
// re-checked against the source.
type Directory struct {
	source   ports.ProcessDirectory
	cache    *expirable.LRU[string, domain.Process]
	executor *resilience.Executor
	onLookup func(hit bool)
}

type Options struct {
	Size     int
	TTL      time.Duration
	Executor *resilience.Executor
	OnLookup func(hit bool)
}

func New(source ports.ProcessDirectory, opts Options) *Directory {
	size := opts.Size
	if size <= 0 {
		size = 1024
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	onLookup := opts.OnLookup
	if onLookup == nil {
		onLookup = func(bool) {}
	}
	return &Directory{
		source:   source,
		cache:    expirable.NewLRU[string, domain.Process](size, nil, ttl),
		executor: opts.Executor,
		onLookup: onLookup,
	}
}

func (d *Directory) GetOwnerAndCreator(ctx context.Context, processID string) (*domain.Process, error) {
	if p, ok := d.cache.Get(processID); ok {
		d.onLookup(true)
		return &p, nil
	}
	d.onLookup(false)

	p, err := resilience.Call(ctx, d.executor, resilience.OperationProcessLookup, func(ctx context.Context) (*domain.Process, error) {
		return d.source.GetOwnerAndCreator(ctx, processID)
	}, resilience.ClassifyDomainError)
	if err != nil {
		return nil, err
	}
	d.cache.Add(processID, *p)
	return p, nil
}

package query

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/flowmart/internal/catalog"
)

const (
	DefaultPage    = 1
	DefaultLimit   = 10
	MaxLimit       = 100
	DefaultRelated = 3
)

// Params narrows and pages a catalog listing. Zero values mean "not set".
type Params struct {
	Page       int
	Limit      int
	SearchText string
	Tag        string
}

// withDefaults fills unset fields and rejects negative or oversized values.
func (p Params) withDefaults() (Params, error) {
	if p.Page < 0 {
		return p, fmt.Errorf("%w: page must be positive, got %d", ErrInvalidParameter, p.Page)
	}
	if p.Limit < 0 {
		return p, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidParameter, p.Limit)
	}
	if p.Limit > MaxLimit {
		return p, fmt.Errorf("%w: limit must be at most %d, got %d", ErrInvalidParameter, MaxLimit, p.Limit)
	}
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p, nil
}

// Engine answers listing and lookup requests against a catalog Store.
// It never writes to the store.
type Engine struct {
	store   *catalog.Store
	latency time.Duration
}

// NewEngine creates an Engine over store. A positive latency delays every
// call to emulate a remote content backend.
func NewEngine(store *catalog.Store, latency time.Duration) *Engine {
	return &Engine{store: store, latency: latency}
}

// Query filters the catalog by p and returns the requested page.
func (e *Engine) Query(ctx context.Context, p Params) (PageResult[catalog.WorkflowRecord], error) {
	p, err := p.withDefaults()
	if err != nil {
		return PageResult[catalog.WorkflowRecord]{}, err
	}
	if err := e.wait(ctx); err != nil {
		return PageResult[catalog.WorkflowRecord]{}, err
	}
	return Paginate(Filter(e.store.All(), p.SearchText, p.Tag), p.Page, p.Limit), nil
}

// All returns the whole catalog, unfiltered and unpaginated.
func (e *Engine) All(ctx context.Context) ([]catalog.WorkflowRecord, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.store.All(), nil
}

// Get returns a single workflow by id.
func (e *Engine) Get(ctx context.Context, id string) (catalog.WorkflowRecord, error) {
	if err := e.wait(ctx); err != nil {
		return catalog.WorkflowRecord{}, err
	}
	w, ok := e.store.Get(id)
	if !ok {
		return catalog.WorkflowRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return w, nil
}

// Related returns up to n workflows other than id, in catalog order.
// n <= 0 uses DefaultRelated.
func (e *Engine) Related(ctx context.Context, id string, n int) ([]catalog.WorkflowRecord, error) {
	if n <= 0 {
		n = DefaultRelated
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	if _, ok := e.store.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	related := make([]catalog.WorkflowRecord, 0, n)
	for _, w := range e.store.All() {
		if len(related) == n {
			break
		}
		if w.ID != id {
			related = append(related, w)
		}
	}
	return related, nil
}

// Tags returns the catalog's distinct tags for facet lists.
func (e *Engine) Tags() []string {
	return e.store.Tags()
}

func (e *Engine) wait(ctx context.Context) error {
	if e.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.latency):
		return nil
	}
}

// Filter keeps the records matching searchText (title, description or any
// tag, as a case-insensitive substring) and carrying tag (case-insensitive
// equality). Empty arguments do not filter. Order is preserved.
func Filter(records []catalog.WorkflowRecord, searchText, tag string) []catalog.WorkflowRecord {
	out := make([]catalog.WorkflowRecord, 0, len(records))
	for _, r := range records {
		if searchText != "" && !r.Matches(searchText) {
			continue
		}
		if tag != "" && !r.HasTag(tag) {
			continue
		}
		out = append(out, r)
	}
	return out
}

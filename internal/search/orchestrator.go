package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/query"
)

// Matcher maps free text onto catalog ids, most relevant first.
type Matcher interface {
	IsAvailable() bool
	SearchByIntent(ctx context.Context, query string) []string
}

// Catalog is the structured query surface the orchestrator delegates to.
type Catalog interface {
	Query(ctx context.Context, p query.Params) (query.PageResult[catalog.WorkflowRecord], error)
	All(ctx context.Context) ([]catalog.WorkflowRecord, error)
}

// Request describes one search. Page and Limit apply to the structured path
// only; an AI result is always a single page.
type Request struct {
	Query string
	Tag   string
	UseAI bool
	Page  int
	Limit int
}

// Orchestrator chooses between the structured and the AI search path.
type Orchestrator struct {
	catalog Catalog
	matcher Matcher
}

// New creates an Orchestrator. matcher may be nil, in which case AI
// requests yield empty results.
func New(cat Catalog, matcher Matcher) *Orchestrator {
	return &Orchestrator{catalog: cat, matcher: matcher}
}

// AIAvailable reports whether the AI path can produce matches.
func (o *Orchestrator) AIAvailable() bool {
	return o.matcher != nil && o.matcher.IsAvailable()
}

// Resolve runs req. Only structured-path errors surface; AI failures
// degrade to an empty page.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (query.PageResult[catalog.WorkflowRecord], error) {
	q := strings.TrimSpace(req.Query)
	if !req.UseAI || q == "" {
		return o.catalog.Query(ctx, query.Params{
			Page:       req.Page,
			Limit:      req.Limit,
			SearchText: q,
			Tag:        req.Tag,
		})
	}
	return o.resolveAI(ctx, q, req.Tag), nil
}

func (o *Orchestrator) resolveAI(ctx context.Context, q, tag string) query.PageResult[catalog.WorkflowRecord] {
	var ids []string
	if o.matcher != nil {
		ids = o.matcher.SearchByIntent(ctx, q)
	}
	if len(ids) == 0 {
		return singlePage(nil)
	}

	all, err := o.catalog.All(ctx)
	if err != nil {
		slog.Warn("loading catalog for AI results failed", "error", err)
		return singlePage(nil)
	}
	byID := make(map[string]catalog.WorkflowRecord, len(all))
	for _, w := range all {
		byID[w.ID] = w
	}

	matched := make([]catalog.WorkflowRecord, 0, len(ids))
	for _, id := range ids {
		w, ok := byID[id]
		if !ok {
			continue
		}
		if tag != "" && !w.HasTag(tag) {
			continue
		}
		matched = append(matched, w)
	}
	return singlePage(matched)
}

func singlePage(items []catalog.WorkflowRecord) query.PageResult[catalog.WorkflowRecord] {
	return query.NewPage(items, len(items), 1, max(len(items), 1))
}

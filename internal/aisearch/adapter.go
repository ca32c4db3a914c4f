package aisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/engine"
)

// DefaultTimeout bounds a single AI search including retries.
const DefaultTimeout = 10 * time.Second

// Chatter is the interface for schema-constrained chat completion.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Catalog provides the record summaries embedded in the prompt.
type Catalog interface {
	Summaries() []catalog.Summary
	Fingerprint() string
}

// Cache stores match lists per query and catalog fingerprint.
type Cache interface {
	Get(ctx context.Context, query, fingerprint string) ([]string, bool, error)
	Set(ctx context.Context, query, fingerprint string, ids []string) error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithCache enables the match cache.
func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// Adapter maps a free-text query onto catalog ids using a generative model.
type Adapter struct {
	client  Chatter
	model   string
	catalog Catalog
	timeout time.Duration
	cache   Cache
	group   singleflight.Group
}

// NewAdapter creates an Adapter. A nil client yields an adapter that is
// never available.
func NewAdapter(client Chatter, model string, cat Catalog, opts ...Option) *Adapter {
	a := &Adapter{
		client:  client,
		model:   model,
		catalog: cat,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsAvailable reports whether a backend is configured.
func (a *Adapter) IsAvailable() bool {
	return a != nil && a.client != nil && a.catalog != nil
}

// SearchByIntent returns the ids of the workflows matching query, most
// relevant first. On any failure (timeout, malformed response, upstream
// error) it returns an empty slice; search must degrade, not break.
func (a *Adapter) SearchByIntent(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	if !a.IsAvailable() {
		slog.Debug("AI search unavailable, returning no matches")
		return []string{}
	}

	fingerprint := a.catalog.Fingerprint()
	if a.cache != nil {
		ids, ok, err := a.cache.Get(ctx, query, fingerprint)
		if err != nil {
			slog.Warn("AI match cache read failed", "error", err)
		} else if ok {
			return dedupe(ids)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := a.group.DoChan(fingerprint+"\x00"+query, func() (any, error) {
		// Shared across callers: one caller going away must not fail the rest.
		callCtx, callCancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer callCancel()
		return a.match(callCtx, query, fingerprint)
	})

	select {
	case <-ctx.Done():
		slog.Warn("AI search abandoned", "error", ctx.Err())
		return []string{}
	case res := <-ch:
		if res.Err != nil {
			slog.Warn("AI search failed", "error", res.Err)
			return []string{}
		}
		ids := res.Val.([]string)
		out := make([]string, len(ids))
		copy(out, ids)
		return out
	}
}

func (a *Adapter) match(ctx context.Context, query, fingerprint string) ([]string, error) {
	messages, err := BuildPrompt(query, a.catalog.Summaries())
	if err != nil {
		return nil, err
	}

	raw, err := a.client.Chat(ctx, a.model, messages, matchSchema())
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	ids, err := decodeMatches(raw)
	if err != nil {
		slog.Warn("AI search response rejected", "error", err, "response", raw)
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, query, fingerprint, ids); err != nil {
			slog.Warn("AI match cache write failed", "error", err)
		}
	}
	return ids, nil
}

type matchResponse struct {
	MatchedIDs *[]string `json:"matchedIds"`
}

var errMissingMatches = errors.New("response has no matchedIds")

// decodeMatches parses a model response strictly: unknown fields, a missing
// matchedIds array, non-string items and trailing data are all rejected.
func decodeMatches(raw string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var resp matchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding match response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding match response: trailing data")
	}
	if resp.MatchedIDs == nil {
		return nil, errMissingMatches
	}
	return dedupe(*resp.MatchedIDs), nil
}

// dedupe drops empty and repeated ids, keeping the first occurrence.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

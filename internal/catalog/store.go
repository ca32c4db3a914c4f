package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrDuplicateID is returned when a source yields two records with the same id.
var ErrDuplicateID = errors.New("duplicate workflow id")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Source yields the full set of catalog records. It is read once at startup.
type Source interface {
	Workflows(ctx context.Context) ([]WorkflowRecord, error)
}

// Store is the read-only, in-memory catalog. It is safe for concurrent use
// because nothing writes to it after construction.
type Store struct {
	records     []WorkflowRecord
	byID        map[string]int
	fingerprint string
}

// Load reads every record from src and builds a Store.
func Load(ctx context.Context, src Source) (*Store, error) {
	records, err := src.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog source: %w", err)
	}
	return New(records)
}

// New validates records and builds a Store preserving their order.
func New(records []WorkflowRecord) (*Store, error) {
	s := &Store{
		records: make([]WorkflowRecord, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	copy(s.records, records)

	h := sha256.New()
	for i, r := range s.records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", r.ID, err)
		}
		if _, ok := s.byID[r.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		s.byID[r.ID] = i

		sum := r.Summarize()
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x1e", sum.ID, sum.Title, sum.Description, sum.Tags)
	}
	s.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]
	return s, nil
}

// All returns every record in catalog order. The returned slice is a copy;
// the records themselves must not be modified.
func (s *Store) All() []WorkflowRecord {
	out := make([]WorkflowRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (WorkflowRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return WorkflowRecord{}, false
	}
	return s.records[i], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Summaries returns the model-facing summary of every record in catalog order.
func (s *Store) Summaries() []Summary {
	out := make([]Summary, len(s.records))
	for i, r := range s.records {
		out[i] = r.Summarize()
	}
	return out
}

// Tags returns the distinct tags in first-seen order. Tags differing only in
// case are reported once, with the casing of their first occurrence.
func (s *Store) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, r := range s.records {
		for _, t := range r.Tags {
			k := strings.ToLower(t)
			if seen[k] {
				continue
			}
			seen[k] = true
			tags = append(tags, t)
		}
	}
	return tags
}

// Fingerprint identifies the searchable content of the catalog. It changes
// whenever an id, title, description or tag changes.
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kalambet/flowmart/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies that the workflows index is created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_workflows_position").Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("index idx_workflows_position not found in sqlite_master")
	}
}

func seedRecords(t *testing.T) []catalog.WorkflowRecord {
	t.Helper()
	recs, err := catalog.SeedSource{}.Workflows(context.Background())
	if err != nil {
		t.Fatalf("loading seed: %v", err)
	}
	return recs
}

// TestSaveAndListWorkflows round-trips the seed catalog and checks order is kept.
func TestSaveAndListWorkflows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := seedRecords(t)

	if err := s.SaveWorkflows(ctx, want); err != nil {
		t.Fatalf("SaveWorkflows: %v", err)
	}

	got, err := s.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d workflows, want %d", len(got), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("workflow %d mismatch:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}
}

// TestSaveWorkflowsReplaces verifies a second save replaces the catalog.
func TestSaveWorkflowsReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seedRecords(t)

	if err := s.SaveWorkflows(ctx, recs); err != nil {
		t.Fatalf("SaveWorkflows: %v", err)
	}
	reversed := []catalog.WorkflowRecord{recs[2], recs[0]}
	if err := s.SaveWorkflows(ctx, reversed); err != nil {
		t.Fatalf("SaveWorkflows: %v", err)
	}

	n, err := s.CountWorkflows(ctx)
	if err != nil {
		t.Fatalf("CountWorkflows: %v", err)
	}
	if n != 2 {
		t.Errorf("CountWorkflows = %d, want 2", n)
	}

	got, err := s.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if got[0].ID != recs[2].ID || got[1].ID != recs[0].ID {
		t.Errorf("order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, recs[2].ID, recs[0].ID)
	}
}

func TestGetWorkflow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveWorkflows(ctx, seedRecords(t)); err != nil {
		t.Fatalf("SaveWorkflows: %v", err)
	}

	w, err := s.GetWorkflow(ctx, "4")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if w.Title != "Telegram Bot for Crypto Alerts" {
		t.Errorf("Title = %q", w.Title)
	}

	if _, err := s.GetWorkflow(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWorkflow(missing) err = %v, want ErrNotFound", err)
	}
}

// TestStoreAsCatalogSource loads a catalog.Store from the database.
func TestStoreAsCatalogSource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveWorkflows(ctx, seedRecords(t)); err != nil {
		t.Fatalf("SaveWorkflows: %v", err)
	}

	store, err := catalog.Load(ctx, s)
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	if store.Len() != 6 {
		t.Errorf("Len = %d, want 6", store.Len())
	}

	seed, err := catalog.Load(ctx, catalog.SeedSource{})
	if err != nil {
		t.Fatalf("catalog.Load(seed): %v", err)
	}
	if store.Fingerprint() != seed.Fingerprint() {
		t.Error("fingerprint differs between sqlite and seed catalogs")
	}
}

func TestEmptyDatabase(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ListWorkflows(context.Background())
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListWorkflows on empty db = %v, want empty slice", got)
	}
}

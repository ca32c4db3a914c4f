package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kalambet/flowmart/internal/catalog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite catalog database. It is the stand-in for a remote
// content backend and implements catalog.Source.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "flowmart.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Workflows ---

const workflowColumns = `id, position, slug, title, description, price, currency, author, tags, downloads, rating, image, nodes, content, created_at`

// SaveWorkflows replaces the catalog with records, keeping their order.
func (s *Store) SaveWorkflows(ctx context.Context, records []catalog.WorkflowRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflows`); err != nil {
		return fmt.Errorf("clearing workflows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO workflows (`+workflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, w := range records {
		r, err := toRow(w, i)
		if err != nil {
			return fmt.Errorf("encoding workflow %s: %w", w.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Position, r.Slug, r.Title, r.Description, r.Price, r.Currency,
			r.Author, r.Tags, r.Downloads, r.Rating, r.Image, r.Nodes, r.Content, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting workflow %s: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

// ListWorkflows returns every workflow in catalog order.
func (s *Store) ListWorkflows(ctx context.Context) ([]catalog.WorkflowRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []catalog.WorkflowRecord{}
	for rows.Next() {
		r, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		w, err := r.record()
		if err != nil {
			return nil, err
		}
		results = append(results, w)
	}
	return results, rows.Err()
}

// GetWorkflow returns one workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (catalog.WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	r, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.WorkflowRecord{}, ErrNotFound
	}
	if err != nil {
		return catalog.WorkflowRecord{}, err
	}
	return r.record()
}

// CountWorkflows returns the number of stored workflows.
func (s *Store) CountWorkflows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&n)
	return n, err
}

// Workflows implements catalog.Source.
func (s *Store) Workflows(ctx context.Context) ([]catalog.WorkflowRecord, error) {
	return s.ListWorkflows(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(sc scanner) (workflowRow, error) {
	var r workflowRow
	err := sc.Scan(&r.ID, &r.Position, &r.Slug, &r.Title, &r.Description, &r.Price, &r.Currency,
		&r.Author, &r.Tags, &r.Downloads, &r.Rating, &r.Image, &r.Nodes, &r.Content, &r.CreatedAt)
	return r, err
}

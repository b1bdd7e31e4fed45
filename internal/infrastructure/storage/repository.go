package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PaperScanner/internal/ports"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout keeps timestamps sortable as text in both dialects.
const timeLayout = "2006-01-02T15:04:05Z"

// Repository persists papers, feed health counters and the distribution
// ledger in SQLite or PostgreSQL.
type Repository struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
}

var (
	_ ports.PaperRepository     = (*Repository)(nil)
	_ ports.FeedStateRepository = (*Repository)(nil)
	_ ports.LedgerRepository    = (*Repository)(nil)
)

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "" && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	repo := New(db, driver)
	if driver == DriverSQLite {
		// One connection keeps the pragmas in force and serializes writers.
		db.SetMaxOpenConns(1)
		if err := repo.applyPragmas(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an already opened database.
func New(db *sql.DB, driver string) *Repository {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &Repository{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// Close releases the database handle.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := r.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

// Migrate creates missing tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_papers (
			paper_id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			feed_url TEXT NOT NULL DEFAULT '',
			relevance_score INTEGER NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			key_findings TEXT NOT NULL DEFAULT '',
			applications TEXT NOT NULL DEFAULT '',
			abstract_only INTEGER NOT NULL DEFAULT 0,
			processed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_processed_at ON processed_papers(processed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_relevance ON processed_papers(relevance_score)`,
		`CREATE TABLE IF NOT EXISTS feed_health (
			feed_url TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			consecutive_empty_fetches INTEGER NOT NULL DEFAULT 0,
			last_successful_fetch TEXT NOT NULL DEFAULT '',
			last_entry_count INTEGER NOT NULL DEFAULT 0,
			last_fetch_at TEXT NOT NULL DEFAULT '',
			last_fetch_failed INTEGER NOT NULL DEFAULT 0,
			declared_quiet_days TEXT NOT NULL DEFAULT '',
			declared_quiet_dates TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS distribution_attempts (
			id ` + idColumn + `,
			paper_id TEXT NOT NULL,
			channel_type TEXT NOT NULL,
			channel_target TEXT NOT NULL,
			attempted_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			error_detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_tuple ON distribution_attempts(paper_id, channel_type, channel_target)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_success ON distribution_attempts(success)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_success
			ON distribution_attempts(paper_id, channel_type, channel_target) WHERE success = 1`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return r.addMissingColumns(ctx, "feed_health", map[string]string{
		"last_fetch_failed":    "INTEGER NOT NULL DEFAULT 0",
		"declared_quiet_days":  "TEXT NOT NULL DEFAULT ''",
		"declared_quiet_dates": "TEXT NOT NULL DEFAULT ''",
	})
}

// addMissingColumns upgrades tables created before a column existed.
func (r *Repository) addMissingColumns(ctx context.Context, table string, columns map[string]string) error {
	existing, err := r.columns(ctx, table)
	if err != nil {
		return err
	}
	for name, def := range columns {
		if existing[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, def)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", table, name, err)
		}
	}
	return nil
}

func (r *Repository) columns(ctx context.Context, table string) (map[string]bool, error) {
	var b sq.SelectBuilder
	if r.driver == DriverPostgres {
		b = r.sb.Select("column_name").From("information_schema.columns").
			Where(sq.Eq{"table_name": table}).Where("table_schema = current_schema()")
	} else {
		b = r.sb.Select("name").From(fmt.Sprintf("pragma_table_info('%s')", table))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *Repository) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *Repository) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryContext(ctx, query, args...)
}

func (r *Repository) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryRowContext(ctx, query, args...), nil
}

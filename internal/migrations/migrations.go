// Package migrations implements the gateway's schema migration runner
// (spec.md §4.B). It is deliberately hand-rolled atop database/sql
// rather than golang-migrate/migrate/v4: the spec's gap/duplicate
// detection and dense 1..N versioning don't map onto that library's
// file-driven, non-validating model (see DESIGN.md).
package migrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

// Migration is one schema change: a version, a human name, and the SQL
// to apply it and to reverse it.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Sentinel errors for the validation and targeting failures named by
// spec.md §4.B.
var (
	ErrGapDetected      = errors.New("migrations: version sequence has a gap")
	ErrDuplicateVersion = errors.New("migrations: duplicate version")
	ErrUnknownMigration = errors.New("migrations: unknown target version")
)

// SqlError wraps a database/sql failure encountered while applying or
// reverting a migration.
type SqlError struct {
	Version int
	Op      string
	Err     error
}

func (e *SqlError) Error() string {
	return fmt.Sprintf("migrations: version %d %s: %v", e.Version, e.Op, e.Err)
}

func (e *SqlError) Unwrap() error { return e.Err }

// StatusEntry describes one migration's applied state for Status().
type StatusEntry struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies and reverts a fixed, validated migration set against
// a *sql.DB. The set must be dense 1..N with no duplicates; Runner
// validates this once at construction so every later operation can
// assume it.
type Runner struct {
	db         *sqlx.DB
	migrations []Migration
}

// NewRunner validates migrations (sorted by version, must start at 1,
// be contiguous, and contain no duplicate version) and returns a Runner
// bound to db.
func NewRunner(db *sqlx.DB, migrationList []Migration) (*Runner, error) {
	sorted := make([]Migration, len(migrationList))
	copy(sorted, migrationList)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[int]bool, len(sorted))
	for i, m := range sorted {
		if seen[m.Version] {
			return nil, fmt.Errorf("%w: version %d", ErrDuplicateVersion, m.Version)
		}
		seen[m.Version] = true
		want := i + 1
		if m.Version != want {
			return nil, fmt.Errorf("%w: expected version %d, found %d (%s)", ErrGapDetected, want, m.Version, m.Name)
		}
	}

	return &Runner{db: db, migrations: sorted}, nil
}

const createTrackingTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

func (r *Runner) ensureTrackingTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTrackingTableSQL); err != nil {
		return &SqlError{Op: "ensure schema_migrations table", Err: err}
	}
	return nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	if err := r.ensureTrackingTable(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, &SqlError{Op: "query schema_migrations", Err: err}
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAtStr string
		if err := rows.Scan(&version, &appliedAtStr); err != nil {
			return nil, &SqlError{Op: "scan schema_migrations row", Err: err}
		}
		t, _ := time.Parse(time.RFC3339Nano, appliedAtStr)
		applied[version] = t
	}
	return applied, rows.Err()
}

// Status reports every known migration's applied state, in ascending
// version order.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]StatusEntry, len(r.migrations))
	for i, m := range r.migrations {
		at, ok := applied[m.Version]
		entries[i] = StatusEntry{Version: m.Version, Name: m.Name, Applied: ok, AppliedAt: at}
	}
	return entries, nil
}

// MigrateUp applies every unapplied migration up to and including
// target, in ascending version order. A nil target applies everything
// pending. dryRun reports what would run without executing any SQL.
func (r *Runner) MigrateUp(ctx context.Context, target *int, dryRun bool) ([]StatusEntry, error) {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if target != nil && !r.hasVersion(*target) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMigration, *target)
	}

	var planned []StatusEntry
	for _, m := range r.migrations {
		if applied[m.Version].IsZero() == false {
			continue
		}
		if target != nil && m.Version > *target {
			break
		}
		planned = append(planned, StatusEntry{Version: m.Version, Name: m.Name})
		if dryRun {
			continue
		}
		if err := r.applyOne(ctx, m); err != nil {
			return planned, err
		}
	}
	return planned, nil
}

// MigrateDown reverts every applied migration down to, but not
// including, target, in descending version order.
func (r *Runner) MigrateDown(ctx context.Context, target int, dryRun bool) ([]StatusEntry, error) {
	if !r.hasVersion(target) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMigration, target)
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var planned []StatusEntry
	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if m.Version <= target {
			break
		}
		if applied[m.Version].IsZero() {
			continue
		}
		planned = append(planned, StatusEntry{Version: m.Version, Name: m.Name})
		if dryRun {
			continue
		}
		if err := r.revertOne(ctx, m); err != nil {
			return planned, err
		}
	}
	return planned, nil
}

func (r *Runner) hasVersion(version int) bool {
	for _, m := range r.migrations {
		if m.Version == version {
			return true
		}
	}
	return false
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &SqlError{Version: m.Version, Op: "begin", Err: err}
	}
	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		tx.Rollback()
		return &SqlError{Version: m.Version, Op: "apply", Err: err}
	}
	insertSQL := r.db.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertSQL,
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		tx.Rollback()
		return &SqlError{Version: m.Version, Op: "record", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &SqlError{Version: m.Version, Op: "commit", Err: err}
	}
	return nil
}

func (r *Runner) revertOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &SqlError{Version: m.Version, Op: "begin", Err: err}
	}
	if _, err := tx.ExecContext(ctx, m.Down); err != nil {
		tx.Rollback()
		return &SqlError{Version: m.Version, Op: "revert", Err: err}
	}
	deleteSQL := r.db.Rebind(`DELETE FROM schema_migrations WHERE version = ?`)
	if _, err := tx.ExecContext(ctx, deleteSQL, m.Version); err != nil {
		tx.Rollback()
		return &SqlError{Version: m.Version, Op: "unrecord", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &SqlError{Version: m.Version, Op: "commit", Err: err}
	}
	return nil
}

package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return sqlx.NewDb(raw, "sqlite")
}

func TestNewRunnerRejectsGapAndDuplicate(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if _, err := NewRunner(db, []Migration{{Version: 1, Name: "a"}, {Version: 3, Name: "b"}}); err == nil {
		t.Fatal("expected gap to be rejected")
	}
	if _, err := NewRunner(db, []Migration{{Version: 1, Name: "a"}, {Version: 1, Name: "b"}}); err == nil {
		t.Fatal("expected duplicate version to be rejected")
	}
}

func TestMigrateUpDownRoundTrip(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	runner, err := NewRunner(db, Builtin())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	ctx := context.Background()

	if _, err := runner.MigrateUp(ctx, nil, false); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	status, err := runner.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range status {
		if !s.Applied {
			t.Fatalf("expected version %d applied", s.Version)
		}
	}

	target := 2
	if _, err := runner.MigrateDown(ctx, target, false); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	status, err = runner.Status(ctx)
	if err != nil {
		t.Fatalf("status after down: %v", err)
	}
	for _, s := range status {
		if s.Version <= target && !s.Applied {
			t.Fatalf("version %d should still be applied", s.Version)
		}
		if s.Version > target && s.Applied {
			t.Fatalf("version %d should have been reverted", s.Version)
		}
	}

	if _, err := runner.MigrateUp(ctx, nil, false); err != nil {
		t.Fatalf("migrate back up: %v", err)
	}
	status, err = runner.Status(ctx)
	if err != nil {
		t.Fatalf("status after re-up: %v", err)
	}
	for _, s := range status {
		if !s.Applied {
			t.Fatalf("expected version %d applied after re-up", s.Version)
		}
	}
}

func TestMigrateUpUnknownTarget(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	runner, err := NewRunner(db, Builtin())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.MigrateUp(context.Background(), intPtr(999), false); err == nil {
		t.Fatal("expected unknown target to be rejected")
	}
}

func TestDryRunAppliesNothing(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	runner, err := NewRunner(db, Builtin())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	ctx := context.Background()

	planned, err := runner.MigrateUp(ctx, nil, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(planned) != len(Builtin()) {
		t.Fatalf("expected %d planned, got %d", len(Builtin()), len(planned))
	}

	status, err := runner.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range status {
		if s.Applied {
			t.Fatal("dry run must not apply any migration")
		}
	}
}

func intPtr(v int) *int { return &v }

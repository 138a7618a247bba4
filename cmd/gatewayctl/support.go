package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/relaygate/gateway/internal/auth"
	"github.com/relaygate/gateway/internal/config"
	"github.com/relaygate/gateway/internal/migrations"
)

type configSummary struct {
	dbType          string
	defaultTool     string
	rateLimitPerMin int
	enabledTools    []string
}

func loadConfig(path, envPath string) (*configSummary, error) {
	cfg, err := config.Load(path, envPath)
	if err != nil {
		return nil, err
	}
	return &configSummary{
		dbType:          cfg.Storage.DBType,
		defaultTool:     cfg.Routing.DefaultTool,
		rateLimitPerMin: cfg.API.RateLimitPerMin,
		enabledTools:    cfg.EnabledTools(),
	}, nil
}

func generateMobileKey() (string, error) {
	return auth.GenerateAPIKey()
}

func openMigrationRunner(dbType, dsn string) (*migrations.Runner, func(), error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch dbType {
	case "sqlite":
		path := dsn
		if path == "" {
			path = "gateway.db"
		}
		db, err = sqlx.Open("sqlite", path)
	case "postgresql":
		if dsn == "" {
			return nil, nil, fmt.Errorf("migrations: postgresql requires --dsn or DATABASE_URL")
		}
		db, err = sqlx.Open("postgres", dsn)
	default:
		return nil, nil, fmt.Errorf("migrations: unknown db-type %q", dbType)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("migrations: open database: %w", err)
	}

	runner, err := migrations.NewRunner(db, migrations.Builtin())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: build runner: %w", err)
	}
	return runner, func() { db.Close() }, nil
}

func printMigrationStatus(ctx context.Context, runner *migrations.Runner) error {
	entries, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		state := "pending"
		if e.Applied {
			state = "applied " + e.AppliedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Printf("%4d  %-40s %s\n", e.Version, e.Name, state)
	}
	return nil
}

func applyMigrationsUp(ctx context.Context, runner *migrations.Runner, target *int, dryRun bool) error {
	applied, err := runner.MigrateUp(ctx, target, dryRun)
	if err != nil {
		return err
	}
	for _, e := range applied {
		verb := "applied"
		if dryRun {
			verb = "would apply"
		}
		fmt.Printf("%s version %d: %s\n", verb, e.Version, e.Name)
	}
	return nil
}

func applyMigrationsDown(ctx context.Context, runner *migrations.Runner, target int, dryRun bool) error {
	reverted, err := runner.MigrateDown(ctx, target, dryRun)
	if err != nil {
		return err
	}
	for _, e := range reverted {
		verb := "reverted"
		if dryRun {
			verb = "would revert"
		}
		fmt.Printf("%s version %d: %s\n", verb, e.Version, e.Name)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgres opens the pooled postgres engine against dsn (spec.md §6
// [storage] connection_string) via lib/pq, with a bounded connection
// pool suited to a long-running server process.
func NewPostgres(ctx context.Context, dsn string) (Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: postgres connection_string is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	return newSQLStore(db), nil
}

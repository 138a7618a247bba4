package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// NewSQLite opens the embedded sqlite engine at path (spec.md §6
// [storage] db_path) via modernc.org/sqlite, the pure-Go driver the
// gateway ships with to avoid a cgo build requirement.
func NewSQLite(ctx context.Context, path string) (Backend, error) {
	if path == "" {
		path = "gateway.db"
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one conn avoids SQLITE_BUSY.

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	return newSQLStore(db), nil
}

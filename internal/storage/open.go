package storage

import (
	"context"
	"fmt"

	"github.com/relaygate/gateway/internal/config"
)

// Open constructs and initializes the Backend named by cfg.Storage.DBType,
// running pending migrations before returning.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Storage.DBType {
	case "sqlite":
		backend, err = NewSQLite(ctx, cfg.Storage.DBPath)
	case "postgresql":
		backend, err = NewPostgres(ctx, cfg.Storage.ConnectionString)
	default:
		return nil, fmt.Errorf("storage: unknown db_type %q", cfg.Storage.DBType)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.Initialize(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	return backend, nil
}

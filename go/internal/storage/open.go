package storage

import (
	"context"
	"fmt"

	"github.com/mcdev12/astraea/go/internal/dbconfig"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg dbconfig.Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	switch cfg.Driver {
	case dbconfig.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN())
	case dbconfig.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return OpenSQLite(cfg.Path)
	}
}

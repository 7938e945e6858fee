// Package database opens the configured document store.
package database

import (
	"context"
	"fmt"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

func Open(ctx context.Context, cfg *config.AppConfig) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DatabaseMongo:
		return OpenMongo(ctx, cfg.Mongo)
	case config.DatabasePostgres:
		return OpenPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

package mysql

import (
	"context"

	"tagfreq/internal/storage"
)

// newRepository is swapped out by tests.
var newRepository = NewRepository

func init() {
	storage.RegisterBackend("mysql", func(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
	}, CreateTableSQL)
}

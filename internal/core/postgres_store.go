package core

import (
	"context"

	"sbomcore/internal/infra/persistence/postgres"
)

// NewPostgresStore opens a Postgres-backed model store from dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*postgres.Store, error) {
	return postgres.NewStore(ctx, dsn)
}

package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"
)

// StorageDriver identifies a model store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process-local, lost on exit
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Environment variables read by OpenModelStore.
const (
	EnvStorageDriver = "SBOMCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "SBOMCORE_SQLITE_PATH"
	EnvPostgresDSN   = "SBOMCORE_POSTGRES_DSN"
)

// OpenModelStore selects a backend using environment variables. Defaults to
// memory when unset.
//
//	SBOMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	SBOMCORE_SQLITE_PATH: path to sqlite file (default ./sbomcore.db)
//	SBOMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenModelStore(ctx context.Context) (model.Store, error) {
	driver := os.Getenv(EnvStorageDriver)
	if driver == "" {
		driver = string(StorageMemory)
	}
	var location string
	switch StorageDriver(driver) {
	case StorageSQLite:
		location = os.Getenv(EnvSQLitePath)
	case StoragePostgres:
		location = os.Getenv(EnvPostgresDSN)
	}
	return OpenStore(ctx, StorageDriver(driver), location)
}

// OpenStore opens a store of the given driver. location is the sqlite path or
// the postgres DSN and is ignored for memory.
func OpenStore(ctx context.Context, driver StorageDriver, location string) (model.Store, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return NewSQLiteStore(location)
	case StoragePostgres:
		return NewPostgresStore(ctx, location)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// ParseStoreSpec splits "driver[:location]" as used by the CLI, e.g.
// "memory", "sqlite:/tmp/a.db" or "postgres:postgres://host/db".
func ParseStoreSpec(spec string) (StorageDriver, string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("empty store spec")
	}
	driver, location, _ := strings.Cut(spec, ":")
	switch d := StorageDriver(strings.ToLower(driver)); d {
	case StorageMemory, StorageSQLite, StoragePostgres:
		return d, location, nil
	default:
		return "", "", fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases stores that hold resources. Stores without a Close
// method are left alone.
func CloseStore(store model.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

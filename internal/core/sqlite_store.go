package core

import "sbomcore/internal/infra/persistence/sqlite"

// NewSQLiteStore opens a SQLite-backed model store at path (empty for the
// default sbomcore.db).
func NewSQLiteStore(path string) (*sqlite.Store, error) {
	return sqlite.NewStore(path)
}

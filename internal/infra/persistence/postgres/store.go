// Package postgres provides a Postgres-backed model store that mirrors the
// in-memory semantics while snapshotting each document to a JSONB row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies model.Store.
var _ model.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/sbomcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists documents to Postgres while serving reads from memory.
//
// The memory working set is authoritative. When persisting fails the
// mutation stays applied in memory and the call reports
// model.ErrStoreUnavailable; the next successful write to the same document
// stores its full snapshot, including the earlier change.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the documents table exists, and hydrates the
// in-memory working set.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, model.StoreUnavailable(fmt.Errorf("ping postgres: %w", err))
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore()
	if err := loadDocuments(ctx, db, mem); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: mem, db: db}, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		document_uri TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

func loadDocuments(ctx context.Context, db *sql.DB, mem *memory.Store) error {
	rows, err := db.QueryContext(ctx, `SELECT document_uri, payload FROM documents`)
	if err != nil {
		return fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			uri     string
			payload []byte
		)
		if err := rows.Scan(&uri, &payload); err != nil {
			return fmt.Errorf("scan documents: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var snap model.DocumentSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return fmt.Errorf("decode %s: %w", uri, err)
		}
		snap.DocumentURI = uri
		if err := mem.ImportDocument(snap); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, documentURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(s.ExportDocument(documentURI))
	if err != nil {
		return fmt.Errorf("encode %s: %w", documentURI, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents(document_uri,payload) VALUES($1,$2) ON CONFLICT(document_uri) DO UPDATE SET payload=EXCLUDED.payload`, documentURI, data); err != nil {
		return model.StoreUnavailable(fmt.Errorf("upsert %s: %w", documentURI, err))
	}
	if err := tx.Commit(); err != nil {
		return model.StoreUnavailable(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// Create records the element and snapshots the document.
func (s *Store) Create(ctx context.Context, documentURI, id, typ string) error {
	if err := s.Store.Create(ctx, documentURI, id, typ); err != nil {
		return err
	}
	return s.persist(ctx, documentURI)
}

// SetProperty stores the value and snapshots the document.
func (s *Store) SetProperty(ctx context.Context, documentURI, id, name string, value model.Value) error {
	if err := s.Store.SetProperty(ctx, documentURI, id, name, value); err != nil {
		return err
	}
	return s.persist(ctx, documentURI)
}

// RemoveProperty clears the value and snapshots the document.
func (s *Store) RemoveProperty(ctx context.Context, documentURI, id, name string) error {
	if err := s.Store.RemoveProperty(ctx, documentURI, id, name); err != nil {
		return err
	}
	return s.persist(ctx, documentURI)
}

// NextID allocates an id and persists the advanced counter.
func (s *Store) NextID(ctx context.Context, documentURI string, typ model.IDType) (string, error) {
	id, err := s.Store.NextID(ctx, documentURI, typ)
	if err != nil {
		return "", err
	}
	if err := s.persist(ctx, documentURI); err != nil {
		return "", model.AllocationFailed(documentURI, err)
	}
	return id, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

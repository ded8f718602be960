// Package sqlite provides a SQLite-backed model store. The in-memory store is
// the working set; every mutation snapshots the touched document to a single
// table as a JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ model.Store = (*Store)(nil)

// Store persists each document's state to SQLite after every mutation.
//
// The memory working set is authoritative. When persisting fails the
// mutation stays applied in memory and the call reports
// model.ErrStoreUnavailable; the next successful write to the same document
// stores its full snapshot, including the earlier change.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the SQLite database at path and hydrates the
// in-memory working set from it.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "sbomcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		document_uri TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT document_uri, payload FROM documents`)
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
			return fmt.Errorf("scan: %w", err)
		}
		var snap model.DocumentSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return fmt.Errorf("decode document %s: %w", uri, err)
		}
		snap.DocumentURI = uri
		if err := s.ImportDocument(snap); err != nil {
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
		return fmt.Errorf("encode document %s: %w", documentURI, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents(document_uri,payload) VALUES(?,?) ON CONFLICT(document_uri) DO UPDATE SET payload=excluded.payload`, documentURI, data); err != nil {
		return model.StoreUnavailable(fmt.Errorf("upsert %s: %w", documentURI, err))
	}
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

// NextID allocates an id and persists the advanced counter so the id is
// never reissued after a restart.
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

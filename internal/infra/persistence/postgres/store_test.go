package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"sbomcore/internal/infra/persistence/postgres/testutil"
	"sbomcore/pkg/model"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresDocumentsTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS DOCUMENTS") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected documents DDL, got %v", conn.Execs)
	}
}

func TestMutationsPersistDocumentSnapshot(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	const doc = "https://example.com/doc"
	if err := store.Create(ctx, doc, "SPDXRef-1", "GenericElement"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetProperty(ctx, doc, "SPDXRef-1", "name", model.String("pkg")); err != nil {
		t.Fatalf("set: %v", err)
	}
	rows := conn.Tables["documents"]
	if len(rows) != 1 {
		t.Fatalf("expected one upserted document row, got %d", len(rows))
	}
	payload, ok := rows[0]["payload"].([]byte)
	if !ok {
		t.Fatalf("expected []byte payload, got %T", rows[0]["payload"])
	}
	var snap model.DocumentSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(snap.Elements) != 1 || snap.Elements[0].Properties["name"] != model.String("pkg") {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestNewStoreHydratesFromRows(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	snap := model.DocumentSnapshot{
		Elements: []model.ElementSnapshot{{ID: "SPDXRef-7", Type: "GenericElement", Properties: model.PropertyMap{"name": model.String("x")}}},
		Counters: map[string]uint64{model.IDTypeAnonymous.String(): 3},
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Tables["documents"] = []map[string]any{{"document_uri": "urn:doc", "payload": payload}}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(ctx, "ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	typ, ok, err := store.TypeOf(ctx, "urn:doc", "SPDXRef-7")
	if err != nil || !ok || typ != "GenericElement" {
		t.Fatalf("expected hydrated element, got %q %v %v", typ, ok, err)
	}
	id, err := store.NextID(ctx, "urn:doc", model.IDTypeAnonymous)
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != model.AnonymousPrefix+"4" {
		t.Fatalf("expected counter to continue after reload, got %s", id)
	}
}

func TestPersistFailuresSurfaceAsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.FailCommit = true
	err := store.Create(ctx, "urn:doc", "SPDXRef-1", "GenericElement")
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	conn.FailCommit = false
	conn.FailBegin = true
	if _, err := store.NextID(ctx, "urn:doc", model.IDTypeSpdxID); !errors.Is(err, model.ErrAllocationFailed) {
		t.Fatalf("expected allocation failure, got %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected open failure")
	}
}

func TestNewStoreClosesDBOnFailure(t *testing.T) {
	cases := map[string]func(*testutil.StubConn){
		"ping":  func(c *testutil.StubConn) { c.FailPing = true },
		"table": func(c *testutil.StubConn) { c.FailExec = true },
		"load":  func(c *testutil.StubConn) { c.FailTables = map[string]bool{"documents": true} },
	}
	for name, fail := range cases {
		t.Run(name, func(t *testing.T) {
			db, conn := testutil.NewStubDB()
			fail(conn)
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
			defer restore()
			if _, err := NewStore(context.Background(), ""); err == nil {
				t.Fatalf("expected NewStore to fail")
			}
			if err := db.PingContext(context.Background()); err == nil || !strings.Contains(err.Error(), "database is closed") {
				t.Fatalf("expected closed database, got %v", err)
			}
		})
	}
}

func TestFailedPersistIsRepairedByNextWrite(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	const doc = "urn:doc"
	if err := store.Create(ctx, doc, "SPDXRef-1", "GenericElement"); err != nil {
		t.Fatalf("create: %v", err)
	}
	conn.FailCommit = true
	if err := store.SetProperty(ctx, doc, "SPDXRef-1", "name", model.String("pkg")); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	conn.FailCommit = false
	if err := store.SetProperty(ctx, doc, "SPDXRef-1", "comment", model.String("note")); err != nil {
		t.Fatalf("set comment: %v", err)
	}
	rows := conn.Tables["documents"]
	if len(rows) != 1 {
		t.Fatalf("expected one document row, got %d", len(rows))
	}
	payload, _ := rows[0]["payload"].([]byte)
	var snap model.DocumentSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	props := snap.Elements[0].Properties
	if props["name"] != model.String("pkg") || props["comment"] != model.String("note") {
		t.Fatalf("expected both writes in the durable snapshot, got %v", props)
	}
}

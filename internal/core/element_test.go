package core

import (
	"context"
	"errors"
	"testing"

	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"
)

func TestBindCreateTwiceSharesState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, true)
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if !first.Equal(second) || first.Identity() != second.Identity() {
		t.Fatalf("expected equal handles, got %v and %v", first.Identity(), second.Identity())
	}
	if err := first.SetName(ctx, "libfoo"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	name, err := second.Name(ctx)
	if err != nil || name != "libfoo" {
		t.Fatalf("expected shared property state, got %q %v", name, err)
	}
}

func TestTypeIsFixedByKind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	el, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, name := range []string{"type", "name", "comment"} {
		if err := el.SetProperty(ctx, name, model.String("Relationship")); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
		if el.Type() != TypeGenericElement {
			t.Fatalf("type changed to %s after setting %s", el.Type(), name)
		}
	}
}

func TestBindWithoutCreateRequiresElement(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := NewGenericElement(ctx, store, docA, "SPDXRef-404", nil, false); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := NewGenericElement(ctx, store, docA, "", nil, false); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for empty id, got %v", err)
	}
	if _, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, false); err != nil {
		t.Fatalf("bind existing: %v", err)
	}
}

func TestBindConflictingTypeFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := NewGenericElement(ctx, store, docA, "SPDXRef-1", nil, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := NewRelationship(ctx, store, docA, "SPDXRef-1", nil, true)
	if !errors.Is(err, model.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Existing != TypeGenericElement || merr.Type != TypeRelationship {
		t.Fatalf("expected mismatch details, got %#v", err)
	}
	if _, err := NewRelationship(ctx, store, docA, "SPDXRef-1", nil, false); !errors.Is(err, model.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch on bind, got %v", err)
	}
}

func TestBindAllocatesAnonymousID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	a, err := NewGenericElement(ctx, store, docA, "", nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := NewGenericElement(ctx, store, docA, "", nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !model.IsAnonymousID(a.ID()) || a.ID() == b.ID() || a.Equal(b) {
		t.Fatalf("expected distinct anonymous ids, got %s and %s", a.ID(), b.ID())
	}
}

func TestBindNilStore(t *testing.T) {
	if _, err := NewGenericElement(context.Background(), nil, docA, "x", nil, true); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestElementPropertiesAndReferences(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pkg, err := NewGenericElement(ctx, store, docA, "SPDXRef-pkg", nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rel, err := NewRelationship(ctx, store, docA, "SPDXRef-rel", nil, true)
	if err != nil {
		t.Fatalf("create rel: %v", err)
	}
	if err := rel.SetRelationshipType(ctx, "DESCRIBES"); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if err := rel.SetRelatedElement(ctx, pkg); err != nil {
		t.Fatalf("set related: %v", err)
	}
	related, ok, err := rel.RelatedElement(ctx)
	if err != nil || !ok {
		t.Fatalf("related: %v %v", ok, err)
	}
	if _, isGeneric := related.(*GenericElement); !isGeneric || !related.Equal(pkg) {
		t.Fatalf("expected related GenericElement, got %T %v", related, related.Identity())
	}
	if typ, err := rel.RelationshipType(ctx); err != nil || typ != "DESCRIBES" {
		t.Fatalf("unexpected relationship type %q %v", typ, err)
	}

	if err := pkg.AddElementToList(ctx, "relationships", rel); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pkg.AddElementToList(ctx, "relationships", pkg); err != nil {
		t.Fatalf("add self: %v", err)
	}
	list, err := pkg.GetElementList(ctx, "relationships")
	if err != nil || len(list) != 2 || !list[0].Equal(rel) || !list[1].Equal(pkg) {
		t.Fatalf("unexpected list %v %v", list, err)
	}

	if err := pkg.SetProperty(ctx, "filesAnalyzed", model.Bool(true)); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if v, ok, err := pkg.GetBoolProperty(ctx, "filesAnalyzed"); err != nil || !ok || !v {
		t.Fatalf("unexpected bool %v %v %v", v, ok, err)
	}
	if _, _, err := pkg.GetStringProperty(ctx, "filesAnalyzed"); err == nil {
		t.Fatalf("expected variant mismatch error")
	}
	if _, _, err := pkg.GetElementProperty(ctx, "filesAnalyzed"); err == nil {
		t.Fatalf("expected non-reference error")
	}
	if err := pkg.SetElementProperty(ctx, "filesAnalyzed", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	names, err := pkg.PropertyNames(ctx)
	if err != nil || len(names) != 1 || names[0] != "relationships" {
		t.Fatalf("unexpected property names %v %v", names, err)
	}
}

func TestSetElementPropertyAcrossStores(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	dst := memory.NewStore()
	foreign, err := NewGenericElement(ctx, src, docA, "SPDXRef-foreign", nil, true)
	if err != nil {
		t.Fatalf("create foreign: %v", err)
	}
	if err := foreign.SetName(ctx, "upstream"); err != nil {
		t.Fatalf("set name: %v", err)
	}

	bare, err := NewGenericElement(ctx, dst, docB, "SPDXRef-local", nil, true)
	if err != nil {
		t.Fatalf("create local: %v", err)
	}
	if err := bare.SetElementProperty(ctx, "dependsOn", foreign); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected failure without copy manager, got %v", err)
	}

	local, err := NewGenericElement(ctx, dst, docB, "SPDXRef-local", NewCopyManager(), false)
	if err != nil {
		t.Fatalf("bind local: %v", err)
	}
	if err := local.SetElementProperty(ctx, "dependsOn", foreign); err != nil {
		t.Fatalf("set cross-store: %v", err)
	}
	dep, ok, err := local.GetElementProperty(ctx, "dependsOn")
	if err != nil || !ok {
		t.Fatalf("get dependsOn: %v %v", ok, err)
	}
	if dep.Store() != dst || dep.DocumentURI() != docB {
		t.Fatalf("expected reference into local store, got %v", dep.Identity())
	}
	name, err := dep.(*GenericElement).Name(ctx)
	if err != nil || name != "upstream" {
		t.Fatalf("expected copied name, got %q %v", name, err)
	}
}

func TestResolveUsesStoredType(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := NewRelationship(ctx, store, docA, "SPDXRef-r", nil, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	el, err := Resolve(ctx, store, docA, model.ElementInfo{ID: "SPDXRef-r"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := el.(*Relationship); !ok || el.Type() != TypeRelationship {
		t.Fatalf("expected relationship, got %T", el)
	}
	if _, err := Resolve(ctx, store, docA, model.ElementInfo{ID: "missing"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Create(ctx, docA, "SPDXRef-x", "SpdxFile"); err != nil {
		t.Fatalf("create raw: %v", err)
	}
	if _, err := Resolve(ctx, store, docA, model.ElementInfo{ID: "SPDXRef-x"}); err == nil {
		t.Fatalf("expected unknown type error")
	}
	if _, ok := KindOf("SpdxFile"); ok {
		t.Fatalf("unexpected kind for SpdxFile")
	}
	if got := KnownTypes(); len(got) != 4 {
		t.Fatalf("unexpected kinds %v", got)
	}
}

func TestShorthandConstructorsUseDefaultStore(t *testing.T) {
	ctx := context.Background()
	ResetDefaultStore()
	if _, err := NewDefaultGenericElement(ctx); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable before init, got %v", err)
	}
	store := useDefaultStore(t)
	el, err := GenericElementWithID(ctx, "SPDXRef-9")
	if err != nil {
		t.Fatalf("with id: %v", err)
	}
	if el.Store() != store || el.DocumentURI() != docA || el.CopyManager() == nil {
		t.Fatalf("expected default scope, got %v", el.Identity())
	}
	anon, err := NewDefaultGenericElement(ctx)
	if err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	if !model.IsAnonymousID(anon.ID()) {
		t.Fatalf("expected anonymous id, got %s", anon.ID())
	}
}

package core

import (
	"context"
	"errors"
	"fmt"

	"sbomcore/pkg/model"
)

// Element is implemented by every typed handle in the closed kind set.
type Element interface {
	Type() string
	ID() string
	DocumentURI() string
	Store() model.Store
	Identity() model.Identity
	Equal(other Element) bool
	Object() *ModelObject
}

// ModelObject is a lightweight handle onto an element owned by a store. It
// caches nothing besides its identity and kind; every property access goes
// to the store.
type ModelObject struct {
	kind   *Kind
	store  model.Store
	doc    string
	id     string
	copier *CopyManager
}

var errNilStore = errors.New("nil model store")

// Bind returns a handle for (store, documentURI, id) with the given kind.
// With create the element is created when missing; an empty id then
// allocates an anonymous one. Without create a missing element is
// NotFound. An existing element recorded under another type is a
// TypeMismatch in both modes.
func Bind(ctx context.Context, store model.Store, documentURI, id string, kind *Kind, copier *CopyManager, create bool) (*ModelObject, error) {
	if store == nil {
		return nil, model.StoreUnavailable(errNilStore)
	}
	if kind == nil {
		return nil, fmt.Errorf("bind %s: nil element kind", id)
	}
	if id == "" {
		if !create {
			return nil, model.NotFound(documentURI, id)
		}
		allocated, err := store.NextID(ctx, documentURI, model.IDTypeAnonymous)
		if err != nil {
			return nil, allocationError(documentURI, err)
		}
		id = allocated
	}
	existing, ok, err := store.TypeOf(ctx, documentURI, id)
	if err != nil {
		return nil, model.StoreUnavailable(err)
	}
	switch {
	case ok && existing != kind.typ:
		return nil, model.TypeMismatch(documentURI, id, kind.typ, existing)
	case !ok && !create:
		return nil, model.NotFound(documentURI, id)
	case !ok:
		if err := store.Create(ctx, documentURI, id, kind.typ); err != nil {
			return nil, model.StoreUnavailable(err)
		}
	}
	return &ModelObject{kind: kind, store: store, doc: documentURI, id: id, copier: copier}, nil
}

func allocationError(documentURI string, err error) error {
	if model.KindOf(err) != "" {
		return err
	}
	return model.AllocationFailed(documentURI, err)
}

// Type returns the kind's type tag. It never reads the store.
func (m *ModelObject) Type() string { return m.kind.typ }

// Kind returns the element kind the handle was bound with.
func (m *ModelObject) Kind() *Kind { return m.kind }

func (m *ModelObject) ID() string          { return m.id }
func (m *ModelObject) DocumentURI() string { return m.doc }
func (m *ModelObject) Store() model.Store  { return m.store }

// CopyManager returns the manager used for cross-store references, if any.
func (m *ModelObject) CopyManager() *CopyManager { return m.copier }

// Object exposes the underlying handle of any Element.
func (m *ModelObject) Object() *ModelObject { return m }

// Identity returns the (store, document, id) triple.
func (m *ModelObject) Identity() model.Identity {
	return model.Identity{Store: m.store, DocumentURI: m.doc, ID: m.id}
}

// Equal compares identities only.
func (m *ModelObject) Equal(other Element) bool {
	if other == nil {
		return false
	}
	o := other.Object()
	if o == nil {
		return false
	}
	return m.Identity().Equal(o.Identity())
}

func (m *ModelObject) String() string {
	return m.kind.typ + "(" + m.Identity().String() + ")"
}

// GetProperty reads name from the store. Constant kinds answer their fixed
// properties without consulting the store.
func (m *ModelObject) GetProperty(ctx context.Context, name string) (model.Value, bool, error) {
	if v, ok := m.kind.fixedProperty(name); ok {
		return v, true, nil
	}
	v, ok, err := m.store.GetProperty(ctx, m.doc, m.id, name)
	if err != nil {
		return nil, false, model.StoreUnavailable(err)
	}
	return v, ok, nil
}

// SetProperty writes value under name.
func (m *ModelObject) SetProperty(ctx context.Context, name string, value model.Value) error {
	if m.kind.immutable() {
		return model.Immutable(m.doc, m.id, m.kind.typ, name)
	}
	if value == nil {
		return m.RemoveProperty(ctx, name)
	}
	return model.StoreUnavailable(m.store.SetProperty(ctx, m.doc, m.id, name, value))
}

// RemoveProperty clears name.
func (m *ModelObject) RemoveProperty(ctx context.Context, name string) error {
	if m.kind.immutable() {
		return model.Immutable(m.doc, m.id, m.kind.typ, name)
	}
	return model.StoreUnavailable(m.store.RemoveProperty(ctx, m.doc, m.id, name))
}

// PropertyNames lists the properties stored on the element.
func (m *ModelObject) PropertyNames(ctx context.Context) ([]string, error) {
	names, err := m.store.PropertyNames(ctx, m.doc, m.id)
	if err != nil {
		return nil, model.StoreUnavailable(err)
	}
	return names, nil
}

// GetStringProperty reads a string property. A value of another variant is
// an error.
func (m *ModelObject) GetStringProperty(ctx context.Context, name string) (string, bool, error) {
	v, ok, err := m.GetProperty(ctx, name)
	if err != nil || !ok {
		return "", false, err
	}
	s, isString := v.(model.String)
	if !isString {
		return "", false, fmt.Errorf("property %s of %s holds %s, not string", name, m.id, v.Kind())
	}
	return string(s), true, nil
}

// GetBoolProperty reads a bool property.
func (m *ModelObject) GetBoolProperty(ctx context.Context, name string) (bool, bool, error) {
	v, ok, err := m.GetProperty(ctx, name)
	if err != nil || !ok {
		return false, false, err
	}
	b, isBool := v.(model.Bool)
	if !isBool {
		return false, false, fmt.Errorf("property %s of %s holds %s, not bool", name, m.id, v.Kind())
	}
	return bool(b), true, nil
}

// GetElementProperty resolves a reference property to a typed handle in the
// same store and document.
func (m *ModelObject) GetElementProperty(ctx context.Context, name string) (Element, bool, error) {
	v, ok, err := m.GetProperty(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	ref, isRef := v.(model.Ref)
	if !isRef {
		return nil, false, fmt.Errorf("property %s of %s holds %s, not an element reference", name, m.id, v.Kind())
	}
	el, err := m.resolveRef(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	return el, true, nil
}

// GetElementList resolves every reference of a list property.
func (m *ModelObject) GetElementList(ctx context.Context, name string) ([]Element, error) {
	v, ok, err := m.GetProperty(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	list, isList := v.(model.List)
	if !isList {
		return nil, fmt.Errorf("property %s of %s holds %s, not a list", name, m.id, v.Kind())
	}
	out := make([]Element, 0, len(list))
	for _, item := range list {
		ref, isRef := item.(model.Ref)
		if !isRef {
			return nil, fmt.Errorf("list %s of %s contains %s", name, m.id, item.Kind())
		}
		el, err := m.resolveRef(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (m *ModelObject) resolveRef(ctx context.Context, ref model.Ref) (Element, error) {
	info := model.ElementInfo{ID: ref.ID, Type: ref.Type}
	return resolve(ctx, m.store, m.doc, info, m.copier)
}

// SetElementProperty stores a reference to el. Elements from another store
// or document are copied in through the handle's copy manager first; without
// one the write fails. A nil element clears the property.
func (m *ModelObject) SetElementProperty(ctx context.Context, name string, el Element) error {
	if m.kind.immutable() {
		return model.Immutable(m.doc, m.id, m.kind.typ, name)
	}
	if el == nil {
		return m.RemoveProperty(ctx, name)
	}
	ref, err := m.localRef(ctx, el)
	if err != nil {
		return err
	}
	return m.SetProperty(ctx, name, ref)
}

// AddElementToList appends a reference to el to the list stored under name.
func (m *ModelObject) AddElementToList(ctx context.Context, name string, el Element) error {
	if m.kind.immutable() {
		return model.Immutable(m.doc, m.id, m.kind.typ, name)
	}
	if el == nil {
		return fmt.Errorf("add nil element to %s of %s", name, m.id)
	}
	ref, err := m.localRef(ctx, el)
	if err != nil {
		return err
	}
	var list model.List
	v, ok, err := m.GetProperty(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		existing, isList := v.(model.List)
		if !isList {
			return fmt.Errorf("property %s of %s holds %s, not a list", name, m.id, v.Kind())
		}
		list = existing
	}
	return m.SetProperty(ctx, name, append(list, ref))
}

func (m *ModelObject) localRef(ctx context.Context, el Element) (model.Ref, error) {
	if el.Store() == m.store && el.DocumentURI() == m.doc {
		return model.Ref{ID: el.ID(), Type: el.Type()}, nil
	}
	if m.copier == nil {
		return model.Ref{}, model.StoreUnavailable(fmt.Errorf("element %s belongs to another store and %s has no copy manager", el.Identity(), m.id))
	}
	copied, err := m.copier.Copy(ctx, el, m.store, m.doc)
	if err != nil {
		return model.Ref{}, err
	}
	return model.Ref{ID: copied.ID(), Type: copied.Type()}, nil
}

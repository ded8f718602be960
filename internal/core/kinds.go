package core

import (
	"context"
	"fmt"
	"sort"

	"sbomcore/pkg/model"
)

// Type tags of the closed element kind set.
const (
	TypeGenericElement         = "GenericElement"
	TypeRelationship           = "Relationship"
	TypeSpdxNoneElement        = "SpdxNoneElement"
	TypeSpdxNoAssertionElement = "SpdxNoAssertionElement"
)

// Well-known property names.
const (
	PropName               = "name"
	PropComment            = "comment"
	PropRelatedSpdxElement = "relatedSpdxElement"
	PropRelationshipType   = "relationshipType"
)

// Kind describes one element variant. The type tag is fixed by the kind and
// never read back from stored data.
type Kind struct {
	typ      string
	constant *constantSpec
	wrap     func(*ModelObject) Element
}

type constantSpec struct {
	name    string
	comment string
	uri     string
}

// Type returns the kind's type tag.
func (k *Kind) Type() string { return k.typ }

// Constant reports whether elements of this kind are fixed singletons.
func (k *Kind) Constant() bool { return k.constant != nil }

func (k *Kind) immutable() bool { return k.constant != nil }

func (k *Kind) fixedProperty(name string) (model.Value, bool) {
	if k.constant == nil {
		return nil, false
	}
	switch name {
	case PropName:
		return model.String(k.constant.name), true
	case PropComment:
		return model.String(k.constant.comment), true
	}
	return nil, false
}

var (
	GenericElementKind = &Kind{
		typ:  TypeGenericElement,
		wrap: func(m *ModelObject) Element { return &GenericElement{ModelObject: m} },
	}
	RelationshipKind = &Kind{
		typ:  TypeRelationship,
		wrap: func(m *ModelObject) Element { return &Relationship{ModelObject: m} },
	}
	NoneKind = &Kind{
		typ: TypeSpdxNoneElement,
		constant: &constantSpec{
			name:    NoneName,
			comment: "This is a NONE element which represents that NO element is related",
			uri:     NoneURI,
		},
		wrap: func(m *ModelObject) Element { return &ConstantElement{ModelObject: m} },
	}
	NoAssertionKind = &Kind{
		typ: TypeSpdxNoAssertionElement,
		constant: &constantSpec{
			name:    NoAssertionName,
			comment: "This is a NOASSERTION element which indicate no assertion is made whether an element is related to this element",
			uri:     NoAssertionURI,
		},
		wrap: func(m *ModelObject) Element { return &ConstantElement{ModelObject: m} },
	}
)

var kinds = map[string]*Kind{
	TypeGenericElement:         GenericElementKind,
	TypeRelationship:           RelationshipKind,
	TypeSpdxNoneElement:        NoneKind,
	TypeSpdxNoAssertionElement: NoAssertionKind,
}

// KindOf looks up the kind registered for a type tag.
func KindOf(typeTag string) (*Kind, bool) {
	k, ok := kinds[typeTag]
	return k, ok
}

// KnownTypes lists every registered type tag, sorted.
func KnownTypes() []string {
	out := make([]string, 0, len(kinds))
	for typ := range kinds {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Resolve binds an existing element to the typed handle of its kind. An
// empty info.Type is looked up in the store.
func Resolve(ctx context.Context, store model.Store, documentURI string, info model.ElementInfo) (Element, error) {
	return resolve(ctx, store, documentURI, info, nil)
}

func resolve(ctx context.Context, store model.Store, documentURI string, info model.ElementInfo, copier *CopyManager) (Element, error) {
	if store == nil {
		return nil, model.StoreUnavailable(errNilStore)
	}
	typ := info.Type
	if typ == "" {
		stored, ok, err := store.TypeOf(ctx, documentURI, info.ID)
		if err != nil {
			return nil, model.StoreUnavailable(err)
		}
		if !ok {
			return nil, model.NotFound(documentURI, info.ID)
		}
		typ = stored
	}
	kind, ok := KindOf(typ)
	if !ok {
		return nil, fmt.Errorf("resolve %s: unknown element type %q", info.ID, typ)
	}
	obj, err := Bind(ctx, store, documentURI, info.ID, kind, copier, false)
	if err != nil {
		return nil, err
	}
	return kind.wrap(obj), nil
}

// GenericElement is a plain named element.
type GenericElement struct {
	*ModelObject
}

// NewGenericElement binds or creates a GenericElement.
func NewGenericElement(ctx context.Context, store model.Store, documentURI, id string, copier *CopyManager, create bool) (*GenericElement, error) {
	obj, err := Bind(ctx, store, documentURI, id, GenericElementKind, copier, create)
	if err != nil {
		return nil, err
	}
	return &GenericElement{ModelObject: obj}, nil
}

// GenericElementWithID creates (or binds) id in the default store.
func GenericElementWithID(ctx context.Context, id string) (*GenericElement, error) {
	store, doc, copier, err := DefaultStore()
	if err != nil {
		return nil, err
	}
	return NewGenericElement(ctx, store, doc, id, copier, true)
}

// NewDefaultGenericElement creates a GenericElement with an anonymous id in
// the default store.
func NewDefaultGenericElement(ctx context.Context) (*GenericElement, error) {
	return GenericElementWithID(ctx, "")
}

// Name returns the element name, or "" when unset.
func (g *GenericElement) Name(ctx context.Context) (string, error) {
	name, _, err := g.GetStringProperty(ctx, PropName)
	return name, err
}

// SetName stores the element name.
func (g *GenericElement) SetName(ctx context.Context, name string) error {
	return g.SetProperty(ctx, PropName, model.String(name))
}

// Comment returns the element comment, or "" when unset.
func (g *GenericElement) Comment(ctx context.Context) (string, error) {
	comment, _, err := g.GetStringProperty(ctx, PropComment)
	return comment, err
}

// SetComment stores the element comment.
func (g *GenericElement) SetComment(ctx context.Context, comment string) error {
	return g.SetProperty(ctx, PropComment, model.String(comment))
}

// Relationship links its owner to a related element.
type Relationship struct {
	*ModelObject
}

// NewRelationship binds or creates a Relationship.
func NewRelationship(ctx context.Context, store model.Store, documentURI, id string, copier *CopyManager, create bool) (*Relationship, error) {
	obj, err := Bind(ctx, store, documentURI, id, RelationshipKind, copier, create)
	if err != nil {
		return nil, err
	}
	return &Relationship{ModelObject: obj}, nil
}

// RelatedElement resolves the related element, if set.
func (r *Relationship) RelatedElement(ctx context.Context) (Element, bool, error) {
	return r.GetElementProperty(ctx, PropRelatedSpdxElement)
}

// SetRelatedElement points the relationship at el.
func (r *Relationship) SetRelatedElement(ctx context.Context, el Element) error {
	return r.SetElementProperty(ctx, PropRelatedSpdxElement, el)
}

// RelationshipType returns the relationship type, e.g. DESCRIBES.
func (r *Relationship) RelationshipType(ctx context.Context) (string, error) {
	typ, _, err := r.GetStringProperty(ctx, PropRelationshipType)
	return typ, err
}

// SetRelationshipType stores the relationship type.
func (r *Relationship) SetRelationshipType(ctx context.Context, typ string) error {
	return r.SetProperty(ctx, PropRelationshipType, model.String(typ))
}

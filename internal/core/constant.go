package core

import (
	"context"

	"sbomcore/pkg/model"
)

// Canonical names and individual URIs of the two singletons.
const (
	NoneName        = "NONE"
	NoAssertionName = "NOASSERTION"
	NoneURI         = "http://spdx.org/rdf/terms#none"
	NoAssertionURI  = "http://spdx.org/rdf/terms#noassertion"
)

// ConstantElement is one of the NONE / NOASSERTION singletons. Its name,
// comment and URI are fixed by its kind; every mutation fails with
// ErrImmutable.
type ConstantElement struct {
	*ModelObject
}

func newConstant(ctx context.Context, store model.Store, documentURI, id string, kind *Kind, copier *CopyManager) (*ConstantElement, error) {
	obj, err := Bind(ctx, store, documentURI, id, kind, copier, true)
	if err != nil {
		return nil, err
	}
	return &ConstantElement{ModelObject: obj}, nil
}

func defaultConstant(ctx context.Context, kind *Kind) (*ConstantElement, error) {
	store, doc, copier, err := DefaultStore()
	if err != nil {
		return nil, err
	}
	return newConstant(ctx, store, doc, kind.constant.name, kind, copier)
}

// DefaultNoneElement returns NONE in the default store, under the literal id
// "NONE".
func DefaultNoneElement(ctx context.Context) (*ConstantElement, error) {
	return defaultConstant(ctx, NoneKind)
}

// DefaultNoAssertionElement returns NOASSERTION in the default store, under
// the literal id "NOASSERTION".
func DefaultNoAssertionElement(ctx context.Context) (*ConstantElement, error) {
	return defaultConstant(ctx, NoAssertionKind)
}

// NewNoneElement creates a NONE element with a fresh anonymous id.
func NewNoneElement(ctx context.Context, store model.Store, documentURI string) (*ConstantElement, error) {
	return newConstant(ctx, store, documentURI, "", NoneKind, nil)
}

// NewNoAssertionElement creates a NOASSERTION element with a fresh anonymous id.
func NewNoAssertionElement(ctx context.Context, store model.Store, documentURI string) (*ConstantElement, error) {
	return newConstant(ctx, store, documentURI, "", NoAssertionKind, nil)
}

func (c *ConstantElement) Name() string          { return c.kind.constant.name }
func (c *ConstantElement) Comment() string       { return c.kind.constant.comment }
func (c *ConstantElement) IndividualURI() string { return c.kind.constant.uri }
func (c *ConstantElement) String() string        { return c.kind.constant.name }

// IsConstant reports whether el is a singleton.
func IsConstant(el Element) bool {
	if el == nil || el.Object() == nil {
		return false
	}
	return el.Object().kind.Constant()
}

// SameIndividual reports whether a and b are the same singleton, regardless
// of the store or id they live under.
func SameIndividual(a, b Element) bool {
	if !IsConstant(a) || !IsConstant(b) {
		return false
	}
	return a.Object().kind.constant.uri == b.Object().kind.constant.uri
}

// IndividualURI returns el's canonical URI when it is a singleton.
func IndividualURI(el Element) (string, bool) {
	if !IsConstant(el) {
		return "", false
	}
	return el.Object().kind.constant.uri, true
}

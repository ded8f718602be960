// Package model defines the contract between SPDX model objects and the
// storage backends that own their state.
package model

import (
	"context"
	"fmt"
	"strings"
)

// IDType selects the flavor of identifier a store allocates.
type IDType int

const (
	// IDTypeAnonymous ids have no external meaning and are never reissued.
	IDTypeAnonymous IDType = iota
	// IDTypeSpdxID ids take the form SPDXRef-<n>.
	IDTypeSpdxID
	// IDTypeLicenseRef ids take the form LicenseRef-<n>.
	IDTypeLicenseRef
	// IDTypeDocumentRef ids take the form DocumentRef-<n>.
	IDTypeDocumentRef
)

// Id prefixes used by stores when allocating.
const (
	AnonymousPrefix   = "__anon__"
	SpdxIDPrefix      = "SPDXRef-"
	LicenseRefPrefix  = "LicenseRef-"
	DocumentRefPrefix = "DocumentRef-"
)

// Scoped reports whether ids of this type are meaningful within a document.
func (t IDType) Scoped() bool { return t != IDTypeAnonymous }

// Prefix returns the literal prefix of ids of this type.
func (t IDType) Prefix() string {
	switch t {
	case IDTypeAnonymous:
		return AnonymousPrefix
	case IDTypeSpdxID:
		return SpdxIDPrefix
	case IDTypeLicenseRef:
		return LicenseRefPrefix
	case IDTypeDocumentRef:
		return DocumentRefPrefix
	default:
		return ""
	}
}

// Valid reports whether t is one of the known id types.
func (t IDType) Valid() bool { return t.Prefix() != "" }

func (t IDType) String() string {
	switch t {
	case IDTypeAnonymous:
		return "anonymous"
	case IDTypeSpdxID:
		return "spdx-id"
	case IDTypeLicenseRef:
		return "license-ref"
	case IDTypeDocumentRef:
		return "document-ref"
	default:
		return fmt.Sprintf("IDType(%d)", int(t))
	}
}

// IsAnonymousID reports whether id was issued as an anonymous id.
func IsAnonymousID(id string) bool { return strings.HasPrefix(id, AnonymousPrefix) }

// IDTypeOf infers the flavor of an existing id from its prefix. Ids without a
// known prefix are treated as SPDX ids.
func IDTypeOf(id string) IDType {
	switch {
	case IsAnonymousID(id):
		return IDTypeAnonymous
	case strings.HasPrefix(id, LicenseRefPrefix):
		return IDTypeLicenseRef
	case strings.HasPrefix(id, DocumentRefPrefix):
		return IDTypeDocumentRef
	default:
		return IDTypeSpdxID
	}
}

// ElementInfo names a stored element and its recorded type.
type ElementInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Store is the single source of truth for element existence and property
// values, keyed by (document URI, element id, property name).
//
// Implementations must be pointer types so that Identity values stay
// comparable. Concurrency guarantees are implementation specific.
type Store interface {
	// Exists reports whether an element with id exists in the document.
	Exists(ctx context.Context, documentURI, id string) (bool, error)
	// TypeOf returns the recorded type of an element.
	TypeOf(ctx context.Context, documentURI, id string) (string, bool, error)
	// Create records a new element. Creating an existing id with the same
	// type is a no-op; a different type fails with ErrAlreadyExists.
	Create(ctx context.Context, documentURI, id, typ string) error
	// GetProperty returns the value stored under name, if any.
	GetProperty(ctx context.Context, documentURI, id, name string) (Value, bool, error)
	// SetProperty stores value under name, replacing any previous value.
	SetProperty(ctx context.Context, documentURI, id, name string, value Value) error
	// RemoveProperty clears name. Removing an absent property is not an error.
	RemoveProperty(ctx context.Context, documentURI, id, name string) error
	// PropertyNames lists the names of properties set on the element, sorted.
	PropertyNames(ctx context.Context, documentURI, id string) ([]string, error)
	// NextID allocates a fresh id of the requested type.
	NextID(ctx context.Context, documentURI string, typ IDType) (string, error)
	// Elements lists every element of the document ordered by id.
	Elements(ctx context.Context, documentURI string) ([]ElementInfo, error)
}

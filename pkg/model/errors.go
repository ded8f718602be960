package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced by stores and model objects.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindTypeMismatch     ErrorKind = "type_mismatch"
	KindImmutable        ErrorKind = "immutable"
	KindAllocationFailed ErrorKind = "allocation_failed"
	KindStoreUnavailable ErrorKind = "store_unavailable"
)

// Sentinels for errors.Is. ErrAlreadyExists and ErrTypeMismatch describe the
// same condition: an id already taken under a different type.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTypeMismatch     = &Error{Kind: KindTypeMismatch}
	ErrAlreadyExists    = ErrTypeMismatch
	ErrImmutable        = &Error{Kind: KindImmutable}
	ErrAllocationFailed = &Error{Kind: KindAllocationFailed}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

// Error carries the element coordinates alongside the failure kind.
type Error struct {
	Kind        ErrorKind
	DocumentURI string
	ID          string
	// Type is the type involved in the failure; for mismatches it is the
	// requested type and Existing holds the recorded one.
	Type     string
	Existing string
	Property string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("model: ")
	switch e.Kind {
	case KindNotFound:
		b.WriteString("element not found")
	case KindTypeMismatch:
		b.WriteString("element already exists with a different type")
	case KindImmutable:
		b.WriteString("element is immutable")
	case KindAllocationFailed:
		b.WriteString("id allocation failed")
	case KindStoreUnavailable:
		b.WriteString("store unavailable")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " id=%q", e.ID)
	}
	if e.DocumentURI != "" {
		fmt.Fprintf(&b, " doc=%q", e.DocumentURI)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Existing != "" {
		fmt.Fprintf(&b, " existing=%s", e.Existing)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, " property=%s", e.Property)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same kind, so callers can test against the
// package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound builds a KindNotFound error.
func NotFound(documentURI, id string) error {
	return &Error{Kind: KindNotFound, DocumentURI: documentURI, ID: id}
}

// TypeMismatch builds a KindTypeMismatch error.
func TypeMismatch(documentURI, id, requested, existing string) error {
	return &Error{Kind: KindTypeMismatch, DocumentURI: documentURI, ID: id, Type: requested, Existing: existing}
}

// Immutable builds a KindImmutable error for a write to property.
func Immutable(documentURI, id, typ, property string) error {
	return &Error{Kind: KindImmutable, DocumentURI: documentURI, ID: id, Type: typ, Property: property}
}

// AllocationFailed wraps cause as a KindAllocationFailed error.
func AllocationFailed(documentURI string, cause error) error {
	return &Error{Kind: KindAllocationFailed, DocumentURI: documentURI, Err: cause}
}

// StoreUnavailable wraps cause as a KindStoreUnavailable error. Errors that
// already carry a kind are returned unchanged.
func StoreUnavailable(cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: KindStoreUnavailable, Err: cause}
}

// KindOf returns the kind carried by err, or "" when err is not a model error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

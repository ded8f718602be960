// Package memory provides an in-memory implementation of the model store used
// for tests, ephemeral environments, and as the working set of the durable
// snapshotting stores.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"sbomcore/pkg/model"
)

// Compile-time contract assertion ensuring memory.Store adheres to model.Store.
var _ model.Store = (*Store)(nil)

type element struct {
	typ   string
	props map[string]model.Value
}

type document struct {
	elements map[string]*element
	counters map[model.IDType]uint64
}

func newDocument() *document {
	return &document{
		elements: make(map[string]*element),
		counters: make(map[model.IDType]uint64),
	}
}

// Store keeps every document in process memory guarded by a single RWMutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*document
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*document)}
}

func (s *Store) doc(documentURI string) *document {
	d, ok := s.docs[documentURI]
	if !ok {
		d = newDocument()
		s.docs[documentURI] = d
	}
	return d
}

func (s *Store) lookup(documentURI, id string) (*element, bool) {
	d, ok := s.docs[documentURI]
	if !ok {
		return nil, false
	}
	el, ok := d.elements[id]
	return el, ok
}

// Exists reports whether the element is present.
func (s *Store) Exists(_ context.Context, documentURI, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(documentURI, id)
	return ok, nil
}

// TypeOf returns the recorded element type.
func (s *Store) TypeOf(_ context.Context, documentURI, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.lookup(documentURI, id)
	if !ok {
		return "", false, nil
	}
	return el.typ, true, nil
}

// Create records an element; idempotent for an identical type.
func (s *Store) Create(_ context.Context, documentURI, id, typ string) error {
	if id == "" {
		return fmt.Errorf("memory store: create: empty id")
	}
	if typ == "" {
		return fmt.Errorf("memory store: create %s: empty type", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(documentURI)
	if el, ok := d.elements[id]; ok {
		if el.typ != typ {
			return model.TypeMismatch(documentURI, id, typ, el.typ)
		}
		return nil
	}
	d.elements[id] = &element{typ: typ, props: make(map[string]model.Value)}
	return nil
}

// GetProperty returns a copy of the stored value.
func (s *Store) GetProperty(_ context.Context, documentURI, id, name string) (model.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.lookup(documentURI, id)
	if !ok {
		return nil, false, model.NotFound(documentURI, id)
	}
	v, ok := el.props[name]
	if !ok {
		return nil, false, nil
	}
	return model.CloneValue(v), true, nil
}

// SetProperty stores a copy of value.
func (s *Store) SetProperty(_ context.Context, documentURI, id, name string, value model.Value) error {
	if value == nil {
		return fmt.Errorf("memory store: set %s on %s: nil value", name, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.lookup(documentURI, id)
	if !ok {
		return model.NotFound(documentURI, id)
	}
	el.props[name] = model.CloneValue(value)
	return nil
}

// RemoveProperty deletes name from the element.
func (s *Store) RemoveProperty(_ context.Context, documentURI, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.lookup(documentURI, id)
	if !ok {
		return model.NotFound(documentURI, id)
	}
	delete(el.props, name)
	return nil
}

// PropertyNames lists property names in ascending order.
func (s *Store) PropertyNames(_ context.Context, documentURI, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.lookup(documentURI, id)
	if !ok {
		return nil, model.NotFound(documentURI, id)
	}
	names := make([]string, 0, len(el.props))
	for name := range el.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// NextID allocates an id that was never issued for the document. Counters
// only move forward, and ids registered explicitly through Create are skipped.
func (s *Store) NextID(_ context.Context, documentURI string, typ model.IDType) (string, error) {
	if !typ.Valid() {
		return "", model.AllocationFailed(documentURI, fmt.Errorf("unknown id type %s", typ))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(documentURI)
	for {
		n := d.counters[typ]
		if n == math.MaxUint64 {
			return "", model.AllocationFailed(documentURI, fmt.Errorf("%s ids exhausted", typ))
		}
		n++
		d.counters[typ] = n
		id := typ.Prefix() + strconv.FormatUint(n, 10)
		if _, taken := d.elements[id]; !taken {
			return id, nil
		}
	}
}

// Elements lists the document's elements ordered by id.
func (s *Store) Elements(_ context.Context, documentURI string) ([]model.ElementInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[documentURI]
	if !ok {
		return nil, nil
	}
	out := make([]model.ElementInfo, 0, len(d.elements))
	for id, el := range d.elements {
		out = append(out, model.ElementInfo{ID: id, Type: el.typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Documents lists the document URIs known to the store.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// ExportDocument clones one document into its portable form.
func (s *Store) ExportDocument(documentURI string) model.DocumentSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := model.DocumentSnapshot{DocumentURI: documentURI, Elements: []model.ElementSnapshot{}}
	d, ok := s.docs[documentURI]
	if !ok {
		return snap
	}
	for id, el := range d.elements {
		props := make(model.PropertyMap, len(el.props))
		for name, v := range el.props {
			props[name] = model.CloneValue(v)
		}
		snap.Elements = append(snap.Elements, model.ElementSnapshot{ID: id, Type: el.typ, Properties: props})
	}
	sort.Slice(snap.Elements, func(i, j int) bool { return snap.Elements[i].ID < snap.Elements[j].ID })
	if len(d.counters) > 0 {
		snap.Counters = make(map[string]uint64, len(d.counters))
		for typ, n := range d.counters {
			snap.Counters[typ.String()] = n
		}
	}
	return snap
}

// ImportDocument replaces one document with the snapshot contents.
func (s *Store) ImportDocument(snap model.DocumentSnapshot) error {
	d := newDocument()
	for _, es := range snap.Elements {
		if es.ID == "" || es.Type == "" {
			return fmt.Errorf("memory store: import %s: element with empty id or type", snap.DocumentURI)
		}
		if _, dup := d.elements[es.ID]; dup {
			return fmt.Errorf("memory store: import %s: duplicate element %s", snap.DocumentURI, es.ID)
		}
		props := make(map[string]model.Value, len(es.Properties))
		for name, v := range es.Properties {
			props[name] = model.CloneValue(v)
		}
		d.elements[es.ID] = &element{typ: es.Type, props: props}
	}
	for name, n := range snap.Counters {
		typ, ok := parseIDType(name)
		if !ok {
			return fmt.Errorf("memory store: import %s: unknown counter %q", snap.DocumentURI, name)
		}
		d.counters[typ] = n
	}
	s.mu.Lock()
	s.docs[snap.DocumentURI] = d
	s.mu.Unlock()
	return nil
}

func parseIDType(name string) (model.IDType, bool) {
	for _, typ := range []model.IDType{model.IDTypeAnonymous, model.IDTypeSpdxID, model.IDTypeLicenseRef, model.IDTypeDocumentRef} {
		if typ.String() == name {
			return typ, true
		}
	}
	return 0, false
}

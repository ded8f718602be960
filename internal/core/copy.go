package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sbomcore/pkg/model"
)

// CopyManager copies element graphs between stores. It remembers every
// (source identity, destination store, destination document) it has copied
// and returns the same destination element on repeat requests.
//
// A CopyManager is not safe for concurrent use; callers copying overlapping
// graphs from several goroutines must synchronise access themselves.
//
// A failed copy is not rolled back: elements created before the failure stay
// in the destination store, but the manager records none of them, so a retry
// copies the graph again.
type CopyManager struct {
	copied    map[copyKey]string
	constants map[constantKey]string
	logger    zerolog.Logger
	metrics   MetricsRecorder
	tracer    Tracer
}

type copyKey struct {
	src    model.Identity
	dst    model.Store
	dstDoc string
}

type constantKey struct {
	uri    string
	dst    model.Store
	dstDoc string
}

// CopyOption configures a CopyManager.
type CopyOption func(*CopyManager)

// WithCopyLogger sets the logger used for copy events.
func WithCopyLogger(logger zerolog.Logger) CopyOption {
	return func(c *CopyManager) { c.logger = logger }
}

// WithCopyMetrics sets the recorder observing each Copy call.
func WithCopyMetrics(metrics MetricsRecorder) CopyOption {
	return func(c *CopyManager) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithCopyTracer sets the tracer spanning each Copy call.
func WithCopyTracer(tracer Tracer) CopyOption {
	return func(c *CopyManager) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewCopyManager returns a manager with an empty copy mapping.
func NewCopyManager(opts ...CopyOption) *CopyManager {
	c := &CopyManager{
		copied:    make(map[copyKey]string),
		constants: make(map[constantKey]string),
		logger:    zerolog.Nop(),
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CopiedID returns the destination id src was copied to, if any.
func (c *CopyManager) CopiedID(src Element, dstStore model.Store, dstDocumentURI string) (string, bool) {
	if src == nil || src.Object() == nil {
		return "", false
	}
	if uri, ok := IndividualURI(src); ok {
		id, found := c.constants[constantKey{uri: uri, dst: dstStore, dstDoc: dstDocumentURI}]
		return id, found
	}
	id, ok := c.copied[copyKey{src: src.Identity(), dst: dstStore, dstDoc: dstDocumentURI}]
	return id, ok
}

// pendingCopy is a destination element whose properties still need copying.
type pendingCopy struct {
	src   *ModelObject
	dstID string
}

// copyRun holds the worklist of a single Copy call. Mappings made during the
// run stay local until every queued element has its properties, so a failed
// run leaves nothing in the manager's copy-once table.
type copyRun struct {
	manager   *CopyManager
	dst       model.Store
	dstDoc    string
	queue     []pendingCopy
	created   int
	copied    map[copyKey]string
	constants map[constantKey]string
}

func newCopyRun(c *CopyManager, dst model.Store, dstDoc string) *copyRun {
	return &copyRun{
		manager:   c,
		dst:       dst,
		dstDoc:    dstDoc,
		copied:    make(map[copyKey]string),
		constants: make(map[constantKey]string),
	}
}

func (r *copyRun) lookup(key copyKey) (string, bool) {
	if id, ok := r.copied[key]; ok {
		return id, true
	}
	id, ok := r.manager.copied[key]
	return id, ok
}

func (r *copyRun) lookupConstant(key constantKey) (string, bool) {
	if id, ok := r.constants[key]; ok {
		return id, true
	}
	id, ok := r.manager.constants[key]
	return id, ok
}

// commit publishes the run's mappings to the manager.
func (r *copyRun) commit() {
	for key, id := range r.copied {
		r.manager.copied[key] = id
	}
	for key, id := range r.constants {
		r.manager.constants[key] = id
	}
}

// Copy returns the element in (dstStore, dstDocumentURI) that represents
// src, copying src and every element reachable through reference properties
// that has not been copied there before. Singletons map onto the
// destination's own NONE / NOASSERTION.
func (c *CopyManager) Copy(ctx context.Context, src Element, dstStore model.Store, dstDocumentURI string) (Element, error) {
	if src == nil || src.Object() == nil {
		return nil, fmt.Errorf("copy: nil source element")
	}
	if dstStore == nil {
		return nil, model.StoreUnavailable(errNilStore)
	}
	var out Element
	run := newCopyRun(c, dstStore, dstDocumentURI)
	err := observe(ctx, c.metrics, c.tracer, OpCopy, func(ctx context.Context) error {
		obj := src.Object()
		dstID, err := run.destination(ctx, obj.store, obj.doc, obj.id, obj.kind)
		if err != nil {
			return err
		}
		if err := run.drain(ctx); err != nil {
			return err
		}
		run.commit()
		dst, err := Bind(ctx, dstStore, dstDocumentURI, dstID, obj.kind, c, false)
		if err != nil {
			return err
		}
		out = obj.kind.wrap(dst)
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).
			Str("source", src.Identity().String()).
			Str("destination_document", dstDocumentURI).
			Int("created", run.created).
			Msg("copy failed; destination may hold a partial copy")
		return nil, err
	}
	c.logger.Debug().
		Str("source", src.Identity().String()).
		Str("destination", out.Identity().String()).
		Int("created", run.created).
		Msg("copied element")
	return out, nil
}

// destination maps a source element to its destination id, creating the
// destination element and queueing its properties when it is new.
func (r *copyRun) destination(ctx context.Context, srcStore model.Store, srcDoc, srcID string, kind *Kind) (string, error) {
	if srcStore == r.dst && srcDoc == r.dstDoc {
		return srcID, nil
	}
	if kind.Constant() {
		return r.constant(ctx, kind)
	}
	src := &ModelObject{kind: kind, store: srcStore, doc: srcDoc, id: srcID}
	key := copyKey{src: src.Identity(), dst: r.dst, dstDoc: r.dstDoc}
	if id, ok := r.lookup(key); ok {
		return id, nil
	}
	dstID, err := r.chooseID(ctx, srcID)
	if err != nil {
		return "", err
	}
	if _, err := Bind(ctx, r.dst, r.dstDoc, dstID, kind, r.manager, true); err != nil {
		return "", err
	}
	r.copied[key] = dstID
	r.created++
	r.queue = append(r.queue, pendingCopy{src: src, dstID: dstID})
	return dstID, nil
}

// chooseID keeps a scoped id unless the destination already uses it.
// Anonymous ids are always reallocated.
func (r *copyRun) chooseID(ctx context.Context, srcID string) (string, error) {
	idType := model.IDTypeOf(srcID)
	if idType.Scoped() {
		taken, err := r.dst.Exists(ctx, r.dstDoc, srcID)
		if err != nil {
			return "", model.StoreUnavailable(err)
		}
		if !taken {
			return srcID, nil
		}
	}
	id, err := r.dst.NextID(ctx, r.dstDoc, idType)
	if err != nil {
		return "", allocationError(r.dstDoc, err)
	}
	return id, nil
}

// constant finds or creates the destination's singleton for kind: one this
// manager already mapped, one already stored in the destination document,
// the literal-name id in the default scope, or a fresh anonymous one.
func (r *copyRun) constant(ctx context.Context, kind *Kind) (string, error) {
	key := constantKey{uri: kind.constant.uri, dst: r.dst, dstDoc: r.dstDoc}
	if id, ok := r.lookupConstant(key); ok {
		return id, nil
	}
	var id string
	if isDefaultScope(r.dst, r.dstDoc) {
		id = kind.constant.name
	} else {
		existing, err := r.dst.Elements(ctx, r.dstDoc)
		if err != nil {
			return "", model.StoreUnavailable(err)
		}
		for _, info := range existing {
			if info.Type == kind.typ {
				id = info.ID
				break
			}
		}
	}
	created := id == ""
	obj, err := Bind(ctx, r.dst, r.dstDoc, id, kind, r.manager, true)
	if err != nil {
		return "", err
	}
	if created {
		r.created++
	}
	r.constants[key] = obj.id
	return obj.id, nil
}

func (r *copyRun) drain(ctx context.Context) error {
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		if err := r.copyProperties(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (r *copyRun) copyProperties(ctx context.Context, p pendingCopy) error {
	names, err := p.src.PropertyNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		v, ok, err := p.src.GetProperty(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		mapped, err := r.mapValue(ctx, p.src, v)
		if err != nil {
			return fmt.Errorf("copy %s property %s: %w", p.src.Identity(), name, err)
		}
		if err := r.dst.SetProperty(ctx, r.dstDoc, p.dstID, name, mapped); err != nil {
			return model.StoreUnavailable(err)
		}
	}
	return nil
}

// mapValue rewrites references to destination ids; scalars are cloned.
func (r *copyRun) mapValue(ctx context.Context, owner *ModelObject, v model.Value) (model.Value, error) {
	switch val := v.(type) {
	case model.Ref:
		typ := val.Type
		if typ == "" {
			stored, ok, err := owner.store.TypeOf(ctx, owner.doc, val.ID)
			if err != nil {
				return nil, model.StoreUnavailable(err)
			}
			if !ok {
				return nil, model.NotFound(owner.doc, val.ID)
			}
			typ = stored
		}
		kind, ok := KindOf(typ)
		if !ok {
			return nil, fmt.Errorf("reference %s has unknown element type %q", val.ID, typ)
		}
		id, err := r.destination(ctx, owner.store, owner.doc, val.ID, kind)
		if err != nil {
			return nil, err
		}
		return model.Ref{ID: id, Type: typ}, nil
	case model.List:
		out := make(model.List, len(val))
		for i, item := range val {
			mapped, err := r.mapValue(ctx, owner, item)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
		}
		return out, nil
	default:
		return model.CloneValue(v), nil
	}
}

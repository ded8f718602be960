package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"
)

func TestCopyEndToEndMapsNoneSingleton(t *testing.T) {
	ctx := context.Background()
	m := memory.NewStore()
	n := memory.NewStore()

	e1, err := NewGenericElement(ctx, m, docA, "S1", nil, true)
	require.NoError(t, err)
	none, err := NewNoneElement(ctx, m, docA)
	require.NoError(t, err)
	require.NoError(t, e1.SetElementProperty(ctx, "relatedTo", none))

	copier := NewCopyManager()
	copied, err := copier.Copy(ctx, e1, n, "doc2")
	require.NoError(t, err)
	assert.Equal(t, TypeGenericElement, copied.Type())
	assert.Equal(t, "S1", copied.ID())
	assert.Equal(t, "doc2", copied.DocumentURI())
	assert.True(t, copied.Store() == n)

	related, ok, err := copied.Object().GetElementProperty(ctx, "relatedTo")
	require.NoError(t, err)
	require.True(t, ok)
	constant, isConstant := related.(*ConstantElement)
	require.True(t, isConstant, "expected constant, got %T", related)
	assert.Equal(t, NoneName, constant.Name())
	assert.Equal(t, noneComment, constant.Comment())
	assert.True(t, constant.Store() == n)
	assert.False(t, constant.Equal(none))
	assert.True(t, SameIndividual(constant, none))
}

func TestCopyRenamesCollidingScopedID(t *testing.T) {
	ctx := context.Background()
	m := memory.NewStore()
	n := memory.NewStore()
	e1, err := NewGenericElement(ctx, m, docA, "S1", nil, true)
	require.NoError(t, err)
	_, err = NewGenericElement(ctx, n, "doc2", "S1", nil, true)
	require.NoError(t, err)

	copied, err := NewCopyManager().Copy(ctx, e1, n, "doc2")
	require.NoError(t, err)
	assert.NotEqual(t, "S1", copied.ID())
	assert.True(t, strings.HasPrefix(copied.ID(), model.SpdxIDPrefix), copied.ID())
	assert.Equal(t, TypeGenericElement, copied.Type())
}

func TestCopyReallocatesAnonymousIDs(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	dst := memory.NewStore()
	for i := 0; i < 3; i++ {
		_, err := NewGenericElement(ctx, dst, docB, "", nil, true)
		require.NoError(t, err)
	}
	anon, err := NewGenericElement(ctx, src, docA, "", nil, true)
	require.NoError(t, err)
	copied, err := NewCopyManager().Copy(ctx, anon, dst, docB)
	require.NoError(t, err)
	assert.True(t, model.IsAnonymousID(copied.ID()))
	infos, err := dst.Elements(ctx, docB)
	require.NoError(t, err)
	assert.Len(t, infos, 4)
}

func TestCopyIsIdempotentPerManager(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	dst := memory.NewStore()
	el, err := NewGenericElement(ctx, src, docA, "", nil, true)
	require.NoError(t, err)
	require.NoError(t, el.SetName(ctx, "shared"))

	copier := NewCopyManager()
	first, err := copier.Copy(ctx, el, dst, docB)
	require.NoError(t, err)
	second, err := copier.Copy(ctx, el, dst, docB)
	require.NoError(t, err)
	assert.Equal(t, first.Identity(), second.Identity())
	id, ok := copier.CopiedID(el, dst, docB)
	assert.True(t, ok)
	assert.Equal(t, first.ID(), id)
	_, ok = copier.CopiedID(el, dst, "other")
	assert.False(t, ok)

	fresh, err := NewCopyManager().Copy(ctx, el, dst, docB)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), fresh.ID(), "a new manager has no memory of earlier copies")
}

func TestCopyCycleProducesMirroredGraph(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	dst := memory.NewStore()
	a, err := NewGenericElement(ctx, src, docA, "SPDXRef-A", nil, true)
	require.NoError(t, err)
	b, err := NewGenericElement(ctx, src, docA, "SPDXRef-B", nil, true)
	require.NoError(t, err)
	require.NoError(t, a.SetElementProperty(ctx, "peer", b))
	require.NoError(t, b.SetElementProperty(ctx, "peer", a))
	require.NoError(t, a.AddElementToList(ctx, "all", a))
	require.NoError(t, a.AddElementToList(ctx, "all", b))

	copier := NewCopyManager()
	aCopy, err := copier.Copy(ctx, a, dst, docB)
	require.NoError(t, err)

	bCopy, ok, err := aCopy.Object().GetElementProperty(ctx, "peer")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, bCopy.Store() == dst)
	assert.Equal(t, "SPDXRef-B", bCopy.ID())

	back, ok, err := bCopy.Object().GetElementProperty(ctx, "peer")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, back.Equal(aCopy))

	all, err := aCopy.Object().GetElementList(ctx, "all")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Equal(aCopy))
	assert.True(t, all[1].Equal(bCopy))

	infos, err := dst.Elements(ctx, docB)
	require.NoError(t, err)
	assert.Len(t, infos, 2, "no duplicate copies of B")

	bAgain, err := copier.Copy(ctx, b, dst, docB)
	require.NoError(t, err)
	assert.True(t, bAgain.Equal(bCopy))
}

func TestCopySingletonMatchesDirectConstruction(t *testing.T) {
	ctx := context.Background()
	x := memory.NewStore()
	y := memory.NewStore()
	none, err := NewNoneElement(ctx, x, docA)
	require.NoError(t, err)

	copied, err := NewCopyManager().Copy(ctx, none, y, docB)
	require.NoError(t, err)
	direct, err := NewNoneElement(ctx, y, docB)
	require.NoError(t, err)

	copiedURI, ok := IndividualURI(copied)
	require.True(t, ok)
	assert.Equal(t, direct.IndividualURI(), copiedURI)
	assert.Equal(t, direct.Name(), copied.(*ConstantElement).Name())
	assert.Equal(t, direct.Comment(), copied.(*ConstantElement).Comment())

	// A second manager reuses the singleton already stored in the destination.
	again, err := NewCopyManager().Copy(ctx, none, y, docB)
	require.NoError(t, err)
	assert.Equal(t, copied.ID(), again.ID())
}

func TestCopySingletonIntoDefaultScopeUsesLiteralID(t *testing.T) {
	ctx := context.Background()
	def := useDefaultStore(t)
	src := memory.NewStore()
	noAssert, err := NewNoAssertionElement(ctx, src, docB)
	require.NoError(t, err)
	copied, err := NewCopyManager().Copy(ctx, noAssert, def, docA)
	require.NoError(t, err)
	assert.Equal(t, NoAssertionName, copied.ID())
	direct, err := DefaultNoAssertionElement(ctx)
	require.NoError(t, err)
	assert.True(t, direct.Equal(copied))
}

func TestCopyTypeMismatchLeavesPartialCopy(t *testing.T) {
	ctx := context.Background()
	def := useDefaultStore(t)
	_, err := NewGenericElement(ctx, def, docA, NoneName, nil, true)
	require.NoError(t, err)

	src := memory.NewStore()
	el, err := NewGenericElement(ctx, src, docB, "SPDXRef-1", nil, true)
	require.NoError(t, err)
	none, err := NewNoneElement(ctx, src, docB)
	require.NoError(t, err)
	require.NoError(t, el.SetElementProperty(ctx, "relatedTo", none))

	metrics := &captureMetricsRecorder{}
	var logs bytes.Buffer
	logger, err := NewLogger(&logs, "debug")
	require.NoError(t, err)
	copier := NewCopyManager(WithCopyMetrics(metrics), WithCopyLogger(logger))

	_, err = copier.Copy(ctx, el, def, docA)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTypeMismatch), "got %v", err)
	assert.True(t, metrics.has(OpCopy, false))
	assert.Contains(t, logs.String(), "partial copy")

	exists, err := def.Exists(ctx, docA, "SPDXRef-1")
	require.NoError(t, err)
	assert.True(t, exists, "elements created before the failure stay in the destination")
}

// flakyStore fails the next failSets SetProperty calls.
type flakyStore struct {
	*memory.Store
	failSets int
}

func (f *flakyStore) SetProperty(ctx context.Context, documentURI, id, name string, value model.Value) error {
	if f.failSets > 0 {
		f.failSets--
		return errors.New("transient outage")
	}
	return f.Store.SetProperty(ctx, documentURI, id, name, value)
}

func TestCopyRetryAfterFailureCopiesProperties(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	el, err := NewGenericElement(ctx, src, docA, "SPDXRef-1", nil, true)
	require.NoError(t, err)
	require.NoError(t, el.SetName(ctx, "libfoo"))
	none, err := NewNoneElement(ctx, src, docA)
	require.NoError(t, err)
	require.NoError(t, el.SetElementProperty(ctx, "relatedTo", none))

	dst := &flakyStore{Store: memory.NewStore(), failSets: 1}
	copier := NewCopyManager()
	_, err = copier.Copy(ctx, el, dst, docB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStoreUnavailable), "got %v", err)
	_, ok := copier.CopiedID(el, dst, docB)
	assert.False(t, ok, "a failed copy must not be recorded")
	_, ok = copier.CopiedID(none, dst, docB)
	assert.False(t, ok)

	retried, err := copier.Copy(ctx, el, dst, docB)
	require.NoError(t, err)
	name, err := retried.(*GenericElement).Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "libfoo", name)
	related, ok, err := retried.Object().GetElementProperty(ctx, "relatedTo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, SameIndividual(related, none))

	id, ok := copier.CopiedID(el, dst, docB)
	assert.True(t, ok)
	assert.Equal(t, retried.ID(), id)
}

func TestCopyConstantWithinSameScopeReturnsSource(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first, err := NewNoneElement(ctx, store, docA)
	require.NoError(t, err)
	second, err := NewNoneElement(ctx, store, docA)
	require.NoError(t, err)
	require.False(t, first.Equal(second))

	copied, err := NewCopyManager().Copy(ctx, second, store, docA)
	require.NoError(t, err)
	assert.True(t, copied.Equal(second), "got %s", copied.ID())
}

func TestCopyWithinSameScopeReturnsSource(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	el, err := NewRelationship(ctx, store, docA, "SPDXRef-r", nil, true)
	require.NoError(t, err)
	tracer := NewJSONTracer(nil)
	metrics := &captureMetricsRecorder{}
	copied, err := NewCopyManager(WithCopyTracer(tracer), WithCopyMetrics(metrics)).Copy(ctx, el, store, docA)
	require.NoError(t, err)
	assert.True(t, copied.Equal(el))
	_, isRel := copied.(*Relationship)
	assert.True(t, isRel)
	assert.True(t, metrics.has(OpCopy, true))
	entries := tracer.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, OpCopy, entries[0].Operation)
	assert.Equal(t, "success", entries[0].Status)
}

func TestCopyRejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	copier := NewCopyManager()
	_, err := copier.Copy(ctx, nil, memory.NewStore(), docA)
	assert.Error(t, err)
	el, err := NewGenericElement(ctx, memory.NewStore(), docA, "x", nil, true)
	require.NoError(t, err)
	_, err = copier.Copy(ctx, el, nil, docA)
	assert.True(t, errors.Is(err, model.ErrStoreUnavailable))
}

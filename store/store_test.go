package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/values"
)

func TestAllocAndGetNode(t *testing.T) {
	s := New()
	cat := catalog.New()
	person, _ := cat.InternLabel("Person")
	nameKey, _ := cat.InternPropKey("name")

	id := s.AllocNode([]catalog.ID{person}, []PropInit{{Key: nameKey, Value: values.Str("Alice")}})
	view, err := s.GetNode(id)
	require.NoError(t, err)
	assert.True(t, s.HasLabel(id, person))
	assert.Equal(t, values.Str("Alice"), view.Props[nameKey])
	assert.Equal(t, []catalog.ID{nameKey}, view.PropOrder)
}

func TestAdjacencySymmetry(t *testing.T) {
	s := New()
	cat := catalog.New()
	knows, _ := cat.InternRelType("KNOWS")

	a := s.AllocNode(nil, nil)
	b := s.AllocNode(nil, nil)
	relID := s.AllocRel(knows, a, b, nil)

	var outFromA, inToB []uint64
	s.IterRelsOf(a, Outgoing, nil, func(id uint64) { outFromA = append(outFromA, id) })
	s.IterRelsOf(b, Incoming, nil, func(id uint64) { inToB = append(inToB, id) })

	assert.Equal(t, []uint64{relID}, outFromA)
	assert.Equal(t, []uint64{relID}, inToB)

	var both []uint64
	s.IterRelsOf(a, Both, nil, func(id uint64) { both = append(both, id) })
	assert.Equal(t, []uint64{relID}, both, "undirected traversal must not duplicate")
}

func TestSelfLoopIteratedOnceUnderBoth(t *testing.T) {
	s := New()
	cat := catalog.New()
	self, _ := cat.InternRelType("SELF")
	a := s.AllocNode(nil, nil)
	relID := s.AllocRel(self, a, a, nil)

	var both []uint64
	s.IterRelsOf(a, Both, nil, func(id uint64) { both = append(both, id) })
	assert.Equal(t, []uint64{relID}, both)

	var out, in []uint64
	s.IterRelsOf(a, Outgoing, nil, func(id uint64) { out = append(out, id) })
	s.IterRelsOf(a, Incoming, nil, func(id uint64) { in = append(in, id) })
	assert.Equal(t, []uint64{relID}, out)
	assert.Equal(t, []uint64{relID}, in)
}

func TestDeleteNodeRequiresDetachWhenDegreePositive(t *testing.T) {
	s := New()
	cat := catalog.New()
	knows, _ := cat.InternRelType("KNOWS")
	a := s.AllocNode(nil, nil)
	b := s.AllocNode(nil, nil)
	s.AllocRel(knows, a, b, nil)

	err := s.DeleteNode(a, false)
	require.Error(t, err)

	require.NoError(t, s.DeleteNode(a, true))
	assert.False(t, s.NodeExists(a))
	assert.Equal(t, 0, s.RelationshipCount())

	err = s.DeleteNode(a, true)
	require.Error(t, err)
}

func TestPropertyChainOrderStableOnUpdate(t *testing.T) {
	s := New()
	cat := catalog.New()
	k1, _ := cat.InternPropKey("a")
	k2, _ := cat.InternPropKey("b")
	id := s.AllocNode(nil, nil)
	require.NoError(t, s.SetPropNode(id, k1, values.Int(1)))
	require.NoError(t, s.SetPropNode(id, k2, values.Int(2)))
	require.NoError(t, s.SetPropNode(id, k1, values.Int(99)))

	view, err := s.GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, []catalog.ID{k1, k2}, view.PropOrder)
	assert.Equal(t, values.Int(99), view.Props[k1])
}

func TestFreeListReuse(t *testing.T) {
	s := New()
	a := s.AllocNode(nil, nil)
	require.NoError(t, s.DeleteNode(a, false))
	b := s.AllocNode(nil, nil)
	assert.Equal(t, a, b, "freed node id should be reused")

	view, err := s.GetNode(b)
	require.NoError(t, err)
	assert.Empty(t, view.Labels, "reused record must be reinitialized")
}

func TestTypeFilterOnIteration(t *testing.T) {
	s := New()
	cat := catalog.New()
	knows, _ := cat.InternRelType("KNOWS")
	likes, _ := cat.InternRelType("LIKES")
	a := s.AllocNode(nil, nil)
	b := s.AllocNode(nil, nil)
	c := s.AllocNode(nil, nil)
	r1 := s.AllocRel(knows, a, b, nil)
	s.AllocRel(likes, a, c, nil)

	var knowsOnly []uint64
	s.IterRelsOf(a, Outgoing, func(t catalog.ID) bool { return t == knows }, func(id uint64) {
		knowsOnly = append(knowsOnly, id)
	})
	assert.Equal(t, []uint64{r1}, knowsOnly)
}

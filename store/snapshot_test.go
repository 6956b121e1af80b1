package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/values"
)

func TestSnapshotRestoreRoundTripWithHoles(t *testing.T) {
	s := New()
	cat := catalog.New()
	person, _ := cat.InternLabel("Person")
	knows, _ := cat.InternRelType("KNOWS")
	nameKey, _ := cat.InternPropKey("name")

	a := s.AllocNode([]catalog.ID{person}, []PropInit{{Key: nameKey, Value: values.Str("Alice")}})
	b := s.AllocNode([]catalog.ID{person}, []PropInit{{Key: nameKey, Value: values.Str("Bob")}})
	doomed := s.AllocNode([]catalog.ID{person}, nil)
	require.NoError(t, s.DeleteNode(doomed, false))

	rel := s.AllocRel(knows, a, b, nil)
	doomedRel := s.AllocRel(knows, a, b, nil)
	require.NoError(t, s.DeleteRel(doomedRel))

	snap := s.Snapshot()
	restored := Restore(snap)

	assert.Equal(t, s.NodeCount(), restored.NodeCount())
	assert.Equal(t, s.RelationshipCount(), restored.RelationshipCount())

	view, err := restored.GetNode(a)
	require.NoError(t, err)
	assert.Equal(t, values.Str("Alice"), view.Props[nameKey])

	relView, err := restored.GetRel(rel)
	require.NoError(t, err)
	assert.Equal(t, a, relView.Src)
	assert.Equal(t, b, relView.Dst)

	assert.False(t, restored.NodeExists(doomed))
	assert.False(t, restored.RelExists(doomedRel))
}

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/nexuserr"
)

func TestInternRejectsEmptyName(t *testing.T) {
	c := New()

	_, err := c.InternLabel("")
	require.Error(t, err)
	assert.Equal(t, nexuserr.CodeSemantic, err.(*nexuserr.Error).Code)

	_, err = c.InternRelType("")
	require.Error(t, err)
	assert.Equal(t, nexuserr.CodeSemantic, err.(*nexuserr.Error).Code)

	_, err = c.InternPropKey("")
	require.Error(t, err)
	assert.Equal(t, nexuserr.CodeSemantic, err.(*nexuserr.Error).Code)
}

// TestInternRoundTrip covers spec §8's catalog round-trip property: interning
// a name twice returns the same id, and resolving that id back through
// LabelName/RelTypeName/PropKeyName recovers the original string.
func TestInternRoundTrip(t *testing.T) {
	c := New()

	id1, err := c.InternLabel("Person")
	require.NoError(t, err)
	id2, err := c.InternLabel("Person")
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "interning the same name twice must return the same id")

	name, err := c.LabelName(id1)
	require.NoError(t, err)
	assert.Equal(t, "Person", name)

	looked, ok := c.LookupLabel("Person")
	require.True(t, ok)
	assert.Equal(t, id1, looked)

	_, ok = c.LookupLabel("Company")
	assert.False(t, ok, "an un-interned name must not resolve")
}

func TestNameResolvesUnknownIDAsNotFound(t *testing.T) {
	c := New()
	_, err := c.LabelName(ID(42))
	require.Error(t, err)
	assert.Equal(t, nexuserr.CodeNotFound, err.(*nexuserr.Error).Code)
}

func TestSnapshotReflectsAllInternedNamespaces(t *testing.T) {
	c := New()
	_, err := c.InternLabel("Person")
	require.NoError(t, err)
	_, err = c.InternRelType("KNOWS")
	require.NoError(t, err)
	_, err = c.InternPropKey("name")
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, []string{"Person"}, snap.Labels)
	assert.Equal(t, []string{"KNOWS"}, snap.RelTypes)
	assert.Equal(t, []string{"name"}, snap.PropertyKeys)
	assert.Equal(t, 1, c.LabelCount())
	assert.Equal(t, 1, c.RelTypeCount())
	assert.Equal(t, 1, c.PropKeyCount())
}

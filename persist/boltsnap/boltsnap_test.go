package boltsnap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cat := catalog.New()
	st := store.New()

	person, _ := cat.InternLabel("Person")
	knows, _ := cat.InternRelType("KNOWS")
	nameKey, _ := cat.InternPropKey("name")

	alice := st.AllocNode([]catalog.ID{person}, []store.PropInit{{Key: nameKey, Value: values.Str("Alice")}})
	bob := st.AllocNode([]catalog.ID{person}, []store.PropInit{{Key: nameKey, Value: values.Str("Bob")}})
	doomed := st.AllocNode([]catalog.ID{person}, nil)
	require.NoError(t, st.DeleteNode(doomed, false))
	st.AllocRel(knows, alice, bob, nil)

	path := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, Save(path, cat, st))

	loadedCat, loadedStore, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, st.NodeCount(), loadedStore.NodeCount())
	assert.Equal(t, st.RelationshipCount(), loadedStore.RelationshipCount())
	assert.Equal(t, cat.LabelCount(), loadedCat.LabelCount())

	view, err := loadedStore.GetNode(alice)
	require.NoError(t, err)
	aliceNameID, ok := loadedCat.LookupPropKey("name")
	require.True(t, ok)
	assert.Equal(t, values.Str("Alice"), view.Props[aliceNameID])

	assert.False(t, loadedStore.NodeExists(doomed))
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "does-not-exist", "snapshot.db"))
	assert.Error(t, err)
}

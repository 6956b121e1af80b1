package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSocialGraph(t *testing.T) {
	loaded, err := Load("testdata/social_graph.yaml")
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.Store.NodeCount())
	assert.Equal(t, 3, loaded.Store.RelationshipCount())

	ada, ok := loaded.NodeIDs["ada"]
	require.True(t, ok)
	view, err := loaded.Store.GetNode(ada)
	require.NoError(t, err)

	nameKey, ok := loaded.Catalog.LookupPropKey("name")
	require.True(t, ok)
	name, ok := view.Props[nameKey].AsString()
	require.True(t, ok)
	assert.Equal(t, "Ada", name)
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/store"
)

func newTestSession() *Session {
	return New(catalog.New(), store.New())
}

func TestExecuteCreateAndReturn(t *testing.T) {
	s := newTestSession()
	result, err := s.Execute(`CREATE (n:Person {name: 'Alice', age: 30}) RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	name, ok := result.Rows[0][0].AsString()
	require.True(t, ok)
	assert.Equal(t, "Alice", name)
	assert.Equal(t, 1, result.Stats.NodesCreated)
}

func TestExecuteWriteOnlyHasNoColumns(t *testing.T) {
	s := newTestSession()
	result, err := s.Execute(`CREATE (:Person {name: 'Bob'})`, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Columns)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 1, result.Stats.NodesCreated)
}

func TestStatsTracksStoreAndCatalog(t *testing.T) {
	s := newTestSession()
	_, err := s.Execute(`CREATE (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})`, nil)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.RelationshipCount)
	assert.Equal(t, 1, stats.LabelCount)
	assert.Equal(t, 1, stats.RelTypeCount)
	assert.Equal(t, []string{"Person"}, stats.Labels)
	assert.Equal(t, []string{"KNOWS"}, stats.RelationshipTypes)
}

func TestExecuteDetachDeleteDropsRelationshipCount(t *testing.T) {
	s := newTestSession()
	_, err := s.Execute(`CREATE (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})`, nil)
	require.NoError(t, err)

	_, err = s.Execute(`MATCH (n) DETACH DELETE n`, nil)
	require.NoError(t, err)

	result, err := s.Execute(`MATCH (n) RETURN count(n) AS c`, nil)
	require.NoError(t, err)
	c, _ := result.Rows[0][0].AsInt()
	assert.Equal(t, int64(0), c)
	assert.Equal(t, 0, s.Stats().RelationshipCount)
}

func TestExecuteParseErrorShape(t *testing.T) {
	s := newTestSession()
	_, err := s.Execute(`MATCH (n RETURN n`, nil)
	require.Error(t, err)
	resp := ToErrorResponse(err)
	assert.Equal(t, "PARSE_ERROR", string(resp.Code))
	assert.NotEmpty(t, resp.Message)
}

func TestExplainDoesNotMutateStore(t *testing.T) {
	s := newTestSession()
	result, err := s.Execute(`EXPLAIN MATCH (n:Person) RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"plan"}, result.Columns)
	require.Len(t, result.Rows, 1)

	plan, ok := result.Rows[0][0].AsString()
	require.True(t, ok)
	assert.Contains(t, plan, "Scan(n:Person)")
	assert.Contains(t, plan, "Produce(name)")
	assert.Equal(t, 0, s.Stats().NodeCount)
}

func TestExplainRejectsInvalidQuery(t *testing.T) {
	s := newTestSession()
	_, err := s.Execute(`EXPLAIN MATCH (n RETURN n`, nil)
	require.Error(t, err)
	assert.Equal(t, "PARSE_ERROR", string(ToErrorResponse(err).Code))
}

func TestSerializeNodeShape(t *testing.T) {
	s := newTestSession()
	result, err := s.Execute(`CREATE (n:Person {name: 'Ada'}) RETURN n AS n`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	out := Serialize(s.Catalog, s.Store, result.Rows[0][0])
	node, ok := out.(NodeJSON)
	require.True(t, ok)
	assert.Equal(t, []string{"Person"}, node.Labels)
	assert.Equal(t, "Ada", node.Properties["name"])
}

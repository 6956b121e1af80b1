package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/nexuserr"
)

func TestParseSimpleCreateReturn(t *testing.T) {
	q, err := Parse("CREATE (n:Person {name:'Alice', age:30}) RETURN n.name AS name")
	require.NoError(t, err)
	require.Len(t, q.First.Clauses, 1)
	create, ok := q.First.Clauses[0].(*ast.CreateClause)
	require.True(t, ok)
	require.Len(t, create.Patterns, 1)
	node := create.Patterns[0].Nodes[0]
	assert.Equal(t, "n", node.Variable)
	assert.Equal(t, []string{"Person"}, node.Labels)
	require.NotNil(t, q.First.Return)
	assert.Len(t, q.First.Return.Items, 1)
	assert.Equal(t, "name", q.First.Return.Items[0].Alias)
}

func TestParseMatchWhereReturn(t *testing.T) {
	q, err := Parse("MATCH (n:Person) WHERE n.age > 25 AND n.age < 35 RETURN count(n) AS cnt")
	require.NoError(t, err)
	match, ok := q.First.Clauses[0].(*ast.MatchClause)
	require.True(t, ok)
	require.NotNil(t, match.Where)
	_, isBinary := match.Where.(*ast.BinaryOp)
	assert.True(t, isBinary)
}

func TestParseRelationshipPatternBothDirections(t *testing.T) {
	q, err := Parse("MATCH (a)-[r:KNOWS]->(b) RETURN r")
	require.NoError(t, err)
	match := q.First.Clauses[0].(*ast.MatchClause)
	rel := match.Patterns[0].Rels[0]
	assert.Equal(t, ast.DirRight, rel.Direction)
	assert.Equal(t, []string{"KNOWS"}, rel.Types)

	q2, err := Parse("MATCH (a)-[r:KNOWS]-(b) RETURN r")
	require.NoError(t, err)
	match2 := q2.First.Clauses[0].(*ast.MatchClause)
	assert.Equal(t, ast.DirEither, match2.Patterns[0].Rels[0].Direction)
}

func TestParseVariableLengthRelationship(t *testing.T) {
	q, err := Parse("MATCH (a)-[r:KNOWS*1..3]->(b) RETURN r")
	require.NoError(t, err)
	match := q.First.Clauses[0].(*ast.MatchClause)
	rel := match.Patterns[0].Rels[0]
	require.NotNil(t, rel.VarLength)
	require.NotNil(t, rel.VarLength.Min)
	require.NotNil(t, rel.VarLength.Max)
	assert.Equal(t, 1, *rel.VarLength.Min)
	assert.Equal(t, 3, *rel.VarLength.Max)

	q2, err := Parse("MATCH (a)-[:KNOWS*]->(b) RETURN b")
	require.NoError(t, err)
	rel2 := q2.First.Clauses[0].(*ast.MatchClause).Patterns[0].Rels[0]
	require.NotNil(t, rel2.VarLength)
	assert.Nil(t, rel2.VarLength.Min)
	assert.Nil(t, rel2.VarLength.Max)

	q3, err := Parse("MATCH (a)-[:KNOWS*2]->(b) RETURN b")
	require.NoError(t, err)
	rel3 := q3.First.Clauses[0].(*ast.MatchClause).Patterns[0].Rels[0]
	require.NotNil(t, rel3.VarLength.Min)
	require.NotNil(t, rel3.VarLength.Max)
	assert.Equal(t, 2, *rel3.VarLength.Min)
	assert.Equal(t, 2, *rel3.VarLength.Max)
}

func TestParseListSliceExpression(t *testing.T) {
	q, err := Parse("RETURN [1,2,3,4,5][1..3] AS s")
	require.NoError(t, err)
	item := q.First.Return.Items[0]
	slice, ok := item.Expr.(*ast.SliceExpr)
	require.True(t, ok)
	assert.NotNil(t, slice.From)
	assert.NotNil(t, slice.To)
}

func TestParseMergeWithOnCreateOnMatch(t *testing.T) {
	q, err := Parse("MERGE (p:Product {sku:'A'}) ON CREATE SET p.new=true ON MATCH SET p.seen=true RETURN p.new, p.seen")
	require.NoError(t, err)
	merge, ok := q.First.Clauses[0].(*ast.MergeClause)
	require.True(t, ok)
	require.Len(t, merge.OnCreate, 1)
	require.Len(t, merge.OnMatch, 1)
	assert.Equal(t, "new", merge.OnCreate[0].Property)
	assert.Equal(t, "seen", merge.OnMatch[0].Property)
}

func TestParseUnwind(t *testing.T) {
	q, err := Parse("UNWIND [1,2,3] AS x RETURN sum(x) AS s")
	require.NoError(t, err)
	unwind, ok := q.First.Clauses[0].(*ast.UnwindClause)
	require.True(t, ok)
	assert.Equal(t, "x", unwind.Alias)
}

func TestParseDetachDelete(t *testing.T) {
	q, err := Parse("MATCH (n) DETACH DELETE n")
	require.NoError(t, err)
	del, ok := q.First.Clauses[1].(*ast.DeleteClause)
	require.True(t, ok)
	assert.True(t, del.Detach)
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse("MATCH (n RETURN n")
	require.Error(t, err)
	var ne *nexuserr.Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, nexuserr.CodeParse, ne.Code)
	require.NotNil(t, ne.Position)
	assert.Equal(t, 1, ne.Position.Line)
	assert.Equal(t, 10, ne.Position.Col)
}

package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/cypher/parser"
	"github.com/hivellm/nexus/cypher/semantic"
	"github.com/hivellm/nexus/planner"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

func runQuery(t *testing.T, cat *catalog.Catalog, st *store.Store, query string, params map[string]values.Value) ([]Row, *Stats) {
	t.Helper()
	q, err := parser.Parse(query)
	require.NoError(t, err)
	require.NoError(t, semantic.Analyze(q))
	plan, err := planner.Build(q)
	require.NoError(t, err)
	op, err := Compile(plan)
	require.NoError(t, err)
	rt := NewRuntime(cat, st, params)
	rows, err := Run(rt, op)
	require.NoError(t, err)
	return rows, rt.Stats
}

func TestCreateAndReturn(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	rows, stats := runQuery(t, cat, st, `CREATE (n:Person {name: 'Ada', age: 30}) RETURN n.name AS name, n.age AS age`, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, stats.NodesCreated)
	assert.Equal(t, "Ada", must(rows[0]["name"].AsString()))
	age, _ := rows[0]["age"].AsInt()
	assert.Equal(t, int64(30), age)
}

func TestGroupedAggregationWithOrderBy(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (:Person {city: 'NYC'}), (:Person {city: 'NYC'}), (:Person {city: 'LA'})`, nil)
	rows, _ := runQuery(t, cat, st, `MATCH (n:Person) RETURN n.city AS city, count(n) AS cnt ORDER BY cnt DESC`, nil)
	require.Len(t, rows, 2)
	cnt0, _ := rows[0]["cnt"].AsInt()
	assert.Equal(t, int64(2), cnt0)
	assert.Equal(t, "NYC", must(rows[0]["city"].AsString()))
}

func TestRangeFilterCount(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (:Person {age: 10}), (:Person {age: 20}), (:Person {age: 30})`, nil)
	rows, _ := runQuery(t, cat, st, `MATCH (n:Person) WHERE n.age >= 20 RETURN count(n) AS cnt`, nil)
	require.Len(t, rows, 1)
	cnt, _ := rows[0]["cnt"].AsInt()
	assert.Equal(t, int64(2), cnt)
}

func TestListSlicing(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	rows, _ := runQuery(t, cat, st, `RETURN [1,2,3,4,5][1..3] AS xs`, nil)
	require.Len(t, rows, 1)
	list, ok := rows[0]["xs"].AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
	v0, _ := list[0].AsInt()
	v1, _ := list[1].AsInt()
	assert.Equal(t, int64(2), v0)
	assert.Equal(t, int64(3), v1)
}

func TestUndirectedMatchCountsOnce(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})`, nil)
	rows, _ := runQuery(t, cat, st, `MATCH (a:Person)-[r:KNOWS]-(b:Person) RETURN count(r) AS cnt`, nil)
	require.Len(t, rows, 1)
	cnt, _ := rows[0]["cnt"].AsInt()
	// Decision §13.1: exactly one row per relationship, not one per endpoint.
	assert.Equal(t, int64(1), cnt)
}

func TestUnwindEmptyAndNull(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	rows, _ := runQuery(t, cat, st, `UNWIND [] AS x RETURN x`, nil)
	assert.Len(t, rows, 0)

	rows, _ = runQuery(t, cat, st, `UNWIND null AS x RETURN x`, nil)
	assert.Len(t, rows, 0)

	rows, _ = runQuery(t, cat, st, `UNWIND [1,2,3] AS x RETURN x`, nil)
	require.Len(t, rows, 3)
}

func TestMergeOnCreateOnMatch(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, stats := runQuery(t, cat, st, `MERGE (n:Person {name: 'Ada'}) ON CREATE SET n.hits = 1 ON MATCH SET n.hits = n.hits + 1`, nil)
	assert.Equal(t, 1, stats.NodesCreated)

	rows, stats2 := runQuery(t, cat, st, `MERGE (n:Person {name: 'Ada'}) ON CREATE SET n.hits = 1 ON MATCH SET n.hits = n.hits + 1 RETURN n.hits AS hits`, nil)
	assert.Equal(t, 0, stats2.NodesCreated)
	require.Len(t, rows, 1)
	hits, _ := rows[0]["hits"].AsInt()
	assert.Equal(t, int64(2), hits)
}

func TestMatchDetachDeleteCount(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})`, nil)
	_, stats := runQuery(t, cat, st, `MATCH (n:Person) DETACH DELETE n`, nil)
	assert.Equal(t, 2, stats.NodesDeleted)
	assert.Equal(t, 0, st.NodeCount())
	assert.Equal(t, 0, st.RelationshipCount())
}

// TestDistinctDoesNotCollapseIntAndStringOfSameDigits covers the case a
// String-keyed dedup would get wrong: Int(1) and Str("1") render to the same
// text but must never compare equal under Cypher's strict typed equality.
func TestDistinctDoesNotCollapseIntAndStringOfSameDigits(t *testing.T) {
	cat := catalog.New()
	st := store.New()

	rows, _ := runQuery(t, cat, st, `UNWIND [1, '1', 1, '1'] AS x RETURN DISTINCT x`, nil)
	require.Len(t, rows, 2, "DISTINCT must keep int 1 and string '1' as separate rows")

	var sawInt, sawStr bool
	for _, r := range rows {
		switch r["x"].Kind {
		case values.KindInt:
			v, _ := r["x"].AsInt()
			assert.Equal(t, int64(1), v)
			sawInt = true
		case values.KindString:
			v, _ := r["x"].AsString()
			assert.Equal(t, "1", v)
			sawStr = true
		}
	}
	assert.True(t, sawInt)
	assert.True(t, sawStr)
}

func TestUnionDoesNotCollapseIntAndStringOfSameDigits(t *testing.T) {
	cat := catalog.New()
	st := store.New()

	rows, _ := runQuery(t, cat, st, `RETURN 1 AS x UNION RETURN '1' AS x`, nil)
	require.Len(t, rows, 2, "UNION dedup must keep int 1 and string '1' as separate rows")
}

func TestCountDistinctDoesNotCollapseIntAndStringOfSameDigits(t *testing.T) {
	cat := catalog.New()
	st := store.New()

	rows, _ := runQuery(t, cat, st, `UNWIND [1, '1', 1, '1'] AS x RETURN count(DISTINCT x) AS c`, nil)
	require.Len(t, rows, 1)
	c, _ := rows[0]["c"].AsInt()
	assert.Equal(t, int64(2), c)
}

func TestVariableLengthExpandBoundsHops(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	// a -> b -> c -> d, a chain of 3 hops.
	_, _ = runQuery(t, cat, st, `CREATE (a:Node {name:'a'})-[:NEXT]->(b:Node {name:'b'})-[:NEXT]->(c:Node {name:'c'})-[:NEXT]->(d:Node {name:'d'})`, nil)

	rows, _ := runQuery(t, cat, st, `MATCH (a:Node {name:'a'})-[:NEXT*1..2]->(x) RETURN x.name AS name ORDER BY name`, nil)
	require.Len(t, rows, 2, "only b (1 hop) and c (2 hops) fall within *1..2")
	assert.Equal(t, "b", must(rows[0]["name"].AsString()))
	assert.Equal(t, "c", must(rows[1]["name"].AsString()))
}

func TestVariableLengthExpandBindsPathToRelVar(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (a:Node {name:'a'})-[:NEXT]->(b:Node {name:'b'})-[:NEXT]->(c:Node {name:'c'})`, nil)

	rows, _ := runQuery(t, cat, st, `MATCH (a:Node {name:'a'})-[r:NEXT*2..2]->(c:Node {name:'c'}) RETURN r AS path`, nil)
	require.Len(t, rows, 1)
	p, ok := rows[0]["path"].AsPath()
	require.True(t, ok, "a var-length relationship variable must bind to a Path value")
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Length())
	assert.Len(t, p.Nodes, 3)
}

func TestVariableLengthExpandDoesNotLoopOnCycle(t *testing.T) {
	cat := catalog.New()
	st := store.New()
	_, _ = runQuery(t, cat, st, `CREATE (a:Node {name:'a'})-[:NEXT]->(b:Node {name:'b'})-[:NEXT]->(a)`, nil)

	rows, _ := runQuery(t, cat, st, `MATCH (a:Node {name:'a'})-[:NEXT*1..5]->(x) RETURN count(x) AS cnt`, nil)
	require.Len(t, rows, 1)
	cnt, _ := rows[0]["cnt"].AsInt()
	assert.Equal(t, int64(1), cnt, "the cycle back to a must not be revisited or loop forever")
}

func must(s string, ok bool) string {
	if !ok {
		return ""
	}
	return s
}

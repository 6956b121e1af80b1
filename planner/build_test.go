package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/cypher/parser"
)

func TestBuildScanAndProduce(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) RETURN n.name AS name")
	require.NoError(t, err)
	plan, err := Build(q)
	require.NoError(t, err)
	produce, ok := plan.(*Produce)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, produce.Columns)
}

func TestBuildExpandIntoWhenBothEndpointsBound(t *testing.T) {
	q, err := parser.Parse("MATCH (a:Person), (b:Person) MATCH (a)-[r:KNOWS]->(b) RETURN r")
	require.NoError(t, err)
	plan, err := Build(q)
	require.NoError(t, err)
	found := findOp(plan, func(op Op) bool {
		_, ok := op.(*ExpandInto)
		return ok
	})
	assert.True(t, found, "expected ExpandInto when both endpoints pre-bound")
}

func TestBuildDrivesFromBoundLaterNodeViaIncomingChain(t *testing.T) {
	q, err := parser.Parse("MATCH (b:Person {name: 'Bob'}) WITH b MATCH (a)-[r:KNOWS]->(b) RETURN a")
	require.NoError(t, err)
	plan, err := Build(q)
	require.NoError(t, err)

	var expand *Expand
	findOp(plan, func(op Op) bool {
		if e, ok := op.(*Expand); ok && e.RelVar == "r" {
			expand = e
			return true
		}
		return false
	})
	require.NotNil(t, expand, "expected an Expand driving the KNOWS relationship")
	assert.Equal(t, "b", expand.From, "should drive from the already-bound b, not scan for a")
	assert.Equal(t, "a", expand.ToVar)
	assert.Equal(t, ast.DirLeft, expand.Direction, "outgoing a->b becomes incoming when driven from b")

	found := findOp(plan, func(op Op) bool {
		s, ok := op.(*Scan)
		return ok && s.Variable == "a"
	})
	assert.False(t, found, "must not fall back to scanning for a")
}

func TestBuildPlumbsVarLengthIntoExpand(t *testing.T) {
	q, err := parser.Parse("MATCH (a)-[r:KNOWS*1..3]->(b) RETURN b")
	require.NoError(t, err)
	plan, err := Build(q)
	require.NoError(t, err)

	var expand *Expand
	findOp(plan, func(op Op) bool {
		if e, ok := op.(*Expand); ok {
			expand = e
			return true
		}
		return false
	})
	require.NotNil(t, expand)
	require.NotNil(t, expand.VarLength)
	require.NotNil(t, expand.VarLength.Min)
	require.NotNil(t, expand.VarLength.Max)
	assert.Equal(t, 1, *expand.VarLength.Min)
	assert.Equal(t, 3, *expand.VarLength.Max)
}

func TestBuildAggregateFromCountStar(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) RETURN n.city AS city, count(*) AS cnt")
	require.NoError(t, err)
	plan, err := Build(q)
	require.NoError(t, err)
	found := findOp(plan, func(op Op) bool {
		_, ok := op.(*Aggregate)
		return ok
	})
	assert.True(t, found)
}

func findOp(op Op, pred func(Op) bool) bool {
	if op == nil {
		return false
	}
	if pred(op) {
		return true
	}
	switch n := op.(type) {
	case *Produce:
		return findOp(n.Input, pred)
	case *Project:
		return findOp(n.Input, pred)
	case *Distinct:
		return findOp(n.Input, pred)
	case *Filter:
		return findOp(n.Input, pred)
	case *Sort:
		return findOp(n.Input, pred)
	case *Limit:
		return findOp(n.Input, pred)
	case *Aggregate:
		return findOp(n.Input, pred)
	case *Expand:
		return findOp(n.Input, pred)
	case *ExpandInto:
		return findOp(n.Input, pred)
	case *OptionalExpand:
		return findOp(n.Input, pred)
	case *Unwind:
		return findOp(n.Input, pred)
	case *Apply:
		return findOp(n.Outer, pred) || findOp(n.Inner, pred)
	case *Union:
		return findOp(n.Left, pred) || findOp(n.Right, pred)
	case *Create:
		return findOp(n.Input, pred)
	case *Merge:
		return findOp(n.Input, pred)
	case *SetProperties:
		return findOp(n.Input, pred)
	case *Delete:
		return findOp(n.Input, pred)
	}
	return false
}

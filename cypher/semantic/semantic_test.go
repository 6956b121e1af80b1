package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/cypher/parser"
	"github.com/hivellm/nexus/nexuserr"
)

func TestAnalyzeRejectsUnknownVariable(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) RETURN m.name")
	require.NoError(t, err)
	err = Analyze(q)
	require.Error(t, err)
	assert.Equal(t, nexuserr.CodeSemantic, nexuserr.CodeOf(err))
}

func TestAnalyzeAcceptsBoundVariable(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) WHERE n.age > 25 RETURN n.name AS name")
	require.NoError(t, err)
	require.NoError(t, Analyze(q))
}

func TestAnalyzeRejectsWriteToUnboundVariable(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) SET m.age = 1")
	require.NoError(t, err)
	err = Analyze(q)
	require.Error(t, err)
}

func TestAnalyzeWithRescopesVariables(t *testing.T) {
	q, err := parser.Parse("MATCH (n:Person) WITH n.name AS name RETURN name")
	require.NoError(t, err)
	require.NoError(t, Analyze(q))

	q2, err := parser.Parse("MATCH (n:Person) WITH n.name AS name RETURN n")
	require.NoError(t, err)
	err = Analyze(q2)
	require.Error(t, err, "n should no longer be in scope after WITH projects only name")
}

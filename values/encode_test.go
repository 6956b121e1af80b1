package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripsNestedStructure(t *testing.T) {
	original := Map(map[string]Value{
		"name": Str("Ada"),
		"tags": List([]Value{Int(1), Float(2.5), Bool(true), Null}),
	}, []string{"name", "tags"})

	data, err := Encode(original)
	require.NoError(t, err)

	restored, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, Equal(original, restored))
}

package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostweasellabs/arachne/edge"
	"github.com/ghostweasellabs/arachne/policy"
)

func TestTypedTryPutThenTryGetRoundTrips(t *testing.T) {
	e := newEdge(t, 2)
	typed := edge.Wrap[int](e)

	result, err := typed.TryPut(42, policy.Block{})
	require.NoError(t, err)
	assert.Equal(t, policy.Ok, result)

	assert.Equal(t, 1, typed.Depth())
	assert.False(t, typed.IsEmpty())
	assert.False(t, typed.IsFull())

	v, ok := typed.TryGet()
	require.True(t, ok)
	assert.Equal(t, 42, v)

	assert.True(t, typed.IsEmpty())
}

func TestTypedTryGetFailsOnWrongPayloadType(t *testing.T) {
	e := newEdge(t, 1)
	ints := edge.Wrap[int](e)
	strings := edge.Wrap[string](e)

	_, err := ints.TryPut(7, policy.Block{})
	require.NoError(t, err)

	v, ok := strings.TryGet()
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestTypedUnwrapReturnsUnderlyingEdge(t *testing.T) {
	e := newEdge(t, 1)
	typed := edge.Wrap[int](e)
	assert.Same(t, e, typed.Unwrap())
}

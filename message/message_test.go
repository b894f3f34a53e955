package message_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostweasellabs/arachne/message"
)

func TestNewPopulatesTraceIDWhenAbsent(t *testing.T) {
	m := message.New(message.Data, 42, nil, nil)
	assert.NotEmpty(t, m.TraceID())
	assert.Greater(t, m.Timestamp(), 0.0)
}

func TestNewPreservesSuppliedTraceID(t *testing.T) {
	m := message.New(message.Data, 42, map[string]any{"trace_id": "abc-123"}, nil)
	assert.Equal(t, "abc-123", m.TraceID())
}

func TestWithHeadersDoesNotMutateOriginal(t *testing.T) {
	orig := message.New(message.Data, "hello", map[string]any{"a": 1}, nil)
	derived := orig.WithHeaders(map[string]any{"b": 2})

	origHeaders := orig.Headers()
	require.NotContains(t, origHeaders, "b")

	derivedHeaders := derived.Headers()
	assert.Equal(t, 1, derivedHeaders["a"])
	assert.Equal(t, 2, derivedHeaders["b"])
}

func TestWithHeadersCanOverrideTraceID(t *testing.T) {
	orig := message.New(message.Data, nil, nil, nil)
	derived := orig.WithHeaders(map[string]any{"trace_id": "override"})
	assert.Equal(t, "override", derived.TraceID())
	assert.NotEqual(t, orig.TraceID(), derived.TraceID())
}

func TestWithHeadersIdempotentForIdenticalKV(t *testing.T) {
	orig := message.New(message.Data, nil, nil, nil)
	kv := map[string]any{"x": "y", "n": 7}

	once := orig.WithHeaders(kv)
	twice := once.WithHeaders(kv)

	if diff := cmp.Diff(once.Headers(), twice.Headers()); diff != "" {
		t.Fatalf("headers differ after repeated WithHeaders (-once +twice):\n%s", diff)
	}
}

func TestKindValid(t *testing.T) {
	assert.True(t, message.Data.Valid())
	assert.True(t, message.Control.Valid())
	assert.True(t, message.Error.Valid())
	assert.False(t, message.Kind("bogus").Valid())
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, message.New(message.Control, nil, nil, nil).IsControl())
	assert.True(t, message.New(message.Error, nil, nil, nil).IsError())
	assert.True(t, message.New(message.Data, nil, nil, nil).IsData())
}

package port_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostweasellabs/arachne/message"
	"github.com/ghostweasellabs/arachne/port"
)

func TestSpecWithNoTypesAcceptsEverything(t *testing.T) {
	s := port.NewSpec("any")
	assert.True(t, s.Validate(42))
	assert.True(t, s.Validate("hello"))
	assert.True(t, s.Validate(nil))
}

func TestNilSpecAcceptsEverything(t *testing.T) {
	var s *port.Spec
	assert.True(t, s.Validate(42))
}

func TestSpecRejectsWrongType(t *testing.T) {
	s := port.NewSpec("ints", reflect.TypeOf(0))
	assert.True(t, s.Validate(1))
	assert.False(t, s.Validate("nope"))
}

func TestSpecValidatesMessagePayload(t *testing.T) {
	s := port.NewSpec("ints", reflect.TypeOf(0))
	m := message.New(message.Data, 7, nil, nil)
	assert.True(t, s.Validate(m))

	bad := message.New(message.Data, "not an int", nil, nil)
	assert.False(t, s.Validate(bad))
}

func TestPortDirectionHelpers(t *testing.T) {
	in := port.New("in", port.Input, nil)
	out := port.New("out", port.Output, nil)
	assert.True(t, in.IsInput())
	assert.False(t, in.IsOutput())
	assert.True(t, out.IsOutput())
}

// Package port defines the named, typed, directional attachment points on a
// node, and the message envelope from package message is validated against
// them.
package port

import "reflect"

// Direction is the closed set of port directions.
type Direction string

const (
	Input  Direction = "INPUT"
	Output Direction = "OUTPUT"
)

// Spec optionally names the set of types a port accepts. A Spec with no
// configured types accepts everything.
type Spec struct {
	Name  string
	Types []reflect.Type
}

// NewSpec builds a Spec accepting only the given types. Passing no types
// produces a Spec that accepts any value.
func NewSpec(name string, types ...reflect.Type) *Spec {
	return &Spec{Name: name, Types: types}
}

// payloadCarrier is satisfied by message.Message without importing it here,
// avoiding an import cycle (message has no dependency on port).
type payloadCarrier interface {
	Payload() any
}

// Validate reports whether value belongs to one of the Spec's acceptable
// types. If value implements payloadCarrier (i.e. it is a message.Message),
// the carried payload is validated instead of the wrapper itself. A nil Spec
// or a Spec with no configured types accepts everything.
func (s *Spec) Validate(value any) bool {
	if s == nil || len(s.Types) == 0 {
		return true
	}
	if carrier, ok := value.(payloadCarrier); ok {
		value = carrier.Payload()
	}
	if value == nil {
		return false
	}
	vt := reflect.TypeOf(value)
	for _, t := range s.Types {
		if vt == t || (t.Kind() == reflect.Interface && vt.Implements(t)) {
			return true
		}
	}
	return false
}

// Port is a named, directional, optionally-typed attachment point on a node.
type Port struct {
	Name      string
	Direction Direction
	Spec      *Spec
}

// New builds a Port.
func New(name string, dir Direction, spec *Spec) Port {
	return Port{Name: name, Direction: dir, Spec: spec}
}

// IsInput reports whether the port is an input port.
func (p Port) IsInput() bool { return p.Direction == Input }

// IsOutput reports whether the port is an output port.
func (p Port) IsOutput() bool { return p.Direction == Output }

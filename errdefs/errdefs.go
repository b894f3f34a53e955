// Package errdefs defines the closed set of error kinds the runtime raises,
// each wrapping an inner cause the way solver/llbsolver/errdefs.ExecError
// wraps a build error in this module's teacher lineage.
package errdefs

import (
	"fmt"

	"github.com/pkg/errors"
)

// UserError is raised from a user handler (on_message/on_tick) or from an
// emit the edge rejected; on_start/on_stop failures are LifecycleErrors. The
// scheduler always recovers it locally; it never escapes Run.
type UserError struct {
	Node  string
	Phase string
	cause error
}

func NewUserError(node, phase string, cause error) *UserError {
	return &UserError{Node: node, Phase: phase, cause: errors.WithStack(cause)}
}

func (e *UserError) Error() string {
	return fmt.Sprintf("user error in node %q during %s: %v", e.Node, e.Phase, e.cause)
}

func (e *UserError) Unwrap() error { return e.cause }

// WiringError is a structural problem in a registered subgraph: duplicate
// node name, unknown endpoint, bad capacity, duplicate edge id. Detected at
// Validate or plan build; unrecoverable — Run fails before any OnStart runs.
type WiringError struct {
	cause error
}

func NewWiringError(cause error) *WiringError {
	return &WiringError{cause: errors.WithStack(cause)}
}

func (e *WiringError) Error() string { return fmt.Sprintf("wiring error: %v", e.cause) }
func (e *WiringError) Unwrap() error { return e.cause }

// TypeErr is raised when an item fails an edge's PortSpec at TryPut. The
// enqueue is rejected; the queue is left unmodified.
type TypeErr struct {
	EdgeID string
	Value  any
}

func NewTypeErr(edgeID string, value any) *TypeErr {
	return &TypeErr{EdgeID: edgeID, Value: value}
}

func (e *TypeErr) Error() string {
	return fmt.Sprintf("type error on edge %q: value %v rejected by port spec", e.EdgeID, e.Value)
}

// LifecycleError is raised from OnStart or OnStop. It is isolated per node:
// logged, counted, and never prevents other nodes from starting or
// stopping.
type LifecycleError struct {
	Node  string
	Phase string
	cause error
}

func NewLifecycleError(node, phase string, cause error) *LifecycleError {
	return &LifecycleError{Node: node, Phase: phase, cause: errors.WithStack(cause)}
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error in node %q during %s: %v", e.Node, e.Phase, e.cause)
}

func (e *LifecycleError) Unwrap() error { return e.cause }

// ConfigError is raised at construction time for invalid configuration
// (e.g. non-positive capacity, unknown priority band). Unrecoverable at the
// call site.
type ConfigError struct {
	Field  string
	Reason string
}

func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

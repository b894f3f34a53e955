// Package graph implements the static topology description: a named
// collection of nodes and edges, with wiring validation.
package graph

import (
	"fmt"

	"github.com/ghostweasellabs/arachne/edge"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/observability/metrics"
	"github.com/ghostweasellabs/arachne/policy"
	"github.com/ghostweasellabs/arachne/port"
)

// Severity is the closed set of ValidationIssue severities.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Validation codes. Validate reports all of them except DUP_NODE, which plan
// build uses for node names duplicated across subgraphs.
const (
	CodeDupNode      = "DUP_NODE"
	CodeUnknownNode  = "UNKNOWN_NODE"
	CodeNoSrcPort    = "NO_SRC_PORT"
	CodeNoDstPort    = "NO_DST_PORT"
	CodeBadCap       = "BAD_CAP"
	CodeDupEdge      = "DUP_EDGE"
	CodeDupExposeIn  = "DUP_EXPOSE_IN"
	CodeDupExposeOut = "DUP_EXPOSE_OUT"
	CodeBadExposeIn  = "BAD_EXPOSE_IN"
	CodeBadExposeOut = "BAD_EXPOSE_OUT"
	// CodeSelfLoop is a supplemented warning, not part of the closed error
	// code set above: it flags an edge whose source and target node are the
	// same, which is legal but worth surfacing.
	CodeSelfLoop = "SELF_LOOP"
)

// ValidationIssue is one diagnostic produced by Subgraph.Validate.
type ValidationIssue struct {
	Code     string
	Severity Severity
	Message  string
	Location string
}

// IsError reports whether the issue is error-level.
func (i ValidationIssue) IsError() bool { return i.Severity == SeverityError }

// PortRef names a port on a node within a Subgraph.
type PortRef struct {
	Node string
	Port string
}

// EdgeDesc is one connection within a Subgraph, captured before the
// RuntimePlan flattens it into an EdgeRef.
type EdgeDesc struct {
	ID       string
	Src      PortRef
	Dst      PortRef
	Capacity int
	Policy   policy.Policy
}

// EdgeOption configures a Connect call.
type EdgeOption func(*edgeOptions)

type edgeOptions struct {
	capacity int
	policy   policy.Policy
}

// WithCapacity overrides the default capacity (1024) for a connection.
func WithCapacity(n int) EdgeOption {
	return func(o *edgeOptions) { o.capacity = n }
}

// WithPolicy attaches a default overflow Policy to a connection.
func WithPolicy(p policy.Policy) EdgeOption {
	return func(o *edgeOptions) { o.policy = p }
}

// Subgraph is a static description of a topology: a name, a mapping from
// node name to Node, a list of edge descriptions, and two exposed-port maps
// used when this subgraph is composed into a larger one.
type Subgraph struct {
	Name           string
	Nodes          map[string]*node.Node
	NodeOrder      []string
	Edges          []EdgeDesc
	ExposedInputs  map[string]PortRef
	ExposedOutputs map[string]PortRef

	sink metrics.Sink
}

// New builds an empty Subgraph. sink is used when building concrete Edges
// from this subgraph's EdgeDescs; it may be nil.
func New(name string, sink metrics.Sink) *Subgraph {
	return &Subgraph{
		Name:           name,
		Nodes:          map[string]*node.Node{},
		ExposedInputs:  map[string]PortRef{},
		ExposedOutputs: map[string]PortRef{},
		sink:           sink,
	}
}

// AddNode registers n under its own name. A duplicate name is not rejected:
// the later node replaces the earlier one (keeping its NodeOrder position),
// and Validate does not report it. Duplicate names across subgraphs are
// rejected at plan-build time as a DUP_NODE WiringError.
func (s *Subgraph) AddNode(n *node.Node) {
	if _, exists := s.Nodes[n.Name]; !exists {
		s.NodeOrder = append(s.NodeOrder, n.Name)
	}
	s.Nodes[n.Name] = n
}

// edgeID computes the canonical "{src_node}:{src_port}->{dst_node}:{dst_port}"
// identifier used to address an edge within a flattened plan.
func edgeID(src, dst PortRef) string {
	return fmt.Sprintf("%s:%s->%s:%s", src.Node, src.Port, dst.Node, dst.Port)
}

// Connect records a connection from src to dst, defaulting capacity to 1024
// and policy to nil (edge.TryPut defaults nil to Latest). It returns the
// edge id deterministically, even if the referenced nodes/ports don't yet
// exist — structural problems surface from Validate, not from Connect.
func (s *Subgraph) Connect(src, dst PortRef, opts ...EdgeOption) string {
	o := edgeOptions{capacity: 1024}
	for _, opt := range opts {
		opt(&o)
	}
	id := edgeID(src, dst)
	s.Edges = append(s.Edges, EdgeDesc{
		ID:       id,
		Src:      src,
		Dst:      dst,
		Capacity: o.capacity,
		Policy:   o.policy,
	})
	return id
}

// ExposeInput maps an external name to an internal input port, for when this
// Subgraph is composed into a larger one.
func (s *Subgraph) ExposeInput(externalName string, internal PortRef) {
	s.ExposedInputs[externalName] = internal
}

// ExposeOutput maps an external name to an internal output port.
func (s *Subgraph) ExposeOutput(externalName string, internal PortRef) {
	s.ExposedOutputs[externalName] = internal
}

// Validate checks structural wiring and returns every diagnostic found; an
// empty slice means the subgraph is structurally sound. Error-level issues
// make the subgraph unusable for a RuntimePlan build; warning-level issues
// (dangling exposed names, self-loops) do not.
func (s *Subgraph) Validate() []ValidationIssue {
	var issues []ValidationIssue

	seenEdgeIDs := map[string]bool{}
	for _, e := range s.Edges {
		srcNode, ok := s.Nodes[e.Src.Node]
		if !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeUnknownNode, Severity: SeverityError,
				Message:  fmt.Sprintf("unknown source node %q", e.Src.Node),
				Location: e.ID,
			})
		} else if _, ok := srcNode.OutputPort(e.Src.Port); !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeNoSrcPort, Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has no output port %q", e.Src.Node, e.Src.Port),
				Location: e.ID,
			})
		}

		dstNode, ok := s.Nodes[e.Dst.Node]
		if !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeUnknownNode, Severity: SeverityError,
				Message:  fmt.Sprintf("unknown target node %q", e.Dst.Node),
				Location: e.ID,
			})
		} else if _, ok := dstNode.InputPort(e.Dst.Port); !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeNoDstPort, Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has no input port %q", e.Dst.Node, e.Dst.Port),
				Location: e.ID,
			})
		}

		if e.Capacity <= 0 {
			issues = append(issues, ValidationIssue{
				Code: CodeBadCap, Severity: SeverityError,
				Message:  fmt.Sprintf("capacity must be positive, got %d", e.Capacity),
				Location: e.ID,
			})
		}

		if seenEdgeIDs[e.ID] {
			issues = append(issues, ValidationIssue{
				Code: CodeDupEdge, Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate edge id %q", e.ID),
				Location: e.ID,
			})
		}
		seenEdgeIDs[e.ID] = true

		if e.Src.Node == e.Dst.Node {
			issues = append(issues, ValidationIssue{
				Code: CodeSelfLoop, Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q connects to itself", e.Src.Node),
				Location: e.ID,
			})
		}
	}

	seenIn := map[string]bool{}
	for name, ref := range s.ExposedInputs {
		if seenIn[name] {
			issues = append(issues, ValidationIssue{
				Code: CodeDupExposeIn, Severity: SeverityWarning,
				Message: fmt.Sprintf("duplicate exposed input %q", name), Location: name,
			})
		}
		seenIn[name] = true
		n, ok := s.Nodes[ref.Node]
		if !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeBadExposeIn, Severity: SeverityWarning,
				Message: fmt.Sprintf("exposed input %q references unknown node %q", name, ref.Node), Location: name,
			})
			continue
		}
		if _, ok := n.InputPort(ref.Port); !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeBadExposeIn, Severity: SeverityWarning,
				Message: fmt.Sprintf("exposed input %q references unknown port %q on node %q", name, ref.Port, ref.Node), Location: name,
			})
		}
	}

	seenOut := map[string]bool{}
	for name, ref := range s.ExposedOutputs {
		if seenOut[name] {
			issues = append(issues, ValidationIssue{
				Code: CodeDupExposeOut, Severity: SeverityWarning,
				Message: fmt.Sprintf("duplicate exposed output %q", name), Location: name,
			})
		}
		seenOut[name] = true
		n, ok := s.Nodes[ref.Node]
		if !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeBadExposeOut, Severity: SeverityWarning,
				Message: fmt.Sprintf("exposed output %q references unknown node %q", name, ref.Node), Location: name,
			})
			continue
		}
		if _, ok := n.OutputPort(ref.Port); !ok {
			issues = append(issues, ValidationIssue{
				Code: CodeBadExposeOut, Severity: SeverityWarning,
				Message: fmt.Sprintf("exposed output %q references unknown port %q on node %q", name, ref.Port, ref.Node), Location: name,
			})
		}
	}

	return issues
}

// HasErrors reports whether issues contains any error-level entry.
func HasErrors(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.IsError() {
			return true
		}
	}
	return false
}

// BuildEdges instantiates a concrete *edge.Edge for every EdgeDesc, deriving
// each edge's PortSpec from its target input port. Called by plan.BuildFromGraphs.
func (s *Subgraph) BuildEdges() (map[string]*edge.Edge, error) {
	built := make(map[string]*edge.Edge, len(s.Edges))
	for _, d := range s.Edges {
		var spec *port.Spec
		if dn, ok := s.Nodes[d.Dst.Node]; ok {
			if p, ok := dn.InputPort(d.Dst.Port); ok {
				spec = p.Spec
			}
		}
		e, err := edge.New(d.ID, d.Src.Node, d.Src.Port, d.Dst.Node, d.Dst.Port, d.Capacity, spec, s.sink)
		if err != nil {
			return nil, err
		}
		built[d.ID] = e
	}
	return built, nil
}

// Package plan implements the RuntimePlan: a flattened, index-addressable
// view of one or more Subgraphs, carrying per-node readiness and per-edge
// priority so the scheduler never walks node/edge object graphs directly.
package plan

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ghostweasellabs/arachne/edge"
	"github.com/ghostweasellabs/arachne/errdefs"
	"github.com/ghostweasellabs/arachne/graph"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/policy"
)

// PriorityBand is the closed enumeration {Normal, High, Control}, ordered so
// that a larger value is a higher band; Control is always the maximum.
type PriorityBand int

const (
	Normal PriorityBand = iota
	High
	Control
)

func (b PriorityBand) String() string {
	switch b {
	case Control:
		return "Control"
	case High:
		return "High"
	default:
		return "Normal"
	}
}

// EdgeRef holds one Edge and its current priority band within the plan.
type EdgeRef struct {
	ID   string
	Edge *edge.Edge
	Band PriorityBand

	// DefaultPolicy is applied to Data/Error emissions on this edge by the
	// scheduler's backpressure-aware emit path; Control emissions always use
	// Block regardless of this field.
	DefaultPolicy policy.Policy
}

// NodeRef holds one Node, its input/output edge references, and its
// runtime counters.
type NodeRef struct {
	Node       *node.Node
	Inputs     map[string]*EdgeRef
	Outputs    map[string][]*EdgeRef
	ErrorCount int
	LastTick   time.Time
}

// ReadyState is the per-node readiness snapshot computed by UpdateReadiness.
type ReadyState struct {
	MessageReady bool
	TickReady    bool
	BlockedEdges map[string]struct{}
}

// RuntimePlan is the flattened execution view built from one or more
// Subgraphs at scheduler start.
type RuntimePlan struct {
	Nodes       map[string]*NodeRef
	Edges       map[string]*EdgeRef
	ReadyStates map[string]*ReadyState

	// order preserves node registration order across all registered
	// subgraphs, for deterministic reverse-order shutdown; it is never
	// derived from map iteration.
	order []string
}

// New builds an empty RuntimePlan.
func New() *RuntimePlan {
	return &RuntimePlan{
		Nodes:       map[string]*NodeRef{},
		Edges:       map[string]*EdgeRef{},
		ReadyStates: map[string]*ReadyState{},
	}
}

// Order returns node names in registration order.
func (p *RuntimePlan) Order() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// BuildFromGraphs flattens graphs into the plan, applying pendingPriorities
// to matching edges. Each duplicate node name across graphs becomes an
// *errdefs.WiringError, and all of them are returned together as one
// go-multierror error; edge ids in
// pendingPriorities with no corresponding edge are silently ignored (they
// belong to a future registration).
func (p *RuntimePlan) BuildFromGraphs(graphs []*graph.Subgraph, pendingPriorities map[string]PriorityBand) error {
	var errs *multierror.Error

	for _, g := range graphs {
		for _, name := range g.NodeOrder {
			if _, exists := p.Nodes[name]; exists {
				errs = multierror.Append(errs, errdefs.NewWiringError(
					fmt.Errorf("%s: duplicate node name %q", graph.CodeDupNode, name)))
				continue
			}
			p.Nodes[name] = &NodeRef{
				Node:    g.Nodes[name],
				Inputs:  map[string]*EdgeRef{},
				Outputs: map[string][]*EdgeRef{},
			}
			p.ReadyStates[name] = &ReadyState{BlockedEdges: map[string]struct{}{}}
			p.order = append(p.order, name)
		}
	}
	if errs.ErrorOrNil() != nil {
		return errs.ErrorOrNil()
	}

	for _, g := range graphs {
		builtEdges, err := g.BuildEdges()
		if err != nil {
			errs = multierror.Append(errs, errdefs.NewWiringError(err))
			continue
		}
		for _, d := range g.Edges {
			e, ok := builtEdges[d.ID]
			if !ok {
				continue
			}
			defaultPolicy := d.Policy
			if defaultPolicy == nil {
				defaultPolicy = policy.Latest{}
			}
			ref := &EdgeRef{ID: d.ID, Edge: e, Band: Normal, DefaultPolicy: defaultPolicy}
			p.Edges[d.ID] = ref

			if srcRef, ok := p.Nodes[d.Src.Node]; ok {
				srcRef.Outputs[d.Src.Port] = append(srcRef.Outputs[d.Src.Port], ref)
			}
			if dstRef, ok := p.Nodes[d.Dst.Node]; ok {
				dstRef.Inputs[d.Dst.Port] = ref
			}
		}
	}
	if errs.ErrorOrNil() != nil {
		return errs.ErrorOrNil()
	}

	for id, band := range pendingPriorities {
		if ref, ok := p.Edges[id]; ok {
			ref.Band = band
		}
	}

	return nil
}

// UpdateReadiness recomputes MessageReady/TickReady for every node without
// mutating any node state. tickIntervalMs is the configured minimum time
// between successive on_tick invocations.
func (p *RuntimePlan) UpdateReadiness(tickIntervalMs int) {
	now := time.Now()
	for name, ref := range p.Nodes {
		state := p.ReadyStates[name]

		messageReady := false
		for _, in := range ref.Inputs {
			if in.Edge.Depth() > 0 {
				messageReady = true
				break
			}
		}
		state.MessageReady = messageReady

		elapsedMs := now.Sub(ref.LastTick).Milliseconds()
		state.TickReady = elapsedMs >= int64(tickIntervalMs)
	}
}

// GetNodePriority returns the node's effective band: if message-ready, the
// maximum band among its input edges with depth > 0; otherwise Normal.
func (p *RuntimePlan) GetNodePriority(name string) PriorityBand {
	ref, ok := p.Nodes[name]
	if !ok {
		return Normal
	}
	state := p.ReadyStates[name]
	if state == nil || !state.MessageReady {
		return Normal
	}

	best := Normal
	for _, in := range ref.Inputs {
		if in.Edge.Depth() > 0 && in.Band > best {
			best = in.Band
		}
	}
	return best
}

// SetEdgePriority updates the named edge's band. An unknown edge id returns
// an error.
func (p *RuntimePlan) SetEdgePriority(edgeID string, band PriorityBand) error {
	ref, ok := p.Edges[edgeID]
	if !ok {
		return errdefs.NewConfigError("edge_id", fmt.Sprintf("unknown edge %q", edgeID))
	}
	ref.Band = band
	return nil
}

// SetEdgeCapacity mutates the named edge's capacity atomically with respect
// to TryPut/TryGet (the Edge's own mutex enforces this). newCapacity must be
// strictly positive; an unknown edge id or non-positive capacity is an error.
func (p *RuntimePlan) SetEdgeCapacity(edgeID string, newCapacity int) error {
	ref, ok := p.Edges[edgeID]
	if !ok {
		return errdefs.NewConfigError("edge_id", fmt.Sprintf("unknown edge %q", edgeID))
	}
	return ref.Edge.SetCapacity(newCapacity)
}

// ConnectNodesToScheduler sets every node's scheduler back-reference,
// enabling the backpressure-aware emit path.
func (p *RuntimePlan) ConnectNodesToScheduler(s node.Emitter) {
	for _, ref := range p.Nodes {
		ref.Node.Attach(s)
	}
}

package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostweasellabs/arachne/graph"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/plan"
	"github.com/ghostweasellabs/arachne/policy"
	"github.com/ghostweasellabs/arachne/port"
)

func buildSimpleGraph(t *testing.T) *graph.Subgraph {
	t.Helper()
	g := graph.New("g", nil)
	g.AddNode(node.New("producer", nil, []port.Port{port.New("out", port.Output, nil)}, node.BaseHandler{}, nil, nil))
	g.AddNode(node.New("consumer", []port.Port{port.New("in", port.Input, nil)}, nil, node.BaseHandler{}, nil, nil))
	g.Connect(graph.PortRef{Node: "producer", Port: "out"}, graph.PortRef{Node: "consumer", Port: "in"}, graph.WithPolicy(policy.Block{}))
	return g
}

func TestBuildFromGraphsWiresNodesAndEdges(t *testing.T) {
	g := buildSimpleGraph(t)
	p := plan.New()

	err := p.BuildFromGraphs([]*graph.Subgraph{g}, nil)
	require.NoError(t, err)

	assert.Len(t, p.Nodes, 2)
	assert.Len(t, p.Edges, 1)
	assert.Equal(t, []string{"producer", "consumer"}, p.Order())

	producerRef := p.Nodes["producer"]
	assert.Len(t, producerRef.Outputs["out"], 1)

	consumerRef := p.Nodes["consumer"]
	assert.NotNil(t, consumerRef.Inputs["in"])
}

func TestBuildFromGraphsRejectsDuplicateNodeNames(t *testing.T) {
	g1 := graph.New("g1", nil)
	g1.AddNode(node.New("shared", nil, nil, node.BaseHandler{}, nil, nil))
	g2 := graph.New("g2", nil)
	g2.AddNode(node.New("shared", nil, nil, node.BaseHandler{}, nil, nil))

	p := plan.New()
	err := p.BuildFromGraphs([]*graph.Subgraph{g1, g2}, nil)
	assert.Error(t, err)
}

func TestBuildFromGraphsAppliesPendingPriorities(t *testing.T) {
	g := buildSimpleGraph(t)
	p := plan.New()

	edgeID := "producer:out->consumer:in"

	err := p.BuildFromGraphs([]*graph.Subgraph{g}, map[string]plan.PriorityBand{edgeID: plan.Control})
	require.NoError(t, err)

	ref, ok := p.Edges[edgeID]
	require.True(t, ok)
	assert.Equal(t, plan.Control, ref.Band)
}

func TestUpdateReadinessReflectsEdgeDepth(t *testing.T) {
	g := buildSimpleGraph(t)
	p := plan.New()
	require.NoError(t, p.BuildFromGraphs([]*graph.Subgraph{g}, nil))

	p.UpdateReadiness(50)
	assert.False(t, p.ReadyStates["consumer"].MessageReady)

	edgeID := "producer:out->consumer:in"
	_, err := p.Edges[edgeID].Edge.TryPut("hello", policy.Block{})
	require.NoError(t, err)

	p.UpdateReadiness(50)
	assert.True(t, p.ReadyStates["consumer"].MessageReady)
}

func TestGetNodePriorityReflectsMaxBandAmongReadyInputs(t *testing.T) {
	g := buildSimpleGraph(t)
	p := plan.New()
	require.NoError(t, p.BuildFromGraphs([]*graph.Subgraph{g}, nil))

	edgeID := "producer:out->consumer:in"
	require.NoError(t, p.SetEdgePriority(edgeID, plan.High))

	assert.Equal(t, plan.Normal, p.GetNodePriority("consumer"))

	_, err := p.Edges[edgeID].Edge.TryPut(1, policy.Block{})
	require.NoError(t, err)
	p.UpdateReadiness(50)

	assert.Equal(t, plan.High, p.GetNodePriority("consumer"))
}

func TestSetEdgePriorityUnknownEdgeErrors(t *testing.T) {
	p := plan.New()
	assert.Error(t, p.SetEdgePriority("nope", plan.High))
}

func TestSetEdgeCapacityUnknownEdgeErrors(t *testing.T) {
	p := plan.New()
	assert.Error(t, p.SetEdgeCapacity("nope", 5))
}

func TestSetEdgeCapacityRejectsNonPositive(t *testing.T) {
	g := buildSimpleGraph(t)
	p := plan.New()
	require.NoError(t, p.BuildFromGraphs([]*graph.Subgraph{g}, nil))

	assert.Error(t, p.SetEdgeCapacity("producer:out->consumer:in", 0))
	assert.NoError(t, p.SetEdgeCapacity("producer:out->consumer:in", 10))
}

package graph_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostweasellabs/arachne/graph"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/port"
)

func plainNode(name string, in, out string) *node.Node {
	var inputs, outputs []port.Port
	if in != "" {
		inputs = []port.Port{port.New(in, port.Input, nil)}
	}
	if out != "" {
		outputs = []port.Port{port.New(out, port.Output, nil)}
	}
	return node.New(name, inputs, outputs, node.BaseHandler{}, nil, nil)
}

func TestValidateCleanGraphHasNoIssues(t *testing.T) {
	g := graph.New("g", nil)
	g.AddNode(plainNode("a", "", "out"))
	g.AddNode(plainNode("b", "in", ""))
	g.Connect(graph.PortRef{Node: "a", Port: "out"}, graph.PortRef{Node: "b", Port: "in"})

	issues := g.Validate()
	assert.Empty(t, issues)
}

func TestValidateUnknownNodeAndPorts(t *testing.T) {
	g := graph.New("g", nil)
	g.AddNode(plainNode("a", "", "out"))
	g.Connect(graph.PortRef{Node: "a", Port: "missing"}, graph.PortRef{Node: "ghost", Port: "in"})

	issues := g.Validate()
	assert.True(t, graph.HasErrors(issues))

	var codes []string
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, graph.CodeNoSrcPort)
	assert.Contains(t, codes, graph.CodeUnknownNode)
}

func TestValidateBadCapacity(t *testing.T) {
	g := graph.New("g", nil)
	g.AddNode(plainNode("a", "", "out"))
	g.AddNode(plainNode("b", "in", ""))
	g.Connect(graph.PortRef{Node: "a", Port: "out"}, graph.PortRef{Node: "b", Port: "in"}, graph.WithCapacity(0))

	issues := g.Validate()
	var codes []string
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, graph.CodeBadCap)
}

func TestValidateSelfLoopIsWarningNotError(t *testing.T) {
	g := graph.New("g", nil)
	n := plainNode("a", "in", "out")
	g.AddNode(n)
	g.Connect(graph.PortRef{Node: "a", Port: "out"}, graph.PortRef{Node: "a", Port: "in"})

	issues := g.Validate()
	a := assert.New(t)
	a.Len(issues, 1)
	a.Equal(graph.CodeSelfLoop, issues[0].Code)
	a.False(issues[0].IsError())
}

func TestValidateExposedPortIssues(t *testing.T) {
	g := graph.New("g", nil)
	g.AddNode(plainNode("a", "in", "out"))
	g.ExposeInput("ext_in", graph.PortRef{Node: "a", Port: "missing"})
	g.ExposeOutput("ext_out", graph.PortRef{Node: "ghost", Port: "out"})

	issues := g.Validate()
	var codes []string
	for _, i := range issues {
		codes = append(codes, i.Code)
		assert.False(t, i.IsError())
	}
	assert.Contains(t, codes, graph.CodeBadExposeIn)
	assert.Contains(t, codes, graph.CodeBadExposeOut)
}

func TestBuildEdgesDerivesSpecFromTargetPort(t *testing.T) {
	g := graph.New("g", nil)
	g.AddNode(plainNode("a", "", "out"))
	ints := port.NewSpec("ints", reflect.TypeOf(0))
	g.AddNode(node.New("b", []port.Port{port.New("in", port.Input, ints)}, nil, node.BaseHandler{}, nil, nil))
	id := g.Connect(graph.PortRef{Node: "a", Port: "out"}, graph.PortRef{Node: "b", Port: "in"})

	edges, err := g.BuildEdges()
	assert.NoError(t, err)
	assert.Contains(t, edges, id)
	assert.Equal(t, 1024, edges[id].Capacity())

	_, err = edges[id].TryPut("not an int", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, edges[id].Depth())
}

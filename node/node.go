// Package node implements the named processing unit that owns input/output
// ports and the lifecycle hooks a Scheduler drives.
package node

import (
	"context"
	"time"

	"github.com/ghostweasellabs/arachne/errdefs"
	"github.com/ghostweasellabs/arachne/message"
	"github.com/ghostweasellabs/arachne/observability/logging"
	"github.com/ghostweasellabs/arachne/observability/metrics"
	"github.com/ghostweasellabs/arachne/observability/tracing"
	"github.com/ghostweasellabs/arachne/port"
)

// State is the closed per-node lifecycle state machine.
type State int

const (
	Created State = iota
	Started
	Running
	Stopped
)

// Emitter is implemented by a Scheduler; a Node delegates the backpressure-
// aware half of Emit to whatever Emitter is attached, letting nodes be
// unit-tested without a Scheduler.
type Emitter interface {
	HandleEmit(ctx context.Context, nodeName, portName string, msg message.Message) (message.Message, error)
}

// Handler is the user-implemented contract for a node's lifecycle. Embed
// BaseHandler to get no-op defaults for any hook not overridden.
type Handler interface {
	HandleStart(ctx context.Context, n *Node) error
	HandleMessage(ctx context.Context, n *Node, portName string, msg message.Message) error
	HandleTick(ctx context.Context, n *Node) error
	HandleStop(ctx context.Context, n *Node) error
}

// BaseHandler supplies trivial no-op implementations; embed it so a handler
// only needs to override the hooks it cares about.
type BaseHandler struct{}

func (BaseHandler) HandleStart(context.Context, *Node) error { return nil }
func (BaseHandler) HandleMessage(context.Context, *Node, string, message.Message) error {
	return nil
}
func (BaseHandler) HandleTick(context.Context, *Node) error { return nil }
func (BaseHandler) HandleStop(context.Context, *Node) error { return nil }

// Counters are the per-instance observation fields exposed on a Node.
type Counters struct {
	MessagesProcessed int64
	Errors            int64
	LastTickTime      time.Duration
}

// Node is a named processing unit with a fixed set of input and output
// ports, driven by a Handler.
type Node struct {
	Name    string
	Inputs  []port.Port
	Outputs []port.Port
	Handler Handler

	State    State
	Counters Counters

	scheduler Emitter
	logger    *logging.Logger
	sink      metrics.Sink

	durationHist metrics.Histogram
	errCounter   metrics.Counter
	msgCounter   metrics.Counter
}

// New builds a Node in the Created state. logger/sink may be nil, defaulting
// to an info logger and a discarding metrics sink.
func New(name string, inputs, outputs []port.Port, handler Handler, logger *logging.Logger, sink metrics.Sink) *Node {
	if logger == nil {
		logger = logging.New("info")
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	n := &Node{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		Handler: handler,
		State:   Created,
		logger:  logger.With(map[string]any{"node": name}),
		sink:    sink,
	}
	labels := map[string]string{"node": name}
	n.durationHist = sink.Histogram("node_tick_duration_seconds", labels)
	n.errCounter = sink.Counter("node_errors_total", labels)
	n.msgCounter = sink.Counter("node_messages_total", labels)
	return n
}

// OutputPort finds an output port by name.
func (n *Node) OutputPort(name string) (port.Port, bool) {
	for _, p := range n.Outputs {
		if p.Name == name && p.IsOutput() {
			return p, true
		}
	}
	return port.Port{}, false
}

// InputPort finds an input port by name.
func (n *Node) InputPort(name string) (port.Port, bool) {
	for _, p := range n.Inputs {
		if p.Name == name && p.IsInput() {
			return p, true
		}
	}
	return port.Port{}, false
}

// attach sets the Scheduler back-reference, enabling the backpressure path.
// Called only by the scheduler package while the node is running.
func (n *Node) attach(s Emitter) { n.scheduler = s }

// detach clears the Scheduler back-reference on stop.
func (n *Node) detach() { n.scheduler = nil }

// Attach is the exported form of attach, for use by package scheduler.
func (n *Node) Attach(s Emitter) { n.attach(s) }

// Detach is the exported form of detach, for use by package scheduler.
func (n *Node) Detach() { n.detach() }

// Emit validates msg and portName, then either delegates delivery to the
// attached Scheduler's backpressure-aware path or, absent a Scheduler,
// returns msg unchanged (a no-op), so nodes can be unit-tested in isolation.
func (n *Node) Emit(ctx context.Context, portName string, msg message.Message) (message.Message, error) {
	if !msg.Kind().Valid() {
		return msg, errdefs.NewWiringError(errdefs.NewConfigError("kind", "not one of Data, Control, Error"))
	}
	if _, ok := n.OutputPort(portName); !ok {
		return msg, errdefs.NewWiringError(errdefs.NewConfigError("port", "unknown output port "+portName))
	}
	if _, has := msg.Header(message.HeaderTraceID); !has || msg.TraceID() == "" {
		if id, ok := tracing.TraceIDFromContext(ctx); ok {
			msg = msg.WithHeaders(map[string]any{message.HeaderTraceID: id})
		}
	}
	if n.scheduler == nil {
		return msg, nil
	}
	return n.scheduler.HandleEmit(ctx, n.Name, portName, msg)
}

// OnStart wraps Handler.HandleStart with a lifecycle log line; errors are
// returned to the caller (the scheduler isolates them per node) but never
// panic.
func (n *Node) OnStart(ctx context.Context) error {
	n.logger.Info(logging.EventNodeStart, "node starting", nil)
	if err := n.Handler.HandleStart(ctx, n); err != nil {
		return errdefs.NewLifecycleError(n.Name, "on_start", err)
	}
	n.State = Started
	return nil
}

// OnStop wraps Handler.HandleStop with a lifecycle log line.
func (n *Node) OnStop(ctx context.Context) error {
	n.logger.Info(logging.EventNodeStop, "node stopping", nil)
	err := n.Handler.HandleStop(ctx, n)
	n.State = Stopped
	n.detach()
	if err != nil {
		return errdefs.NewLifecycleError(n.Name, "on_stop", err)
	}
	return nil
}

// OnMessage wraps Handler.HandleMessage: it adopts msg's trace id into the
// ambient tracing context, times the call, and counts success/failure.
func (n *Node) OnMessage(ctx context.Context, portName string, msg message.Message) error {
	ctx = tracing.WithTraceID(ctx, msg.TraceID())
	ctx, span := tracing.StartSpan(ctx, "node.on_message")
	defer span.End()

	start := time.Now()
	err := n.Handler.HandleMessage(ctx, n, portName, msg)
	n.durationHist.Observe(time.Since(start).Seconds())

	if n.State == Started {
		n.State = Running
	}
	if err != nil {
		n.Counters.Errors++
		n.errCounter.Inc(1)
		n.logger.WithTraceID(ctx).Error(logging.EventNodeMessageError, err.Error(), map[string]any{"port": portName})
		return errdefs.NewUserError(n.Name, "on_message", err)
	}
	n.Counters.MessagesProcessed++
	n.msgCounter.Inc(1)
	return nil
}

// OnTick wraps Handler.HandleTick with timing and error counting.
func (n *Node) OnTick(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "node.on_tick")
	defer span.End()

	start := time.Now()
	err := n.Handler.HandleTick(ctx, n)
	elapsed := time.Since(start)
	n.durationHist.Observe(elapsed.Seconds())
	n.Counters.LastTickTime = elapsed

	if n.State == Started {
		n.State = Running
	}
	if err != nil {
		n.Counters.Errors++
		n.errCounter.Inc(1)
		n.logger.Error(logging.EventNodeTickError, err.Error(), nil)
		return errdefs.NewUserError(n.Name, "on_tick", err)
	}
	return nil
}

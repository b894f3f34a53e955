// Package scheduler implements the cooperative single-threaded main loop
// that selects runnable nodes by priority and fairness, drives their
// message/tick handlers, enforces backpressure on emission, and performs
// deterministic startup and shutdown.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghostweasellabs/arachne/errdefs"
	"github.com/ghostweasellabs/arachne/graph"
	"github.com/ghostweasellabs/arachne/message"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/observability/logging"
	"github.com/ghostweasellabs/arachne/observability/metrics"
	"github.com/ghostweasellabs/arachne/plan"
	"github.com/ghostweasellabs/arachne/policy"
)

// Registrable is satisfied by *node.Node and *graph.Subgraph; Register
// accepts either.
type Registrable interface{}

// EdgeStats summarizes one edge's current depth and lifetime counters.
type EdgeStats struct {
	ID        string
	Depth     int
	Capacity  int
	Band      string
	Enqueued  int64
	Dequeued  int64
	Dropped   int64
}

// NodeStats summarizes one node's lifetime counters.
type NodeStats struct {
	Name              string
	MessagesProcessed int64
	Errors            int64
	LastTickTime      time.Duration
}

// StatsSummary is the scheduler's point-in-time snapshot of per-node and
// per-edge counters.
type StatsSummary struct {
	Nodes []NodeStats
	Edges []EdgeStats
}

// Scheduler runs the cooperative main loop over one or more registered
// units.
type Scheduler struct {
	cfg    Config
	logger *logging.Logger
	sink   metrics.Sink

	mu                sync.Mutex
	pendingGraphs     []*graph.Subgraph
	pendingPriorities map[string]plan.PriorityBand
	built             bool
	plan              *plan.RuntimePlan

	queues   [3]*bandQueue
	nodeBand map[string]plan.PriorityBand
	wrr      [2]int // smooth-weighted-round-robin accumulators: [High, Normal]

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	loopLatencyHist        metrics.Histogram
	runnableGauge          metrics.Gauge
	priorityAppliedCounter metrics.Counter
}

// New builds a Scheduler. logger/sink may be nil, defaulting to an info
// logger and a discarding metrics sink.
func New(cfg Config, logger *logging.Logger, sink metrics.Sink) *Scheduler {
	if logger == nil {
		logger = logging.New("info")
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	s := &Scheduler{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		nodeBand: map[string]plan.PriorityBand{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for i := range s.queues {
		s.queues[i] = newBandQueue()
	}
	s.loopLatencyHist = sink.Histogram("scheduler_loop_latency_seconds", nil)
	s.runnableGauge = sink.Gauge("scheduler_runnable_nodes", nil)
	s.priorityAppliedCounter = sink.Counter("scheduler_priority_applied_total", nil)
	return s
}

// Register records a Node or Subgraph for inclusion in the RuntimePlan built
// at Run. A bare Node is wrapped in a single-node Subgraph under its own
// name. Register may only be called before Run.
func (s *Scheduler) Register(unit Registrable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built {
		return errdefs.NewConfigError("register", "scheduler already built its plan")
	}
	switch u := unit.(type) {
	case *node.Node:
		g := graph.New(u.Name, s.sink)
		g.AddNode(u)
		s.pendingGraphs = append(s.pendingGraphs, g)
	case *graph.Subgraph:
		s.pendingGraphs = append(s.pendingGraphs, u)
	default:
		return errdefs.NewConfigError("unit", fmt.Sprintf("unsupported registrable type %T", unit))
	}
	return nil
}

// SetPriority requests band for edgeID. Callable before or during Run: if
// the plan isn't built yet the request is queued for build time; if the
// edge id is unknown once built, the mismatch is logged, not raised.
func (s *Scheduler) SetPriority(edgeID string, band plan.PriorityBand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		if s.pendingPriorities == nil {
			s.pendingPriorities = map[string]plan.PriorityBand{}
		}
		s.pendingPriorities[edgeID] = band
		return
	}
	if err := s.plan.SetEdgePriority(edgeID, band); err != nil {
		s.logger.Warn(logging.EventSchedulerPriorityChanged, "unknown edge id", map[string]any{"edge_id": edgeID})
		return
	}
	s.priorityAppliedCounter.Inc(1)
	s.logger.Info(logging.EventSchedulerPriorityChanged, "edge priority changed", map[string]any{"edge_id": edgeID, "band": band.String()})
}

// SetCapacity requests a new capacity for edgeID. Only callable during Run
// (before Run it is rejected, since no edge identifiers exist yet); an
// unknown edge id or non-positive capacity is logged rather than raised.
func (s *Scheduler) SetCapacity(edgeID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		return errdefs.NewConfigError("set_capacity", "plan not yet built; no edge identifiers exist")
	}
	if err := s.plan.SetEdgeCapacity(edgeID, n); err != nil {
		s.logger.Warn(logging.EventSchedulerCapacityChanged, "set_capacity failed", map[string]any{"edge_id": edgeID, "error": err.Error()})
		return nil
	}
	s.logger.Info(logging.EventSchedulerCapacityChanged, "edge capacity changed", map[string]any{"edge_id": edgeID, "capacity": n})
	return nil
}

// Shutdown is idempotent and safe to call from any goroutine. It signals
// the main loop to stop; Run returns once shutdown has completed (including
// reverse-order on_stop calls).
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.logger.Info(logging.EventSchedulerShutdownRequested, "shutdown requested", nil)
		close(s.stopCh)
	})
}

// Done returns a channel closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} { return s.doneCh }

// Run builds the RuntimePlan, starts every node, drives the main loop until
// shutdown is requested or ctx is canceled, then stops every node in
// reverse insertion order. Run is not re-entrant.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.built {
		s.mu.Unlock()
		return errdefs.NewConfigError("run", "not re-entrant")
	}
	p := plan.New()
	if err := p.BuildFromGraphs(s.pendingGraphs, s.pendingPriorities); err != nil {
		s.mu.Unlock()
		return err
	}
	s.plan = p
	s.built = true
	p.ConnectNodesToScheduler(s)
	s.mu.Unlock()

	defer close(s.doneCh)

	s.logger.Info(logging.EventSchedulerStart, "scheduler starting", nil)

	for _, name := range p.Order() {
		ref := p.Nodes[name]
		if err := ref.Node.OnStart(ctx); err != nil {
			ref.ErrorCount++
		}
	}

	s.logger.Info(logging.EventSchedulerReady, "scheduler ready", nil)

	s.mainLoop(ctx)

	s.stopNodesWithBudget(ctx, p.Order())

	s.logger.Info(logging.EventSchedulerShutdownComplete, "scheduler stopped", nil)
	return nil
}

// stopNodesWithBudget calls OnStop on every node in the reverse of order,
// spreading the configured ShutdownTimeoutS across the nodes still pending.
// A node whose OnStop exceeds its share of the remaining budget is logged and
// abandoned: stopNodesWithBudget moves on to the next node without waiting
// for it, since the core does not cancel an in-flight handler call.
func (s *Scheduler) stopNodesWithBudget(ctx context.Context, order []string) {
	deadline := time.Now().Add(time.Duration(s.cfg.ShutdownTimeoutS * float64(time.Second)))

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		ref := s.plan.Nodes[name]

		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.logger.Warn(logging.EventSchedulerStopAbandoned, "shutdown budget exhausted, abandoning on_stop", map[string]any{"node": name})
			ref.ErrorCount++
			continue
		}

		share := remaining / time.Duration(i+1)
		done := make(chan error, 1)
		go func() { done <- ref.Node.OnStop(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				ref.ErrorCount++
			}
		case <-time.After(share):
			s.logger.Warn(logging.EventSchedulerStopAbandoned, "on_stop exceeded its shutdown budget share, abandoning", map[string]any{"node": name, "budget_share_ms": share.Milliseconds()})
			ref.ErrorCount++
		}
	}
}

func (s *Scheduler) mainLoop(ctx context.Context) {
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()

		s.mu.Lock()
		s.plan.UpdateReadiness(s.cfg.TickIntervalMs)
		s.refreshReadyQueues()
		name, ok := s.selectNext()
		if !ok {
			s.mu.Unlock()
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(s.cfg.IdleSleepMs) * time.Millisecond):
			}
			continue
		}
		ref := s.plan.Nodes[name]
		state := s.plan.ReadyStates[name]
		s.runnableGauge.Set(float64(s.runnableCountLocked()))
		s.mu.Unlock()

		s.serviceNode(ctx, name, ref, state)

		s.loopLatencyHist.Observe(time.Since(start).Seconds())
	}
}

// refreshReadyQueues re-derives each band queue's membership from current
// readiness: a ready node already queued in its current effective band keeps
// its place (FIFO within the band); a ready node whose band changed, or that
// was not queued, is appended to its band's tail; a node no longer ready is
// removed.
func (s *Scheduler) refreshReadyQueues() {
	for _, name := range s.plan.Order() {
		state := s.plan.ReadyStates[name]
		ready := state.MessageReady || state.TickReady
		band := s.plan.GetNodePriority(name)

		if cur, tracked := s.nodeBand[name]; tracked {
			if ready && cur == band {
				continue
			}
			s.queues[cur].remove(name)
			delete(s.nodeBand, name)
		}
		if !ready {
			continue
		}
		s.queues[band].pushBack(name)
		s.nodeBand[name] = band
	}
}

// selectNext picks one runnable node name per the priority + fairness
// policy: Control always preempts; between High and Normal, a smooth
// weighted round robin approximates FairnessRatio; if the weighted pick's
// band is empty, the scheduler falls back to whichever of High/Normal is
// non-empty.
func (s *Scheduler) selectNext() (string, bool) {
	if !s.queues[plan.Control].isEmpty() {
		name, _ := s.queues[plan.Control].popFront()
		delete(s.nodeBand, name)
		return name, true
	}

	highEmpty := s.queues[plan.High].isEmpty()
	normalEmpty := s.queues[plan.Normal].isEmpty()
	if highEmpty && normalEmpty {
		return "", false
	}

	band := s.pickWeighted(highEmpty, normalEmpty)
	name, _ := s.queues[band].popFront()
	delete(s.nodeBand, name)
	return name, true
}

// pickWeighted implements the nginx smooth-weighted-round-robin algorithm
// over the High/Normal bands: each call accumulates every candidate band's
// weight, picks the band with the largest accumulator, and subtracts the
// round's total weight from the winner. Over many calls this converges to
// servicing each band in proportion to its configured weight.
func (s *Scheduler) pickWeighted(highEmpty, normalEmpty bool) plan.PriorityBand {
	if highEmpty {
		return plan.Normal
	}
	if normalEmpty {
		return plan.High
	}

	wHigh := s.cfg.FairnessRatio[plan.High]
	wNormal := s.cfg.FairnessRatio[plan.Normal]
	total := wHigh + wNormal

	s.wrr[0] += wHigh
	s.wrr[1] += wNormal

	if s.wrr[0] >= s.wrr[1] {
		s.wrr[0] -= total
		return plan.High
	}
	s.wrr[1] -= total
	return plan.Normal
}

func (s *Scheduler) runnableCountLocked() int {
	count := 0
	for _, q := range s.queues {
		for cur := q.next; cur != nil; cur = cur.next {
			count++
		}
	}
	return count
}

func (s *Scheduler) serviceNode(ctx context.Context, name string, ref *plan.NodeRef, state *plan.ReadyState) {
	if state.MessageReady {
		s.drainMessages(ctx, ref, state)
		return
	}
	if state.TickReady {
		s.tickNode(ctx, ref)
	}
}

// drainMessages drains up to MaxBatchPerNode input messages. Input ports are
// visited by their edge's current band, highest first (Control, then High,
// then Normal), and in the node's declared order within a band: a node
// pulled onto the Control queue because one of its inputs has a pending
// Control message services that input before any Normal one.
func (s *Scheduler) drainMessages(ctx context.Context, ref *plan.NodeRef, state *plan.ReadyState) {
	drained := 0
	for _, band := range [...]plan.PriorityBand{plan.Control, plan.High, plan.Normal} {
		for _, p := range ref.Node.Inputs {
			if drained >= s.cfg.MaxBatchPerNode {
				return
			}
			edgeRef, ok := ref.Inputs[p.Name]
			if !ok || edgeRef.Band != band {
				continue
			}
			for drained < s.cfg.MaxBatchPerNode {
				item, ok := edgeRef.Edge.TryGet()
				if !ok {
					break
				}
				msg, ok := item.(message.Message)
				if !ok {
					msg = message.New(message.Data, item, nil, nil)
				}
				if err := ref.Node.OnMessage(ctx, p.Name, msg); err != nil {
					ref.ErrorCount++
				}
				drained++
			}
		}
	}
}

func (s *Scheduler) tickNode(ctx context.Context, ref *plan.NodeRef) {
	if err := ref.Node.OnTick(ctx); err != nil {
		ref.ErrorCount++
	}
	ref.LastTick = time.Now()
}

// HandleEmit implements node.Emitter: it is installed on every node via
// plan.ConnectNodesToScheduler and is the single path through which
// backpressure is enforced.
func (s *Scheduler) HandleEmit(ctx context.Context, nodeName, portName string, msg message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.plan.Nodes[nodeName]
	if !ok {
		return msg, errdefs.NewWiringError(fmt.Errorf("emit from unregistered node %q", nodeName))
	}
	state := s.plan.ReadyStates[nodeName]

	for _, edgeRef := range ref.Outputs[portName] {
		p := edgeRef.DefaultPolicy
		if msg.IsControl() {
			p = policy.Block{}
		}

		outcome, err := edgeRef.Edge.TryPut(msg, p)
		if err != nil {
			return msg, errdefs.NewUserError(nodeName, "emit", err)
		}

		switch outcome {
		case policy.Dropped:
			s.logger.Warn(logging.EventSchedulerMessageDropped, "message dropped at capacity", map[string]any{"edge_id": edgeRef.ID, "node": nodeName, "port": portName})
			delete(state.BlockedEdges, edgeRef.ID)
		case policy.Blocked:
			state.BlockedEdges[edgeRef.ID] = struct{}{}
			s.logger.Debug(logging.EventSchedulerBackpressure, "emit blocked by backpressure", map[string]any{"edge_id": edgeRef.ID, "node": nodeName, "port": portName})
		default:
			delete(state.BlockedEdges, edgeRef.ID)
		}
	}

	return msg, nil
}

// Stats reports a snapshot of per-node and per-edge counters.
func (s *Scheduler) Stats() StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary StatsSummary
	if s.plan == nil {
		return summary
	}
	for _, name := range s.plan.Order() {
		ref := s.plan.Nodes[name]
		summary.Nodes = append(summary.Nodes, NodeStats{
			Name:              name,
			MessagesProcessed: ref.Node.Counters.MessagesProcessed,
			Errors:            ref.Node.Counters.Errors,
			LastTickTime:      ref.Node.Counters.LastTickTime,
		})
	}
	for id, ref := range s.plan.Edges {
		summary.Edges = append(summary.Edges, EdgeStats{
			ID:       id,
			Depth:    ref.Edge.Depth(),
			Capacity: ref.Edge.Capacity(),
			Band:     ref.Band.String(),
			Enqueued: ref.Edge.EnqueuedTotal(),
			Dequeued: ref.Edge.DequeuedTotal(),
			Dropped:  ref.Edge.DroppedTotal(),
		})
	}
	return summary
}

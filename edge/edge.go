// Package edge implements the bounded single-producer/single-consumer queue
// connecting one output port to one input port, with pluggable overflow
// policy.
package edge

import (
	"sync"

	"github.com/ghostweasellabs/arachne/errdefs"
	"github.com/ghostweasellabs/arachne/observability/metrics"
	"github.com/ghostweasellabs/arachne/policy"
	"github.com/ghostweasellabs/arachne/port"
)

// Edge connects exactly one output port on a source node to exactly one
// input port on a target node.
type Edge struct {
	ID         string
	SourceNode string
	SourcePort string
	TargetNode string
	TargetPort string

	spec *port.Spec
	sink metrics.Sink

	mu       sync.Mutex
	capacity int
	queue    []any

	enqueuedTotal int64
	dequeuedTotal int64
	droppedTotal  int64

	metricsOnce     sync.Once
	enqueuedCounter metrics.Counter
	dequeuedCounter metrics.Counter
	droppedCounter  metrics.Counter
	depthGauge      metrics.Gauge
}

// New builds an Edge. capacity must be strictly positive. sink may be nil,
// in which case metrics are discarded (equivalent to metrics.Noop{}).
func New(id, sourceNode, sourcePort, targetNode, targetPort string, capacity int, spec *port.Spec, sink metrics.Sink) (*Edge, error) {
	if capacity <= 0 {
		return nil, errdefs.NewConfigError("capacity", "must be strictly positive")
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Edge{
		ID:         id,
		SourceNode: sourceNode,
		SourcePort: sourcePort,
		TargetNode: targetNode,
		TargetPort: targetPort,
		spec:       spec,
		sink:       sink,
		capacity:   capacity,
		queue:      make([]any, 0, capacity),
	}, nil
}

// bindMetrics lazily allocates this edge's labeled counter/gauge handles on
// first use, so an Edge that's never exercised registers no metric series.
func (e *Edge) bindMetrics() {
	e.metricsOnce.Do(func() {
		labels := map[string]string{"edge": e.ID}
		e.enqueuedCounter = e.sink.Counter("edge_enqueued_total", labels)
		e.dequeuedCounter = e.sink.Counter("edge_dequeued_total", labels)
		e.droppedCounter = e.sink.Counter("edge_drops_total", labels)
		e.depthGauge = e.sink.Gauge("queue_depth", labels)
	})
}

// TryPut offers item to the edge under policy p (defaulted to Latest when p
// is nil). If the edge has a non-nil PortSpec, the item (or, when item is a
// message.Message, its payload) is validated first; on failure TryPut
// returns a *errdefs.TypeErr and the queue is left unmodified.
func (e *Edge) TryPut(item any, p policy.Policy) (policy.PutResult, error) {
	e.bindMetrics()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.spec != nil && !e.spec.Validate(item) {
		return policy.Ok, errdefs.NewTypeErr(e.ID, item)
	}
	if p == nil {
		p = policy.Latest{}
	}

	outcome := p.Decide(e.capacity, len(e.queue), item)
	switch outcome {
	case policy.Ok:
		e.queue = append(e.queue, item)
		e.enqueuedTotal++
		e.enqueuedCounter.Inc(1)
	case policy.Blocked:
		// No mutation; the item is not kept. The scheduler's emit path
		// records the edge as blocked and does not re-offer the item.
	case policy.Dropped:
		e.droppedTotal++
		e.droppedCounter.Inc(1)
	case policy.Replaced:
		e.queue[len(e.queue)-1] = item
		e.enqueuedTotal++
		e.enqueuedCounter.Inc(1)
	case policy.Coalesced:
		e.queue[len(e.queue)-1] = e.safeMerge(p, e.queue[len(e.queue)-1], item)
		e.enqueuedTotal++
		e.enqueuedCounter.Inc(1)
	}
	e.depthGauge.Set(float64(len(e.queue)))
	return outcome, nil
}

// safeMerge invokes the Coalesce policy's Merge function, recovering from a
// panic by falling back to the new item unchanged.
func (e *Edge) safeMerge(p policy.Policy, old, new any) (result any) {
	merger, ok := p.(policy.Merger)
	if !ok {
		return new
	}
	defer func() {
		if r := recover(); r != nil {
			result = new
		}
	}()
	return merger.Merge(old, new)
}

// TryGet dequeues one item in FIFO order, or reports absent without error.
func (e *Edge) TryGet() (any, bool) {
	e.bindMetrics()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return nil, false
	}
	item := e.queue[0]
	e.queue = e.queue[1:]
	e.dequeuedTotal++
	e.dequeuedCounter.Inc(1)
	e.depthGauge.Set(float64(len(e.queue)))
	return item, true
}

// Depth returns the current number of items held, lazily binding metrics on
// first call.
func (e *Edge) Depth() int {
	e.bindMetrics()
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// IsEmpty reports whether the edge currently holds no items.
func (e *Edge) IsEmpty() bool { return e.Depth() == 0 }

// IsFull reports whether the edge is at capacity.
func (e *Edge) IsFull() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue) >= e.capacity
}

// Capacity returns the current capacity.
func (e *Edge) Capacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capacity
}

// SetCapacity mutates the edge's capacity atomically with respect to
// TryPut/TryGet: no call may observe an intermediate value, since all three
// share the same mutex.
func (e *Edge) SetCapacity(n int) error {
	if n <= 0 {
		return errdefs.NewConfigError("capacity", "must be strictly positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capacity = n
	return nil
}

// EnqueuedTotal returns the lifetime count of items successfully enqueued
// (Ok, Replaced, and Coalesced outcomes).
func (e *Edge) EnqueuedTotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enqueuedTotal
}

// DequeuedTotal returns the lifetime count of items dequeued via TryGet.
func (e *Edge) DequeuedTotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dequeuedTotal
}

// DroppedTotal returns the lifetime count of Dropped outcomes.
func (e *Edge) DroppedTotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.droppedTotal
}

// IsSelfLoop reports whether source and target are the same node.
func (e *Edge) IsSelfLoop() bool {
	return e.SourceNode == e.TargetNode
}

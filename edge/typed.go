package edge

import "github.com/ghostweasellabs/arachne/policy"

// Typed wraps an untyped *Edge with a compile-time-typed call site: the
// runtime (RuntimePlan, Scheduler) keeps operating on the untyped Edge, while
// node handlers written against a concrete payload type can use Typed[T]
// instead of asserting on every Get.
type Typed[T any] struct {
	edge *Edge
}

// Wrap adapts an existing Edge to a Typed[T] facade. It does not validate
// that the edge's PortSpec agrees with T; mismatches surface as failed type
// assertions in TryGet.
func Wrap[T any](e *Edge) Typed[T] {
	return Typed[T]{edge: e}
}

// Unwrap returns the underlying untyped Edge.
func (t Typed[T]) Unwrap() *Edge { return t.edge }

func (t Typed[T]) TryPut(item T, p policy.Policy) (policy.PutResult, error) {
	return t.edge.TryPut(item, p)
}

// TryGet dequeues one item, reporting false both when the edge is empty and
// when the dequeued item is not assignable to T.
func (t Typed[T]) TryGet() (T, bool) {
	var zero T
	v, ok := t.edge.TryGet()
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (t Typed[T]) Depth() int    { return t.edge.Depth() }
func (t Typed[T]) IsEmpty() bool { return t.edge.IsEmpty() }
func (t Typed[T]) IsFull() bool  { return t.edge.IsFull() }

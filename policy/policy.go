// Package policy implements the overflow decisions an edge applies at
// enqueue time.
package policy

// PutResult is the closed enumeration of enqueue outcomes.
type PutResult int

const (
	Ok PutResult = iota
	Blocked
	Dropped
	Replaced
	Coalesced
)

func (r PutResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Blocked:
		return "Blocked"
	case Dropped:
		return "Dropped"
	case Replaced:
		return "Replaced"
	case Coalesced:
		return "Coalesced"
	default:
		return "Unknown"
	}
}

// Policy decides the outcome of an enqueue attempt given the edge's
// capacity, current size, and the item being offered, before the edge
// touches its queue.
type Policy interface {
	Decide(capacity, size int, item any) PutResult
}

// Merger is implemented by policies (only Coalesce) that, on a Coalesced
// outcome, combine the previously-tail item with the new one.
type Merger interface {
	Merge(old, new any) any
}

// Block returns Ok while there is room, Blocked at capacity. The edge must
// not enqueue on Blocked.
type Block struct{}

func (Block) Decide(capacity, size int, _ any) PutResult {
	if size >= capacity {
		return Blocked
	}
	return Ok
}

// Drop returns Ok while there is room, Dropped at capacity. The edge must
// not enqueue on Dropped.
type Drop struct{}

func (Drop) Decide(capacity, size int, _ any) PutResult {
	if size >= capacity {
		return Dropped
	}
	return Ok
}

// Latest returns Ok while there is room; at capacity it returns Replaced,
// telling the edge to drop the current tail and append the new item so the
// freshest value is retained.
type Latest struct{}

func (Latest) Decide(capacity, size int, _ any) PutResult {
	if size >= capacity {
		return Replaced
	}
	return Ok
}

// Coalesce returns Ok while there is room; at capacity it returns Coalesced,
// telling the edge to fold the current tail and the new item via Fn. If Fn
// panics, the edge must recover and fall back to replacing the tail with the
// new item unchanged, still reporting Coalesced.
type Coalesce struct {
	Fn func(old, new any) any
}

func (Coalesce) Decide(capacity, size int, _ any) PutResult {
	if size >= capacity {
		return Coalesced
	}
	return Ok
}

func (c Coalesce) Merge(old, new any) any {
	return c.Fn(old, new)
}

// Package message defines the immutable envelope carried across edges and
// handed to node handlers.
package message

import (
	"time"

	"github.com/ghostweasellabs/arachne/internal/ids"
)

// Kind is the closed set of message kinds.
type Kind string

const (
	// Data carries ordinary payload values between nodes.
	Data Kind = "DATA"
	// Control is a reserved fast-path kind used for operational signals;
	// the scheduler's emit path always enqueues it with the Block policy.
	Control Kind = "CONTROL"
	// Error carries a failure payload produced by a node.
	Error Kind = "ERROR"
)

// Valid reports whether k is one of the closed Kind values.
func (k Kind) Valid() bool {
	switch k {
	case Data, Control, Error:
		return true
	default:
		return false
	}
}

const (
	// HeaderTraceID names the structural header carrying the trace id.
	HeaderTraceID = "trace_id"
	// HeaderTimestamp names the structural header carrying the
	// monotonic-wall construction timestamp, in fractional seconds.
	HeaderTimestamp = "timestamp"
)

// Message is an immutable envelope. Once constructed its fields never
// change; WithHeaders returns a new Message with a merged header map.
type Message struct {
	kind     Kind
	payload  any
	headers  map[string]any
	metadata map[string]any
}

// New constructs a Message. If headers has no non-empty "trace_id" entry,
// one is generated. The "timestamp" header is always populated at
// construction, overriding any caller-supplied value — construction time is
// authoritative.
func New(kind Kind, payload any, headers map[string]any, metadata map[string]any) Message {
	h := cloneMap(headers)
	if id, ok := h[HeaderTraceID].(string); !ok || id == "" {
		h[HeaderTraceID] = ids.NewTraceID()
	}
	h[HeaderTimestamp] = float64(time.Now().UnixNano()) / 1e9

	return Message{
		kind:     kind,
		payload:  payload,
		headers:  h,
		metadata: cloneMap(metadata),
	}
}

// Kind returns the message kind.
func (m Message) Kind() Kind { return m.kind }

// Payload returns the message payload.
func (m Message) Payload() any { return m.payload }

// TraceID returns the non-empty trace id header.
func (m Message) TraceID() string {
	id, _ := m.headers[HeaderTraceID].(string)
	return id
}

// Timestamp returns the construction timestamp in fractional seconds.
func (m Message) Timestamp() float64 {
	ts, _ := m.headers[HeaderTimestamp].(float64)
	return ts
}

// Header returns a single header value.
func (m Message) Header(key string) (any, bool) {
	v, ok := m.headers[key]
	return v, ok
}

// Headers returns a defensive copy of the header map.
func (m Message) Headers() map[string]any {
	return cloneMap(m.headers)
}

// Metadata returns a defensive copy of the metadata map, possibly nil.
func (m Message) Metadata() map[string]any {
	if m.metadata == nil {
		return nil
	}
	return cloneMap(m.metadata)
}

// WithHeaders returns a new Message whose headers are the receiver's headers
// merged with kv (kv wins on key collision, including "trace_id"). The
// receiver is left unmodified.
func (m Message) WithHeaders(kv map[string]any) Message {
	merged := cloneMap(m.headers)
	for k, v := range kv {
		merged[k] = v
	}
	return Message{
		kind:     m.kind,
		payload:  m.payload,
		headers:  merged,
		metadata: cloneMap(m.metadata),
	}
}

// IsControl reports whether the message kind is Control.
func (m Message) IsControl() bool { return m.kind == Control }

// IsError reports whether the message kind is Error.
func (m Message) IsError() bool { return m.kind == Error }

// IsData reports whether the message kind is Data.
func (m Message) IsData() bool { return m.kind == Data }

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

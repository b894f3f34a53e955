// Package ids generates the correlation identifiers (trace ids, span ids)
// that flow through messages and tracing spans.
package ids

import "github.com/google/uuid"

// NewTraceID returns a fresh, non-empty trace identifier.
func NewTraceID() string {
	return uuid.New().String()
}

// NewSpanID returns a fresh, non-empty span identifier.
func NewSpanID() string {
	return uuid.New().String()
}

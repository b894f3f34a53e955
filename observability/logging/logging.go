// Package logging emits the runtime's stable structured log events through
// logrus, the logging library this module's lineage (moby/buildkit) uses
// throughout.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ghostweasellabs/arachne/observability/tracing"
)

// Stable event names, used as the "event" field on every log line so
// downstream consumers can filter on a fixed vocabulary rather than message
// text.
const (
	EventSchedulerStart             = "scheduler.start"
	EventSchedulerReady             = "scheduler.ready"
	EventSchedulerShutdownRequested = "scheduler.shutdown_requested"
	EventSchedulerShutdownComplete  = "scheduler.shutdown_complete"
	EventSchedulerPriorityChanged   = "scheduler.priority_changed"
	EventSchedulerCapacityChanged   = "scheduler.capacity_changed"
	EventSchedulerBackpressure      = "scheduler.backpressure"
	EventSchedulerMessageDropped    = "scheduler.message_dropped"
	EventSchedulerStopAbandoned     = "scheduler.node_stop_abandoned"
	EventNodeStart                  = "node.start"
	EventNodeStop                   = "node.stop"
	EventNodeMessageError           = "node.message_error"
	EventNodeTickError              = "node.tick_error"
)

// Logger wraps a logrus.Entry, carrying ambient fields (node, edge, port,
// trace id) the way arachne's with_context manager does.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger at the given level. level follows logrus level names
// ("debug", "info", "warn", "error"); an unrecognized name defaults to info.
func New(level string) *Logger {
	base := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: logrus.NewEntry(base)}
}

// With returns a Logger carrying additional structured fields, analogous to
// arachne's with_context(node=..., port=..., trace_id=...).
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithTraceID attaches the ambient trace id carried on ctx, if any.
func (l *Logger) WithTraceID(ctx context.Context) *Logger {
	id, ok := tracing.TraceIDFromContext(ctx)
	if !ok {
		return l
	}
	return l.With(map[string]any{"trace_id": id})
}

func (l *Logger) Debug(event, msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Debug(msg)
}

func (l *Logger) Info(event, msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Info(msg)
}

func (l *Logger) Warn(event, msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Warn(msg)
}

func (l *Logger) Error(event, msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Error(msg)
}

// Package observability assembles the logging/metrics/tracing concerns into
// the small set of named profiles arachne's original
// observability/config.py offered (get_development_config/
// get_production_config/get_default_config), without wiring any concrete
// exporter backend — that remains a collaborator's job.
package observability

import (
	"github.com/ghostweasellabs/arachne/observability/logging"
	"github.com/ghostweasellabs/arachne/observability/metrics"
)

// Profile selects a named bundle of observability defaults.
type Profile string

const (
	ProfileDefault     Profile = "default"
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
)

// Config is the resolved observability setup for a Scheduler.
type Config struct {
	Logger *logging.Logger
	Sink   metrics.Sink
}

// Resolve builds a Config for the named profile:
//   - ProfileDefault: info-level logging, metrics disabled (Noop sink) —
//     matches the original's bare ObservabilityConfig() default.
//   - ProfileDevelopment: debug-level logging, metrics enabled — matches
//     get_development_config's enhanced logging + metrics_enabled=True.
//   - ProfileProduction: info-level logging, metrics enabled — matches
//     get_production_config.
func Resolve(p Profile) Config {
	switch p {
	case ProfileDevelopment:
		return Config{
			Logger: logging.New("debug"),
			Sink:   metrics.NewPromSink("arachne"),
		}
	case ProfileProduction:
		return Config{
			Logger: logging.New("info"),
			Sink:   metrics.NewPromSink("arachne"),
		}
	default:
		return Config{
			Logger: logging.New("info"),
			Sink:   metrics.Noop{},
		}
	}
}

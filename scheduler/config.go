package scheduler

// Config holds the scheduler's runtime tunables.
type Config struct {
	// TickIntervalMs is the minimum wall-time, in milliseconds, between
	// successive on_tick invocations for the same node.
	TickIntervalMs int
	// FairnessRatio holds the relative servicing weights for
	// [Normal, High, Control], indexed by plan.PriorityBand. Only the High
	// and Normal weights are consulted: a non-empty Control band is always
	// serviced first, whatever its weight.
	FairnessRatio [3]int
	// MaxBatchPerNode bounds how many input messages are drained in a
	// single servicing of one node.
	MaxBatchPerNode int
	// IdleSleepMs is how long the loop sleeps when no node is runnable.
	IdleSleepMs int
	// ShutdownTimeoutS is the wall-clock budget for graceful shutdown.
	ShutdownTimeoutS float64
}

// ConfigOption mutates a Config under construction.
type ConfigOption func(*Config)

func WithTickIntervalMs(ms int) ConfigOption {
	return func(c *Config) { c.TickIntervalMs = ms }
}

// WithFairnessRatio sets the relative Control/High/Normal servicing weights
// (the Control weight is stored but not consulted; see Config.FairnessRatio).
func WithFairnessRatio(control, high, normal int) ConfigOption {
	return func(c *Config) { c.FairnessRatio = [3]int{normal, high, control} }
}

func WithMaxBatchPerNode(n int) ConfigOption {
	return func(c *Config) { c.MaxBatchPerNode = n }
}

func WithIdleSleepMs(ms int) ConfigOption {
	return func(c *Config) { c.IdleSleepMs = ms }
}

func WithShutdownTimeoutS(s float64) ConfigOption {
	return func(c *Config) { c.ShutdownTimeoutS = s }
}

// NewConfig builds a Config at its documented defaults, applying opts in
// order.
func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{
		TickIntervalMs:   50,
		FairnessRatio:    [3]int{1, 2, 4}, // Normal, High, Control
		MaxBatchPerNode:  8,
		IdleSleepMs:      1,
		ShutdownTimeoutS: 2.0,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

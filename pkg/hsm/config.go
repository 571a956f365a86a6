package hsm

import (
	"fmt"

	"github.com/hsmio/hsm/pkg/core"
	"github.com/hsmio/hsm/pkg/queue"
)

// RuntimeConfig captures the deployment-time knobs of the runtime. It is
// designed to be loaded through the config package (YAML/JSON file plus
// environment overrides).
type RuntimeConfig struct {
	// QueueCapacity bounds the event queue; 0 leaves it unbounded.
	QueueCapacity int `yaml:"queueCapacity" json:"queueCapacity"`
	// LogLevel is the minimum level emitted: DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"logLevel" json:"logLevel"`
	// JSONLogs switches the default logger to JSON output.
	JSONLogs bool `yaml:"jsonLogs" json:"jsonLogs"`
	// MetricsEnabled is a flag for Prometheus instrumentation. RuntimeConfig
	// does not act on it: NewLogger and NewQueue ignore it, and metrics are
	// attached with WithMetrics or NewMetricsObserver.
	MetricsEnabled bool `yaml:"metricsEnabled" json:"metricsEnabled"`
}

// DefaultRuntimeConfig returns the configuration used when no file is
// provided.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		QueueCapacity: 0,
		LogLevel:      "INFO",
	}
}

// Validate checks the configuration for consistency.
func (c RuntimeConfig) Validate() error {
	switch c.LogLevel {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("hsm: invalid log level %q", c.LogLevel)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("hsm: queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	return nil
}

// NewLogger builds the logger described by the configuration.
func (c RuntimeConfig) NewLogger() core.Logger {
	level := c.LogLevel
	if level == "" {
		level = "INFO"
	}
	return core.NewLogger(core.LoggerConfig{
		JSONOutput: c.JSONLogs,
		Level:      level,
	})
}

// NewQueue builds the event queue described by the configuration.
func (c RuntimeConfig) NewQueue() *queue.EventQueue[Event] {
	if c.QueueCapacity > 0 {
		return queue.New[Event](queue.WithCapacity(c.QueueCapacity))
	}
	return queue.New[Event]()
}

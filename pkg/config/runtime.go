package config

import "time"

// RuntimeConfig holds process-lifecycle settings for the HTTP server and the
// in-process job dispatch goroutines it launches.
type RuntimeConfig struct {
	// GracefulShutdownTimeout is the max time to wait for in-flight
	// ingestion/analysis jobs to notice context cancellation during
	// shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultRuntimeConfig returns the built-in runtime defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		GracefulShutdownTimeout: 15 * time.Second,
	}
}

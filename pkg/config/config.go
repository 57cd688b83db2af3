// Package config loads HydroChat's process configuration from the
// environment (spec 6), following the teacher's config.Initialize
// shape but reading env vars directly instead of YAML files, since
// spec 6 defines the configuration surface as environment variables.
package config

import "time"

// Config is the single typed configuration value built once at process
// start and threaded through every component constructor.
type Config struct {
	HTTPPort string

	BackendBaseURL    string
	BackendBearerToken string

	SessionTTL time.Duration
	SessionMax int

	NameCacheTTL time.Duration

	TurnDeadline time.Duration

	LLMAdapter string
	LLMAPIKey  string

	MetricsMaxSamples int
	MetricsTTL        time.Duration

	LogFormat string
	MaskPII   bool

	AuthBearerToken string

	PostgresDSN string
}

// ConfigStats reports operational counters for logging at startup and for
// the health endpoint, the teacher's Stats() convenience method repurposed
// from agent/chain/mcp-server counts to HydroChat's own components.
type ConfigStats struct {
	SessionTTLSeconds int
	SessionMax        int
	NameCacheTTLSeconds int
	MetricsMaxSamples int
}

// Stats returns a snapshot of the operational knobs worth logging at
// startup, mirroring the teacher's Config.Stats().
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		SessionTTLSeconds:   int(c.SessionTTL.Seconds()),
		SessionMax:          c.SessionMax,
		NameCacheTTLSeconds: int(c.NameCacheTTL.Seconds()),
		MetricsMaxSamples:   c.MetricsMaxSamples,
	}
}

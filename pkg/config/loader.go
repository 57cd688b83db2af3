package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// defaults holds the fallback value for every env-driven field (spec 6's
// "(default ...)" annotations), merged under whatever the environment
// actually sets with a plain mergo.Merge (no WithOverride): only fields the
// environment left at their zero value take the default.
func defaults() *Config {
	return &Config{
		HTTPPort:          "8080",
		SessionTTL:        1800 * time.Second,
		SessionMax:        100,
		NameCacheTTL:      300 * time.Second,
		TurnDeadline:      15000 * time.Millisecond,
		LLMAdapter:        "none",
		MetricsMaxSamples: 1000,
		MetricsTTL:        24 * time.Hour,
		LogFormat:         "json",
		MaskPII:           true,
	}
}

// Initialize loads, validates, and returns ready-to-use configuration, the
// HydroChat counterpart to the teacher's config.Initialize(ctx, configDir):
// load an optional .env file, read environment overrides onto the
// defaults, validate, and return.
func Initialize(ctx context.Context, envPath string) (*Config, error) {
	_ = ctx
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	cfg, maskPII := fromEnviron()
	if err := mergo.Merge(cfg, defaults()); err != nil {
		return nil, fmt.Errorf("config: failed to merge defaults: %w", err)
	}
	// MASK_PII's unset-vs-false ambiguity can't go through mergo's
	// zero-value fill (false and "unset" are the same Go zero value), so
	// it is resolved directly from the tri-state env read instead.
	if maskPII != nil {
		cfg.MaskPII = *maskPII
	} else {
		cfg.MaskPII = true
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// fromEnviron reads every recognized environment variable (spec 6) into a
// Config, leaving a field at its zero value when the variable is unset so
// Initialize's mergo.Merge can fill it from defaults(). MASK_PII is
// returned separately as a tri-state pointer since its zero value (false)
// is not distinguishable from "unset".
func fromEnviron() (*Config, *bool) {
	return &Config{
		HTTPPort:           os.Getenv("HTTP_PORT"),
		BackendBaseURL:     os.Getenv("BACKEND_BASE_URL"),
		BackendBearerToken: os.Getenv("BACKEND_BEARER_TOKEN"),
		SessionTTL:         durationSecondsEnv("SESSION_TTL_SECONDS"),
		SessionMax:         intEnv("SESSION_MAX"),
		NameCacheTTL:       durationSecondsEnv("NAME_CACHE_TTL_SECONDS"),
		TurnDeadline:       durationMillisEnv("TURN_DEADLINE_MS"),
		LLMAdapter:         os.Getenv("LLM_ADAPTER"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		MetricsMaxSamples:  intEnv("METRICS_MAX_SAMPLES"),
		MetricsTTL:         durationHoursEnv("METRICS_TTL_HOURS"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
		AuthBearerToken:    os.Getenv("HYDROCHAT_BEARER_TOKEN"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
	}, boolEnv("MASK_PII")
}

func intEnv(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func durationSecondsEnv(key string) time.Duration {
	return time.Duration(intEnv(key)) * time.Second
}

func durationMillisEnv(key string) time.Duration {
	return time.Duration(intEnv(key)) * time.Millisecond
}

func durationHoursEnv(key string) time.Duration {
	return time.Duration(intEnv(key)) * time.Hour
}

// boolEnv returns nil when key is unset or unparsable, so the caller can
// tell "unset" apart from an explicit false.
func boolEnv(key string) *bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

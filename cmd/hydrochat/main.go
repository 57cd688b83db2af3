// HydroChat converts clinician chat turns into patient-record CRUD and
// retrieval operations against a backend REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hydrochat/hydrochat/pkg/api"
	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/hydrochat/hydrochat/pkg/config"
	"github.com/hydrochat/hydrochat/pkg/graph"
	"github.com/hydrochat/hydrochat/pkg/intent"
	"github.com/hydrochat/hydrochat/pkg/llm"
	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/metrics"
	"github.com/hydrochat/hydrochat/pkg/namecache"
	"github.com/hydrochat/hydrochat/pkg/pgsession"
	"github.com/hydrochat/hydrochat/pkg/session"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "directory containing the .env file")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, envPath)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	maskingService := masking.NewService()
	logHandler := masking.NewHandler(slogHandlerFor(cfg.LogFormat), maskingService)
	slog.SetDefault(slog.New(logHandler))

	m, err := metrics.New(sdkmetric.NewMeterProvider(), cfg.MetricsMaxSamples, cfg.MetricsTTL)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}

	backend := backendclient.New(cfg.BackendBaseURL, cfg.BackendBearerToken, m)
	names := namecache.New(backend, cfg.NameCacheTTL)

	var adapter llm.Adapter
	if cfg.LLMAdapter != "" && cfg.LLMAdapter != "none" {
		adapter = llm.NewOpenAIAdapter(cfg.LLMAPIKey, "", "", m)
	}

	classifier := intent.New(adapter)
	store := newSessionStore(ctx, cfg)

	exec := graph.New(graph.Deps{
		Tool:       backend,
		Names:      names,
		Classifier: classifier,
		LLM:        adapter,
		Metrics:    m,
		Masking:    maskingService,
	})

	server := api.New(cfg, store, exec, m)

	stats := cfg.Stats()
	slog.Info("hydrochat starting",
		"http_port", cfg.HTTPPort,
		"session_ttl_seconds", stats.SessionTTLSeconds,
		"session_max", stats.SessionMax,
		"name_cache_ttl_seconds", stats.NameCacheTTLSeconds,
		"llm_adapter", cfg.LLMAdapter,
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server exited", "error", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		slog.Info("shutdown signal received, draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
}

// newSessionStore picks the in-memory session.Store (the mandatory
// default, spec 4.5) or, when POSTGRES_DSN is set, the pluggable
// Postgres-backed pgsession.Store, migrating it on startup.
func newSessionStore(ctx context.Context, cfg *config.Config) session.Store {
	if cfg.PostgresDSN == "" {
		return session.NewInMemoryStore(cfg.SessionTTL, cfg.SessionMax)
	}

	if err := pgsession.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("failed to migrate Postgres session store: %v", err)
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect Postgres session store: %v", err)
	}
	return pgsession.New(pool, cfg.SessionTTL)
}

func slogHandlerFor(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "human" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

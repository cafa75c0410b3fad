// Command reviewforge runs the ingestion engine and analysis orchestrator
// behind the job-control HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/comfydata276/reviewforge/pkg/api"
	"github.com/comfydata276/reviewforge/pkg/config"
	"github.com/comfydata276/reviewforge/pkg/ingest"
	"github.com/comfydata276/reviewforge/pkg/orchestrate"
	"github.com/comfydata276/reviewforge/pkg/provider"
	"github.com/comfydata276/reviewforge/pkg/reviewapi"
	"github.com/comfydata276/reviewforge/pkg/store"
	"github.com/comfydata276/reviewforge/pkg/vault"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.New(ctx, store.Config{
		Host:            cfg.Store.Host,
		Port:            cfg.Store.Port,
		User:            cfg.Store.User,
		Password:        cfg.Store.Password,
		Database:        cfg.Store.Database,
		SSLMode:         cfg.Store.SSLMode,
		MaxConns:        cfg.Store.MaxConns,
		MinConns:        cfg.Store.MinConns,
		MaxConnLifetime: mustParseDuration(cfg.Store.MaxConnLifetime),
		MaxConnIdleTime: mustParseDuration(cfg.Store.MaxConnIdleTime),
	})
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("connected to store and applied migrations", "database", cfg.Store.Database)

	v, err := vault.Load(cfg.Vault.KeyEnv, cfg.Vault.KeyFile)
	if err != nil {
		slog.Error("failed to load credential vault", "error", err)
		os.Exit(1)
	}

	registry := provider.NewRegistry(st, v)
	reviewAPI := reviewapi.New("")
	ingestEngine := ingest.New(st, reviewAPI)
	orchestrator := orchestrate.New(st, registry, cfg.PromptsDir)

	server := api.NewServer(ingestEngine, orchestrator, st)

	slog.Info("starting reviewforge", "http_addr", cfg.HTTP.Addr)
	if err := server.Run(ctx, cfg.HTTP.Addr, cfg.Runtime.GracefulShutdownTimeout); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("reviewforge shut down cleanly")
}

func mustParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Error("invalid duration in store config", "value", s, "error", err)
		os.Exit(1)
	}
	return d
}

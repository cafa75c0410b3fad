// Command seedcatalog populates the games catalog from the upstream
// applist endpoint, then rebuilds the catalog's full-text search index.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comfydata276/reviewforge/pkg/config"
	"github.com/comfydata276/reviewforge/pkg/reviewapi"
	"github.com/comfydata276/reviewforge/pkg/store"
)

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	rebuildOnly := flag.Bool("rebuild-index-only", false, "skip the applist fetch and only rebuild the catalog search index")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("[seedcatalog] could not load %s: %v", envPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("[seedcatalog] failed to initialize configuration: %v", err)
	}

	st, err := store.New(ctx, store.Config{
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Database: cfg.Store.Database,
		SSLMode:  cfg.Store.SSLMode,
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		log.Fatalf("[seedcatalog] failed to connect to store: %v", err)
	}
	defer st.Close()

	started := time.Now()

	if !*rebuildOnly {
		if err := seedFromAppList(ctx, st); err != nil {
			log.Fatalf("[seedcatalog] seed failed: %v", err)
		}
	}

	log.Printf("[seedcatalog] rebuilding catalog search index")
	if err := st.RebuildCatalogIndex(ctx); err != nil {
		log.Fatalf("[seedcatalog] index rebuild failed: %v", err)
	}

	log.Printf("[seedcatalog] done in %s", time.Since(started).Truncate(time.Second))
}

// seedFromAppList fetches the full upstream catalog and upserts every named
// entry. A single malformed row is logged and skipped rather than aborting
// the whole run.
func seedFromAppList(ctx context.Context, st *store.Store) error {
	client := reviewapi.New("")

	resp, err := client.GetAppList(ctx)
	if err != nil {
		return err
	}

	upserted := 0
	for _, app := range resp.AppList.Apps {
		if app.Name == "" {
			continue
		}
		if _, err := st.UpsertGame(ctx, app.AppID, app.Name); err != nil {
			slog.Warn("failed to upsert catalog entry", "app_id", app.AppID, "error", err)
			continue
		}
		upserted++
	}

	log.Printf("[seedcatalog] upserted %d of %d catalog entries", upserted, len(resp.AppList.Apps))
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

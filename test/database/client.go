// Package database provides a testcontainers-backed *store.Store for
// integration tests.
package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/comfydata276/reviewforge/pkg/store"
)

// NewTestStore creates a test store.Store, running the real embedded
// migrations against it.
//
// In CI (when CI_DATABASE_URL is set): connects to an external PostgreSQL
// service container. In local dev: spins up a testcontainer with
// PostgreSQL. Either way the pool is cleaned up via t.Cleanup.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	if cfg, ok := ciStoreConfig(); ok {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		st, err := store.New(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(st.Close)
		return st
	}

	t.Log("using testcontainers for PostgreSQL")
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reviewforge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := store.New(ctx, store.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		Database: "reviewforge_test",
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

// ciStoreConfig builds a store.Config from CI_DATABASE_URL's discrete parts,
// set alongside it by the CI pipeline. Returns ok=false when CI_DATABASE_URL
// isn't set, so callers fall through to testcontainers.
func ciStoreConfig() (store.Config, bool) {
	if os.Getenv("CI_DATABASE_URL") == "" {
		return store.Config{}, false
	}

	port, _ := strconv.Atoi(getEnvDefault("CI_DATABASE_PORT", "5432"))
	return store.Config{
		Host:     getEnvDefault("CI_DATABASE_HOST", "localhost"),
		Port:     port,
		User:     getEnvDefault("CI_DATABASE_USER", "test"),
		Password: getEnvDefault("CI_DATABASE_PASSWORD", "test"),
		Database: getEnvDefault("CI_DATABASE_NAME", "reviewforge_test"),
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	}, true
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

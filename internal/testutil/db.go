//go:build integration

package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pgdb "github.com/alanyang/shard-coordinator/internal/adapter/postgres"
	"github.com/alanyang/shard-coordinator/internal/adapter/postgres/schema"
)

// SetupTestDB connects to the test database.
// It skips the test if TEST_DATABASE_URL is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect to test DB: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping test DB: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

// NewAgentTable provisions a uniquely named agent table and drops it when the
// test ends, so tests sharing one database never see each other's rows.
func NewAgentTable(t *testing.T, pool *pgxpool.Pool, idType string) pgdb.Mapping {
	t.Helper()
	ctx := context.Background()
	m := pgdb.Mapping{
		Table:  "agent_" + strings.ReplaceAll(uuid.NewString()[:8], "-", ""),
		IDType: idType,
	}
	for _, stmt := range schema.Generate(m) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("create agent table: %v", err)
		}
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+m.QualifiedTable()) //nolint:errcheck
	})
	return m
}

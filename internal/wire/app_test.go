package wire_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/shard-coordinator/internal/config"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/wire"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AgentType:       domainagent.TypeEventProcessingDynamicSharding,
		AgentName:       "worker-1",
		PulseInterval:   10 * time.Millisecond,
		PulseExpiration: time.Second,
		Backend:         config.BackendMemory,
		Port:            "0",
	}
}

func TestBuild_MemoryBackendRunsAndLeaves(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := wire.Build(ctx, memoryConfig(), logger)
	require.NoError(t, err)
	defer app.Close()

	done := make(chan error, 1)
	go func() { done <- app.Scheduler.Run(ctx) }()

	require.Eventually(t, func() bool {
		inst, ok := app.Processor.Current()
		return ok && inst.State == domainagent.StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/cluster/dump", nil)
	app.Server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "state: RUNNING")

	w = httptest.NewRecorder()
	req, _ = http.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", nil)
	app.Server.Handler.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "shard_coord_pulses_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	cancel()
	require.NoError(t, <-done)

	agents, err := app.Inspector.Agents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestBuild_UnreachableRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.Backend = config.BackendRedis
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := wire.Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "connecting to redis")
}

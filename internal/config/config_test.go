package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/shard-coordinator/internal/config"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
)

var allKeys = []string{
	"AGENT_TYPE", "AGENT_NAME", "STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX",
	"PULSE_INTERVAL", "PULSE_EXPIRATION",
	"STORE_BACKEND", "DATABASE_URL", "REDIS_URL", "TENANT_ID",
	"AGENT_TABLE_CATALOG", "AGENT_TABLE_SCHEMA", "AGENT_TABLE_NAME", "AGENT_TABLE_ID_TYPE", "AGENT_TABLE_DDL_FILE",
	"PORT", "LOG_LEVEL", "LOG_FORMAT",
}

// setEnv clears every key Load reads, then applies env.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func loadConflict(t *testing.T) *config.ConflictError {
	t.Helper()
	_, err := config.Load()
	require.Error(t, err)
	var conflict *config.ConflictError
	require.ErrorAs(t, err, &conflict)
	return conflict
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "postgres://localhost/coord", "AGENT_NAME": "worker-1"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, domainagent.TypeEventProcessingDynamicSharding, cfg.AgentType)
	assert.Equal(t, "worker-1", cfg.AgentName)
	assert.Nil(t, cfg.Static)
	assert.Equal(t, 2*time.Second, cfg.PulseInterval)
	assert.Equal(t, 30*time.Second, cfg.PulseExpiration)
	assert.Equal(t, config.BackendPostgres, cfg.Backend)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Durations(t *testing.T) {
	cases := []struct {
		name     string
		interval string
		want     time.Duration
	}{
		{"whole seconds", "5", 5 * time.Second},
		{"go duration", "1500ms", 1500 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, map[string]string{
				"STORE_BACKEND":    config.BackendMemory,
				"PULSE_INTERVAL":   tc.interval,
				"PULSE_EXPIRATION": "1m",
			})
			cfg, err := config.Load()
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.PulseInterval)
			assert.Equal(t, time.Minute, cfg.PulseExpiration)
		})
	}
}

func TestLoad_StaticAssignment(t *testing.T) {
	setEnv(t, map[string]string{
		"STORE_BACKEND":               config.BackendMemory,
		"AGENT_TYPE":                  string(domainagent.TypeEventProcessingStaticSharding),
		"STATIC_TOTAL_SHARD_COUNT":    "4",
		"STATIC_ASSIGNED_SHARD_INDEX": "3",
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Static)
	assert.Equal(t, 4, cfg.Static.TotalShardCount)
	assert.Equal(t, 3, cfg.Static.AssignedShardIndex)
}

func TestLoad_Conflicts(t *testing.T) {
	ddl := filepath.Join(t.TempDir(), "agent.sql")
	require.NoError(t, os.WriteFile(ddl, []byte("CREATE TABLE agents (id UUID PRIMARY KEY)"), 0o600))

	cases := []struct {
		name string
		env  map[string]string
		keys []string
	}{
		{
			name: "custom DDL with mapping overrides",
			env: map[string]string{
				"DATABASE_URL":         "postgres://localhost/coord",
				"AGENT_TABLE_DDL_FILE": ddl,
				"AGENT_TABLE_SCHEMA":   "coord",
				"AGENT_TABLE_ID_TYPE":  "char",
			},
			keys: []string{"AGENT_TABLE_DDL_FILE", "AGENT_TABLE_ID_TYPE", "AGENT_TABLE_SCHEMA"},
		},
		{
			name: "expiration shorter than three intervals",
			env: map[string]string{
				"STORE_BACKEND":    config.BackendMemory,
				"PULSE_INTERVAL":   "10s",
				"PULSE_EXPIRATION": "20s",
			},
			keys: []string{"PULSE_INTERVAL", "PULSE_EXPIRATION"},
		},
		{
			name: "static settings on a dynamic agent",
			env: map[string]string{
				"STORE_BACKEND":            config.BackendMemory,
				"STATIC_TOTAL_SHARD_COUNT": "2",
			},
			keys: []string{"AGENT_TYPE", "STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX"},
		},
		{
			name: "static index out of range",
			env: map[string]string{
				"STORE_BACKEND":               config.BackendMemory,
				"AGENT_TYPE":                  string(domainagent.TypeEventProcessingStaticSharding),
				"STATIC_TOTAL_SHARD_COUNT":    "2",
				"STATIC_ASSIGNED_SHARD_INDEX": "2",
			},
			keys: []string{"STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX"},
		},
		{
			name: "redis without url",
			env:  map[string]string{"STORE_BACKEND": config.BackendRedis},
			keys: []string{"STORE_BACKEND", "REDIS_URL"},
		},
		{
			name: "unknown backend",
			env:  map[string]string{"STORE_BACKEND": "etcd"},
			keys: []string{"STORE_BACKEND"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			conflict := loadConflict(t)
			assert.Equal(t, tc.keys, conflict.Keys)
		})
	}
}

func TestLoad_ReportsEveryProblemAtOnce(t *testing.T) {
	setEnv(t, map[string]string{
		"AGENT_TYPE":       "SOMETHING_ELSE",
		"STORE_BACKEND":    config.BackendPostgres,
		"PULSE_INTERVAL":   "soon",
		"PULSE_EXPIRATION": "1s",
		"LOG_LEVEL":        "verbose",
	})

	conflict := loadConflict(t)
	for _, key := range []string{"AGENT_TYPE", "DATABASE_URL", "PULSE_INTERVAL", "PULSE_EXPIRATION", "LOG_LEVEL"} {
		assert.Contains(t, conflict.Keys, key)
		assert.Contains(t, conflict.Error(), key)
	}
}

// Package config reads agent settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/domain/cluster"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	// Agent
	AgentType domainagent.Type
	AgentName string
	Static    *cluster.ShardAssignment

	// Lease
	PulseInterval   time.Duration
	PulseExpiration time.Duration

	// Storage
	Backend     string
	DatabaseURL string
	RedisURL    string
	TenantID    string

	// Table mapping, ignored unless Backend is postgres
	TableCatalog string
	TableSchema  string
	TableName    string
	TableIDType  string
	TableDDL     string

	// Server
	Port string

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"
}

// ConflictError lists every setting that prevented startup.
type ConflictError struct {
	Keys []string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %v", strings.Join(e.Keys, ", "), e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

type problems struct {
	keys []string
	errs []error
}

func (p *problems) add(err error, keys ...string) {
	for _, k := range keys {
		if !slices.Contains(p.keys, k) {
			p.keys = append(p.keys, k)
		}
	}
	p.errs = append(p.errs, err)
}

func (p *problems) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &ConflictError{Keys: p.keys, Err: errors.Join(p.errs...)}
}

// Load reads the configuration and validates it as a whole. Every problem is
// reported at once in a *ConflictError.
func Load() (*Config, error) {
	var p problems

	cfg := &Config{
		AgentType:    domainagent.Type(getEnv("AGENT_TYPE", string(domainagent.TypeEventProcessingDynamicSharding))),
		AgentName:    getEnv("AGENT_NAME", defaultName()),
		Backend:      getEnv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		TenantID:     os.Getenv("TENANT_ID"),
		TableCatalog: os.Getenv("AGENT_TABLE_CATALOG"),
		TableSchema:  os.Getenv("AGENT_TABLE_SCHEMA"),
		TableName:    os.Getenv("AGENT_TABLE_NAME"),
		TableIDType:  os.Getenv("AGENT_TABLE_ID_TYPE"),
		Port:         getEnv("PORT", "8080"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}

	cfg.PulseInterval = envDuration(&p, "PULSE_INTERVAL", 2*time.Second)
	cfg.PulseExpiration = envDuration(&p, "PULSE_EXPIRATION", 30*time.Second)

	switch level := getEnv("LOG_LEVEL", "info"); level {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		p.add(fmt.Errorf("unknown log level %q", level), "LOG_LEVEL")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		p.add(fmt.Errorf("unknown log format %q", cfg.LogFormat), "LOG_FORMAT")
	}

	if path := os.Getenv("AGENT_TABLE_DDL_FILE"); path != "" {
		ddl, err := os.ReadFile(path)
		if err != nil {
			p.add(fmt.Errorf("read custom DDL: %w", err), "AGENT_TABLE_DDL_FILE")
		}
		cfg.TableDDL = string(ddl)
	}

	validateAgent(cfg, &p)
	validateLease(cfg, &p)
	validateStorage(cfg, &p)

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateAgent(cfg *Config, p *problems) {
	if !cfg.AgentType.Valid() {
		p.add(fmt.Errorf("unknown agent type %q", cfg.AgentType), "AGENT_TYPE")
	}
	if cfg.AgentName == "" {
		p.add(errors.New("agent name must not be empty"), "AGENT_NAME")
	}

	total, hasTotal := envInt(p, "STATIC_TOTAL_SHARD_COUNT")
	index, hasIndex := envInt(p, "STATIC_ASSIGNED_SHARD_INDEX")
	static := cfg.AgentType == domainagent.TypeEventProcessingStaticSharding

	switch {
	case static && (!hasTotal || !hasIndex):
		p.add(errors.New("static sharding needs both a total shard count and an assigned index"),
			"AGENT_TYPE", "STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX")
	case !static && (hasTotal || hasIndex):
		p.add(fmt.Errorf("static shard settings are only valid for %s agents", domainagent.TypeEventProcessingStaticSharding),
			"AGENT_TYPE", "STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX")
	case static:
		a := cluster.ShardAssignment{TotalShardCount: total, AssignedShardIndex: index}
		if !a.Valid() {
			p.add(fmt.Errorf("static assignment %s is out of range", a),
				"STATIC_TOTAL_SHARD_COUNT", "STATIC_ASSIGNED_SHARD_INDEX")
			return
		}
		cfg.Static = &a
	}
}

func validateLease(cfg *Config, p *problems) {
	if cfg.PulseInterval <= 0 {
		p.add(errors.New("pulse interval must be positive"), "PULSE_INTERVAL")
		return
	}
	if cfg.PulseExpiration < 3*cfg.PulseInterval {
		p.add(fmt.Errorf("pulse expiration %s must be at least three pulse intervals (%s)", cfg.PulseExpiration, 3*cfg.PulseInterval),
			"PULSE_INTERVAL", "PULSE_EXPIRATION")
	}
}

func validateStorage(cfg *Config, p *problems) {
	switch cfg.Backend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			p.add(errors.New("postgres backend requires a database URL"), "STORE_BACKEND", "DATABASE_URL")
		}
		if cfg.TableDDL != "" {
			var overrides []string
			for key, v := range map[string]string{
				"AGENT_TABLE_CATALOG": cfg.TableCatalog,
				"AGENT_TABLE_SCHEMA":  cfg.TableSchema,
				"AGENT_TABLE_NAME":    cfg.TableName,
				"AGENT_TABLE_ID_TYPE": cfg.TableIDType,
			} {
				if v != "" {
					overrides = append(overrides, key)
				}
			}
			if len(overrides) > 0 {
				slices.Sort(overrides)
				p.add(errors.New("a custom DDL file cannot be combined with table mapping overrides"),
					append([]string{"AGENT_TABLE_DDL_FILE"}, overrides...)...)
			}
		}
		switch cfg.TableIDType {
		case "", "uuid", "char":
		default:
			p.add(fmt.Errorf("unknown id type %q, want uuid or char", cfg.TableIDType), "AGENT_TABLE_ID_TYPE")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			p.add(errors.New("redis backend requires a redis URL"), "STORE_BACKEND", "REDIS_URL")
		}
	case BackendMemory:
	default:
		p.add(fmt.Errorf("unknown store backend %q", cfg.Backend), "STORE_BACKEND")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// envDuration accepts a Go duration ("1500ms") or whole seconds ("30").
func envDuration(p *problems, key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.add(fmt.Errorf("parse %s: %w", key, err), key)
		return defaultVal
	}
	return d
}

func envInt(p *problems, key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.add(fmt.Errorf("parse %s: %w", key, err), key)
		return 0, false
	}
	return n, true
}

func defaultName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "agent"
}

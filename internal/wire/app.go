package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alanyang/shard-coordinator/internal/adapter/memory"
	pgdb "github.com/alanyang/shard-coordinator/internal/adapter/postgres"
	pgagent "github.com/alanyang/shard-coordinator/internal/adapter/postgres/agent"
	pgeventbus "github.com/alanyang/shard-coordinator/internal/adapter/postgres/eventbus"
	pglocker "github.com/alanyang/shard-coordinator/internal/adapter/postgres/locker"
	pgschema "github.com/alanyang/shard-coordinator/internal/adapter/postgres/schema"
	redisadapter "github.com/alanyang/shard-coordinator/internal/adapter/redis"
	"github.com/alanyang/shard-coordinator/internal/config"
	"github.com/alanyang/shard-coordinator/internal/metrics"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
	porteventbus "github.com/alanyang/shard-coordinator/internal/port/eventbus"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
	"github.com/alanyang/shard-coordinator/internal/service/pulse"
	"github.com/alanyang/shard-coordinator/internal/transport"
)

// App holds the top-level resources needed to run and gracefully stop an agent.
type App struct {
	Server    *http.Server
	Scheduler *pulse.Scheduler
	Processor *pulse.LogProcessor
	Inspector *coordination.Inspector

	closers []func()
}

// Close releases storage connections. Call it after the scheduler has left
// the cluster.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{}

	// ── Storage ──────────────────────────────────────────────────────────────
	store, bus, err := buildStorage(ctx, cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	// ── Metrics ──────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ── Services ─────────────────────────────────────────────────────────────
	link := coordination.NewLink(coordination.LinkConfig{
		Type:            cfg.AgentType,
		Name:            cfg.AgentName,
		Static:          cfg.Static,
		PulseInterval:   cfg.PulseInterval,
		PulseExpiration: cfg.PulseExpiration,
	}, logger)

	app.Processor = pulse.NewLogProcessor(logger)
	app.Scheduler = pulse.NewScheduler(link, store, bus, app.Processor, logger, pulse.WithMetrics(m))
	app.Inspector = coordination.NewInspector(store, nil, link)

	// ── Transport ─────────────────────────────────────────────────────────────
	router := transport.NewRouter(ctx, transport.RouterDeps{
		Inspector: app.Inspector,
		EventBus:  bus,
		Gatherer:  reg,
		Logger:    logger,
	})
	app.Server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	logger.Info("application wired",
		"port", cfg.Port,
		"backend", cfg.Backend,
		"agent_type", cfg.AgentType,
		"agent_name", cfg.AgentName,
	)
	return app, nil
}

func buildStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger, app *App) (portagent.Store, porteventbus.EventBus, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgdb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		app.closers = append(app.closers, pool.Close)

		mapping := pgdb.Mapping{
			Catalog: cfg.TableCatalog,
			Schema:  cfg.TableSchema,
			Table:   cfg.TableName,
			IDType:  cfg.TableIDType,
		}
		provisioner := pgschema.New(pool, pglocker.New(pool), mapping, cfg.TableDDL, logger)
		if err := provisioner.Ensure(ctx); err != nil {
			return nil, nil, fmt.Errorf("provisioning agent table: %w", err)
		}
		return pgagent.New(pool, mapping, cfg.TenantID), pgeventbus.New(pool, logger), nil

	case config.BackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		app.closers = append(app.closers, func() { client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return redisadapter.NewAgentStore(client, cfg.TenantID), redisadapter.NewEventBus(client, cfg.TenantID, logger), nil

	case config.BackendMemory:
		return memory.NewAgentStore().ForTenant(cfg.TenantID), memory.NewEventBus(), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

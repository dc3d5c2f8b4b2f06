package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pgdb "github.com/alanyang/shard-coordinator/internal/adapter/postgres"
	portlocker "github.com/alanyang/shard-coordinator/internal/port/locker"
)

const lockName = "shard_coord_schema"

// Provisioner creates the agent table at boot. Concurrent agents serialise
// on an advisory lock so only one of them runs DDL at a time.
type Provisioner struct {
	pool      *pgxpool.Pool
	locker    portlocker.AdvisoryLocker
	mapping   pgdb.Mapping
	customDDL string
	logger    *slog.Logger
}

// New returns a provisioner. A non-empty customDDL replaces the generated
// statements entirely.
func New(pool *pgxpool.Pool, locker portlocker.AdvisoryLocker, mapping pgdb.Mapping, customDDL string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		pool:      pool,
		locker:    locker,
		mapping:   mapping,
		customDDL: customDDL,
		logger:    logger,
	}
}

func (p *Provisioner) Ensure(ctx context.Context) error {
	return p.locker.WithLock(ctx, portlocker.KeyFor(lockName), func(ctx context.Context) error {
		for _, stmt := range p.Statements() {
			if _, err := p.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("provisioning agent table: %w", err)
			}
		}
		p.logger.Info("agent table ready", "table", p.mapping.QualifiedTable(), "custom_ddl", p.customDDL != "")
		return nil
	})
}

// Statements returns the DDL Ensure executes, in order.
func (p *Provisioner) Statements() []string {
	if p.customDDL != "" {
		return []string{p.customDDL}
	}
	return Generate(p.mapping)
}

// Generate renders idempotent DDL for the mapped table.
func Generate(m pgdb.Mapping) []string {
	var stmts []string
	if m.Schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{m.Schema}.Sanitize())
	}

	table := m.QualifiedTable()
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                   %s PRIMARY KEY,
	type                 VARCHAR(64) NOT NULL,
	name                 VARCHAR(255) NOT NULL,
	expiration           TIMESTAMPTZ NOT NULL,
	state                VARCHAR(32) NOT NULL,
	total_shard_count    INTEGER,
	assigned_shard_index INTEGER,
	payload              BYTEA,
	tenant_id            VARCHAR(255)
)`, table, m.IDColumnType()))

	tableName := m.Table
	if tableName == "" {
		tableName = pgdb.DefaultAgentTable
	}
	index := pgx.Identifier{tableName + "_tenant_idx"}.Sanitize()
	stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (tenant_id)", index, table))
	return stmts
}

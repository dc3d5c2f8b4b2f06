package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultAgentTable = "shard_coord_agent"

func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// Mapping locates the agent table. Empty Catalog and Schema fall back to the
// connection defaults.
type Mapping struct {
	Catalog string
	Schema  string
	Table   string
	// IDType is the SQL type of the id column: "uuid" or "char".
	IDType string
}

// QualifiedTable returns the sanitized, fully qualified table identifier.
func (m Mapping) QualifiedTable() string {
	table := m.Table
	if table == "" {
		table = DefaultAgentTable
	}
	var ident pgx.Identifier
	if m.Catalog != "" {
		ident = append(ident, m.Catalog)
	}
	if m.Schema != "" {
		ident = append(ident, m.Schema)
	}
	return append(ident, table).Sanitize()
}

// IDColumnType maps IDType to a column definition.
func (m Mapping) IDColumnType() string {
	if m.IDType == "char" {
		return "CHAR(36)"
	}
	return "UUID"
}

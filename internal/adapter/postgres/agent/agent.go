package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pgdb "github.com/alanyang/shard-coordinator/internal/adapter/postgres"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

var _ portagent.Store = (*Repository)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes agent rows of one tenant. Ids travel as text so
// the same queries serve uuid and char id columns.
type Repository struct {
	pool     *pgxpool.Pool
	db       querier
	table    string
	tenantID string
}

func New(pool *pgxpool.Pool, mapping pgdb.Mapping, tenantID string) *Repository {
	return &Repository{
		pool:     pool,
		db:       pool,
		table:    mapping.QualifiedTable(),
		tenantID: tenantID,
	}
}

// InTx runs fn against a repository bound to a single read-committed
// transaction. The transaction commits only if fn returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, repo portagent.Repository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning agent transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(context.Background()) //nolint:errcheck

	txRepo := &Repository{pool: r.pool, db: tx, table: r.table, tenantID: r.tenantID}
	if err := fn(ctx, txRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing agent transaction: %w", err)
	}
	return nil
}

func (r *Repository) columns() string {
	return `id, type, name, expiration, state, total_shard_count,
		assigned_shard_index, payload, COALESCE(tenant_id, '')`
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (domainagent.Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE id = $1 AND COALESCE(tenant_id, '') = $2`, r.columns(), r.table)

	a, err := scanAgent(r.db.QueryRow(ctx, query, id.String(), r.tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainagent.Agent{}, domainagent.ErrNotFound
		}
		return domainagent.Agent{}, fmt.Errorf("querying agent: %w", err)
	}
	return a, nil
}

func (r *Repository) FindAllOrderByID(ctx context.Context) ([]domainagent.Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE COALESCE(tenant_id, '') = $1
		ORDER BY id ASC`, r.columns(), r.table)

	rows, err := r.db.Query(ctx, query, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var agents []domainagent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}
	return agents, nil
}

func (r *Repository) Create(ctx context.Context, a domainagent.Agent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, name, expiration, state,
			total_shard_count, assigned_shard_index, payload, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`, r.table)

	_, err := r.db.Exec(ctx, query,
		a.ID.String(), string(a.Type), a.Name, a.Expiration, string(a.State),
		a.TotalShardCount, a.AssignedShardIndex, a.Payload, r.tenantID,
	)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, a domainagent.Agent) error {
	query := fmt.Sprintf(`
		UPDATE %s SET name = $2, expiration = $3, state = $4,
			total_shard_count = $5, assigned_shard_index = $6, payload = $7
		WHERE id = $1 AND COALESCE(tenant_id, '') = $8`, r.table)

	tag, err := r.db.Exec(ctx, query,
		a.ID.String(), a.Name, a.Expiration, string(a.State),
		a.TotalShardCount, a.AssignedShardIndex, a.Payload, r.tenantID,
	)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainagent.ErrNotFound
	}
	return nil
}

// Delete removes rows one by one; a row another agent already deleted affects
// zero rows and is not an error.
func (r *Repository) Delete(ctx context.Context, agents []domainagent.Agent) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND COALESCE(tenant_id, '') = $2`, r.table)
	for _, a := range agents {
		if _, err := r.db.Exec(ctx, query, a.ID.String(), r.tenantID); err != nil {
			return fmt.Errorf("deleting agent %s: %w", a.ID, err)
		}
	}
	return nil
}

// DeleteExpired re-checks the lease in the WHERE clause. A concurrent renewal
// that commits first makes the blocked DELETE skip the row.
func (r *Repository) DeleteExpired(ctx context.Context, agents []domainagent.Agent, now time.Time) ([]domainagent.Agent, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND COALESCE(tenant_id, '') = $2 AND expiration <= $3`, r.table)
	var reaped []domainagent.Agent
	for _, a := range agents {
		tag, err := r.db.Exec(ctx, query, a.ID.String(), r.tenantID, now)
		if err != nil {
			return nil, fmt.Errorf("reaping agent %s: %w", a.ID, err)
		}
		if tag.RowsAffected() > 0 {
			reaped = append(reaped, a)
		}
	}
	return reaped, nil
}

func scanAgent(row pgx.Row) (domainagent.Agent, error) {
	var (
		a        domainagent.Agent
		idStr    string
		typeStr  string
		stateStr string
		total    *int32
		index    *int32
	)
	if err := row.Scan(
		&idStr, &typeStr, &a.Name, &a.Expiration, &stateStr,
		&total, &index, &a.Payload, &a.TenantID,
	); err != nil {
		return domainagent.Agent{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("parsing agent id %q: %w", idStr, err)
	}
	a.ID = id
	a.Type = domainagent.Type(typeStr)
	a.State = domainagent.State(stateStr)
	a.Expiration = a.Expiration.UTC()
	if total != nil && index != nil {
		a.SetShards(int(*total), int(*index))
	}
	return a, nil
}

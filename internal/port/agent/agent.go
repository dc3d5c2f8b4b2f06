package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
)

// Repository is the persistence gateway over agent rows.
// It holds no locks: a snapshot may go stale between a read and the next write.
type Repository interface {
	// Find returns domainagent.ErrNotFound when no row has this id.
	Find(ctx context.Context, id uuid.UUID) (domainagent.Agent, error)
	// FindAllOrderByID returns one consistent snapshot ordered by id.
	FindAllOrderByID(ctx context.Context) ([]domainagent.Agent, error)
	Create(ctx context.Context, a domainagent.Agent) error
	// Update returns domainagent.ErrNotFound when the row was deleted meanwhile.
	Update(ctx context.Context, a domainagent.Agent) error
	// Delete removes the given rows. Rows that are already gone are skipped.
	Delete(ctx context.Context, agents []domainagent.Agent) error
	// DeleteExpired removes the given rows only if their stored lease has
	// expired at now, and returns the rows it removed. A row renewed since the
	// caller read it is left in place.
	DeleteExpired(ctx context.Context, agents []domainagent.Agent, now time.Time) ([]domainagent.Agent, error)
}

// Store opens the short per-pulse transaction.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

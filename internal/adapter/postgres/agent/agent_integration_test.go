//go:build integration

package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgagent "github.com/alanyang/shard-coordinator/internal/adapter/postgres/agent"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
	"github.com/alanyang/shard-coordinator/internal/testutil"
)

func newRepo(t *testing.T, idType, tenant string) *pgagent.Repository {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	mapping := testutil.NewAgentTable(t, pool, idType)
	return pgagent.New(pool, mapping, tenant)
}

func newAgent(name string) domainagent.Agent {
	return domainagent.New(domainagent.TypeEventProcessingDynamicSharding, name, time.Now().Add(time.Minute))
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAgentRepo_CreateFindUpdate(t *testing.T) {
	for _, idType := range []string{"uuid", "char"} {
		t.Run(idType, func(t *testing.T) {
			repo := newRepo(t, idType, "")
			ctx := context.Background()

			a := newAgent("a")
			a.Payload = []byte{0x81, 0xa1, 0x78, 0x01}
			require.NoError(t, repo.Create(ctx, a))

			got, err := repo.Find(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID)
			assert.Equal(t, domainagent.StateSuspended, got.State)
			assert.Equal(t, a.Payload, got.Payload)
			assert.WithinDuration(t, a.Expiration, got.Expiration, time.Millisecond)
			_, _, ok := got.Shards()
			assert.False(t, ok)

			got.State = domainagent.StateWaiting
			got.SetShards(3, 1)
			require.NoError(t, repo.Update(ctx, got))

			again, err := repo.Find(ctx, a.ID)
			require.NoError(t, err)
			total, index, ok := again.Shards()
			require.True(t, ok)
			assert.Equal(t, 3, total)
			assert.Equal(t, 1, index)
			assert.Equal(t, domainagent.StateWaiting, again.State)
		})
	}
}

func TestAgentRepo_FindMissing(t *testing.T) {
	repo := newRepo(t, "uuid", "")
	_, err := repo.Find(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainagent.ErrNotFound)
}

func TestAgentRepo_UpdateVanishedRow(t *testing.T) {
	repo := newRepo(t, "uuid", "")
	err := repo.Update(context.Background(), newAgent("ghost"))
	assert.ErrorIs(t, err, domainagent.ErrNotFound)
}

func TestAgentRepo_FindAllOrderedAndDeleteIdempotent(t *testing.T) {
	repo := newRepo(t, "uuid", "")
	ctx := context.Background()

	var created []domainagent.Agent
	for _, name := range []string{"a", "b", "c"} {
		a := newAgent(name)
		require.NoError(t, repo.Create(ctx, a))
		created = append(created, a)
	}

	all, err := repo.FindAllOrderByID(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Negative(t, compareIDs(all[i-1].ID, all[i].ID))
	}

	require.NoError(t, repo.Delete(ctx, created[:1]))
	require.NoError(t, repo.Delete(ctx, created[:1]))

	all, err = repo.FindAllOrderByID(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAgentRepo_DeleteExpiredWaitsForConcurrentRenewal(t *testing.T) {
	repo := newRepo(t, "uuid", "")
	ctx := context.Background()
	now := time.Now().UTC()

	slow := domainagent.New(domainagent.TypeEventProcessingDynamicSharding, "slow", now.Add(-time.Second))
	dead := domainagent.New(domainagent.TypeEventProcessingDynamicSharding, "dead", now.Add(-time.Second))
	require.NoError(t, repo.Create(ctx, slow))
	require.NoError(t, repo.Create(ctx, dead))

	renewing := make(chan struct{})
	commit := make(chan struct{})
	renewDone := make(chan error, 1)
	go func() {
		renewDone <- repo.InTx(ctx, func(ctx context.Context, tx portagent.Repository) error {
			fresh := slow.Clone()
			fresh.Expiration = now.Add(time.Minute)
			if err := tx.Update(ctx, fresh); err != nil {
				return err
			}
			close(renewing)
			<-commit
			return nil
		})
	}()
	<-renewing

	type result struct {
		reaped []domainagent.Agent
		err    error
	}
	reapDone := make(chan result, 1)
	go func() {
		reaped, err := repo.DeleteExpired(ctx, []domainagent.Agent{slow, dead}, now)
		reapDone <- result{reaped, err}
	}()

	// The DELETE blocks on the renewal's row lock until it commits.
	time.Sleep(100 * time.Millisecond)
	close(commit)
	require.NoError(t, <-renewDone)

	res := <-reapDone
	require.NoError(t, res.err)
	require.Len(t, res.reaped, 1)
	assert.Equal(t, dead.ID, res.reaped[0].ID)

	got, err := repo.Find(ctx, slow.ID)
	require.NoError(t, err)
	assert.True(t, got.Expiration.After(now))
}

func TestAgentRepo_TenantIsolation(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	mapping := testutil.NewAgentTable(t, pool, "uuid")
	ctx := context.Background()

	red := pgagent.New(pool, mapping, "red")
	blue := pgagent.New(pool, mapping, "blue")

	a := newAgent("red-1")
	require.NoError(t, red.Create(ctx, a))

	all, err := blue.FindAllOrderByID(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = blue.Find(ctx, a.ID)
	assert.ErrorIs(t, err, domainagent.ErrNotFound)

	got, err := red.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "red", got.TenantID)
}

func TestAgentRepo_InTxRollsBackOnError(t *testing.T) {
	repo := newRepo(t, "uuid", "")
	ctx := context.Background()
	boom := errors.New("boom")

	a := newAgent("rolled-back")
	err := repo.InTx(ctx, func(ctx context.Context, tx portagent.Repository) error {
		require.NoError(t, tx.Create(ctx, a))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.Find(ctx, a.ID)
	assert.ErrorIs(t, err, domainagent.ErrNotFound)

	b := newAgent("committed")
	require.NoError(t, repo.InTx(ctx, func(ctx context.Context, tx portagent.Repository) error {
		return tx.Create(ctx, b)
	}))
	_, err = repo.Find(ctx, b.ID)
	assert.NoError(t, err)
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

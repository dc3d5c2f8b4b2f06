// Package redis stores agent rows as Redis hashes indexed by a per-tenant id
// set. Every key of one tenant shares a hash tag, so multi-key transactions
// also work against Redis Cluster.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

var _ portagent.Store = (*AgentStore)(nil)

var ErrDuplicateID = errors.New("redis: agent id already exists")

// maxWatchRetries bounds optimistic retries of Update when a concurrent
// delete touches the watched key.
const maxWatchRetries = 3

type AgentStore struct {
	client   goredis.UniversalClient
	prefix   string
	tenantID string
}

func NewAgentStore(client goredis.UniversalClient, tenantID string) *AgentStore {
	return &AgentStore{
		client:   client,
		prefix:   "{shard_coord:" + tenantID + "}",
		tenantID: tenantID,
	}
}

func (s *AgentStore) idsKey() string { return s.prefix + ":agents" }

func (s *AgentStore) agentKey(id string) string { return s.prefix + ":agent:" + id }

// InTx runs fn directly. Each write is atomic per row, which is all the
// coordination protocol relies on.
func (s *AgentStore) InTx(ctx context.Context, fn func(ctx context.Context, repo portagent.Repository) error) error {
	return fn(ctx, s)
}

func (s *AgentStore) Find(ctx context.Context, id uuid.UUID) (domainagent.Agent, error) {
	vals, err := s.client.HGetAll(ctx, s.agentKey(id.String())).Result()
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("redis: find agent: %w", err)
	}
	if len(vals) == 0 {
		return domainagent.Agent{}, domainagent.ErrNotFound
	}
	return s.mapToAgent(id.String(), vals)
}

func (s *AgentStore) FindAllOrderByID(ctx context.Context) ([]domainagent.Agent, error) {
	var (
		ids  []string
		cmds []*goredis.MapStringStringCmd
	)
	// The id set is watched so a registration or reap between SMEMBERS and
	// EXEC retries the read. MULTI/EXEC reads every hash at one instant.
	load := func(tx *goredis.Tx) error {
		var err error
		ids, err = tx.SMembers(ctx, s.idsKey()).Result()
		if err != nil {
			return err
		}
		cmds = make([]*goredis.MapStringStringCmd, len(ids))
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HGetAll(ctx, s.agentKey(id))
			}
			return nil
		})
		return err
	}

	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, load, s.idsKey())
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load agents: %w", err)
	}

	agents := make([]domainagent.Agent, 0, len(ids))
	for i, cmd := range cmds {
		vals := cmd.Val()
		// An id whose hash is already gone.
		if len(vals) == 0 {
			continue
		}
		a, err := s.mapToAgent(ids[i], vals)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}

	slices.SortFunc(agents, func(a, b domainagent.Agent) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return agents, nil
}

func (s *AgentStore) Create(ctx context.Context, a domainagent.Agent) error {
	id := a.ID.String()
	key := s.agentKey(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: create agent exists: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, agentToMap(a))
	pipe.SAdd(ctx, s.idsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: create agent: %w", err)
	}
	return nil
}

// Update overwrites the row only if it still exists. The key is watched so a
// concurrent reap cannot be undone by a late write.
func (s *AgentStore) Update(ctx context.Context, a domainagent.Agent) error {
	key := s.agentKey(a.ID.String())

	update := func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return domainagent.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, agentToMap(a))
			return nil
		})
		return err
	}

	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, domainagent.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("redis: update agent: %w", err)
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, agents []domainagent.Agent) error {
	if len(agents) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, a := range agents {
		id := a.ID.String()
		pipe.Del(ctx, s.agentKey(id))
		pipe.SRem(ctx, s.idsKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete agents: %w", err)
	}
	return nil
}

// DeleteExpired watches each row and deletes it only if the stored expiration
// is still due. A renewal landing in between aborts the transaction and the
// retry sees the fresh lease.
func (s *AgentStore) DeleteExpired(ctx context.Context, agents []domainagent.Agent, now time.Time) ([]domainagent.Agent, error) {
	var reaped []domainagent.Agent
	for _, a := range agents {
		id := a.ID.String()
		key := s.agentKey(id)

		deleted := false
		reap := func(tx *goredis.Tx) error {
			raw, err := tx.HGet(ctx, key, "expiration").Result()
			if errors.Is(err, goredis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			exp, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return fmt.Errorf("parsing expiration of %s: %w", id, err)
			}
			if exp.After(now) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, s.idsKey(), id)
				return nil
			})
			if err == nil {
				deleted = true
			}
			return err
		}

		var err error
		for range maxWatchRetries {
			err = s.client.Watch(ctx, reap, key)
			if !errors.Is(err, goredis.TxFailedErr) {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("redis: reap agent %s: %w", id, err)
		}
		if deleted {
			reaped = append(reaped, a)
		}
	}
	return reaped, nil
}

func agentToMap(a domainagent.Agent) map[string]any {
	m := map[string]any{
		"type":       string(a.Type),
		"name":       a.Name,
		"expiration": a.Expiration.UTC().Format(time.RFC3339Nano),
		"state":      string(a.State),
		"payload":    a.Payload,
	}
	if total, index, ok := a.Shards(); ok {
		m["total_shard_count"] = strconv.Itoa(total)
		m["assigned_shard_index"] = strconv.Itoa(index)
	}
	return m
}

func (s *AgentStore) mapToAgent(idStr string, vals map[string]string) (domainagent.Agent, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("redis: parsing agent id %q: %w", idStr, err)
	}
	exp, err := time.Parse(time.RFC3339Nano, vals["expiration"])
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("redis: parsing expiration of %s: %w", idStr, err)
	}

	a := domainagent.Agent{
		ID:         id,
		Type:       domainagent.Type(vals["type"]),
		Name:       vals["name"],
		Expiration: exp.UTC(),
		State:      domainagent.State(vals["state"]),
		TenantID:   s.tenantID,
	}
	if p := vals["payload"]; p != "" {
		a.Payload = []byte(p)
	}

	totalStr, hasTotal := vals["total_shard_count"]
	indexStr, hasIndex := vals["assigned_shard_index"]
	if hasTotal && hasIndex {
		total, err := strconv.Atoi(totalStr)
		if err != nil {
			return domainagent.Agent{}, fmt.Errorf("redis: parsing total shard count of %s: %w", idStr, err)
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil {
			return domainagent.Agent{}, fmt.Errorf("redis: parsing shard index of %s: %w", idStr, err)
		}
		a.SetShards(total, index)
	}
	return a, nil
}

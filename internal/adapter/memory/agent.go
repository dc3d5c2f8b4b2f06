package memory

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

var _ portagent.Store = (*AgentStore)(nil)

var ErrDuplicateID = errors.New("memory: agent id already exists")

// tables holds the rows shared by every tenant view of one in-memory database.
type tables struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	agents map[uuid.UUID]domainagent.Agent
}

// AgentStore is an in-process agent table. Safe for concurrent use.
// Stores created with ForTenant share rows with their parent but only see
// their own tenant.
type AgentStore struct {
	db       *tables
	tenantID string
}

func NewAgentStore() *AgentStore {
	return &AgentStore{db: &tables{agents: make(map[uuid.UUID]domainagent.Agent)}}
}

// ForTenant returns a view over the same rows scoped to tenantID.
func (s *AgentStore) ForTenant(tenantID string) *AgentStore {
	return &AgentStore{db: s.db, tenantID: tenantID}
}

// InTx serialises fn against every other transaction on the same database.
func (s *AgentStore) InTx(ctx context.Context, fn func(ctx context.Context, repo portagent.Repository) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()
	return fn(ctx, s)
}

func (s *AgentStore) Find(_ context.Context, id uuid.UUID) (domainagent.Agent, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	a, ok := s.db.agents[id]
	if !ok || a.TenantID != s.tenantID {
		return domainagent.Agent{}, domainagent.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *AgentStore) FindAllOrderByID(_ context.Context) ([]domainagent.Agent, error) {
	s.db.mu.RLock()
	out := make([]domainagent.Agent, 0, len(s.db.agents))
	for _, a := range s.db.agents {
		if a.TenantID == s.tenantID {
			out = append(out, a.Clone())
		}
	}
	s.db.mu.RUnlock()

	slices.SortFunc(out, func(a, b domainagent.Agent) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (s *AgentStore) Create(_ context.Context, a domainagent.Agent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.agents[a.ID]; exists {
		return ErrDuplicateID
	}
	row := a.Clone()
	row.TenantID = s.tenantID
	s.db.agents[a.ID] = row
	return nil
}

func (s *AgentStore) Update(_ context.Context, a domainagent.Agent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.agents[a.ID]
	if !ok || existing.TenantID != s.tenantID {
		return domainagent.ErrNotFound
	}
	row := a.Clone()
	row.TenantID = s.tenantID
	s.db.agents[a.ID] = row
	return nil
}

func (s *AgentStore) DeleteExpired(_ context.Context, agents []domainagent.Agent, now time.Time) ([]domainagent.Agent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var reaped []domainagent.Agent
	for _, a := range agents {
		existing, ok := s.db.agents[a.ID]
		if !ok || existing.TenantID != s.tenantID || !existing.IsExpired(now) {
			continue
		}
		delete(s.db.agents, a.ID)
		reaped = append(reaped, existing.Clone())
	}
	return reaped, nil
}

func (s *AgentStore) Delete(_ context.Context, agents []domainagent.Agent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, a := range agents {
		if existing, ok := s.db.agents[a.ID]; ok && existing.TenantID == s.tenantID {
			delete(s.db.agents, a.ID)
		}
	}
	return nil
}

package coordination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/domain/cluster"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

// ErrNotRegistered is returned by identity-dependent operations called
// before CreateSelf.
var ErrNotRegistered = errors.New("coordination: agent is not registered")

// Persister owns the local agent's row and drives its state through
// SUSPENDED, WAITING and RUNNING. Setters only mutate the record passed to
// them; the caller persists it.
type Persister struct {
	agentType domainagent.Type
	name      string
	static    *cluster.ShardAssignment
	logger    *slog.Logger

	mu   sync.RWMutex
	self *domainagent.Reference
	// registered stays true after LeaveCluster so FindSelf can report the
	// row as absent instead of failing the precondition.
	registered bool
}

// NewPersister returns a persister for one local agent. static must be set
// for statically sharded agents and nil otherwise.
func NewPersister(agentType domainagent.Type, name string, static *cluster.ShardAssignment, logger *slog.Logger) *Persister {
	return &Persister{
		agentType: agentType,
		name:      name,
		static:    static,
		logger:    logger,
	}
}

func (p *Persister) Type() domainagent.Type { return p.agentType }

func (p *Persister) SelfReference() (domainagent.Reference, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.self == nil {
		return domainagent.Reference{}, false
	}
	return *p.self, true
}

// FindSelf loads the local row. It returns (nil, nil) when the row is gone,
// which callers must treat as a request to register again.
func (p *Persister) FindSelf(ctx context.Context, repo portagent.Repository) (*domainagent.Agent, error) {
	p.mu.RLock()
	self, registered := p.self, p.registered
	p.mu.RUnlock()
	if !registered {
		return nil, ErrNotRegistered
	}
	if self == nil {
		return nil, nil
	}
	ref := *self
	a, err := repo.Find(ctx, ref.ID)
	if errors.Is(err, domainagent.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Persister) CreateSelf(ctx context.Context, repo portagent.Repository, expiration time.Time) (domainagent.Agent, error) {
	a := domainagent.New(p.agentType, p.name, expiration)
	if p.static != nil {
		a.SetShards(p.static.TotalShardCount, p.static.AssignedShardIndex)
		payload, err := p.basePayload().Encode()
		if err != nil {
			return domainagent.Agent{}, err
		}
		a.Payload = payload
	}

	if err := repo.Create(ctx, a); err != nil {
		return domainagent.Agent{}, fmt.Errorf("registering agent: %w", err)
	}

	ref := a.Reference()
	p.mu.Lock()
	p.self = &ref
	p.registered = true
	p.mu.Unlock()

	p.logger.Info("agent registered", "agent", ref, "type", p.agentType, "expiration", a.Expiration)
	return a, nil
}

// LeaveCluster deletes the local row and forgets it. It is a no-op when the
// agent is not registered.
func (p *Persister) LeaveCluster(ctx context.Context, repo portagent.Repository) error {
	ref, ok := p.SelfReference()
	if !ok {
		return nil
	}
	if err := repo.Delete(ctx, []domainagent.Agent{{ID: ref.ID, Name: ref.Name}}); err != nil {
		return fmt.Errorf("leaving cluster: %w", err)
	}
	p.Forget()
	p.logger.Info("agent left the cluster", "agent", ref)
	return nil
}

// Forget drops the local reference without touching storage.
func (p *Persister) Forget() {
	p.mu.Lock()
	p.self = nil
	p.mu.Unlock()
}

func (p *Persister) SetSuspended(self *domainagent.Agent) {
	if self.State == domainagent.StateSuspended {
		return
	}
	p.logger.Info("agent suspended", "agent", self.Reference(), "from", self.State)
	self.State = domainagent.StateSuspended
	if p.agentType == domainagent.TypeEventProcessingDynamicSharding {
		self.ClearShards()
	}
}

// SetWaiting records d in the payload and, for dynamic agents, the
// assignment derived from it. Static agents keep their configured shards.
func (p *Persister) SetWaiting(self *domainagent.Agent, d cluster.Descriptor, a cluster.ShardAssignment) error {
	if p.agentType == domainagent.TypeEventProcessingDynamicSharding {
		self.SetShards(a.TotalShardCount, a.AssignedShardIndex)
	}

	payload, err := domainagent.DecodePayload(self.Payload)
	if err != nil {
		p.logger.Warn("discarding unreadable agent payload", "agent", self.Reference(), "error", err)
		payload = p.basePayload()
	}
	payload.ClusterMembers = d.Strings()
	data, err := payload.Encode()
	if err != nil {
		return err
	}
	self.Payload = data

	if self.State == domainagent.StateWaiting {
		return nil
	}
	p.logger.Info("agent waiting for cluster",
		"agent", self.Reference(),
		"from", self.State,
		"cluster", d,
		"assignment", assignmentAttr(p.agentType, a),
	)
	self.State = domainagent.StateWaiting
	return nil
}

func (p *Persister) SetRunning(self *domainagent.Agent, d cluster.Descriptor) {
	if self.State == domainagent.StateRunning {
		return
	}
	attrs := []any{"agent", self.Reference(), "from", self.State, "cluster", d}
	if total, index, ok := self.Shards(); ok {
		attrs = append(attrs, "assignment", cluster.ShardAssignment{TotalShardCount: total, AssignedShardIndex: index})
	}
	p.logger.Info("agent running", attrs...)
	self.State = domainagent.StateRunning
}

func (p *Persister) basePayload() domainagent.Payload {
	var payload domainagent.Payload
	if p.static != nil {
		total, index := p.static.TotalShardCount, p.static.AssignedShardIndex
		payload.StaticTotalShardCount = &total
		payload.StaticAssignedShardIndex = &index
	}
	return payload
}

func assignmentAttr(t domainagent.Type, a cluster.ShardAssignment) any {
	if !t.IsEventProcessing() {
		return "none"
	}
	return a
}

package coordination

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alanyang/shard-coordinator/internal/diag"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/domain/cluster"
	"github.com/alanyang/shard-coordinator/internal/domain/event"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

type LinkConfig struct {
	Type domainagent.Type
	Name string
	// Static is required for TypeEventProcessingStaticSharding and ignored
	// otherwise.
	Static          *cluster.ShardAssignment
	PulseInterval   time.Duration
	PulseExpiration time.Duration
}

// Instruction tells the local processor what it may do until the next pulse.
// Events must be published only after the pulse transaction committed.
type Instruction struct {
	Self  domainagent.Reference
	State domainagent.State
	// Assignment is set only when State is RUNNING for an event processor.
	Assignment *cluster.ShardAssignment
	Cluster    cluster.Descriptor
	Delay      time.Duration
	Events     []event.Event
	PulsedAt   time.Time
}

// Processing reports whether the processor may consume work.
func (i Instruction) Processing() bool { return i.State == domainagent.StateRunning }

// Link runs one reconciliation cycle per pulse against a fresh snapshot of
// the agent table. It never reuses a previous view as ground truth.
type Link struct {
	cfg       LinkConfig
	persister *Persister
	logger    *slog.Logger

	mu   sync.Mutex
	last *Instruction
}

func NewLink(cfg LinkConfig, logger *slog.Logger) *Link {
	var static *cluster.ShardAssignment
	if cfg.Type == domainagent.TypeEventProcessingStaticSharding {
		static = cfg.Static
	}
	return &Link{
		cfg:       cfg,
		persister: NewPersister(cfg.Type, cfg.Name, static, logger),
		logger:    logger,
	}
}

func (l *Link) Type() domainagent.Type { return l.cfg.Type }

func (l *Link) Name() string { return l.cfg.Name }

func (l *Link) PulseInterval() time.Duration { return l.cfg.PulseInterval }

func (l *Link) SelfReference() (domainagent.Reference, bool) {
	return l.persister.SelfReference()
}

func (l *Link) FindSelf(ctx context.Context, repo portagent.Repository) (*domainagent.Agent, error) {
	return l.persister.FindSelf(ctx, repo)
}

// LastInstruction returns the outcome of the latest successful pulse.
func (l *Link) LastInstruction() (Instruction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return Instruction{}, false
	}
	return *l.last, true
}

// Pulse reconciles the local agent with the cluster as seen at now. repo is
// expected to be scoped to a single transaction. Storage errors are returned
// unchanged.
func (l *Link) Pulse(ctx context.Context, repo portagent.Repository, now time.Time) (Instruction, error) {
	inst, err := l.pulse(ctx, repo, now)
	if err != nil {
		return Instruction{}, err
	}
	inst.PulsedAt = now
	if inst.Delay == 0 {
		inst.Delay = l.cfg.PulseInterval
	}

	l.mu.Lock()
	l.last = &inst
	l.mu.Unlock()
	return inst, nil
}

func (l *Link) pulse(ctx context.Context, repo portagent.Repository, now time.Time) (Instruction, error) {
	ref, registered := l.persister.SelfReference()
	if !registered {
		return l.register(ctx, repo, now)
	}

	agents, err := repo.FindAllOrderByID(ctx)
	if err != nil {
		return Instruction{}, err
	}

	selfIdx := slices.IndexFunc(agents, func(a domainagent.Agent) bool { return a.ID == ref.ID })
	if selfIdx < 0 {
		l.logger.Warn("agent row no longer exists, registering again", "agent", ref)
		l.persister.Forget()
		return l.register(ctx, repo, now)
	}
	self := agents[selfIdx]
	peers := slices.Delete(slices.Clone(agents), selfIdx, selfIdx+1)

	live, expired := cluster.PartitionByLiveness(peers, now)
	var events []event.Event
	if len(expired) > 0 {
		reaped, err := repo.DeleteExpired(ctx, expired, now)
		if err != nil {
			return Instruction{}, err
		}
		for _, a := range reaped {
			l.logger.Info("reaped expired agent", "agent", a.Reference(), "expiration", a.Expiration, "by", ref)
			events = append(events, event.New(event.TypeAgentReaped, a.ID, ref.ID))
		}
		if len(reaped) < len(expired) {
			// A peer renewed after the snapshot; rebuild the live set from fresh rows.
			l.logger.Debug("expired peer renewed before reaping, reloading snapshot", "agent", ref)
			if live, err = l.reloadLivePeers(ctx, repo, ref, now); err != nil {
				return Instruction{}, err
			}
		}
	}

	if self.IsExpired(now) {
		l.logger.Warn("own lease expired before pulse, peers may have stopped counting this agent",
			"agent", ref, "expiration", self.Expiration)
	}
	self.Expiration = now.Add(l.cfg.PulseExpiration).UTC()
	previous := self.State

	var out outcome
	if l.cfg.Type.IsEventProcessing() {
		out, err = l.reconcileEventProcessor(&self, live)
	} else {
		out, err = l.reconcileMassIndexer(&self, live)
	}
	if err != nil {
		return Instruction{}, err
	}

	if err := repo.Update(ctx, self); err != nil {
		if errors.Is(err, domainagent.ErrNotFound) {
			l.logger.Warn("agent row reaped during pulse", "agent", ref)
			l.persister.Forget()
			return Instruction{Self: ref, State: domainagent.StateSuspended, Events: events}, nil
		}
		return Instruction{}, err
	}

	if self.State != previous {
		e := event.New(event.TypeAgentStateChanged, self.ID, self.ID)
		e.State = string(self.State)
		events = append(events, e)
	}

	inst := Instruction{
		Self:    ref,
		State:   self.State,
		Cluster: out.cluster,
		Events:  events,
	}
	if out.deferred {
		inst.State = domainagent.StateWaiting
	}
	if inst.State == domainagent.StateRunning && l.cfg.Type.IsEventProcessing() {
		a := out.assignment
		inst.Assignment = &a
	}
	return inst, nil
}

func (l *Link) reloadLivePeers(ctx context.Context, repo portagent.Repository, self domainagent.Reference, now time.Time) ([]domainagent.Agent, error) {
	agents, err := repo.FindAllOrderByID(ctx)
	if err != nil {
		return nil, err
	}
	agents = slices.DeleteFunc(agents, func(a domainagent.Agent) bool { return a.ID == self.ID })
	live, _ := cluster.PartitionByLiveness(agents, now)
	return live, nil
}

// register inserts a fresh row. The new agent always starts SUSPENDED and
// joins the barrier on its next pulse.
func (l *Link) register(ctx context.Context, repo portagent.Repository, now time.Time) (Instruction, error) {
	a, err := l.persister.CreateSelf(ctx, repo, now.Add(l.cfg.PulseExpiration))
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Self:   a.Reference(),
		State:  domainagent.StateSuspended,
		Events: []event.Event{event.New(event.TypeAgentRegistered, a.ID, a.ID)},
	}, nil
}

type outcome struct {
	cluster    cluster.Descriptor
	assignment cluster.ShardAssignment
	// deferred means the pulse could not derive a valid assignment from the
	// snapshot; nothing was transitioned and the processor must pause.
	deferred bool
}

func (l *Link) reconcileEventProcessor(self *domainagent.Agent, live []domainagent.Agent) (outcome, error) {
	if indexers := cluster.OfType(live, domainagent.TypeMassIndexing); len(indexers) > 0 {
		l.logger.Debug("mass indexing in progress, suspending", "agent", self.Reference(), "indexers", references(indexers))
		l.persister.SetSuspended(self)
		return outcome{}, nil
	}

	if others := cluster.OfType(live, otherShardingMode(l.cfg.Type)); len(others) > 0 {
		l.logger.Warn("agents with a different sharding mode are live, suspending",
			"agent", self.Reference(), "type", l.cfg.Type, "conflicting", references(others))
		l.persister.SetSuspended(self)
		return outcome{}, nil
	}

	peers := cluster.OfType(live, l.cfg.Type)
	members := append(slices.Clone(peers), *self)
	d := cluster.DescriptorOf(members)

	var target cluster.ShardAssignment
	if l.cfg.Type == domainagent.TypeEventProcessingStaticSharding {
		target = *l.cfg.Static
		if err := cluster.CheckStatic(self.ID, target, peers); err != nil {
			l.logger.Warn("static shard assignment conflicts with live peers, suspending",
				"agent", self.Reference(), "error", err)
			l.persister.SetSuspended(self)
			return outcome{cluster: d}, nil
		}
	} else {
		a, ok := cluster.AssignmentFor(d, self.ID)
		if !ok {
			l.logger.Debug("no valid assignment in snapshot, deferring", "agent", self.Reference(), "cluster", d)
			return outcome{cluster: d, deferred: true}, nil
		}
		target = a
	}

	if self.State == domainagent.StateSuspended || !recordedCluster(self).Equal(d) || !target.Matches(self) {
		if err := l.persister.SetWaiting(self, d, target); err != nil {
			return outcome{}, err
		}
		return outcome{cluster: d, assignment: target}, nil
	}

	if pending := l.pendingMembers(members, d); len(pending) > 0 {
		l.logger.Debug("waiting for peers to apply cluster", "agent", self.Reference(), "cluster", d, "pending", pending)
		if err := l.persister.SetWaiting(self, d, target); err != nil {
			return outcome{}, err
		}
		return outcome{cluster: d, assignment: target}, nil
	}

	l.persister.SetRunning(self, d)
	return outcome{cluster: d, assignment: target}, nil
}

// pendingMembers lists the members that have not yet persisted d, including
// the dynamic assignment d gives them.
func (l *Link) pendingMembers(members []domainagent.Agent, d cluster.Descriptor) []domainagent.Reference {
	var pending []domainagent.Reference
	for i := range members {
		m := &members[i]
		if m.State != domainagent.StateWaiting && m.State != domainagent.StateRunning {
			pending = append(pending, m.Reference())
			continue
		}
		if !recordedCluster(m).Equal(d) {
			pending = append(pending, m.Reference())
			continue
		}
		if l.cfg.Type == domainagent.TypeEventProcessingDynamicSharding {
			want, ok := cluster.AssignmentFor(d, m.ID)
			if !ok || !want.Matches(m) {
				pending = append(pending, m.Reference())
			}
		}
	}
	return pending
}

// reconcileMassIndexer lets the indexer run only once every live event
// processor has observed it and suspended.
func (l *Link) reconcileMassIndexer(self *domainagent.Agent, live []domainagent.Agent) (outcome, error) {
	indexers := append(cluster.OfType(live, domainagent.TypeMassIndexing), *self)
	d := cluster.DescriptorOf(indexers)

	processors := cluster.OfType(live,
		domainagent.TypeEventProcessingDynamicSharding,
		domainagent.TypeEventProcessingStaticSharding,
	)
	var active []domainagent.Reference
	for _, p := range processors {
		if p.State != domainagent.StateSuspended {
			active = append(active, p.Reference())
		}
	}

	if len(active) > 0 {
		l.logger.Debug("waiting for event processors to suspend", "agent", self.Reference(), "active", active)
		if err := l.persister.SetWaiting(self, d, cluster.ShardAssignment{}); err != nil {
			return outcome{}, err
		}
		return outcome{cluster: d}, nil
	}

	l.persister.SetRunning(self, d)
	return outcome{cluster: d}, nil
}

// Leave deletes the local row and returns the event announcing it. It is a
// no-op for an unregistered agent.
func (l *Link) Leave(ctx context.Context, repo portagent.Repository) ([]event.Event, error) {
	ref, ok := l.persister.SelfReference()
	if !ok {
		return nil, nil
	}
	if err := l.persister.LeaveCluster(ctx, repo); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.last = nil
	l.mu.Unlock()
	return []event.Event{event.New(event.TypeAgentLeft, ref.ID, ref.ID)}, nil
}

// AppendTo writes the link's local view into n.
func (l *Link) AppendTo(n diag.Node) {
	node := n.Child("link " + l.cfg.Name)
	node.Attr("type", l.cfg.Type)
	if ref, ok := l.persister.SelfReference(); ok {
		node.Attr("self", ref)
	} else {
		node.Attr("self", "unregistered")
	}
	if l.cfg.Static != nil && l.cfg.Type == domainagent.TypeEventProcessingStaticSharding {
		node.Attr("static assignment", *l.cfg.Static)
	}

	inst, ok := l.LastInstruction()
	if !ok {
		node.Attr("last pulse", "never")
		return
	}
	node.Attr("last pulse", inst.PulsedAt.Format(time.RFC3339Nano))
	node.Attr("instructed state", inst.State)
	node.Attr("cluster", inst.Cluster)
	if inst.Assignment != nil {
		node.Attr("assignment", *inst.Assignment)
	}
	node.Attr("next pulse in", inst.Delay)
}

func recordedCluster(a *domainagent.Agent) cluster.Descriptor {
	payload, err := domainagent.DecodePayload(a.Payload)
	if err != nil {
		return cluster.Descriptor{}
	}
	d, err := cluster.ParseDescriptor(payload.ClusterMembers)
	if err != nil {
		return cluster.Descriptor{}
	}
	return d
}

func otherShardingMode(t domainagent.Type) domainagent.Type {
	if t == domainagent.TypeEventProcessingStaticSharding {
		return domainagent.TypeEventProcessingDynamicSharding
	}
	return domainagent.TypeEventProcessingStaticSharding
}

func references(agents []domainagent.Agent) []domainagent.Reference {
	refs := make([]domainagent.Reference, len(agents))
	for i := range agents {
		refs[i] = agents[i].Reference()
	}
	return refs
}

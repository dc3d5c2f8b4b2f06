package coordination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alanyang/shard-coordinator/internal/diag"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/domain/cluster"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
)

var dumpOrder = []domainagent.Type{
	domainagent.TypeEventProcessingDynamicSharding,
	domainagent.TypeEventProcessingStaticSharding,
	domainagent.TypeMassIndexing,
}

// Inspector answers read-only troubleshooting queries about the agent table
// and the links running in this process.
type Inspector struct {
	repo  portagent.Repository
	links []*Link
	clock func() time.Time
}

func NewInspector(repo portagent.Repository, clock func() time.Time, links ...*Link) *Inspector {
	if clock == nil {
		clock = time.Now
	}
	return &Inspector{repo: repo, links: links, clock: clock}
}

func (i *Inspector) Agents(ctx context.Context) ([]domainagent.Agent, error) {
	agents, err := i.repo.FindAllOrderByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// AgentFilter narrows FindAgents. The zero value matches every row.
type AgentFilter struct {
	Type     domainagent.Type
	LiveOnly bool
}

func (i *Inspector) FindAgents(ctx context.Context, f AgentFilter) ([]domainagent.Agent, error) {
	agents, err := i.Agents(ctx)
	if err != nil {
		return nil, err
	}
	if f.Type != "" {
		agents = cluster.OfType(agents, f.Type)
	}
	if f.LiveOnly {
		agents, _ = cluster.PartitionByLiveness(agents, i.clock())
	}
	if agents == nil {
		agents = []domainagent.Agent{}
	}
	return agents, nil
}

// LocalView is what one local link knows about itself.
type LocalView struct {
	Name        string                   `json:"name"`
	Type        domainagent.Type         `json:"type"`
	Self        *domainagent.Reference   `json:"self,omitempty"`
	Row         *domainagent.Agent       `json:"row,omitempty"`
	Instruction *InstructionView         `json:"instruction,omitempty"`
	Static      *cluster.ShardAssignment `json:"static_assignment,omitempty"`
}

type InstructionView struct {
	State      domainagent.State        `json:"state"`
	Assignment *cluster.ShardAssignment `json:"assignment,omitempty"`
	Cluster    []string                 `json:"cluster"`
	PulsedAt   time.Time                `json:"pulsed_at"`
}

// Local returns the view of every link in this process, including the row
// each one currently has in storage.
func (i *Inspector) Local(ctx context.Context) ([]LocalView, error) {
	views := make([]LocalView, 0, len(i.links))
	for _, l := range i.links {
		v := LocalView{Name: l.Name(), Type: l.Type()}
		if l.Type() == domainagent.TypeEventProcessingStaticSharding {
			v.Static = l.cfg.Static
		}
		if ref, ok := l.SelfReference(); ok {
			v.Self = &ref
			row, err := l.FindSelf(ctx, i.repo)
			if err != nil && !errors.Is(err, ErrNotRegistered) {
				return nil, fmt.Errorf("find self of %s: %w", ref, err)
			}
			v.Row = row
		}
		if inst, ok := l.LastInstruction(); ok {
			v.Instruction = &InstructionView{
				State:      inst.State,
				Assignment: inst.Assignment,
				Cluster:    inst.Cluster.Strings(),
				PulsedAt:   inst.PulsedAt,
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// Tree builds the diagnostic tree: one group per agent type with the live
// descriptor, each agent's row and expected assignment, then the local links.
func (i *Inspector) Tree(ctx context.Context) (*diag.Tree, error) {
	agents, err := i.Agents(ctx)
	if err != nil {
		return nil, err
	}
	now := i.clock()

	tree := diag.New("cluster")
	root := tree.Root()
	root.Attr("observed at", now.UTC().Format(time.RFC3339Nano))
	root.Attr("agents", len(agents))

	for _, t := range dumpOrder {
		group := cluster.OfType(agents, t)
		if len(group) == 0 {
			continue
		}
		live, _ := cluster.PartitionByLiveness(group, now)
		d := cluster.DescriptorOf(live)

		node := root.Child(string(t))
		node.Attr("live descriptor", d)
		for _, a := range group {
			an := node.Child(a.Reference().String())
			an.Attr("state", a.State)
			an.Attr("expiration", a.Expiration.Format(time.RFC3339Nano))
			an.Attr("live", !a.IsExpired(now))
			if total, index, ok := a.Shards(); ok {
				an.Attr("persisted assignment", cluster.ShardAssignment{TotalShardCount: total, AssignedShardIndex: index})
			}
			if t == domainagent.TypeEventProcessingDynamicSharding {
				if expected, ok := cluster.AssignmentFor(d, a.ID); ok {
					an.Attr("expected assignment", expected)
				}
			}
			an.Attr("recorded cluster", recordedCluster(&a))
		}
	}

	if len(i.links) > 0 {
		local := root.Child("local")
		for _, l := range i.links {
			l.AppendTo(local)
		}
	}
	return tree, nil
}

func (i *Inspector) Dump(ctx context.Context, w io.Writer) error {
	tree, err := i.Tree(ctx)
	if err != nil {
		return err
	}
	_, err = tree.WriteTo(w)
	return err
}

package cluster

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
)

// Descriptor is the ordered list of live members that all shard math derives from.
// The zero value is the empty cluster.
type Descriptor struct {
	members []uuid.UUID
}

// NewDescriptor sorts a copy of ids by natural UUID order.
// Agents computing from the same member set always get equal descriptors.
func NewDescriptor(ids []uuid.UUID) Descriptor {
	members := slices.Clone(ids)
	slices.SortFunc(members, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	members = slices.Compact(members)
	return Descriptor{members: members}
}

// DescriptorOf builds the descriptor for a set of agents.
func DescriptorOf(agents []domainagent.Agent) Descriptor {
	ids := make([]uuid.UUID, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return NewDescriptor(ids)
}

// ParseDescriptor restores a descriptor recorded in an agent payload.
func ParseDescriptor(members []string) (Descriptor, error) {
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			return Descriptor{}, fmt.Errorf("parsing cluster member %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return NewDescriptor(ids), nil
}

func (d Descriptor) Members() []uuid.UUID { return slices.Clone(d.members) }

func (d Descriptor) Size() int { return len(d.members) }

// IndexOf returns the position of id, or -1.
func (d Descriptor) IndexOf(id uuid.UUID) int {
	return slices.Index(d.members, id)
}

func (d Descriptor) Equal(other Descriptor) bool {
	return slices.Equal(d.members, other.members)
}

// Strings renders the members in the form stored in agent payloads.
func (d Descriptor) Strings() []string {
	out := make([]string, len(d.members))
	for i, m := range d.members {
		out[i] = m.String()
	}
	return out
}

func (d Descriptor) String() string {
	return "[" + strings.Join(d.Strings(), ", ") + "]"
}

func (d Descriptor) LogValue() slog.Value {
	return slog.StringValue(d.String())
}

type ShardAssignment struct {
	TotalShardCount    int `json:"total_shard_count"`
	AssignedShardIndex int `json:"assigned_shard_index"`
}

func (s ShardAssignment) Valid() bool {
	return s.TotalShardCount > 0 && s.AssignedShardIndex >= 0 && s.AssignedShardIndex < s.TotalShardCount
}

func (s ShardAssignment) String() string {
	return fmt.Sprintf("%d/%d", s.AssignedShardIndex, s.TotalShardCount)
}

// AssignmentFor derives the dynamic assignment of id: the shard count is the
// cluster size and the index is the member's position. ok is false when id is
// not a member.
func AssignmentFor(d Descriptor, id uuid.UUID) (ShardAssignment, bool) {
	idx := d.IndexOf(id)
	if idx < 0 {
		return ShardAssignment{}, false
	}
	a := ShardAssignment{TotalShardCount: d.Size(), AssignedShardIndex: idx}
	return a, a.Valid()
}

// Matches reports whether the agent's persisted shard fields equal s.
func (s ShardAssignment) Matches(a *domainagent.Agent) bool {
	total, index, ok := a.Shards()
	return ok && total == s.TotalShardCount && index == s.AssignedShardIndex
}

// PartitionByLiveness splits agents into those whose lease is still valid at
// now and those that expired. Input order is preserved in both outputs.
func PartitionByLiveness(agents []domainagent.Agent, now time.Time) (live, expired []domainagent.Agent) {
	for _, a := range agents {
		if a.IsExpired(now) {
			expired = append(expired, a)
		} else {
			live = append(live, a)
		}
	}
	return live, expired
}

// OfType keeps the agents whose type is one of types.
func OfType(agents []domainagent.Agent, types ...domainagent.Type) []domainagent.Agent {
	var out []domainagent.Agent
	for _, a := range agents {
		if slices.Contains(types, a.Type) {
			out = append(out, a)
		}
	}
	return out
}

// StaticConflictError describes live static agents whose configuration cannot
// coexist with the local one.
type StaticConflictError struct {
	Problems []string
}

func (e *StaticConflictError) Error() string {
	return "conflicting static shard assignments: " + strings.Join(e.Problems, "; ")
}

// CheckStatic verifies that every live static peer uses the same total shard
// count as self and that no two agents claim the same index.
func CheckStatic(selfID uuid.UUID, self ShardAssignment, peers []domainagent.Agent) error {
	var problems []string
	claimed := map[int]uuid.UUID{self.AssignedShardIndex: selfID}
	for _, p := range peers {
		if p.ID == selfID {
			continue
		}
		total, index, ok := p.Shards()
		if !ok {
			problems = append(problems, fmt.Sprintf("agent %s has no static assignment", p.Reference()))
			continue
		}
		if total != self.TotalShardCount {
			problems = append(problems, fmt.Sprintf("agent %s uses total shard count %d, expected %d",
				p.Reference(), total, self.TotalShardCount))
			continue
		}
		if owner, dup := claimed[index]; dup {
			problems = append(problems, fmt.Sprintf("agent %s claims shard %d already assigned to %s",
				p.Reference(), index, owner))
			continue
		}
		claimed[index] = p.ID
	}
	if len(problems) > 0 {
		return &StaticConflictError{Problems: problems}
	}
	return nil
}

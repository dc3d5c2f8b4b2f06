package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when no row matches the requested id.
var ErrNotFound = errors.New("agent not found")

// Type groups agents that must share one cluster view.
type Type string

const (
	TypeEventProcessingDynamicSharding Type = "EVENT_PROCESSING_DYNAMIC_SHARDING"
	TypeEventProcessingStaticSharding  Type = "EVENT_PROCESSING_STATIC_SHARDING"
	TypeMassIndexing                   Type = "MASS_INDEXING"
)

// IsEventProcessing reports whether agents of this type consume shards.
func (t Type) IsEventProcessing() bool {
	return t == TypeEventProcessingDynamicSharding || t == TypeEventProcessingStaticSharding
}

func (t Type) Valid() bool {
	return t.IsEventProcessing() || t == TypeMassIndexing
}

type State string

const (
	StateSuspended State = "SUSPENDED"
	StateWaiting   State = "WAITING"
	StateRunning   State = "RUNNING"
)

// Agent is the persisted registration of one worker node.
type Agent struct {
	ID                 uuid.UUID `json:"id"`
	Type               Type      `json:"type"`
	Name               string    `json:"name"`
	Expiration         time.Time `json:"expiration"`
	State              State     `json:"state"`
	TotalShardCount    *int      `json:"total_shard_count,omitempty"`
	AssignedShardIndex *int      `json:"assigned_shard_index,omitempty"`
	Payload            []byte    `json:"payload,omitempty"`
	TenantID           string    `json:"tenant_id,omitempty"`
}

func New(agentType Type, name string, expiration time.Time) Agent {
	return Agent{
		ID:         uuid.New(),
		Type:       agentType,
		Name:       name,
		Expiration: expiration.UTC(),
		State:      StateSuspended,
	}
}

// IsExpired reports whether the lease has run out at now.
// An expiration equal to now counts as expired.
func (a Agent) IsExpired(now time.Time) bool {
	return !a.Expiration.After(now)
}

func (a Agent) Reference() Reference {
	return Reference{ID: a.ID, Name: a.Name}
}

// Shards returns the persisted shard fields when both are set.
func (a Agent) Shards() (total, index int, ok bool) {
	if a.TotalShardCount == nil || a.AssignedShardIndex == nil {
		return 0, 0, false
	}
	return *a.TotalShardCount, *a.AssignedShardIndex, true
}

func (a *Agent) SetShards(total, index int) {
	a.TotalShardCount = &total
	a.AssignedShardIndex = &index
}

func (a *Agent) ClearShards() {
	a.TotalShardCount = nil
	a.AssignedShardIndex = nil
}

// Clone returns a deep copy, so repositories never share mutable state with callers.
func (a Agent) Clone() Agent {
	out := a
	if a.TotalShardCount != nil {
		v := *a.TotalShardCount
		out.TotalShardCount = &v
	}
	if a.AssignedShardIndex != nil {
		v := *a.AssignedShardIndex
		out.AssignedShardIndex = &v
	}
	if a.Payload != nil {
		out.Payload = append([]byte(nil), a.Payload...)
	}
	return out
}

// Reference identifies an agent without carrying its mutable state.
type Reference struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (r Reference) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.ID)
}

package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAgentRegistered   Type = "agent_registered"
	TypeAgentLeft         Type = "agent_left"
	TypeAgentReaped       Type = "agent_reaped"
	TypeAgentStateChanged Type = "agent_state_changed"
)

// Channel is a domain-scoped NOTIFY channel.
// All event types within a domain share one LISTEN connection.
type Channel string

const ChannelAgent Channel = "agent"

var typeToChannel = map[Type]Channel{
	TypeAgentRegistered:   ChannelAgent,
	TypeAgentLeft:         ChannelAgent,
	TypeAgentReaped:       ChannelAgent,
	TypeAgentStateChanged: ChannelAgent,
}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// IsMembershipChange reports whether the event changes the set of live agents.
func (t Type) IsMembershipChange() bool {
	return t == TypeAgentRegistered || t == TypeAgentLeft || t == TypeAgentReaped
}

// Event carries identifiers only, not full state.
// Subscribers fetch fresh state from the agent repository.
type Event struct {
	Type      Type      `json:"type"`
	EntityID  uuid.UUID `json:"entity_id"`
	SourceID  uuid.UUID `json:"source_id"`
	State     string    `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds an event about entityID emitted by the agent sourceID.
func New(eventType Type, entityID, sourceID uuid.UUID) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		SourceID:  sourceID,
		Timestamp: time.Now().UTC(),
	}
}

package agent

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Payload is the opaque blob stored alongside an agent row.
// Repositories round-trip it verbatim; only the coordination layer decodes it.
type Payload struct {
	StaticTotalShardCount    *int     `msgpack:"static_total,omitempty"`
	StaticAssignedShardIndex *int     `msgpack:"static_index,omitempty"`
	ClusterMembers           []string `msgpack:"cluster,omitempty"`
}

func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if len(data) == 0 {
		return p, nil
	}
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decoding agent payload: %w", err)
	}
	return p, nil
}

func (p Payload) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding agent payload: %w", err)
	}
	return data, nil
}

package oracle

import (
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

type (
	// Agent is an oracle operator identity. It never changes during the
	// process lifetime.
	Agent struct {
		Hash    util.Uint160
		Address string
	}

	// Pool is the fixed ordered set of identities the service acts for. Owner
	// is the airline registering flights, Agents are oracles.
	Pool struct {
		Owner  Agent
		Agents []Agent
	}

	// Event is a contract notification delivered by the ledger event stream
	// or a stream error (Err is set then, the rest is empty).
	Event struct {
		Container util.Uint256
		state.NotificationEvent
		Err error
	}
)

// NewAgent returns an Agent for the given script hash.
func NewAgent(h util.Uint160) Agent {
	return Agent{Hash: h, Address: address.Uint160ToString(h)}
}

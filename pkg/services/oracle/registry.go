package oracle

import (
	"errors"
	"slices"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ErrNoIndices is returned when an empty index assignment is recorded.
var ErrNoIndices = errors.New("empty index assignment")

type assignment struct {
	agent   Agent
	indices []uint8
}

// Registry maps oracle agents to indexes assigned to them by the contract.
// Entries are never removed. It's safe for concurrent use.
type Registry struct {
	lock    sync.RWMutex
	entries map[util.Uint160]*assignment
	order   []util.Uint160
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[util.Uint160]*assignment)}
}

// Record stores the index assignment of the agent. Repeated calls replace the
// indexes, but the agent keeps its original position.
func (r *Registry) Record(agent Agent, indices []uint8) error {
	if len(indices) == 0 {
		return ErrNoIndices
	}
	indices = slices.Clone(indices)

	r.lock.Lock()
	defer r.lock.Unlock()
	if e, ok := r.entries[agent.Hash]; ok {
		e.indices = indices
		return nil
	}
	r.entries[agent.Hash] = &assignment{agent: agent, indices: indices}
	r.order = append(r.order, agent.Hash)
	registeredOracles.Inc()
	return nil
}

// MatchingAgents returns all agents having the given index, in the order of
// their initial registration.
func (r *Registry) MatchingAgents(index uint8) []Agent {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var res []Agent
	for _, h := range r.order {
		e := r.entries[h]
		if slices.Contains(e.indices, index) {
			res = append(res, e.agent)
		}
	}
	return res
}

// Indices returns indexes assigned to the agent.
func (r *Registry) Indices(agent util.Uint160) ([]uint8, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.entries[agent]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.indices), true
}

// Len returns the number of agents registered.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.order)
}

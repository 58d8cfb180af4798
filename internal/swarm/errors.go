package swarm

import "errors"

var (
	// ErrUnknownTopology rejects CreateSwarm with a topology outside the
	// hierarchical/mesh/ring/star set.
	ErrUnknownTopology = errors.New("unknown topology")

	// ErrNotFound is returned for lookups of swarm, agent or task ids
	// that are not registered.
	ErrNotFound = errors.New("not found")
)

package swarm

import "fmt"

// TopologyStructure is per-topology membership bookkeeping. It shapes
// how a swarm describes itself; it does not constrain scheduling.
type TopologyStructure struct {
	// hierarchical
	Levels   map[string]int    `json:"levels,omitempty"`
	Branches map[string]string `json:"branches,omitempty"` // agent -> parent

	// mesh
	Adjacency      map[string][]string `json:"adjacency,omitempty"`
	MinConnections int                 `json:"min_connections,omitempty"`

	// ring
	Sequence []string `json:"sequence,omitempty"`

	// star
	CenterID string   `json:"center_id,omitempty"`
	SpokeIDs []string `json:"spoke_ids,omitempty"`
}

func newStructure(t Topology) (*TopologyStructure, error) {
	switch t {
	case TopologyHierarchical:
		return &TopologyStructure{
			Levels:   make(map[string]int),
			Branches: make(map[string]string),
		}, nil
	case TopologyMesh:
		return &TopologyStructure{
			Adjacency:      make(map[string][]string),
			MinConnections: 2,
		}, nil
	case TopologyRing:
		return &TopologyStructure{Sequence: []string{}}, nil
	case TopologyStar:
		return &TopologyStructure{SpokeIDs: []string{}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopology, t)
	}
}

func (ts *TopologyStructure) addAgent(t Topology, agentID string) {
	switch t {
	case TopologyHierarchical:
		// First member becomes the root, everything else branches off it.
		if len(ts.Levels) == 0 {
			ts.Levels[agentID] = 0
			return
		}
		root := ""
		for id, lvl := range ts.Levels {
			if lvl == 0 {
				root = id
				break
			}
		}
		ts.Levels[agentID] = 1
		ts.Branches[agentID] = root
	case TopologyMesh:
		for existing := range ts.Adjacency {
			ts.Adjacency[existing] = append(ts.Adjacency[existing], agentID)
			ts.Adjacency[agentID] = append(ts.Adjacency[agentID], existing)
		}
		if ts.Adjacency[agentID] == nil {
			ts.Adjacency[agentID] = []string{}
		}
	case TopologyRing:
		ts.Sequence = append(ts.Sequence, agentID)
	case TopologyStar:
		if ts.CenterID == "" {
			ts.CenterID = agentID
			return
		}
		ts.SpokeIDs = append(ts.SpokeIDs, agentID)
	}
}

func (ts *TopologyStructure) removeAgent(t Topology, agentID string) {
	switch t {
	case TopologyHierarchical:
		delete(ts.Levels, agentID)
		delete(ts.Branches, agentID)
		for child, parent := range ts.Branches {
			if parent == agentID {
				delete(ts.Branches, child)
			}
		}
	case TopologyMesh:
		delete(ts.Adjacency, agentID)
		for id, peers := range ts.Adjacency {
			ts.Adjacency[id] = removeString(peers, agentID)
		}
	case TopologyRing:
		ts.Sequence = removeString(ts.Sequence, agentID)
	case TopologyStar:
		if ts.CenterID == agentID {
			// Promote the first spoke to center.
			ts.CenterID = ""
			if len(ts.SpokeIDs) > 0 {
				ts.CenterID = ts.SpokeIDs[0]
				ts.SpokeIDs = ts.SpokeIDs[1:]
			}
			return
		}
		ts.SpokeIDs = removeString(ts.SpokeIDs, agentID)
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

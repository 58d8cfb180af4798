package swarm

import "testing"

func TestHierarchicalStructure(t *testing.T) {
	ts, err := newStructure(TopologyHierarchical)
	if err != nil {
		t.Fatalf("new structure: %v", err)
	}

	ts.addAgent(TopologyHierarchical, "root")
	ts.addAgent(TopologyHierarchical, "child1")
	ts.addAgent(TopologyHierarchical, "child2")

	if ts.Levels["root"] != 0 {
		t.Errorf("expected first member at level 0, got %d", ts.Levels["root"])
	}
	if ts.Levels["child1"] != 1 || ts.Branches["child1"] != "root" {
		t.Errorf("expected child1 branching off root, got level %d parent %q", ts.Levels["child1"], ts.Branches["child1"])
	}

	// Removing the root orphans its children out of the branch table.
	ts.removeAgent(TopologyHierarchical, "root")
	if len(ts.Branches) != 0 {
		t.Errorf("expected branches cleared with root gone, got %v", ts.Branches)
	}
}

func TestMeshStructureFullyConnected(t *testing.T) {
	ts, _ := newStructure(TopologyMesh)

	ts.addAgent(TopologyMesh, "a")
	ts.addAgent(TopologyMesh, "b")
	ts.addAgent(TopologyMesh, "c")

	for _, id := range []string{"a", "b", "c"} {
		if len(ts.Adjacency[id]) != 2 {
			t.Errorf("expected %s connected to 2 peers, got %v", id, ts.Adjacency[id])
		}
	}

	ts.removeAgent(TopologyMesh, "b")
	if _, ok := ts.Adjacency["b"]; ok {
		t.Error("expected b removed from adjacency")
	}
	for _, id := range []string{"a", "c"} {
		for _, peer := range ts.Adjacency[id] {
			if peer == "b" {
				t.Errorf("expected b scrubbed from %s's peers", id)
			}
		}
	}
}

func TestRingStructureOrder(t *testing.T) {
	ts, _ := newStructure(TopologyRing)

	ts.addAgent(TopologyRing, "a")
	ts.addAgent(TopologyRing, "b")
	ts.addAgent(TopologyRing, "c")
	ts.removeAgent(TopologyRing, "b")

	if len(ts.Sequence) != 2 || ts.Sequence[0] != "a" || ts.Sequence[1] != "c" {
		t.Errorf("expected sequence [a c], got %v", ts.Sequence)
	}
}

func TestStarStructurePromotesSpoke(t *testing.T) {
	ts, _ := newStructure(TopologyStar)

	ts.addAgent(TopologyStar, "center")
	ts.addAgent(TopologyStar, "spoke1")
	ts.addAgent(TopologyStar, "spoke2")

	if ts.CenterID != "center" || len(ts.SpokeIDs) != 2 {
		t.Fatalf("expected center with 2 spokes, got %q %v", ts.CenterID, ts.SpokeIDs)
	}

	ts.removeAgent(TopologyStar, "center")
	if ts.CenterID != "spoke1" {
		t.Errorf("expected first spoke promoted to center, got %q", ts.CenterID)
	}
	if len(ts.SpokeIDs) != 1 || ts.SpokeIDs[0] != "spoke2" {
		t.Errorf("expected remaining spokes [spoke2], got %v", ts.SpokeIDs)
	}
}

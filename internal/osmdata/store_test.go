package osmdata

import (
	"testing"

	"github.com/paulmach/osm"
)

func node(id osm.NodeID, lat, lon float64, tags ...osm.Tag) *osm.Node {
	return &osm.Node{ID: id, Lat: lat, Lon: lon, Tags: tags}
}

func way(id osm.WayID, refs ...osm.NodeID) *osm.Way {
	w := &osm.Way{ID: id}
	for _, r := range refs {
		w.Nodes = append(w.Nodes, osm.WayNode{ID: r})
	}
	return w
}

func TestMergeFirstWriteWins(t *testing.T) {
	s := NewStore()

	first := &Batch{
		Nodes: osm.Nodes{node(1, 1, 1), node(2, 2, 2)},
		Ways:  osm.Ways{way(10, 1, 2)},
	}
	second := &Batch{
		Nodes: osm.Nodes{node(2, 9, 9), node(3, 3, 3)},
		Ways:  osm.Ways{way(10, 3, 2), way(11, 1, 3)},
	}

	stats := s.Merge(first)
	if stats.NodesAdded != 2 || stats.WaysAdded != 1 {
		t.Fatalf("first merge stats = %+v", stats)
	}

	stats = s.Merge(second)
	if stats.NodesAdded != 1 || stats.NodesSkipped != 1 {
		t.Errorf("second merge node stats = %+v, want 1 added 1 skipped", stats)
	}
	if stats.WaysAdded != 1 || stats.WaysSkipped != 1 {
		t.Errorf("second merge way stats = %+v, want 1 added 1 skipped", stats)
	}

	if got := s.Nodes[2].Lat; got != 2 {
		t.Errorf("node 2 lat = %v, want 2 (first write wins)", got)
	}
	if got := s.Ways[10].Nodes[0].ID; got != 1 {
		t.Errorf("way 10 first ref = %v, want 1 (first write wins)", got)
	}
}

func TestMergeOrderIndependentForDisjointIDs(t *testing.T) {
	a := &Batch{Nodes: osm.Nodes{node(1, 1, 1)}, Ways: osm.Ways{way(10, 1)}}
	b := &Batch{Nodes: osm.Nodes{node(2, 2, 2)}, Ways: osm.Ways{way(11, 2)}}

	ab := NewStore()
	ab.Merge(a)
	ab.Merge(b)

	ba := NewStore()
	ba.Merge(b)
	ba.Merge(a)

	if len(ab.Nodes) != len(ba.Nodes) || len(ab.Ways) != len(ba.Ways) {
		t.Fatalf("store sizes differ: %d/%d vs %d/%d", len(ab.Nodes), len(ab.Ways), len(ba.Nodes), len(ba.Ways))
	}
	for id, n := range ab.Nodes {
		if ba.Nodes[id] != n {
			t.Errorf("node %d differs between merge orders", id)
		}
	}
	for id, w := range ab.Ways {
		if ba.Ways[id] != w {
			t.Errorf("way %d differs between merge orders", id)
		}
	}
}

func TestIsClosed(t *testing.T) {
	tests := []struct {
		name string
		way  *osm.Way
		want bool
	}{
		{"empty", way(1), true},
		{"single", way(1, 5), true},
		{"open", way(1, 1, 2, 3), false},
		{"closed", way(1, 1, 2, 3, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClosed(tt.way); got != tt.want {
				t.Errorf("IsClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneWayIsIndependent(t *testing.T) {
	w := way(1, 1, 2)
	w.Tags = osm.Tags{{Key: "highway", Value: "residential"}}

	c := CloneWay(w)
	c.Tags[0].Value = "service"
	c.Nodes[0].ID = 99

	if w.Tags[0].Value != "residential" {
		t.Errorf("original tag changed to %q", w.Tags[0].Value)
	}
	if w.Nodes[0].ID != 1 {
		t.Errorf("original node ref changed to %d", w.Nodes[0].ID)
	}
}

func TestNodeCell(t *testing.T) {
	a := node(1, 0.5, 0.25)
	b := node(2, 0.500000001, 0.250000001)
	c := node(3, 0.5001, 0.25)

	if NodeCell(a) != NodeCell(b) {
		t.Errorf("cells differ for sub-precision offset: %v vs %v", NodeCell(a), NodeCell(b))
	}
	if NodeCell(a) == NodeCell(c) {
		t.Errorf("cells equal for distinct positions: %v", NodeCell(a))
	}
}

func TestLookup(t *testing.T) {
	s := NewStore()
	s.Merge(&Batch{
		Nodes: osm.Nodes{node(7, 0, 0, osm.Tag{Key: "name", Value: "Bench"})},
		Ways:  osm.Ways{way(7, 7)},
	})

	n, ok := s.Lookup(NodeRef(7))
	if !ok || n.Node() == nil {
		t.Fatalf("node 7 not found")
	}
	if n.Name() != "Bench" || n.TypeName() != "Node" {
		t.Errorf("node element = (%q, %q), want (Bench, Node)", n.Name(), n.TypeName())
	}

	w, ok := s.Lookup(WayRef(7))
	if !ok || w.Way() == nil {
		t.Fatalf("way 7 not found")
	}
	if w.ID() != WayRef(7) {
		t.Errorf("way element id = %v, want %v", w.ID(), WayRef(7))
	}

	if _, ok := s.Lookup(WayRef(8)); ok {
		t.Errorf("way 8 should not resolve")
	}
}

package spatial

import (
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/osmdata"
)

func testStore() *osmdata.Store {
	s := osmdata.NewStore()
	s.Merge(&osmdata.Batch{
		Nodes: osm.Nodes{
			{ID: 1, Lon: 0, Lat: 0},
			{ID: 2, Lon: 1, Lat: 0},
			{ID: 3, Lon: 1, Lat: 1},
			{ID: 4, Lon: 5, Lat: 5},
			{ID: 5, Lon: 10, Lat: 10},
			{ID: 6, Lon: -3, Lat: 8},
		},
		Ways: osm.Ways{
			{ID: 100, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}},
			{ID: 101, Nodes: osm.WayNodes{{ID: 4}, {ID: 5}}},
			{ID: 102, Nodes: osm.WayNodes{{ID: 6}, {ID: 3}}},
			{ID: 103, Nodes: osm.WayNodes{{ID: 999}}},
			{ID: 104, Nodes: osm.WayNodes{{ID: 998}, {ID: 5}}},
		},
	})
	return s
}

func TestQueryNodesExact(t *testing.T) {
	idx := Build(testStore())

	tests := []struct {
		name  string
		bound orb.Bound
		want  []osm.NodeID
	}{
		{"origin box", orb.Bound{Min: orb.Point{-0.5, -0.5}, Max: orb.Point{1.5, 0.5}}, []osm.NodeID{1, 2}},
		{"upper right", orb.Bound{Min: orb.Point{4, 4}, Max: orb.Point{11, 11}}, []osm.NodeID{4, 5}},
		{"empty area", orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{21, 21}}, []osm.NodeID{}},
		{"edge inclusive", orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}, []osm.NodeID{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, _ := idx.Query(tt.bound)
			if !slices.Equal(nodes, tt.want) {
				t.Errorf("Query() nodes = %v, want %v", nodes, tt.want)
			}
		})
	}
}

func TestQueryWaysConservative(t *testing.T) {
	idx := Build(testStore())

	// Box touches no node of way 102 but lies inside its bounding rectangle.
	bound := orb.Bound{Min: orb.Point{-1, 2}, Max: orb.Point{0, 3}}
	_, ways := idx.Query(bound)
	if !slices.Contains(ways, osm.WayID(102)) {
		t.Errorf("Query() ways = %v, want to include 102 (bbox overlap)", ways)
	}
	if slices.Contains(ways, osm.WayID(101)) {
		t.Errorf("Query() ways = %v, must not include 101", ways)
	}

	// Every complete way with a node in the box must be returned.
	bound = orb.Bound{Min: orb.Point{9, 9}, Max: orb.Point{11, 11}}
	_, ways = idx.Query(bound)
	want := []osm.WayID{101}
	if !slices.Equal(ways, want) {
		t.Errorf("Query() ways = %v, want %v", ways, want)
	}
}

func TestBuildSkipsUnresolvableWays(t *testing.T) {
	idx := Build(testStore())

	stats := idx.Stats()
	if stats.SkippedWays != 2 {
		t.Errorf("SkippedWays = %d, want 2", stats.SkippedWays)
	}
	if stats.Ways != 3 {
		t.Errorf("Ways = %d, want 3", stats.Ways)
	}

	// 104 has node 5 but also references 998, which is not loaded
	all := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	if _, ways := idx.Query(all); slices.Contains(ways, osm.WayID(104)) {
		t.Errorf("Query() ways = %v, must not include the incomplete way 104", ways)
	}
	if stats.Nodes != 6 {
		t.Errorf("Nodes = %d, want 6", stats.Nodes)
	}
}

func TestQuerySortedAndRepeatable(t *testing.T) {
	idx := Build(testStore())
	all := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

	n1, w1 := idx.Query(all)
	n2, w2 := idx.Query(all)

	if !slices.IsSorted(n1) || !slices.IsSorted(w1) {
		t.Errorf("Query() results not sorted: %v %v", n1, w1)
	}
	if !slices.Equal(n1, n2) || !slices.Equal(w1, w2) {
		t.Errorf("Query() not repeatable: %v/%v vs %v/%v", n1, w1, n2, w2)
	}
}

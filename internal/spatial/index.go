package spatial

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/tidwall/rtree"

	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// Stats describes what went into the index on the last build
type Stats struct {
	Nodes       int
	Ways        int
	SkippedWays int // ways with a node missing from the store
}

// Index answers "what is in this rectangle" over the feature store. Nodes go
// into a point tree, ways into a tree of bounding rectangles over their
// nodes. Ways that reference a node missing from the store are left out so
// they never reach the view. It is rebuilt from scratch after every append.
type Index struct {
	nodes *rtree.RTreeG[osm.NodeID]
	ways  *rtree.RTreeG[osm.WayID]
	stats Stats
}

// Build loads every node and way of the store into a fresh index
func Build(store *osmdata.Store) *Index {
	idx := &Index{
		nodes: &rtree.RTreeG[osm.NodeID]{},
		ways:  &rtree.RTreeG[osm.WayID]{},
	}

	for id, n := range store.Nodes {
		p := [2]float64{n.Lon, n.Lat}
		idx.nodes.Insert(p, p, id)
	}
	idx.stats.Nodes = idx.nodes.Len()

	for id, w := range store.Ways {
		b, ok := wayBound(store, w)
		if !ok {
			idx.stats.SkippedWays++
			continue
		}
		idx.ways.Insert(b.Min, b.Max, id)
	}
	idx.stats.Ways = idx.ways.Len()

	return idx
}

// wayBound computes the bounding rectangle over the nodes of w. It fails
// when w has no nodes or one of them is not in the store.
func wayBound(store *osmdata.Store, w *osm.Way) (orb.Bound, bool) {
	if len(w.Nodes) == 0 {
		return orb.Bound{}, false
	}
	b := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	for _, wn := range w.Nodes {
		n, ok := store.Nodes[wn.ID]
		if !ok {
			return orb.Bound{}, false
		}
		b = b.Extend(osmdata.NodePoint(n))
	}
	return b, true
}

// Query returns the ids of all nodes inside bound and of all ways whose
// bounding rectangle intersects it. Node results are exact, way results are
// conservative. Both slices are sorted ascending.
func (idx *Index) Query(bound orb.Bound) ([]osm.NodeID, []osm.WayID) {
	nodes := make([]osm.NodeID, 0)
	idx.nodes.Search(bound.Min, bound.Max, func(min, max [2]float64, id osm.NodeID) bool {
		nodes = append(nodes, id)
		return true
	})

	ways := make([]osm.WayID, 0)
	idx.ways.Search(bound.Min, bound.Max, func(min, max [2]float64, id osm.WayID) bool {
		ways = append(ways, id)
		return true
	})

	slices.Sort(nodes)
	slices.Sort(ways)
	return nodes, ways
}

// Stats returns counts from the last build
func (idx *Index) Stats() Stats {
	return idx.stats
}

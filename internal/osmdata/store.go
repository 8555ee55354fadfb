package osmdata

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Batch is a set of nodes and ways handed over by a fetch or a file read
type Batch struct {
	Nodes osm.Nodes
	Ways  osm.Ways
}

// IsEmpty reports whether the batch carries no elements
func (b *Batch) IsEmpty() bool {
	return b == nil || (len(b.Nodes) == 0 && len(b.Ways) == 0)
}

// MergeStats reports what a merge actually added
type MergeStats struct {
	NodesAdded   int
	NodesSkipped int
	WaysAdded    int
	WaysSkipped  int
}

// Store holds the latest state of every node and way loaded in a session.
// Elements are shared by pointer and must be treated as immutable; edits
// replace the way pointer instead of mutating it.
type Store struct {
	Nodes map[osm.NodeID]*osm.Node
	Ways  map[osm.WayID]*osm.Way
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		Nodes: make(map[osm.NodeID]*osm.Node),
		Ways:  make(map[osm.WayID]*osm.Way),
	}
}

// IsEmpty reports whether the store has no nodes and no ways
func (s *Store) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Ways) == 0
}

// Merge adds the batch to the store. Ids already present are kept as they
// are: the first write of an id wins.
func (s *Store) Merge(b *Batch) MergeStats {
	var stats MergeStats
	if b == nil {
		return stats
	}

	for _, n := range b.Nodes {
		if n == nil {
			continue
		}
		if _, exists := s.Nodes[n.ID]; exists {
			stats.NodesSkipped++
			continue
		}
		s.Nodes[n.ID] = n
		stats.NodesAdded++
	}

	for _, w := range b.Ways {
		if w == nil {
			continue
		}
		if _, exists := s.Ways[w.ID]; exists {
			stats.WaysSkipped++
			continue
		}
		s.Ways[w.ID] = w
		stats.WaysAdded++
	}

	return stats
}

// ReplaceWay overwrites a way entry; used when applying edits
func (s *Store) ReplaceWay(w *osm.Way) {
	s.Ways[w.ID] = w
}

// NodePoint returns the node location as an orb point (lon, lat)
func NodePoint(n *osm.Node) orb.Point {
	return orb.Point{n.Lon, n.Lat}
}

// IsClosed reports whether the first and last node refs of the way match.
// Empty ways count as closed, matching how the ref list compares.
func IsClosed(w *osm.Way) bool {
	if len(w.Nodes) == 0 {
		return true
	}
	return w.Nodes[0].ID == w.Nodes[len(w.Nodes)-1].ID
}

// CloneWay returns a deep copy of the way that is safe to edit
func CloneWay(w *osm.Way) *osm.Way {
	c := *w
	c.Nodes = append(osm.WayNodes(nil), w.Nodes...)
	c.Tags = append(osm.Tags(nil), w.Tags...)
	return &c
}

// Quantize converts a coordinate to a fixed-point integer (× 10^7), the
// same precision OSM uses on the wire
func Quantize(coord float64) int64 {
	return int64(coord * 1e7)
}

// Cell is a quantized (lat, lon) position
type Cell struct {
	Lat, Lon int64
}

// NodeCell returns the quantized cell of a node
func NodeCell(n *osm.Node) Cell {
	return Cell{Lat: Quantize(n.Lat), Lon: Quantize(n.Lon)}
}

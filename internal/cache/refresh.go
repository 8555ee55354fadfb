package cache

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/proj"
	"github.com/wegman-software/osmview-go/internal/tess"
)

// run wraps one recompute with the controller protocol, logging and timing
func (b *Bank) run(k Kind, fn func() int) {
	b.ctrl.Begin(k)
	start := time.Now()
	count := fn()
	took := time.Since(start)
	b.ctrl.Finish(k)

	b.logger.Debug("Cache recomputed",
		zap.String("cache", k.String()),
		zap.Int("count", count),
		zap.Duration("took", took))
	if b.observer != nil {
		b.observer.Observe(k, took, count)
	}
}

// RefreshViewMembership replaces the in-view id lists from the index and
// invalidates every cache
func (b *Bank) RefreshViewMembership(bound orb.Bound) {
	b.viewNodes, b.viewWays = b.index.Query(bound)
	b.ctrl.ViewRefreshed()

	b.logger.Debug("View membership refreshed",
		zap.Int("nodes", len(b.viewNodes)),
		zap.Int("ways", len(b.viewWays)))
}

// RefreshNodeOrphan finds in-view nodes that no way of the whole store
// references
func (b *Bank) RefreshNodeOrphan() {
	b.run(NodeOrphan, func() int {
		referenced := make(map[osm.NodeID]struct{}, len(b.store.Nodes))
		for _, w := range b.store.Ways {
			for _, wn := range w.Nodes {
				referenced[wn.ID] = struct{}{}
			}
		}

		b.orphans = make([]osm.NodeID, 0)
		for _, id := range b.viewNodes {
			if _, ok := referenced[id]; !ok {
				b.orphans = append(b.orphans, id)
			}
		}
		return len(b.orphans)
	})
}

// RefreshWayArea splits in-view ways into lines and areas
func (b *Bank) RefreshWayArea() {
	b.run(WayArea, func() int {
		b.lineWays = make([]osm.WayID, 0, len(b.viewWays))
		b.areaWays = make([]osm.WayID, 0)
		for _, id := range b.viewWays {
			if b.isArea(b.Way(id)) {
				b.areaWays = append(b.areaWays, id)
			} else {
				b.lineWays = append(b.lineWays, id)
			}
		}
		return len(b.areaWays)
	})
}

// isArea applies the structural checks before asking the classifier
func (b *Bank) isArea(w *osm.Way) bool {
	if len(w.Tags) == 0 || !osmdata.IsClosed(w) {
		return false
	}
	distinct := make(map[osm.NodeID]struct{}, len(w.Nodes))
	for _, wn := range w.Nodes {
		distinct[wn.ID] = struct{}{}
	}
	if len(distinct) < 3 {
		return false
	}
	return b.classifier.IsArea(w.Tags)
}

// RefreshNodeDedup keeps one node per quantized position among line-way
// endpoints and, separately, among orphans. Endpoints are visited by
// ascending way id and orphans by ascending node id, so the survivor of a
// collision is stable across runs.
func (b *Bank) RefreshNodeDedup() {
	b.run(NodeDedup, func() int {
		seen := make(map[osmdata.Cell]struct{})
		b.dedupWayNodes = make([]osm.NodeID, 0)
		for _, id := range b.lineWays {
			for _, nid := range endpoints(b.Way(id)) {
				cell := osmdata.NodeCell(b.Node(nid))
				if _, dup := seen[cell]; dup {
					continue
				}
				seen[cell] = struct{}{}
				b.dedupWayNodes = append(b.dedupWayNodes, nid)
			}
		}

		seen = make(map[osmdata.Cell]struct{})
		b.dedupOrphans = make([]osm.NodeID, 0)
		for _, nid := range b.orphans {
			cell := osmdata.NodeCell(b.Node(nid))
			if _, dup := seen[cell]; dup {
				continue
			}
			seen[cell] = struct{}{}
			b.dedupOrphans = append(b.dedupOrphans, nid)
		}

		return len(b.dedupWayNodes) + len(b.dedupOrphans)
	})
}

// endpoints returns the first and last node of a way; interior nodes are
// never candidates
func endpoints(w *osm.Way) []osm.NodeID {
	switch len(w.Nodes) {
	case 0:
		return nil
	case 1:
		return []osm.NodeID{w.Nodes[0].ID}
	default:
		return []osm.NodeID{w.Nodes[0].ID, w.Nodes[len(w.Nodes)-1].ID}
	}
}

// RefreshNodeUsage maps nodes to the in-view ways that reference them
func (b *Bank) RefreshNodeUsage() {
	b.run(NodeUsage, func() int {
		b.usage = make(map[osm.NodeID][]osm.WayID)
		for _, id := range b.viewWays {
			for _, wn := range b.Way(id).Nodes {
				ways := b.usage[wn.ID]
				if slices.Contains(ways, id) {
					continue
				}
				b.usage[wn.ID] = append(ways, id)
			}
		}
		return len(b.usage)
	})
}

// RefreshNodeProjection projects every node of an in-view way plus every
// deduplicated orphan. anchor is the geographic view center the positions
// are relative to.
func (b *Bank) RefreshNodeProjection(p proj.Projector, anchor orb.Point) {
	b.run(NodeProjection, func() int {
		b.projAnchor.reset(anchor)
		b.positions = make(map[osm.NodeID]orb.Point, len(b.positions))
		for _, id := range b.viewWays {
			for _, wn := range b.Way(id).Nodes {
				if _, done := b.positions[wn.ID]; done {
					continue
				}
				b.positions[wn.ID] = p.Project(osmdata.NodePoint(b.Node(wn.ID)))
			}
		}
		for _, id := range b.dedupOrphans {
			b.positions[id] = p.Project(osmdata.NodePoint(b.Node(id)))
		}
		return len(b.positions)
	})
}

// originRing returns the projected positions of a way without pan offset
func (b *Bank) originRing(w *osm.Way) []orb.Point {
	ring := make([]orb.Point, len(w.Nodes))
	for i, wn := range w.Nodes {
		p, ok := b.positions[wn.ID]
		if !ok {
			panic(missing(NodeProjection, osmdata.NodeRef(wn.ID), "projection cache"))
		}
		ring[i] = p
	}
	return ring
}

// RefreshWayMeshAndAreaSize tessellates every in-view area. An area that
// fails to tessellate is logged, counted and left without a mesh.
func (b *Bank) RefreshWayMeshAndAreaSize(anchor orb.Point) {
	b.run(WayMeshAndAreaSize, func() int {
		b.meshAnchor.reset(anchor)
		b.meshes = make(map[osm.WayID]*tess.Mesh, len(b.areaWays))
		b.meshFailed = make(map[osm.WayID]error)
		for _, id := range b.areaWays {
			mesh, err := tess.Tessellate(b.originRing(b.Way(id)))
			if err != nil {
				b.stats.MeshFailures++
				b.meshFailed[id] = err
				b.logger.Warn("Skipping area that failed to tessellate",
					zap.Int64("way_id", int64(id)),
					zap.Error(err))
				continue
			}
			b.meshes[id] = mesh
		}
		return len(b.meshes)
	})
}

// RefreshAreaSizeOrdered sorts in-view areas by descending absolute
// shoelace area; ties go to the lower way id
func (b *Bank) RefreshAreaSizeOrdered() {
	b.run(AreaSizeOrdered, func() int {
		b.areaOrder = make([]AreaSize, 0, len(b.areaWays))
		for _, id := range b.areaWays {
			b.areaOrder = append(b.areaOrder, AreaSize{
				ID:   id,
				Area: tess.SignedArea(b.originRing(b.Way(id))),
			})
		}
		slices.SortFunc(b.areaOrder, func(x, y AreaSize) int {
			if c := cmp.Compare(math.Abs(y.Area), math.Abs(x.Area)); c != 0 {
				return c
			}
			return cmp.Compare(x.ID, y.ID)
		})
		return len(b.areaOrder)
	})
}

// RefreshDirty recomputes every dirty cache in dependency order and returns
// the set it rebuilt. The mesh cache is only rebuilt when withMesh is set;
// otherwise it stays dirty.
func (b *Bank) RefreshDirty(p proj.Projector, anchor orb.Point, withMesh bool) Set {
	var done Set
	for _, k := range b.ctrl.Dirty().Kinds() {
		switch k {
		case NodeUsage:
			b.RefreshNodeUsage()
		case WayArea:
			b.RefreshWayArea()
		case NodeOrphan:
			b.RefreshNodeOrphan()
		case NodeDedup:
			b.RefreshNodeDedup()
		case NodeProjection:
			b.RefreshNodeProjection(p, anchor)
		case WayMeshAndAreaSize:
			if !withMesh {
				continue
			}
			b.RefreshWayMeshAndAreaSize(anchor)
		case AreaSizeOrdered:
			b.RefreshAreaSizeOrdered()
		}
		done = done.With(k)
	}
	return done
}

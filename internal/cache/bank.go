package cache

import (
	"image/color"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/proj"
	"github.com/wegman-software/osmview-go/internal/spatial"
	"github.com/wegman-software/osmview-go/internal/style"
	"github.com/wegman-software/osmview-go/internal/tess"
)

// AreaClassifier decides from tags whether a closed way is a filled area
type AreaClassifier interface {
	IsArea(tags osm.Tags) bool
}

// Observer receives the duration and output size of every recompute
type Observer interface {
	Observe(k Kind, took time.Duration, count int)
}

// AreaSize is one entry of the paint order
type AreaSize struct {
	ID   osm.WayID
	Area float64 // signed shoelace area in screen units
}

// Stats counts recoverable problems met while refreshing
type Stats struct {
	MeshFailures int
}

// anchored is the part of a cache that can follow a pan without a rebuild
type anchored struct {
	start  orb.Point // geographic view center at the last rebuild
	offset orb.Point // screen delta from start to the current center
}

func (a *anchored) reset(start orb.Point) {
	a.start = start
	a.offset = orb.Point{}
}

func (a *anchored) follow(p proj.Projector, center orb.Point) {
	s, c := p.Project(a.start), p.Project(center)
	a.offset = orb.Point{s[0] - c[0], s[1] - c[1]}
}

// Bank owns the feature store, the spatial index and every derived cache
// of an editor session
type Bank struct {
	store      *osmdata.Store
	index      *spatial.Index
	ctrl       *Controller
	classifier AreaClassifier
	observer   Observer
	logger     *zap.Logger

	viewNodes []osm.NodeID
	viewWays  []osm.WayID

	orphans       []osm.NodeID
	lineWays      []osm.WayID
	areaWays      []osm.WayID
	dedupWayNodes []osm.NodeID
	dedupOrphans  []osm.NodeID
	usage         map[osm.NodeID][]osm.WayID

	positions  map[osm.NodeID]orb.Point
	projAnchor anchored

	meshes     map[osm.WayID]*tess.Mesh
	meshFailed map[osm.WayID]error
	meshAnchor anchored

	areaOrder []AreaSize

	changes ChangeLog
	stats   Stats
}

// NewBank creates an empty bank. A nil classifier uses the default area
// allowlist.
func NewBank(classifier AreaClassifier, logger *zap.Logger) *Bank {
	if classifier == nil {
		classifier = style.DefaultAreaRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store := osmdata.NewStore()
	return &Bank{
		store:      store,
		index:      spatial.Build(store),
		ctrl:       NewController(),
		classifier: classifier,
		logger:     logger,
		usage:      make(map[osm.NodeID][]osm.WayID),
		positions:  make(map[osm.NodeID]orb.Point),
		meshes:     make(map[osm.WayID]*tess.Mesh),
		meshFailed: make(map[osm.WayID]error),
	}
}

// SetObserver installs a recompute observer
func (b *Bank) SetObserver(o Observer) {
	b.observer = o
}

// Controller exposes the invalidation state
func (b *Bank) Controller() *Controller {
	return b.ctrl
}

// Store exposes the feature store. Callers must not mutate it directly.
func (b *Bank) Store() *osmdata.Store {
	return b.store
}

// Index returns the current spatial index
func (b *Bank) Index() *spatial.Index {
	return b.index
}

// Stats returns counters of recoverable problems
func (b *Bank) Stats() Stats {
	return b.stats
}

// Changes returns the change log
func (b *Bank) Changes() *ChangeLog {
	return &b.changes
}

// AppendFeatures merges fetched nodes and ways into the store (first id
// wins), invalidates what they affect, rebuilds the index and asks for a
// view refresh
func (b *Bank) AppendFeatures(nodes osm.Nodes, ways osm.Ways) osmdata.MergeStats {
	batch := &osmdata.Batch{Nodes: nodes, Ways: ways}
	stats := b.store.Merge(batch)

	if len(nodes) > 0 {
		b.ctrl.MarkSet(NodeKinds)
	}
	if len(ways) > 0 {
		b.ctrl.MarkSet(WayKinds)
	}
	if batch.IsEmpty() {
		return stats
	}

	b.rebuildIndex()
	return stats
}

// rebuildIndex reloads the spatial index from the store and asks for a
// view refresh
func (b *Bank) rebuildIndex() {
	start := time.Now()
	b.index = spatial.Build(b.store)
	b.ctrl.MarkViewStale()

	idx := b.index.Stats()
	b.logger.Debug("Spatial index rebuilt",
		zap.Int("nodes", idx.Nodes),
		zap.Int("ways", idx.Ways),
		zap.Int("skipped_ways", idx.SkippedWays),
		zap.Duration("took", time.Since(start)))
}

// ApplyChange replaces the edited way in the store and records the edit.
// A tag-only edit invalidates the way classification. An edit that changes
// the node list also invalidates node usage and orphans and rebuilds the
// index.
func (b *Bank) ApplyChange(c Change) {
	old, ok := b.store.Ways[c.Way.ID]
	if !ok {
		panic(missing(WayArea, osmdata.WayRef(c.Way.ID), "feature store"))
	}
	b.store.ReplaceWay(c.Way)
	b.changes.Append(c)
	b.ctrl.Mark(WayArea)

	if !sameNodes(old.Nodes, c.Way.Nodes) {
		b.ctrl.Mark(NodeUsage, NodeOrphan)
		b.rebuildIndex()
	}
}

func sameNodes(a, b osm.WayNodes) bool {
	return slices.EqualFunc(a, b, func(x, y osm.WayNode) bool { return x.ID == y.ID })
}

// UpdateOffsets moves clean anchored caches to follow the view center
func (b *Bank) UpdateOffsets(p proj.Projector, center orb.Point) {
	if !b.ctrl.IsDirty(NodeProjection) {
		b.projAnchor.follow(p, center)
	}
	if !b.ctrl.IsDirty(WayMeshAndAreaSize) {
		b.meshAnchor.follow(p, center)
	}
}

// ViewNodes returns the ids of nodes inside the view
func (b *Bank) ViewNodes() []osm.NodeID { return b.viewNodes }

// ViewWays returns the ids of ways whose bounds intersect the view
func (b *Bank) ViewWays() []osm.WayID { return b.viewWays }

// Node returns a node from the store; a missing id panics
func (b *Bank) Node(id osm.NodeID) *osm.Node {
	n, ok := b.store.Nodes[id]
	if !ok {
		panic(missing(NodeProjection, osmdata.NodeRef(id), "feature store"))
	}
	return n
}

// Way returns a way from the store; a missing id panics
func (b *Bank) Way(id osm.WayID) *osm.Way {
	w, ok := b.store.Ways[id]
	if !ok {
		panic(missing(WayArea, osmdata.WayRef(id), "feature store"))
	}
	return w
}

// Element resolves a node or way reference; a missing id panics
func (b *Bank) Element(id osmdata.ElementID) osmdata.Element {
	e, ok := b.store.Lookup(id)
	if !ok {
		panic(&InvariantError{Cache: WayArea, Element: &id, Reason: "missing from feature store"})
	}
	return e
}

// ProjectedPos returns the current screen position of a node
func (b *Bank) ProjectedPos(id osm.NodeID) orb.Point {
	b.ctrl.Require(NodeProjection)
	p, ok := b.positions[id]
	if !ok {
		panic(missing(NodeProjection, osmdata.NodeRef(id), "projection cache"))
	}
	off := b.projAnchor.offset
	return orb.Point{p[0] + off[0], p[1] + off[1]}
}

// ProjectedPositionsInWay returns the screen positions of the way's nodes
// in order
func (b *Bank) ProjectedPositionsInWay(id osm.WayID) []orb.Point {
	w := b.Way(id)
	out := make([]orb.Point, len(w.Nodes))
	for i, wn := range w.Nodes {
		out[i] = b.ProjectedPos(wn.ID)
	}
	return out
}

// WayMesh returns the mesh of an area moved to the current view and
// painted with c. ok is false when the area failed to tessellate.
func (b *Bank) WayMesh(id osm.WayID, c color.RGBA) (*tess.Mesh, bool) {
	b.ctrl.Require(WayMeshAndAreaSize)
	if m, ok := b.meshes[id]; ok {
		return m.Translated(b.meshAnchor.offset, c), true
	}
	if _, failed := b.meshFailed[id]; failed {
		return nil, false
	}
	panic(missing(WayMeshAndAreaSize, osmdata.WayRef(id), "mesh cache"))
}

// AreasInPaintOrder returns area ways largest first
func (b *Bank) AreasInPaintOrder() []AreaSize {
	b.ctrl.Require(AreaSizeOrdered)
	return b.areaOrder
}

// LineWays returns in-view ways that are not areas
func (b *Bank) LineWays() []osm.WayID {
	b.ctrl.Require(WayArea)
	return b.lineWays
}

// AreaWays returns in-view ways classified as areas
func (b *Bank) AreaWays() []osm.WayID {
	b.ctrl.Require(WayArea)
	return b.areaWays
}

// Orphans returns in-view nodes referenced by no way
func (b *Bank) Orphans() []osm.NodeID {
	b.ctrl.Require(NodeOrphan)
	return b.orphans
}

// DedupWayNodes returns line-way endpoints that survived deduplication
func (b *Bank) DedupWayNodes() []osm.NodeID {
	b.ctrl.Require(NodeDedup)
	return b.dedupWayNodes
}

// DedupOrphanNodes returns orphan nodes that survived deduplication
func (b *Bank) DedupOrphanNodes() []osm.NodeID {
	b.ctrl.Require(NodeDedup)
	return b.dedupOrphans
}

// NodeUsage returns the in-view ways referencing a node
func (b *Bank) NodeUsage(id osm.NodeID) []osm.WayID {
	b.ctrl.Require(NodeUsage)
	return b.usage[id]
}

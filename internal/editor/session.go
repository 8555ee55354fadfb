package editor

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/config"
	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/proj"
	"github.com/wegman-software/osmview-go/internal/render"
	"github.com/wegman-software/osmview-go/internal/worker"
)

// DefaultMaxViewOffset is how far in pixels the view may drift from the
// center of the last membership refresh before the refresh is redone
const DefaultMaxViewOffset = 100.0

// ErrNoWorker is the panic value of Request on a session built without a
// worker
var ErrNoWorker = errors.New("editor: session has no worker")

// Viewport describes what is on screen this frame
type Viewport struct {
	Bound  orb.Bound // geographic area covered by the screen
	Center orb.Point // geographic view center
	Size   orb.Point // width and height in pixels
}

// FrameContext carries everything a frame needs. It is built fresh by the
// caller each frame.
type FrameContext struct {
	Projector proj.Projector
	Viewport  Viewport
	Zoom      float64
	FillMode  config.FillMode
}

// NewFrame builds a frame context for a Web Mercator view
func NewFrame(center orb.Point, zoom, width, height float64, fill config.FillMode) FrameContext {
	m := proj.WebMercator{Center: center, Zoom: zoom, Width: width, Height: height}
	return FrameContext{
		Projector: m,
		Viewport: Viewport{
			Bound:  m.Bound(),
			Center: center,
			Size:   orb.Point{width, height},
		},
		Zoom:     zoom,
		FillMode: fill,
	}
}

// FrameResult reports what a frame did
type FrameResult struct {
	Applied       int       // worker responses applied
	ViewRefreshed bool      // view membership was recomputed
	Rebuilt       cache.Set // caches recomputed this frame
	Errors        []error   // failed worker requests
}

// Options configures a session
type Options struct {
	MaxViewOffset float64
	Classifier    cache.AreaClassifier
	Observer      cache.Observer
	Logger        *zap.Logger
}

// Session is one editor: the cache bank plus the state of the frame loop.
// It is owned by a single goroutine.
type Session struct {
	bank          *cache.Bank
	worker        *worker.Handle
	maxViewOffset float64
	logger        *zap.Logger

	viewAnchor orb.Point
	hasFrame   bool
	lastZoom   float64
	lastSize   orb.Point
	lastFill   config.FillMode

	changeset osm.ChangesetID
	server    string
}

// NewSession creates a session. h may be nil when features are only
// appended directly.
func NewSession(h *worker.Handle, opts Options) *Session {
	if opts.MaxViewOffset <= 0 {
		opts.MaxViewOffset = DefaultMaxViewOffset
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := cache.NewBank(opts.Classifier, opts.Logger)
	if opts.Observer != nil {
		b.SetObserver(opts.Observer)
	}
	return &Session{
		bank:          b,
		worker:        h,
		maxViewOffset: opts.MaxViewOffset,
		logger:        opts.Logger,
	}
}

// Bank exposes the caches for reading
func (s *Session) Bank() *cache.Bank {
	return s.bank
}

// Changeset returns the id of the changeset opened through the worker,
// or 0
func (s *Session) Changeset() osm.ChangesetID {
	return s.changeset
}

// Server returns the name of the last server selected through the worker
func (s *Session) Server() string {
	return s.server
}

// Request queues a worker request. It panics when the session has no
// worker.
func (s *Session) Request(req worker.Request) {
	if s.worker == nil {
		panic(ErrNoWorker)
	}
	s.worker.Send(req)
}

// AppendFeatures merges nodes and ways into the store
func (s *Session) AppendFeatures(nodes osm.Nodes, ways osm.Ways) osmdata.MergeStats {
	return s.bank.AppendFeatures(nodes, ways)
}

// ApplyChange applies a user edit
func (s *Session) ApplyChange(c cache.Change) {
	s.logger.Debug("Applying change", zap.Stringer("change", c))
	s.bank.ApplyChange(c)
}

// Update runs one frame: apply worker responses, refresh view membership
// when needed, recompute dirty caches and move the remaining ones to the
// current center
func (s *Session) Update(frame FrameContext) FrameResult {
	var res FrameResult
	s.poll(&res)

	ctrl := s.bank.Controller()
	center := frame.Viewport.Center
	fill := render.EffectiveFillMode(frame.FillMode, frame.Zoom)

	if s.hasFrame {
		if frame.Zoom != s.lastZoom || frame.Viewport.Size != s.lastSize {
			ctrl.MarkViewStale()
		}
		if fill == config.FillFull && s.lastFill != config.FillFull {
			ctrl.Mark(cache.WayMeshAndAreaSize)
		}
	}

	if !s.bank.Store().IsEmpty() && (ctrl.ViewStale() || s.drifted(frame.Projector, center)) {
		s.bank.RefreshViewMembership(frame.Viewport.Bound)
		s.viewAnchor = center
		res.ViewRefreshed = true
	}

	res.Rebuilt = s.bank.RefreshDirty(frame.Projector, center, fill == config.FillFull)
	s.bank.UpdateOffsets(frame.Projector, center)

	s.hasFrame = true
	s.lastZoom = frame.Zoom
	s.lastSize = frame.Viewport.Size
	s.lastFill = fill

	return res
}

// drifted reports whether the view center moved more than the allowed
// offset from the center of the last membership refresh
func (s *Session) drifted(p proj.Projector, center orb.Point) bool {
	a, c := p.Project(s.viewAnchor), p.Project(center)
	return math.Abs(a[0]-c[0]) > s.maxViewOffset || math.Abs(a[1]-c[1]) > s.maxViewOffset
}

// poll applies every response the worker has ready, in arrival order
func (s *Session) poll(res *FrameResult) {
	if s.worker == nil {
		return
	}
	for {
		resp, ok := s.worker.Poll()
		if !ok {
			return
		}
		res.Applied++
		if resp.Err != nil {
			res.Errors = append(res.Errors, resp.Err)
			continue
		}

		switch resp.Request.(type) {
		case worker.GetMap:
			stats := s.bank.AppendFeatures(resp.Batch.Nodes, resp.Batch.Ways)
			s.logger.Info("Map data received",
				zap.Int("nodes_added", stats.NodesAdded),
				zap.Int("nodes_skipped", stats.NodesSkipped),
				zap.Int("ways_added", stats.WaysAdded),
				zap.Int("ways_skipped", stats.WaysSkipped))
		case worker.SetTargetServer:
			s.server = resp.Server.Name
		case worker.CreateChangeset:
			s.changeset = resp.Changeset
		case worker.CloseChangeset:
			if s.changeset == resp.Changeset {
				s.changeset = 0
			}
		}
	}
}

package render

import (
	"image/color"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/config"
	"github.com/wegman-software/osmview-go/internal/edit"
	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/tess"
)

// ShapeKind tells a consumer how to draw a Shape
type ShapeKind uint8

const (
	ShapePath ShapeKind = iota // polyline, closed when Closed is set
	ShapeMesh                  // filled triangle mesh
	ShapeNode                  // filled circle at Points[0]
)

// NodeStyle distinguishes node markers
type NodeStyle uint8

const (
	NodeSimple NodeStyle = iota
	NodeConnected
	NodeOrphan
)

// Visualization selects optional overlays
type Visualization uint8

const (
	VisualDefault Visualization = iota
	VisualSidewalks
)

// Shape is one entry of a draw list, already in screen coordinates
type Shape struct {
	Kind    ShapeKind
	Element osmdata.ElementID
	Points  []orb.Point
	Closed  bool
	Width   float32 // stroke width, or radius for nodes
	Color   color.RGBA
	Mesh    *tess.Mesh
	Node    NodeStyle
	Overlay bool // decoration that does not take part in hit-testing
}

// Options controls draw list construction
type Options struct {
	Zoom          float64
	FillMode      config.FillMode
	Visualization Visualization
	ScaleFactor   float32
}

// DrawList holds shapes in paint order
type DrawList struct {
	Shapes []Shape
	// Skipped counts areas that could not be filled (zero area or failed
	// tessellation)
	Skipped int
}

// Build assembles the draw list from the caches: areas largest first,
// then line ways, then nodes when zoomed in far enough. Every cache the
// effective fill mode reads must be clean.
func Build(b *cache.Bank, opts Options) *DrawList {
	scale := opts.ScaleFactor
	if scale <= 0 {
		scale = 1
	}
	fill := EffectiveFillMode(opts.FillMode, opts.Zoom)
	drawNodes := opts.Zoom > NodeMinZoom

	areas := b.AreasInPaintOrder()
	capacity := len(areas)
	if fill != config.FillWireframe {
		capacity *= 2
	}
	if drawNodes {
		capacity += len(b.DedupWayNodes()) + len(b.DedupOrphanNodes())
	}
	dl := &DrawList{Shapes: make([]Shape, 0, capacity)}

	for _, a := range areas {
		w := b.Way(a.ID)
		points := b.ProjectedPositionsInWay(a.ID)
		width := WayStrokeWidth(w.Tags) * scale
		c := WayStrokeColor(w.Tags)
		ref := osmdata.WayRef(a.ID)

		switch fill {
		case config.FillWireframe:
			dl.add(Shape{Kind: ShapePath, Element: ref, Points: points, Closed: true, Width: width, Color: c})

		case config.FillPartial:
			dl.add(Shape{Kind: ShapePath, Element: ref, Points: points, Closed: true, Width: width, Color: c})

			inner := partialFillRing(points, a.Area)
			if inner == nil {
				dl.Skipped++
				continue
			}
			dl.add(Shape{
				Kind:    ShapePath,
				Element: ref,
				Points:  inner,
				Closed:  true,
				Width:   PartialFillWidth,
				Color:   fade(c, partialFillFactor),
				Overlay: true,
			})

		case config.FillFull:
			if mesh, ok := b.WayMesh(a.ID, fade(c, partialFillFactor)); ok {
				dl.add(Shape{Kind: ShapeMesh, Element: ref, Mesh: mesh, Color: fade(c, partialFillFactor)})
			} else {
				dl.Skipped++
			}
			dl.add(Shape{Kind: ShapePath, Element: ref, Points: dropFirst(points), Closed: true, Width: width, Color: c})
		}
	}

	for _, id := range b.LineWays() {
		w := b.Way(id)
		points := b.ProjectedPositionsInWay(id)
		width := WayStrokeWidth(w.Tags) * scale

		if opts.Visualization == VisualSidewalks && SidewalksRelevant(w.Tags) {
			for _, s := range Sidewalks(w, points, width, scale) {
				dl.add(s)
			}
		}

		dl.add(Shape{
			Kind:    ShapePath,
			Element: osmdata.WayRef(id),
			Points:  points,
			Width:   width,
			Color:   WayStrokeColor(w.Tags),
		})
	}

	if drawNodes {
		for _, id := range b.DedupWayNodes() {
			s := Shape{
				Kind:    ShapeNode,
				Element: osmdata.NodeRef(id),
				Points:  []orb.Point{b.ProjectedPos(id)},
				Width:   NodeSize * scale,
				Color:   NodeColor,
				Node:    NodeSimple,
			}
			if len(b.NodeUsage(id)) > 1 {
				s.Color = NodeConnectedColor
				s.Node = NodeConnected
			}
			dl.add(s)
		}
		for _, id := range b.DedupOrphanNodes() {
			dl.add(Shape{
				Kind:    ShapeNode,
				Element: osmdata.NodeRef(id),
				Points:  []orb.Point{b.ProjectedPos(id)},
				Width:   NodeSizeOrphan * scale,
				Color:   NodeColor,
				Node:    NodeOrphan,
			})
		}
	}

	return dl
}

func (dl *DrawList) add(s Shape) {
	dl.Shapes = append(dl.Shapes, s)
}

// partialFillRing returns the ring for the inner stroke of a partially
// filled area, walked so the stroke lies inside. A zero-area ring gives nil.
func partialFillRing(points []orb.Point, area float64) []orb.Point {
	switch {
	case area > 0:
		return dropFirst(points)
	case area < 0:
		rev := slices.Clone(points)
		slices.Reverse(rev)
		return dropFirst(rev)
	default:
		return nil
	}
}

// dropFirst removes the duplicated closing point of a closed way
func dropFirst(points []orb.Point) []orb.Point {
	if len(points) == 0 {
		return points
	}
	return points[1:]
}

// Hovered returns the elements under the pointer: nodes first, then ways,
// each group topmost first
func (dl *DrawList) Hovered(pointer orb.Point) []osmdata.ElementID {
	var nodes, ways []osmdata.ElementID
	seen := make(map[osmdata.ElementID]bool)

	for i := len(dl.Shapes) - 1; i >= 0; i-- {
		s := dl.Shapes[i]
		if s.Kind == ShapeMesh || s.Overlay || seen[s.Element] {
			continue
		}
		switch s.Kind {
		case ShapeNode:
			r := float64(s.Width)
			if distanceSq(s.Points[0], pointer) < r*r {
				nodes = append(nodes, s.Element)
				seen[s.Element] = true
			}
		case ShapePath:
			if s.Element.Type != osmdata.WayElement {
				continue
			}
			w := float64(s.Width)
			if DistanceToWay(s.Points, pointer) < w*w {
				ways = append(ways, s.Element)
				seen[s.Element] = true
			}
		}
	}

	return append(nodes, ways...)
}

// DistanceToWay returns the squared distance from p to the nearest
// segment of a polyline, or +Inf for fewer than two points
func DistanceToWay(points []orb.Point, p orb.Point) float64 {
	best := math.Inf(1)
	for i := 1; i < len(points); i++ {
		if d := distanceToSegmentSq(p, points[i-1], points[i]); d < best {
			best = d
		}
	}
	return best
}

func distanceToSegmentSq(p, a, b orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	lenSq := dx*dx + dy*dy

	t := -1.0
	if lenSq != 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	}

	var q orb.Point
	switch {
	case t < 0:
		q = a
	case t > 1:
		q = b
	default:
		q = orb.Point{a[0] + t*dx, a[1] + t*dy}
	}
	return distanceSq(p, q)
}

func distanceSq(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

// SidewalksRelevant reports whether sidewalks are drawn for a way
func SidewalksRelevant(tags osm.Tags) bool {
	return slices.Contains(HighwaysWithSidewalk, tags.Find("highway"))
}

// Sidewalks returns a left and a right polyline offset from the way by
// width, colored by the sidewalk tags of each side
func Sidewalks(w *osm.Way, points []orb.Point, width, scale float32) []Shape {
	if len(points) < 2 {
		return nil
	}
	attr := edit.ParseAttribute2D(w.Tags, edit.SidewalkKey)
	off := float64(width)

	left := make([]orb.Point, 0, len(points))
	right := make([]orb.Point, 0, len(points))

	n := normalize(rot90(sub(points[1], points[0])))
	left = append(left, add(points[0], mul(n, off)))
	right = append(right, add(points[0], mul(n, -off)))

	for i := 1; i < len(points); i++ {
		o := rot90(sub(points[i], points[i-1]))
		if i+1 < len(points) {
			o = add(o, rot90(sub(points[i+1], points[i])))
		}
		o = normalize(o)
		left = append(left, add(points[i], mul(o, off)))
		right = append(right, add(points[i], mul(o, -off)))
	}

	ref := osmdata.WayRef(w.ID)
	return []Shape{
		{Kind: ShapePath, Element: ref, Points: left, Width: SidewalkWidth * scale, Color: SidewalkColor(attr.Left), Overlay: true},
		{Kind: ShapePath, Element: ref, Points: right, Width: SidewalkWidth * scale, Color: SidewalkColor(attr.Right), Overlay: true},
	}
}

func add(a, b orb.Point) orb.Point { return orb.Point{a[0] + b[0], a[1] + b[1]} }

func sub(a, b orb.Point) orb.Point { return orb.Point{a[0] - b[0], a[1] - b[1]} }

func mul(a orb.Point, f float64) orb.Point { return orb.Point{a[0] * f, a[1] * f} }

// rot90 turns a screen vector by 90 degrees, +x towards +y
func rot90(a orb.Point) orb.Point { return orb.Point{-a[1], a[0]} }

func normalize(a orb.Point) orb.Point {
	l := math.Hypot(a[0], a[1])
	if l == 0 {
		return orb.Point{}
	}
	return orb.Point{a[0] / l, a[1] / l}
}

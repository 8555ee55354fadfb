package tess

import (
	"errors"
	"image/color"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrDegenerate is returned for rings with fewer than three distinct
	// points or without enclosed area
	ErrDegenerate = errors.New("degenerate polygon")
	// ErrNoEar is returned when ear clipping gets stuck, which happens for
	// self-intersecting rings
	ErrNoEar = errors.New("no ear found")
)

// Pos is a screen-space position
type Pos = orb.Point

// Placeholders patched at draw time
var (
	WhiteUV = [2]float32{0, 0}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const epsilon = 1e-9

// Vertex is one entry of the vertex buffer
type Vertex struct {
	Pos   Pos
	UV    [2]float32
	Color color.RGBA
}

// Mesh is a triangle list: three indices into Vertices per triangle
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// TriangleCount returns the number of triangles in the mesh
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Translated returns a copy of the mesh moved by offset and painted with c
func (m *Mesh) Translated(offset orb.Point, c color.RGBA) *Mesh {
	out := &Mesh{
		Vertices: make([]Vertex, len(m.Vertices)),
		Indices:  m.Indices,
	}
	for i, v := range m.Vertices {
		v.Pos = Pos{v.Pos[0] + offset[0], v.Pos[1] + offset[1]}
		v.Color = c
		out.Vertices[i] = v
	}
	return out
}

// Tessellate triangulates a simple polygon given as a ring of points. The
// ring is closed implicitly; a repeated closing point is ignored. Either
// winding is accepted. Self-intersections are not resolved.
func Tessellate(ring []Pos) (*Mesh, error) {
	pts := dropCollinear(cleanRing(ring))
	if len(pts) < 3 {
		return nil, ErrDegenerate
	}

	area := SignedArea(pts)
	if math.Abs(area) < epsilon {
		return nil, ErrDegenerate
	}
	orient := 1.0
	if area < 0 {
		orient = -1.0
	}

	mesh := &Mesh{
		Vertices: make([]Vertex, len(pts)),
		Indices:  make([]uint32, 0, 3*(len(pts)-2)),
	}
	for i, p := range pts {
		mesh.Vertices[i] = Vertex{Pos: p, UV: WhiteUV, Color: White}
	}

	remaining := make([]int, len(pts))
	for i := range remaining {
		remaining[i] = i
	}

	// each pass over the ring must clip or drop at least one vertex
	stalled := 0
	i := 0
	for len(remaining) > 3 {
		if stalled > len(remaining) {
			return nil, ErrNoEar
		}

		n := len(remaining)
		prev := remaining[(i+n-1)%n]
		cur := remaining[i%n]
		next := remaining[(i+1)%n]

		c := orient * cross(pts[prev], pts[cur], pts[next])
		switch {
		case math.Abs(c) < epsilon:
			// collinear or spike: drop without emitting a triangle
			remaining = removeAt(remaining, i%n)
			stalled = 0
		case c > 0 && isEar(pts, remaining, prev, cur, next, orient):
			mesh.Indices = append(mesh.Indices, uint32(prev), uint32(cur), uint32(next))
			remaining = removeAt(remaining, i%n)
			stalled = 0
		default:
			i++
			stalled++
			continue
		}
		if i >= len(remaining) {
			i = 0
		}
	}

	a, b, c := remaining[0], remaining[1], remaining[2]
	if math.Abs(cross(pts[a], pts[b], pts[c])) >= epsilon {
		mesh.Indices = append(mesh.Indices, uint32(a), uint32(b), uint32(c))
	}

	if len(mesh.Indices) == 0 {
		return nil, ErrDegenerate
	}
	return mesh, nil
}

// SignedArea returns the shoelace area of the ring, positive for
// counter-clockwise winding in a y-up frame
func SignedArea(ring []Pos) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		p, q := ring[i], ring[(i+1)%n]
		sum += p[0]*q[1] - q[0]*p[1]
	}
	return sum / 2
}

// cleanRing drops consecutive duplicates and the closing point
func cleanRing(ring []Pos) []Pos {
	out := make([]Pos, 0, len(ring))
	for _, p := range ring {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// dropCollinear removes vertices lying on the line through their
// neighbours until none are left
func dropCollinear(pts []Pos) []Pos {
	for changed := true; changed && len(pts) >= 3; {
		changed = false
		for i := 0; i < len(pts) && len(pts) >= 3; i++ {
			n := len(pts)
			if math.Abs(cross(pts[(i+n-1)%n], pts[i], pts[(i+1)%n])) < epsilon {
				pts = append(pts[:i], pts[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return pts
}

func cross(a, b, c Pos) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// isEar checks that no other remaining vertex lies inside the triangle
func isEar(pts []Pos, remaining []int, prev, cur, next int, orient float64) bool {
	a, b, c := pts[prev], pts[cur], pts[next]
	for _, idx := range remaining {
		if idx == prev || idx == cur || idx == next {
			continue
		}
		p := pts[idx]
		if p == a || p == b || p == c {
			continue
		}
		if orient*cross(a, b, p) >= 0 &&
			orient*cross(b, c, p) >= 0 &&
			orient*cross(c, a, p) >= 0 {
			return false
		}
	}
	return true
}

func removeAt(s []int, i int) []int {
	return append(s[:i], s[i+1:]...)
}

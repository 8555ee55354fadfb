package proj

import (
	"math"

	"github.com/paulmach/orb"
)

// Projector maps geographic coordinates (lon, lat) to screen positions and
// back. A new projector is supplied each frame.
type Projector interface {
	Project(p orb.Point) orb.Point
	Unproject(p orb.Point) orb.Point
}

// Web Mercator constants
const (
	// Semi-major axis of WGS84 ellipsoid in meters
	earthRadius = 6378137.0
	// Maximum extent of Web Mercator
	maxExtent = 20037508.342789244
	// Latitude clamp keeping y finite
	maxLat = 85.06
	// Pixel size of one tile at zoom 0
	tileSize = 256.0
)

// WebMercator is a slippy-map projection centered on Center at the given
// zoom level. Screen y grows downwards, (0, 0) is the top left corner.
type WebMercator struct {
	Center orb.Point
	Zoom   float64
	Width  float64
	Height float64
}

// metersPerPixel returns the ground resolution at the equator
func (m WebMercator) metersPerPixel() float64 {
	return 2 * maxExtent / (tileSize * math.Exp2(m.Zoom))
}

// Project converts (lon, lat) to a screen position
func (m WebMercator) Project(p orb.Point) orb.Point {
	cx, cy := lonLatToWebMercator(m.Center[0], m.Center[1])
	x, y := lonLatToWebMercator(p[0], p[1])
	res := m.metersPerPixel()
	return orb.Point{
		m.Width/2 + (x-cx)/res,
		m.Height/2 - (y-cy)/res,
	}
}

// Unproject converts a screen position back to (lon, lat)
func (m WebMercator) Unproject(p orb.Point) orb.Point {
	cx, cy := lonLatToWebMercator(m.Center[0], m.Center[1])
	res := m.metersPerPixel()
	x := cx + (p[0]-m.Width/2)*res
	y := cy - (p[1]-m.Height/2)*res
	lon, lat := webMercatorToLonLat(x, y)
	return orb.Point{lon, lat}
}

// Bound returns the geographic rectangle covered by the screen
func (m WebMercator) Bound() orb.Bound {
	return ScreenBound(m, m.Width, m.Height)
}

// ScreenBound unprojects the screen corners of any projector
func ScreenBound(p Projector, width, height float64) orb.Bound {
	topLeft := p.Unproject(orb.Point{0, 0})
	bottomRight := p.Unproject(orb.Point{width, height})
	return orb.Bound{Min: topLeft, Max: topLeft}.Extend(bottomRight)
}

// Identity leaves coordinates untouched; useful for working in degrees
type Identity struct{}

// Project returns p
func (Identity) Project(p orb.Point) orb.Point { return p }

// Unproject returns p
func (Identity) Unproject(p orb.Point) orb.Point { return p }

// lonLatToWebMercator converts WGS84 (lon, lat) to Web Mercator (x, y)
func lonLatToWebMercator(lon, lat float64) (x, y float64) {
	// Clamp latitude to avoid infinity at poles
	if lat > maxLat {
		lat = maxLat
	} else if lat < -maxLat {
		lat = -maxLat
	}

	x = lon * maxExtent / 180.0

	// y = R * ln(tan(π/4 + φ/2))
	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius

	return x, y
}

// webMercatorToLonLat is the inverse of lonLatToWebMercator
func webMercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x * 180.0 / maxExtent
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180.0 / math.Pi
	return lon, lat
}

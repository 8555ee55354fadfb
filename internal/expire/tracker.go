package expire

import (
	"bufio"
	"cmp"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
)

// TileString formats a tile as z/x/y
func TileString(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// TilesInBound returns every tile at zoom z that intersects b
func TilesInBound(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	// tile rows grow southwards
	topLeft := maptile.At(orb.Point{b.Min[0], b.Max[1]}, z)
	bottomRight := maptile.At(orb.Point{b.Max[0], b.Min[1]}, z)

	tiles := make([]maptile.Tile, 0, int(bottomRight.X-topLeft.X+1)*int(bottomRight.Y-topLeft.Y+1))
	for x := topLeft.X; x <= bottomRight.X; x++ {
		for y := topLeft.Y; y <= bottomRight.Y; y++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}
	return tiles
}

// Tracker collects the tiles that need re-rendering after edits
type Tracker struct {
	mu      sync.Mutex
	tiles   map[maptile.Tile]struct{}
	minZoom maptile.Zoom
	maxZoom maptile.Zoom
}

// NewTracker creates a tracker for the zoom range [minZoom, maxZoom]
func NewTracker(minZoom, maxZoom maptile.Zoom) *Tracker {
	if minZoom > maxZoom {
		minZoom, maxZoom = maxZoom, minZoom
	}
	return &Tracker{
		tiles:   make(map[maptile.Tile]struct{}),
		minZoom: minZoom,
		maxZoom: maxZoom,
	}
}

// ExpireBound marks the tiles intersecting b on every tracked zoom
func (t *Tracker) ExpireBound(b orb.Bound) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for z := t.minZoom; z <= t.maxZoom; z++ {
		for _, tile := range TilesInBound(b, z) {
			t.tiles[tile] = struct{}{}
		}
	}
}

// ExpirePoints marks the tiles covering the bound of points
func (t *Tracker) ExpirePoints(points []orb.Point) {
	if len(points) == 0 {
		return
	}
	t.ExpireBound(orb.MultiPoint(points).Bound())
}

// Count returns the number of unique expired tiles
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tiles)
}

// CountByZoom returns the number of tiles per zoom level
func (t *Tracker) CountByZoom() map[maptile.Zoom]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[maptile.Zoom]int)
	for tile := range t.tiles {
		counts[tile.Z]++
	}
	return counts
}

// Tiles returns the expired tiles sorted by zoom, x, then y
func (t *Tracker) Tiles() []maptile.Tile {
	t.mu.Lock()
	tiles := make([]maptile.Tile, 0, len(t.tiles))
	for tile := range t.tiles {
		tiles = append(tiles, tile)
	}
	t.mu.Unlock()

	slices.SortFunc(tiles, func(a, b maptile.Tile) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return tiles
}

// WriteToFile writes the expired tiles to filename, one z/x/y per line
func (t *Tracker) WriteToFile(filename string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	tiles := t.Tiles()
	if len(tiles) == 0 {
		logger.Info("No tiles to expire")
		return nil
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create expire file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, tile := range tiles {
		fmt.Fprintln(w, TileString(tile))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write expire file: %w", err)
	}

	counts := t.CountByZoom()
	fields := []zap.Field{zap.String("file", filename)}
	for z := t.minZoom; z <= t.maxZoom; z++ {
		if n := counts[z]; n > 0 {
			fields = append(fields, zap.Int(fmt.Sprintf("z%d", z), n))
		}
	}
	fields = append(fields, zap.Int("total", len(tiles)))
	logger.Info("Wrote expire tiles", fields...)

	return nil
}

package expire

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestTilesInBound(t *testing.T) {
	tests := []struct {
		name  string
		bound orb.Bound
		zoom  maptile.Zoom
		want  []string
	}{
		{
			name:  "Monaco point at zoom 12",
			bound: orb.Point{7.4246, 43.7384}.Bound(),
			zoom:  12,
			want:  []string{"12/2132/1493"},
		},
		{
			name:  "London point at zoom 10",
			bound: orb.Point{-0.1278, 51.5074}.Bound(),
			zoom:  10,
			want:  []string{"10/511/340"},
		},
		{
			name:  "origin at zoom 1",
			bound: orb.Point{0.1, -0.1}.Bound(),
			zoom:  1,
			want:  []string{"1/1/1"},
		},
		{
			name:  "across the equator and meridian",
			bound: orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}},
			zoom:  1,
			want:  []string{"1/0/0", "1/0/1", "1/1/0", "1/1/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TilesInBound(tt.bound, tt.zoom)
			if len(got) != len(tt.want) {
				t.Fatalf("TilesInBound() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if s := TileString(got[i]); s != tt.want[i] {
					t.Errorf("tile %d = %s, want %s", i, s, tt.want[i])
				}
			}
		})
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker(12, 10)

	way := []orb.Point{{7.4246, 43.7384}, {7.4250, 43.7390}}
	tr.ExpirePoints(way)
	tr.ExpirePoints(way)
	tr.ExpirePoints(nil)

	if tr.Count() != 3 {
		t.Fatalf("Count() = %d, want one tile per zoom", tr.Count())
	}
	counts := tr.CountByZoom()
	for z := maptile.Zoom(10); z <= 12; z++ {
		if counts[z] != 1 {
			t.Errorf("CountByZoom()[%d] = %d, want 1", z, counts[z])
		}
	}

	tiles := tr.Tiles()
	if tiles[0].Z != 10 || tiles[2].Z != 12 {
		t.Errorf("Tiles() not sorted by zoom: %v", tiles)
	}
}

func TestWriteToFile(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(1, 1)

	empty := filepath.Join(dir, "empty.txt")
	if err := tr.WriteToFile(empty, nil); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("no file should be written without tiles")
	}

	tr.ExpireBound(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}})
	path := filepath.Join(dir, "expire.txt")
	if err := tr.WriteToFile(path, nil); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "1/0/0\n1/0/1\n1/1/0\n1/1/1\n"
	if got := string(data); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
	if strings.Count(string(data), "\n") != tr.Count() {
		t.Error("line count does not match Count()")
	}
}

package cache

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestChangeString(t *testing.T) {
	tests := []struct {
		name string
		way  *osm.Way
		want string
	}{
		{"named", way(1, nil, "name", "Main Street"), "Updated Main Street"},
		{"unnamed", way(42, nil, "highway", "path"), "Updated Way 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UpdateWay(tt.way).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChangeLogLatestWays(t *testing.T) {
	var log ChangeLog

	a1 := way(1, nil, "v", "1")
	b1 := way(2, nil, "v", "1")
	a2 := way(1, nil, "v", "2")
	a3 := way(1, nil, "v", "3")

	log.Append(UpdateWay(a1))
	log.Append(UpdateWay(b1))
	log.Append(UpdateWay(a2))
	log.Append(UpdateWay(a3))

	if log.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", log.Len())
	}

	latest := log.LatestWays()
	if len(latest) != 2 {
		t.Fatalf("LatestWays() = %d ways, want 2", len(latest))
	}
	if latest[0] != a3 {
		t.Errorf("LatestWays()[0] = %v, want last state of way 1", latest[0].Tags)
	}
	if latest[1] != b1 {
		t.Errorf("LatestWays()[1] = way %d, want way 2", latest[1].ID)
	}
}

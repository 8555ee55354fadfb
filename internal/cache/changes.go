package cache

import (
	"fmt"

	"github.com/paulmach/osm"
)

// Change is one user edit: a full replacement of a way
type Change struct {
	Way *osm.Way
}

// UpdateWay wraps the new state of a way into a change
func UpdateWay(w *osm.Way) Change {
	return Change{Way: w}
}

func (c Change) String() string {
	if name := c.Way.Tags.Find("name"); name != "" {
		return "Updated " + name
	}
	return fmt.Sprintf("Updated Way %d", c.Way.ID)
}

// ChangeLog is the ordered list of applied edits. Back-to-back edits of the
// same way collapse into one entry holding the latest state.
type ChangeLog struct {
	entries []Change
}

// Append records c, coalescing with the previous entry when both target
// the same way
func (l *ChangeLog) Append(c Change) {
	if n := len(l.entries); n > 0 && l.entries[n-1].Way.ID == c.Way.ID {
		l.entries[n-1] = c
		return
	}
	l.entries = append(l.entries, c)
}

// Entries returns the log in application order
func (l *ChangeLog) Entries() []Change {
	return l.entries
}

// Len returns the number of entries
func (l *ChangeLog) Len() int {
	return len(l.entries)
}

// LatestWays returns the last recorded state of every edited way, in order
// of first edit
func (l *ChangeLog) LatestWays() []*osm.Way {
	latest := make(map[osm.WayID]int)
	var out []*osm.Way
	for _, c := range l.entries {
		if i, ok := latest[c.Way.ID]; ok {
			out[i] = c.Way
			continue
		}
		latest[c.Way.ID] = len(out)
		out = append(out, c.Way)
	}
	return out
}

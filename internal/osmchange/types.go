package osmchange

import "github.com/paulmach/osm"

// Action is the block an element appears in
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Entry is one element read from an osmChange document. Exactly one of
// Node and Way is set.
type Entry struct {
	Action Action
	Node   *osm.Node
	Way    *osm.Way
}

// Stats counts parsed entries by action
type Stats struct {
	NodesCreated     int64
	NodesModified    int64
	NodesDeleted     int64
	WaysCreated      int64
	WaysModified     int64
	WaysDeleted      int64
	RelationsSkipped int64
}

// Total returns the number of node and way entries
func (s *Stats) Total() int64 {
	return s.NodesCreated + s.NodesModified + s.NodesDeleted +
		s.WaysCreated + s.WaysModified + s.WaysDeleted
}

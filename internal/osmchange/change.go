package osmchange

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// Generator is written into the generator attribute of built documents
const Generator = "osmview-go/1.0"

// Build turns the change log into an osmChange document with a single
// modify block holding the last state of every edited way. An empty log
// gives a document without blocks.
func Build(log *cache.ChangeLog) *osm.Change {
	c := &osm.Change{Version: "0.6", Generator: Generator}

	ways := log.LatestWays()
	if len(ways) == 0 {
		return c
	}

	c.Modify = &osm.OSM{Ways: make(osm.Ways, 0, len(ways))}
	for _, w := range ways {
		c.Modify.Ways = append(c.Modify.Ways, osmdata.CloneWay(w))
	}
	return c
}

// IsEmpty reports whether the document carries no elements
func IsEmpty(c *osm.Change) bool {
	return empty(c.Create) && empty(c.Modify) && empty(c.Delete)
}

func empty(o *osm.OSM) bool {
	return o == nil || (len(o.Nodes) == 0 && len(o.Ways) == 0 && len(o.Relations) == 0)
}

// PrepareUpload stamps every modified element with the changeset id.
// Node versions are bumped, way versions are left as loaded.
func PrepareUpload(c *osm.Change, id osm.ChangesetID) {
	if c.Modify == nil {
		return
	}
	for _, n := range c.Modify.Nodes {
		n.ChangesetID = id
		n.Version++
	}
	for _, w := range c.Modify.Ways {
		w.ChangesetID = id
	}
}

// Marshal renders the document as indented XML with a header
func Marshal(c *osm.Change) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode osmChange: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WayChanges turns the created and modified ways of parsed entries into
// edits that can be applied to the caches. Deletions and nodes are ignored.
func WayChanges(entries []Entry) []cache.Change {
	var out []cache.Change
	for _, e := range entries {
		if e.Way == nil || e.Action == ActionDelete {
			continue
		}
		out = append(out, cache.UpdateWay(e.Way))
	}
	return out
}

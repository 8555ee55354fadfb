package osmchange

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/osm"
)

// Parser streams the node and way entries of osmChange documents.
// Relations are skipped.
type Parser struct {
	stats Stats
}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Stats returns parsing statistics. Read it after the entry channel is
// drained.
func (p *Parser) Stats() Stats {
	return p.stats
}

// ParseFile parses an osmChange file, plain or gzip compressed (.gz)
func (p *Parser) ParseFile(ctx context.Context, filename string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry, 256)
	errChan := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errChan)

		f, err := os.Open(filename)
		if err != nil {
			errChan <- fmt.Errorf("failed to open osmChange file: %w", err)
			return
		}
		defer f.Close()

		var r io.Reader = f
		if strings.HasSuffix(filename, ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				errChan <- fmt.Errorf("failed to create gzip reader: %w", err)
				return
			}
			defer gz.Close()
			r = gz
		}

		if err := p.parse(ctx, r, entries); err != nil {
			errChan <- err
		}
	}()

	return entries, errChan
}

// ParseReader parses an osmChange document from r
func (p *Parser) ParseReader(ctx context.Context, r io.Reader) (<-chan Entry, <-chan error) {
	entries := make(chan Entry, 256)
	errChan := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errChan)

		if err := p.parse(ctx, r, entries); err != nil {
			errChan <- err
		}
	}()

	return entries, errChan
}

// Collect drains both channels of a parse into a slice
func Collect(entries <-chan Entry, errs <-chan error) ([]Entry, error) {
	var out []Entry
	for e := range entries {
		out = append(out, e)
	}
	for err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (p *Parser) parse(ctx context.Context, r io.Reader, entries chan<- Entry) error {
	decoder := xml.NewDecoder(r)
	var action Action

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("XML parse error: %w", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		var entry Entry
		switch se.Name.Local {
		case "create", "modify", "delete":
			action = Action(se.Name.Local)
			continue
		case "node":
			n, err := parseNode(decoder, se)
			if err != nil {
				return err
			}
			entry = Entry{Action: action, Node: n}
		case "way":
			w, err := parseWay(decoder, se)
			if err != nil {
				return err
			}
			entry = Entry{Action: action, Way: w}
		case "relation":
			if err := decoder.Skip(); err != nil {
				return err
			}
			p.stats.RelationsSkipped++
			continue
		default:
			continue
		}

		if action == "" {
			return fmt.Errorf("%s outside of a create, modify or delete block", se.Name.Local)
		}

		select {
		case entries <- entry:
			p.count(entry)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// header holds the attributes shared by nodes and ways
type header struct {
	id        int64
	version   int
	changeset osm.ChangesetID
	timestamp time.Time
	user      string
	uid       osm.UserID
	visible   bool
}

func parseHeader(start xml.StartElement) (header, error) {
	h := header{visible: true}
	hasID := false
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			id, err := strconv.ParseInt(attr.Value, 10, 64)
			if err != nil {
				return h, fmt.Errorf("invalid %s id %q: %w", start.Name.Local, attr.Value, err)
			}
			h.id = id
			hasID = true
		case "version":
			v, _ := strconv.Atoi(attr.Value)
			h.version = v
		case "changeset":
			cs, _ := strconv.ParseInt(attr.Value, 10, 64)
			h.changeset = osm.ChangesetID(cs)
		case "timestamp":
			t, _ := time.Parse(time.RFC3339, attr.Value)
			h.timestamp = t
		case "user":
			h.user = attr.Value
		case "uid":
			uid, _ := strconv.ParseInt(attr.Value, 10, 64)
			h.uid = osm.UserID(uid)
		case "visible":
			h.visible = attr.Value != "false"
		}
	}
	if !hasID {
		return h, fmt.Errorf("%s without id", start.Name.Local)
	}
	return h, nil
}

func parseNode(decoder *xml.Decoder, start xml.StartElement) (*osm.Node, error) {
	h, err := parseHeader(start)
	if err != nil {
		return nil, err
	}
	n := &osm.Node{
		ID:          osm.NodeID(h.id),
		Version:     h.version,
		ChangesetID: h.changeset,
		Timestamp:   h.timestamp,
		User:        h.user,
		UserID:      h.uid,
		Visible:     h.visible,
	}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "lat":
			n.Lat, _ = strconv.ParseFloat(attr.Value, 64)
		case "lon":
			n.Lon, _ = strconv.ParseFloat(attr.Value, 64)
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch se := token.(type) {
		case xml.StartElement:
			if se.Name.Local == "tag" {
				if tag, ok := parseTag(se); ok {
					n.Tags = append(n.Tags, tag)
				}
			}
		case xml.EndElement:
			if se.Name.Local == "node" {
				return n, nil
			}
		}
	}
}

func parseWay(decoder *xml.Decoder, start xml.StartElement) (*osm.Way, error) {
	h, err := parseHeader(start)
	if err != nil {
		return nil, err
	}
	w := &osm.Way{
		ID:          osm.WayID(h.id),
		Version:     h.version,
		ChangesetID: h.changeset,
		Timestamp:   h.timestamp,
		User:        h.user,
		UserID:      h.uid,
		Visible:     h.visible,
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "nd":
				for _, attr := range se.Attr {
					if attr.Name.Local == "ref" {
						ref, err := strconv.ParseInt(attr.Value, 10, 64)
						if err != nil {
							return nil, fmt.Errorf("invalid nd ref %q in way %d: %w", attr.Value, w.ID, err)
						}
						w.Nodes = append(w.Nodes, osm.WayNode{ID: osm.NodeID(ref)})
					}
				}
			case "tag":
				if tag, ok := parseTag(se); ok {
					w.Tags = append(w.Tags, tag)
				}
			}
		case xml.EndElement:
			if se.Name.Local == "way" {
				return w, nil
			}
		}
	}
}

func parseTag(se xml.StartElement) (osm.Tag, bool) {
	var tag osm.Tag
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "k":
			tag.Key = attr.Value
		case "v":
			tag.Value = attr.Value
		}
	}
	return tag, tag.Key != ""
}

func (p *Parser) count(e Entry) {
	if e.Node != nil {
		switch e.Action {
		case ActionCreate:
			p.stats.NodesCreated++
		case ActionModify:
			p.stats.NodesModified++
		case ActionDelete:
			p.stats.NodesDeleted++
		}
		return
	}
	switch e.Action {
	case ActionCreate:
		p.stats.WaysCreated++
	case ActionModify:
		p.stats.WaysModified++
	case ActionDelete:
		p.stats.WaysDeleted++
	}
}

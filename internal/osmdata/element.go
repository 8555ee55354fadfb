package osmdata

import (
	"fmt"

	"github.com/paulmach/osm"
)

// ElementType distinguishes nodes from ways
type ElementType uint8

const (
	NodeElement ElementType = iota + 1
	WayElement
)

func (t ElementType) String() string {
	switch t {
	case NodeElement:
		return "Node"
	case WayElement:
		return "Way"
	default:
		return "Unknown"
	}
}

// ElementID identifies a node or a way. Node and way ids live in separate
// namespaces, so the type is part of the identity.
type ElementID struct {
	Type ElementType
	Ref  int64
}

// NodeRef builds an ElementID for a node
func NodeRef(id osm.NodeID) ElementID {
	return ElementID{Type: NodeElement, Ref: int64(id)}
}

// WayRef builds an ElementID for a way
func WayRef(id osm.WayID) ElementID {
	return ElementID{Type: WayElement, Ref: int64(id)}
}

func (e ElementID) String() string {
	return fmt.Sprintf("%s %d", e.Type, e.Ref)
}

// Element is a reference to either a node or a way in the store
type Element struct {
	node *osm.Node
	way  *osm.Way
}

// NodeElementOf wraps a node
func NodeElementOf(n *osm.Node) Element {
	return Element{node: n}
}

// WayElementOf wraps a way
func WayElementOf(w *osm.Way) Element {
	return Element{way: w}
}

// Node returns the wrapped node, or nil for ways
func (e Element) Node() *osm.Node { return e.node }

// Way returns the wrapped way, or nil for nodes
func (e Element) Way() *osm.Way { return e.way }

// ID returns the typed element id
func (e Element) ID() ElementID {
	if e.node != nil {
		return NodeRef(e.node.ID)
	}
	return WayRef(e.way.ID)
}

// Tags returns the element tags
func (e Element) Tags() osm.Tags {
	if e.node != nil {
		return e.node.Tags
	}
	return e.way.Tags
}

// Name returns the name tag, or "" when the element is unnamed
func (e Element) Name() string {
	return e.Tags().Find("name")
}

// TypeName returns "Node" or "Way"
func (e Element) TypeName() string {
	return e.ID().Type.String()
}

// Lookup resolves an element id against the store
func (s *Store) Lookup(id ElementID) (Element, bool) {
	switch id.Type {
	case NodeElement:
		if n, ok := s.Nodes[osm.NodeID(id.Ref)]; ok {
			return NodeElementOf(n), true
		}
	case WayElement:
		if w, ok := s.Ways[osm.WayID(id.Ref)]; ok {
			return WayElementOf(w), true
		}
	}
	return Element{}, false
}

package cache

import (
	"fmt"
	"strings"
)

// Kind names one derived cache
type Kind uint8

const (
	NodeProjection Kind = iota
	NodeOrphan
	WayArea
	NodeDedup
	NodeUsage
	WayMeshAndAreaSize
	AreaSizeOrdered

	kindCount
)

var kindNames = [kindCount]string{
	NodeProjection:     "NodeProjection",
	NodeOrphan:         "NodeOrphan",
	WayArea:            "WayArea",
	NodeDedup:          "NodeDedup",
	NodeUsage:          "NodeUsage",
	WayMeshAndAreaSize: "WayMeshAndAreaSize",
	AreaSizeOrdered:    "AreaSizeOrdered",
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// dependencies lists the caches each cache is computed from
var dependencies = [kindCount][]Kind{
	NodeProjection:     {NodeDedup},
	NodeOrphan:         nil,
	WayArea:            nil,
	NodeDedup:          {NodeOrphan, WayArea},
	NodeUsage:          nil,
	WayMeshAndAreaSize: {WayArea, NodeProjection},
	AreaSizeOrdered:    {NodeProjection, WayArea},
}

// Dependencies returns the caches k is computed from
func (k Kind) Dependencies() []Kind {
	return dependencies[k]
}

// RecomputeOrder is a topological order of all caches. Refreshing dirty
// caches in this order never reads a dirty dependency.
var RecomputeOrder = []Kind{
	NodeUsage,
	WayArea,
	NodeOrphan,
	NodeDedup,
	NodeProjection,
	WayMeshAndAreaSize,
	AreaSizeOrdered,
}

// Set is a compact set of cache kinds
type Set uint8

// SetOf builds a set from kinds
func SetOf(kinds ...Kind) Set {
	var s Set
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// Has reports whether k is in the set
func (s Set) Has(k Kind) bool { return s&(1<<k) != 0 }

// With returns the set with k added
func (s Set) With(k Kind) Set { return s | 1<<k }

// Without returns the set with k removed
func (s Set) Without(k Kind) Set { return s &^ (1 << k) }

// Kinds lists the members in recompute order
func (s Set) Kinds() []Kind {
	var out []Kind
	for _, k := range RecomputeOrder {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Set) String() string {
	names := make([]string, 0, kindCount)
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

var (
	// AllKinds holds every cache
	AllKinds = SetOf(RecomputeOrder...)
	// NodeKinds are invalidated when nodes are appended
	NodeKinds = SetOf(NodeProjection, NodeOrphan, NodeDedup, NodeUsage)
	// WayKinds are invalidated when ways are appended
	WayKinds = SetOf(WayArea, WayMeshAndAreaSize, AreaSizeOrdered)
)

// State is the lifecycle state of one cache
type State uint8

const (
	// StateClean means contents are valid; only the pan offset may change
	StateClean State = iota
	StateDirty
	StateRecomputing
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateRecomputing:
		return "recomputing"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Controller tracks which caches need recomputation and enforces that a
// cache is only rebuilt or read once its dependencies are clean.
type Controller struct {
	states    [kindCount]State
	viewStale bool
}

// NewController starts with every cache dirty and the view stale
func NewController() *Controller {
	c := &Controller{viewStale: true}
	for k := range c.states {
		c.states[k] = StateDirty
	}
	return c
}

// State returns the state of k
func (c *Controller) State(k Kind) State {
	return c.states[k]
}

// IsDirty reports whether k must be recomputed before it is read
func (c *Controller) IsDirty(k Kind) bool {
	return c.states[k] != StateClean
}

// Dirty returns the set of caches that are not clean
func (c *Controller) Dirty() Set {
	var s Set
	for _, k := range RecomputeOrder {
		if c.IsDirty(k) {
			s = s.With(k)
		}
	}
	return s
}

// Mark flags the given caches dirty along with everything computed from them
func (c *Controller) Mark(kinds ...Kind) {
	for _, k := range kinds {
		c.markDirty(k)
	}
}

// MarkSet flags every member of s dirty, transitively
func (c *Controller) MarkSet(s Set) {
	c.Mark(s.Kinds()...)
}

func (c *Controller) markDirty(k Kind) {
	c.states[k] = StateDirty
	for _, dep := range RecomputeOrder {
		if c.states[dep] == StateDirty {
			continue
		}
		for _, d := range dependencies[dep] {
			if d == k {
				c.markDirty(dep)
				break
			}
		}
	}
}

// MarkAll flags every cache dirty
func (c *Controller) MarkAll() {
	for k := range c.states {
		c.states[k] = StateDirty
	}
}

// MarkViewStale requests a view membership refresh before the next frame
func (c *Controller) MarkViewStale() {
	c.viewStale = true
}

// ViewStale reports whether view membership must be recomputed
func (c *Controller) ViewStale() bool {
	return c.viewStale
}

// ViewRefreshed records a fresh view membership, which invalidates every
// cache
func (c *Controller) ViewRefreshed() {
	c.viewStale = false
	c.MarkAll()
}

// Begin starts recomputing k. It panics if a dependency is not clean or k
// is already being recomputed.
func (c *Controller) Begin(k Kind) {
	if c.states[k] == StateRecomputing {
		panic(&InvariantError{Cache: k, Reason: "recompute started twice"})
	}
	for _, d := range dependencies[k] {
		if c.states[d] != StateClean {
			panic(&InvariantError{
				Cache:  k,
				Reason: fmt.Sprintf("dependency %s is %s", d, c.states[d]),
			})
		}
	}
	c.states[k] = StateRecomputing
}

// Finish marks k clean after a recompute started with Begin
func (c *Controller) Finish(k Kind) {
	if c.states[k] != StateRecomputing {
		panic(&InvariantError{Cache: k, Reason: fmt.Sprintf("finish while %s", c.states[k])})
	}
	c.states[k] = StateClean
}

// Require panics unless every given cache is clean
func (c *Controller) Require(kinds ...Kind) {
	for _, k := range kinds {
		if c.states[k] != StateClean {
			panic(&InvariantError{Cache: k, Reason: fmt.Sprintf("read while %s", c.states[k])})
		}
	}
}

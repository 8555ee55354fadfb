package cache

import (
	"fmt"

	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// InvariantError reports a programming error: a cache read out of order or
// an id that should have been present. It is raised with panic.
type InvariantError struct {
	Cache   Kind
	Element *osmdata.ElementID
	Reason  string
}

func (e *InvariantError) Error() string {
	if e.Element != nil {
		return fmt.Sprintf("cache %s: %s: %s", e.Cache, e.Element, e.Reason)
	}
	return fmt.Sprintf("cache %s: %s", e.Cache, e.Reason)
}

func missing(k Kind, id osmdata.ElementID, where string) *InvariantError {
	return &InvariantError{Cache: k, Element: &id, Reason: "missing from " + where}
}

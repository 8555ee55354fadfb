package edit

import (
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// TagValue is the value of one side of a two-sided attribute,
// e.g. sidewalk:left=*
type TagValue uint8

const (
	Unknown TagValue = iota
	Yes
	No
	Separate
)

// ParseTagValue reads a side value; anything unrecognised is Unknown
func ParseTagValue(s string) TagValue {
	switch s {
	case "yes":
		return Yes
	case "no", "none":
		return No
	case "separate":
		return Separate
	default:
		return Unknown
	}
}

func (v TagValue) String() string {
	switch v {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Separate:
		return "separate"
	default:
		return "unknown"
	}
}

// known reports whether the value can be written back as a tag
func (v TagValue) known() bool {
	return v != Unknown
}

// Attribute2D is an attribute that differs between the left and right
// side of a way, such as sidewalks
type Attribute2D struct {
	Left, Right TagValue
}

// ParseAttribute2D reads key, key:left, key:right and key:both from tags.
// The plain key holds a side suffix (left, right, both, separate, no);
// the suffixed keys override it, :both last.
func ParseAttribute2D(tags osm.Tags, key string) Attribute2D {
	var attr Attribute2D

	if v := tags.Find(key); v != "" {
		attr = fromSuffix(v)
	}
	if v := tags.Find(key + ":left"); v != "" {
		attr.Left = ParseTagValue(v)
	}
	if v := tags.Find(key + ":right"); v != "" {
		attr.Right = ParseTagValue(v)
	}
	if v := tags.Find(key + ":both"); v != "" {
		attr.Left = ParseTagValue(v)
		attr.Right = attr.Left
	}

	return attr
}

func fromSuffix(s string) Attribute2D {
	switch s {
	case "left":
		return Attribute2D{Left: Yes, Right: No}
	case "right":
		return Attribute2D{Left: No, Right: Yes}
	case "both":
		return Attribute2D{Left: Yes, Right: Yes}
	case "separate":
		return Attribute2D{Left: Separate, Right: Separate}
	case "no", "none":
		return Attribute2D{Left: No, Right: No}
	default:
		return Attribute2D{}
	}
}

// IntoTags returns the tags describing the attribute. Equal known sides
// collapse into key:both; unknown sides produce no tag.
func (a Attribute2D) IntoTags(key string) osm.Tags {
	var tags osm.Tags

	if a.Left.known() {
		if a.Left == a.Right {
			return osm.Tags{{Key: key + ":both", Value: a.Left.String()}}
		}
		tags = append(tags, osm.Tag{Key: key + ":left", Value: a.Left.String()})
	}
	if a.Right.known() {
		tags = append(tags, osm.Tag{Key: key + ":right", Value: a.Right.String()})
	}

	return tags
}

// SidewalkKey is the attribute edited by SetSidewalks
const SidewalkKey = "sidewalk"

// SetAttribute2D returns a change replacing every key, key:left,
// key:right and key:both tag of w with the tags of attr. w is not
// modified.
func SetAttribute2D(w *osm.Way, key string, attr Attribute2D) cache.Change {
	next := osmdata.CloneWay(w)

	kept := next.Tags[:0]
	for _, t := range next.Tags {
		switch t.Key {
		case key, key + ":left", key + ":right", key + ":both":
			continue
		}
		kept = append(kept, t)
	}
	next.Tags = append(kept, attr.IntoTags(key)...)

	return cache.UpdateWay(next)
}

// SetSidewalks is SetAttribute2D for the sidewalk key
func SetSidewalks(w *osm.Way, attr Attribute2D) cache.Change {
	return SetAttribute2D(w, SidewalkKey, attr)
}

// SetTag returns a change setting key=value on w. An empty value removes
// the key. w is not modified.
func SetTag(w *osm.Way, key, value string) cache.Change {
	next := osmdata.CloneWay(w)

	kept := next.Tags[:0]
	for _, t := range next.Tags {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	next.Tags = kept
	if value != "" {
		next.Tags = append(next.Tags, osm.Tag{Key: key, Value: value})
	}

	return cache.UpdateWay(next)
}

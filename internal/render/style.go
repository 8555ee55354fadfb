package render

import (
	"image/color"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/config"
	"github.com/wegman-software/osmview-go/internal/edit"
)

// Zoom levels controlling what is drawn
const (
	NodeMinZoom          = 17.0 // nodes are drawn above this zoom
	PartialFillThreshold = 18.0 // partial fill falls back to full below this zoom
)

// Stroke widths in pixels before scaling
const (
	NodeSize          = 3.0
	NodeSizeOrphan    = 4.0
	WayWidth          = 1.0
	PathWidth         = 2.5
	ServiceRoadWidth  = 4.0
	MinorRoadWidth    = 5.0
	MajorRoadWidth    = 6.0
	BuildingWidth     = 2.0
	PartialFillWidth  = 12.0
	SidewalkWidth     = 4.0
	partialFillFactor = 0.5
)

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Palette
var (
	White              = rgb(255, 255, 255)
	Gray               = rgb(160, 160, 160)
	LightGray          = rgb(220, 220, 220)
	NodeColor          = White
	NodeConnectedColor = LightGray
	WayColor           = Gray
	BuildingColor      = rgb(224, 110, 95)
	PathColor          = rgb(221, 204, 170)
	FootwayColor       = White
	StepsColor         = rgb(129, 210, 92)
	TrackColor         = rgb(197, 181, 159)

	SidewalkYesColor      = rgb(144, 238, 144)
	SidewalkNoColor       = LightGray
	SidewalkSeparateColor = rgb(140, 180, 255)
	SidewalkUnknownColor  = rgb(255, 128, 128)
)

// HighwaysWithSidewalk lists highway values for which sidewalks are drawn
var HighwaysWithSidewalk = []string{
	"unclassified", "residential", "living_street", "pedestrian", "service",
	"motorway", "trunk", "primary", "secondary", "tertiary",
	"motorway_link", "trunk_link", "primary_link", "secondary_link", "tertiary_link",
}

// EffectiveFillMode returns the fill mode actually used at zoom
func EffectiveFillMode(mode config.FillMode, zoom float64) config.FillMode {
	if mode == config.FillPartial && zoom < PartialFillThreshold {
		return config.FillFull
	}
	return mode
}

// WayStrokeWidth picks a stroke width from building and highway tags
func WayStrokeWidth(tags osm.Tags) float32 {
	if tags.HasTag("building") {
		if tags.Find("building") == "no" {
			return WayWidth
		}
		return BuildingWidth
	}

	switch tags.Find("highway") {
	case "path", "footway", "steps":
		return PathWidth
	case "service", "track":
		return ServiceRoadWidth
	case "residential":
		return MinorRoadWidth
	case "tertiary", "secondary", "primary", "trunk", "motorway",
		"tertiary_link", "secondary_link", "primary_link", "trunk_link", "motorway_link":
		return MajorRoadWidth
	default:
		return WayWidth
	}
}

// WayStrokeColor picks a color from building and highway tags
func WayStrokeColor(tags osm.Tags) color.RGBA {
	if tags.HasTag("building") {
		if tags.Find("building") == "no" {
			return WayColor
		}
		return BuildingColor
	}

	if !tags.HasTag("highway") {
		return WayColor
	}
	switch tags.Find("highway") {
	case "path":
		return PathColor
	case "footway":
		return FootwayColor
	case "steps":
		return StepsColor
	case "track":
		return TrackColor
	default:
		return White
	}
}

// SidewalkColor is the color of one side of a sidewalk visualization
func SidewalkColor(v edit.TagValue) color.RGBA {
	switch v {
	case edit.Yes:
		return SidewalkYesColor
	case edit.No:
		return SidewalkNoColor
	case edit.Separate:
		return SidewalkSeparateColor
	default:
		return SidewalkUnknownColor
	}
}

// fade scales every channel, alpha included, by f
func fade(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: uint8(float64(c.A) * f),
	}
}

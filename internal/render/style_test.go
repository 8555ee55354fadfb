package render

import (
	"image/color"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/config"
)

func TestEffectiveFillMode(t *testing.T) {
	tests := []struct {
		mode config.FillMode
		zoom float64
		want config.FillMode
	}{
		{config.FillPartial, 18, config.FillPartial},
		{config.FillPartial, 17.9, config.FillFull},
		{config.FillWireframe, 10, config.FillWireframe},
		{config.FillFull, 20, config.FillFull},
	}

	for _, tt := range tests {
		if got := EffectiveFillMode(tt.mode, tt.zoom); got != tt.want {
			t.Errorf("EffectiveFillMode(%s, %v) = %s, want %s", tt.mode, tt.zoom, got, tt.want)
		}
	}
}

func TestWayStyle(t *testing.T) {
	tests := []struct {
		name      string
		tags      osm.Tags
		wantWidth float32
		wantColor color.RGBA
	}{
		{"untagged", nil, WayWidth, WayColor},
		{"building", osm.Tags{{Key: "building", Value: "house"}}, BuildingWidth, BuildingColor},
		{"building=no", osm.Tags{{Key: "building", Value: "no"}, {Key: "highway", Value: "path"}}, WayWidth, WayColor},
		{"path", osm.Tags{{Key: "highway", Value: "path"}}, PathWidth, PathColor},
		{"steps", osm.Tags{{Key: "highway", Value: "steps"}}, PathWidth, StepsColor},
		{"track", osm.Tags{{Key: "highway", Value: "track"}}, ServiceRoadWidth, TrackColor},
		{"service", osm.Tags{{Key: "highway", Value: "service"}}, ServiceRoadWidth, White},
		{"residential", osm.Tags{{Key: "highway", Value: "residential"}}, MinorRoadWidth, White},
		{"primary link", osm.Tags{{Key: "highway", Value: "primary_link"}}, MajorRoadWidth, White},
		{"other highway", osm.Tags{{Key: "highway", Value: "bus_stop"}}, WayWidth, White},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WayStrokeWidth(tt.tags); got != tt.wantWidth {
				t.Errorf("WayStrokeWidth() = %v, want %v", got, tt.wantWidth)
			}
			if got := WayStrokeColor(tt.tags); got != tt.wantColor {
				t.Errorf("WayStrokeColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestSidewalksRelevant(t *testing.T) {
	if !SidewalksRelevant(osm.Tags{{Key: "highway", Value: "living_street"}}) {
		t.Error("living_street should carry sidewalks")
	}
	if SidewalksRelevant(osm.Tags{{Key: "highway", Value: "footway"}}) {
		t.Error("footway should not carry sidewalks")
	}
	if SidewalksRelevant(nil) {
		t.Error("untagged way should not carry sidewalks")
	}
}

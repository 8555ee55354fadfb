package edit

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestParseAttribute2D(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want Attribute2D
	}{
		{"no tags", nil, Attribute2D{Unknown, Unknown}},
		{"both", osm.Tags{{Key: "sidewalk", Value: "both"}}, Attribute2D{Yes, Yes}},
		{"left", osm.Tags{{Key: "sidewalk", Value: "left"}}, Attribute2D{Yes, No}},
		{"right", osm.Tags{{Key: "sidewalk", Value: "right"}}, Attribute2D{No, Yes}},
		{"none", osm.Tags{{Key: "sidewalk", Value: "none"}}, Attribute2D{No, No}},
		{"separate", osm.Tags{{Key: "sidewalk", Value: "separate"}}, Attribute2D{Separate, Separate}},
		{"plain yes is not a side", osm.Tags{{Key: "sidewalk", Value: "yes"}}, Attribute2D{Unknown, Unknown}},
		{
			"side keys override",
			osm.Tags{{Key: "sidewalk", Value: "both"}, {Key: "sidewalk:right", Value: "separate"}},
			Attribute2D{Yes, Separate},
		},
		{
			"both key wins",
			osm.Tags{{Key: "sidewalk:left", Value: "yes"}, {Key: "sidewalk:both", Value: "no"}},
			Attribute2D{No, No},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAttribute2D(tt.tags, "sidewalk"); got != tt.want {
				t.Errorf("ParseAttribute2D() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIntoTags(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute2D
		want osm.Tags
	}{
		{"equal sides collapse", Attribute2D{Yes, Yes}, osm.Tags{{Key: "sidewalk:both", Value: "yes"}}},
		{"different sides", Attribute2D{Yes, Separate}, osm.Tags{
			{Key: "sidewalk:left", Value: "yes"},
			{Key: "sidewalk:right", Value: "separate"},
		}},
		{"unknown left", Attribute2D{Unknown, No}, osm.Tags{{Key: "sidewalk:right", Value: "no"}}},
		{"unknown right", Attribute2D{No, Unknown}, osm.Tags{{Key: "sidewalk:left", Value: "no"}}},
		{"all unknown", Attribute2D{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.attr.IntoTags("sidewalk")
			if len(got) != len(tt.want) {
				t.Fatalf("IntoTags() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("IntoTags()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSetSidewalks(t *testing.T) {
	w := &osm.Way{
		ID:    7,
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}},
		Tags: osm.Tags{
			{Key: "highway", Value: "residential"},
			{Key: "sidewalk", Value: "both"},
			{Key: "sidewalk:left", Value: "yes"},
		},
	}

	c := SetSidewalks(w, Attribute2D{Left: Separate, Right: No})

	if c.Way == w {
		t.Fatal("SetSidewalks() must not reuse the input way")
	}
	if len(w.Tags) != 3 || w.Tags[1].Value != "both" {
		t.Errorf("input way was modified: %v", w.Tags)
	}

	want := osm.Tags{
		{Key: "highway", Value: "residential"},
		{Key: "sidewalk:left", Value: "separate"},
		{Key: "sidewalk:right", Value: "no"},
	}
	if len(c.Way.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", c.Way.Tags, want)
	}
	for i := range want {
		if c.Way.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %v, want %v", i, c.Way.Tags[i], want[i])
		}
	}

	if got := ParseAttribute2D(c.Way.Tags, SidewalkKey); got != (Attribute2D{Separate, No}) {
		t.Errorf("reparsed = %+v", got)
	}
}

func TestSetTag(t *testing.T) {
	w := &osm.Way{ID: 3, Tags: osm.Tags{{Key: "highway", Value: "service"}, {Key: "name", Value: "Old"}}}

	c := SetTag(w, "name", "New")
	if got := c.Way.Tags.Find("name"); got != "New" {
		t.Errorf("name = %q, want New", got)
	}
	if len(c.Way.Tags) != 2 {
		t.Errorf("tags = %v, want 2 tags", c.Way.Tags)
	}

	c = SetTag(w, "name", "")
	if c.Way.Tags.Find("name") != "" || len(c.Way.Tags) != 1 {
		t.Errorf("tags = %v, want name removed", c.Way.Tags)
	}
	if w.Tags.Find("name") != "Old" {
		t.Error("input way was modified")
	}
}

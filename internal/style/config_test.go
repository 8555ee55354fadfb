package style

import (
	"testing"

	"github.com/paulmach/osm"
)

func tags(kv ...string) osm.Tags {
	var t osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		t = append(t, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return t
}

func TestDefaultAreaRules(t *testing.T) {
	rules := DefaultAreaRules()

	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"building", tags("building", "yes"), true},
		{"landuse", tags("landuse", "grass"), true},
		{"playground", tags("playground", "sandpit"), true},
		{"highway", tags("highway", "residential"), false},
		{"area yes overrides", tags("highway", "pedestrian", "area", "yes"), true},
		{"area no overrides", tags("building", "yes", "area", "no"), false},
		{"other area value", tags("amenity", "parking", "area", "maybe"), true},
		{"no tags", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.IsArea(tt.tags); got != tt.want {
				t.Errorf("IsArea(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestParseConfigAreaRules(t *testing.T) {
	data := []byte(`
areas:
  include:
    building:
    natural: [wood, water, "scrub"]
  exclude:
    building: [roof]
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	rules := NewAreaRules(cfg)

	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"any building", tags("building", "house"), true},
		{"excluded roof", tags("building", "roof"), false},
		{"allowed natural", tags("natural", "water"), true},
		{"other natural", tags("natural", "coastline"), false},
		{"dropped default key", tags("leisure", "park"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.IsArea(tt.tags); got != tt.want {
				t.Errorf("IsArea(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestNewAreaRulesWithoutAreasSection(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if !NewAreaRules(cfg).IsArea(tags("building", "yes")) {
		t.Errorf("empty style should fall back to default allowlist")
	}
}

func TestParseConfigInvalid(t *testing.T) {
	if _, err := ParseConfig([]byte("areas: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

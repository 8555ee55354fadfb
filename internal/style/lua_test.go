package style

import (
	"testing"
)

func TestLuaClassifier(t *testing.T) {
	c := NewLuaClassifier(nil, nil)
	defer c.Close()

	code := `
		function is_area(tags)
			if tags.highway == "pedestrian" then
				return true
			end
			if tags.building == "roof" then
				return false
			end
			return nil
		end
	`
	if err := c.LoadString(code); err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	tests := []struct {
		name string
		kv   []string
		want bool
	}{
		{"script says yes", []string{"highway", "pedestrian"}, true},
		{"script says no", []string{"building", "roof"}, false},
		{"fallback yes", []string{"building", "yes"}, true},
		{"fallback no", []string{"highway", "primary"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsArea(tags(tt.kv...)); got != tt.want {
				t.Errorf("IsArea(%v) = %v, want %v", tt.kv, got, tt.want)
			}
		})
	}
}

func TestLuaClassifierRuntimeErrorFallsBack(t *testing.T) {
	c := NewLuaClassifier(nil, nil)
	defer c.Close()

	if err := c.LoadString(`function is_area(tags) error("boom") end`); err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if !c.IsArea(tags("landuse", "forest")) {
		t.Error("failing script should defer to fallback rules")
	}
	if c.IsArea(tags("highway", "service")) {
		t.Error("fallback should classify highway as line")
	}
}

func TestLuaClassifierMissingFunction(t *testing.T) {
	c := NewLuaClassifier(nil, nil)
	defer c.Close()

	if err := c.LoadString(`x = 1`); err == nil {
		t.Error("expected error when is_area is not defined")
	}
	if err := c.LoadString(`this is not lua`); err == nil {
		t.Error("expected error for invalid Lua")
	}
}

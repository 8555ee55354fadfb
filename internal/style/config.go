package style

import (
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"gopkg.in/yaml.v3"
)

// DefaultAreaKeys are the tag keys that turn a closed way into an area when
// no explicit area=* tag says otherwise
var DefaultAreaKeys = []string{"building", "landuse", "natural", "leisure", "amenity", "playground"}

// Config represents the style file
type Config struct {
	// Areas decides which closed ways are drawn filled
	Areas *FilterConfig `yaml:"areas,omitempty"`
}

// FilterConfig defines tag matching rules
type FilterConfig struct {
	// Include lists tag keys with optional allowed values
	// A key with no values matches any value
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude vetoes tags after include rules matched
	Exclude map[string][]string `yaml:"exclude,omitempty"`
}

// LoadConfig loads a style configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a style configuration from YAML
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in area allowlist
func DefaultConfig() *Config {
	include := make(map[string][]string, len(DefaultAreaKeys))
	for _, k := range DefaultAreaKeys {
		include[k] = nil
	}
	return &Config{Areas: &FilterConfig{Include: include}}
}

// Filter checks tags against a FilterConfig
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		return &Filter{cfg: &FilterConfig{}}
	}
	return &Filter{cfg: cfg}
}

// Match reports whether any include rule matches and no exclude rule does.
// An empty include list matches nothing.
func (f *Filter) Match(tags osm.Tags) bool {
	matched := false
	for _, t := range tags {
		if values, ok := f.cfg.Include[t.Key]; ok && valueAllowed(values, t.Value) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, t := range tags {
		if values, ok := f.cfg.Exclude[t.Key]; ok && valueAllowed(values, t.Value) {
			return false
		}
	}
	return true
}

// valueAllowed checks v against a value list; an empty list or "*"
// matches anything
func valueAllowed(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, allowed := range values {
		if allowed == v || allowed == "*" {
			return true
		}
	}
	return false
}

// AreaRules classifies tag sets as area or line. An explicit area=yes or
// area=no always wins over the key filter.
type AreaRules struct {
	filter *Filter
}

// NewAreaRules builds rules from a style config; a nil config or one without
// an areas section falls back to the default allowlist
func NewAreaRules(cfg *Config) *AreaRules {
	if cfg == nil || cfg.Areas == nil {
		cfg = DefaultConfig()
	}
	return &AreaRules{filter: NewFilter(cfg.Areas)}
}

// DefaultAreaRules returns the rules for the built-in allowlist
func DefaultAreaRules() *AreaRules {
	return NewAreaRules(nil)
}

// IsArea reports whether the tags describe a filled region
func (r *AreaRules) IsArea(tags osm.Tags) bool {
	switch tags.Find("area") {
	case "yes":
		return true
	case "no":
		return false
	}
	return r.filter.Match(tags)
}

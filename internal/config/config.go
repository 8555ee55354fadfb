package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Bound converts the box to an orb.Bound
func (b *BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Center returns the middle of the box
func (b *BBox) Center() orb.Point {
	return b.Bound().Center()
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// FillMode controls how areas are drawn
type FillMode string

const (
	FillWireframe FillMode = "wireframe"
	FillPartial   FillMode = "partial"
	FillFull      FillMode = "full"
)

// ParseFillMode validates a fill mode name
func ParseFillMode(s string) (FillMode, error) {
	switch m := FillMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FillWireframe, FillPartial, FillFull:
		return m, nil
	default:
		return "", fmt.Errorf("unknown fill mode: %s (wireframe, partial or full)", s)
	}
}

// Config holds the settings of an editor session
type Config struct {
	// Input settings: exactly one of InputFile, UseAPI, UseDB
	InputFile string
	UseAPI    bool
	UseDB     bool
	BBox      *BBox

	// View settings
	Zoom          float64
	ScreenWidth   float64
	ScreenHeight  float64
	MaxViewOffset float64 // pixels of drift before view membership is refreshed
	FillMode      FillMode

	// Classification
	StyleFile string // YAML area rules
	LuaScript string // optional is_area(tags) script

	// API settings
	APIServer     string
	APITimeout    time.Duration
	APIMaxRetries int
	APIToken      string

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Output
	ExportFile string

	// Logging and metrics
	Verbose         bool
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BBox:            &BBox{},
		Zoom:            18,
		ScreenWidth:     1280,
		ScreenHeight:    800,
		MaxViewOffset:   100,
		FillMode:        FillPartial,
		APIServer:       "osm",
		APITimeout:      60 * time.Second,
		APIMaxRetries:   3,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "public",
		ExportFile:      "paint_order.parquet",
		MetricsInterval: 30 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	sources := 0
	for _, set := range []bool{c.InputFile != "", c.UseAPI, c.UseDB} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one input is required: a file, --api or --db")
	}
	if (c.UseAPI || c.UseDB) && (c.BBox == nil || !c.BBox.IsSet) {
		return fmt.Errorf("--bbox is required when loading from the API or a database")
	}
	if c.Zoom < 0 || c.Zoom > 22 {
		return fmt.Errorf("zoom must be between 0 and 22")
	}
	if c.ScreenWidth < 1 || c.ScreenHeight < 1 {
		return fmt.Errorf("screen size must be positive")
	}
	if c.MaxViewOffset <= 0 {
		return fmt.Errorf("max view offset must be positive")
	}
	if _, err := ParseFillMode(string(c.FillMode)); err != nil {
		return err
	}
	return nil
}

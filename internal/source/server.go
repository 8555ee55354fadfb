package source

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Server is an OSM API endpoint
type Server struct {
	Name        string
	BaseURL     string // scheme and host, no trailing slash
	Description string
}

// Predefined API servers
var (
	ServerOpenStreetMap = &Server{
		Name:        "osm",
		BaseURL:     "https://www.openstreetmap.org",
		Description: "OpenStreetMap production API",
	}

	ServerOpenStreetMapDev = &Server{
		Name:        "dev",
		BaseURL:     "https://master.apis.dev.openstreetmap.org",
		Description: "OpenStreetMap development API",
	}
)

// ParseServer resolves a server name or URL
func ParseServer(s string) (*Server, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "osm", "openstreetmap", "production":
		return ServerOpenStreetMap, nil
	case "dev", "openstreetmap-dev", "development":
		return ServerOpenStreetMapDev, nil
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return &Server{
			Name:        "custom",
			BaseURL:     strings.TrimSuffix(s, "/"),
			Description: "Custom API server",
		}, nil
	}

	return nil, fmt.Errorf("unknown API server: %s (use osm, dev or a URL)", s)
}

// MapURL returns the URL of the map call for a bounding box
func (s *Server) MapURL(b orb.Bound) string {
	return fmt.Sprintf("%s/api/0.6/map?bbox=%s,%s,%s,%s", s.BaseURL,
		formatCoord(b.Min[0]), formatCoord(b.Min[1]),
		formatCoord(b.Max[0]), formatCoord(b.Max[1]))
}

// ChangesetCreateURL returns the URL for opening a changeset
func (s *Server) ChangesetCreateURL() string {
	return s.BaseURL + "/api/0.6/changeset/create"
}

// ChangesetCloseURL returns the URL for closing a changeset
func (s *Server) ChangesetCloseURL(id osm.ChangesetID) string {
	return fmt.Sprintf("%s/api/0.6/changeset/%d/close", s.BaseURL, id)
}

// formatCoord prints a coordinate at OSM precision
func formatCoord(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.7f", v), "0"), ".")
}

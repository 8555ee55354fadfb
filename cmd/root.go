package cmd

import (
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmview-go/internal/config"
	"github.com/wegman-software/osmview-go/internal/logger"
)

var (
	cfg      = config.DefaultConfig()
	bboxStr  string
	fillStr  string
	serverID string
)

var rootCmd = &cobra.Command{
	Use:   "osmview-go",
	Short: "Headless OpenStreetMap editor core",
	Long: `osmview-go loads OpenStreetMap nodes and ways into an in-memory store,
keeps the derived render caches of an editor view up to date while the view
pans and zooms, and records way edits as osmChange documents.

Features:
  - File (.osm, .osm.pbf), OSM API and osm2pgsql slim table sources
  - R-tree spatial index with drift-tolerant view membership
  - Dirty-flag cache graph with lazy recomputation
  - Area tessellation and paint ordering
  - Sidewalk and tag edits exported as osmChange`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfg.LogFile != "" {
			logger.InitWithFile(cfg.Verbose, cfg.LogFile)
		} else {
			logger.Init(cfg.Verbose)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging (e.g., 10s, 1m)")

	// Input flags
	rootCmd.PersistentFlags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box: minlon,minlat,maxlon,maxlat")
	rootCmd.PersistentFlags().BoolVar(&cfg.UseAPI, "api", false, "Load map data from the OSM API")
	rootCmd.PersistentFlags().BoolVar(&cfg.UseDB, "db", false, "Load map data from osm2pgsql slim tables")

	// View flags
	rootCmd.PersistentFlags().Float64VarP(&cfg.Zoom, "zoom", "z", cfg.Zoom, "View zoom level")
	rootCmd.PersistentFlags().Float64Var(&cfg.ScreenWidth, "width", cfg.ScreenWidth, "Screen width in pixels")
	rootCmd.PersistentFlags().Float64Var(&cfg.ScreenHeight, "height", cfg.ScreenHeight, "Screen height in pixels")
	rootCmd.PersistentFlags().Float64Var(&cfg.MaxViewOffset, "max-view-offset", cfg.MaxViewOffset, "Pixels the view may drift before view membership is refreshed")
	rootCmd.PersistentFlags().StringVar(&fillStr, "fill", string(cfg.FillMode), "Area fill mode: wireframe, partial or full")

	// Classification flags
	rootCmd.PersistentFlags().StringVarP(&cfg.StyleFile, "style", "S", "", "Style YAML file with area rules")
	rootCmd.PersistentFlags().StringVar(&cfg.LuaScript, "lua", "", "Lua script defining is_area(tags)")

	// API flags
	rootCmd.PersistentFlags().StringVar(&serverID, "server", cfg.APIServer, "OSM API server: osm, dev or a base URL")
	rootCmd.PersistentFlags().DurationVar(&cfg.APITimeout, "api-timeout", cfg.APITimeout, "OSM API request timeout")
	rootCmd.PersistentFlags().IntVar(&cfg.APIMaxRetries, "api-retries", cfg.APIMaxRetries, "Retries for failed OSM API requests")
	rootCmd.PersistentFlags().StringVar(&cfg.APIToken, "token", os.Getenv("OSM_TOKEN"), "OAuth2 bearer token for changeset calls (default $OSM_TOKEN)")

	// Database flags
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
}

// finishConfig parses the string flags into cfg and validates it. An
// input file given as argument becomes the source.
func finishConfig(args []string) error {
	if len(args) > 0 {
		cfg.InputFile = args[0]
	}
	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			return err
		}
		cfg.BBox = bbox
	}
	fill, err := config.ParseFillMode(fillStr)
	if err != nil {
		return err
	}
	cfg.FillMode = fill
	cfg.APIServer = serverID
	return cfg.Validate()
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmview-go/internal/export"
	"github.com/wegman-software/osmview-go/internal/logger"
)

var exportBatchSize int

var exportCmd = &cobra.Command{
	Use:   "export [input.osm|input.osm.pbf]",
	Short: "Write the paint order of one view to Parquet",
	Long: `Load map data, run a single frame and write the ways of the view in
paint order to a Parquet file: areas largest first, then line ways.

Columns: paint_order, way_id, kind (area or line), area (signed screen
area), node_count, tags (JSON).`,
	Args: cobra.MaximumNArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&cfg.ExportFile, "output", "o", cfg.ExportFile, "Parquet output file")
	exportCmd.Flags().IntVar(&exportBatchSize, "batch-size", export.DefaultBatchSize, "Rows per Parquet record batch")
}

func runExport(cmd *cobra.Command, args []string) {
	log := logger.Get()

	if err := finishConfig(args); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx := context.Background()
	a, err := startApp(ctx)
	if err != nil {
		exitWithError("failed to start", err)
	}
	defer a.Close()

	if _, err := a.load(ctx); err != nil {
		exitWithError("failed to load map data", err)
	}

	start := time.Now()
	rows, err := export.WritePaintOrder(a.session.Bank(), cfg.ExportFile, exportBatchSize)
	if err != nil {
		exitWithError("export failed", err)
	}

	log.Info("Paint order exported",
		zap.String("file", cfg.ExportFile),
		zap.Int("rows", rows),
		zap.Int("areas", len(a.session.Bank().AreasInPaintOrder())),
		zap.Duration("took", time.Since(start)))
	fmt.Printf("Wrote %d rows to %s\n", rows, cfg.ExportFile)
}

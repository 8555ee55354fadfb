package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmview-go/internal/editor"
	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/render"
)

var (
	frameCount int
	panDX      float64
	panDY      float64
	zoomStep   float64
	sidewalks  bool
	hoverStr   string
)

var viewCmd = &cobra.Command{
	Use:   "view [input.osm|input.osm.pbf]",
	Short: "Run the editor frame loop over a panning view",
	Long: `Load map data and run the editor frame loop headless.

Each frame pans the view by --pan-dx/--pan-dy pixels and optionally zooms by
--zoom-step, refreshes view membership when the view drifted too far,
recomputes the dirty caches and builds the draw list. Per-frame results are
logged at debug level and a summary with per-cache timings at the end.

Examples:
  # Pan east over a local extract for 120 frames
  osmview-go view monaco.osm.pbf --frames 120 --pan-dx 5

  # Load from the OSM API and show sidewalks
  osmview-go view --api --bbox 7.41,43.72,7.43,43.74 --sidewalks`,
	Args: cobra.MaximumNArgs(1),
	Run:  runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().IntVarP(&frameCount, "frames", "n", 60, "Number of frames to run")
	viewCmd.Flags().Float64Var(&panDX, "pan-dx", 4, "Horizontal pan per frame in pixels")
	viewCmd.Flags().Float64Var(&panDY, "pan-dy", 0, "Vertical pan per frame in pixels")
	viewCmd.Flags().Float64Var(&zoomStep, "zoom-step", 0, "Zoom change per frame")
	viewCmd.Flags().BoolVar(&sidewalks, "sidewalks", false, "Draw sidewalk overlays")
	viewCmd.Flags().StringVar(&hoverStr, "hover", "", "Report elements under screen point x,y after the last frame")
}

func runView(cmd *cobra.Command, args []string) {
	log := logger.Get()

	if err := finishConfig(args); err != nil {
		exitWithError("invalid configuration", err)
	}
	var hover *orb.Point
	if hoverStr != "" {
		p, err := parsePoint(hoverStr)
		if err != nil {
			exitWithError("invalid --hover", err)
		}
		hover = &p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx)
	if err != nil {
		exitWithError("failed to start", err)
	}
	defer a.Close()

	if _, err := a.load(ctx); err != nil {
		exitWithError("failed to load map data", err)
	}

	visual := render.VisualDefault
	if sidewalks {
		visual = render.VisualSidewalks
	}

	center := a.center
	var (
		dl        *render.DrawList
		refreshes int
		skipped   int
		start     = time.Now()
	)
	for i := 0; i < frameCount; i++ {
		if ctx.Err() != nil {
			log.Info("Interrupted", zap.Int("frame", i))
			break
		}

		frame := a.frame(center)
		frameStart := time.Now()
		res := a.session.Update(frame)
		dl = render.Build(a.session.Bank(), render.Options{
			Zoom:          frame.Zoom,
			FillMode:      frame.FillMode,
			Visualization: visual,
		})
		took := time.Since(frameStart)
		a.frames.RecordFrame(took)

		if res.ViewRefreshed {
			refreshes++
		}
		skipped += dl.Skipped
		for _, err := range res.Errors {
			log.Warn("Worker request failed", zap.Error(err))
		}

		log.Debug("Frame",
			zap.Int("frame", i),
			zap.Bool("view_refreshed", res.ViewRefreshed),
			zap.Stringer("rebuilt", res.Rebuilt),
			zap.Int("shapes", len(dl.Shapes)),
			zap.Duration("took", took))

		center = nextCenter(frame, panDX, panDY)
		if zoomStep != 0 {
			cfg.Zoom = clampZoom(cfg.Zoom + zoomStep)
		}
	}

	bank := a.session.Bank()
	log.Info("View loop finished",
		zap.Int("frames", a.frames.Frames()),
		zap.Int("view_refreshes", refreshes),
		zap.Int("view_nodes", len(bank.ViewNodes())),
		zap.Int("view_ways", len(bank.ViewWays())),
		zap.Int("skipped_areas", skipped),
		zap.Duration("took", time.Since(start)))
	log.Info("Frame stats", a.frames.Fields()...)

	if dl != nil {
		fmt.Printf("Frames: %d, view refreshes: %d, shapes in last frame: %d\n",
			a.frames.Frames(), refreshes, len(dl.Shapes))
		if hover != nil {
			for _, id := range dl.Hovered(*hover) {
				el := bank.Element(id)
				fmt.Printf("  %s %d %s\n", el.TypeName(), id.Ref, el.Name())
			}
		}
	}
}

// nextCenter moves the view center by dx, dy screen pixels
func nextCenter(frame editor.FrameContext, dx, dy float64) orb.Point {
	size := frame.Viewport.Size
	return frame.Projector.Unproject(orb.Point{size[0]/2 + dx, size[1]/2 + dy})
}

func clampZoom(z float64) float64 {
	return max(0, min(22, z))
}

func parsePoint(s string) (orb.Point, error) {
	var p orb.Point
	if _, err := fmt.Sscanf(s, "%g,%g", &p[0], &p[1]); err != nil {
		return p, fmt.Errorf("expected x,y: %w", err)
	}
	return p, nil
}

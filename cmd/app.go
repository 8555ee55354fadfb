package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/editor"
	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/metrics"
	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/source"
	"github.com/wegman-software/osmview-go/internal/style"
	"github.com/wegman-software/osmview-go/internal/worker"
)

// frameInterval paces frames while waiting for worker responses
const frameInterval = 10 * time.Millisecond

// app is a session wired to its worker, metrics collector and sources
type app struct {
	session *editor.Session
	handle  *worker.Handle
	frames  *metrics.FrameStats
	center  orb.Point
	db      *source.Postgres

	group   *errgroup.Group
	cancel  context.CancelFunc
	cleanup []func()
}

// startApp opens the configured source and starts the worker and the
// metrics collector. Close must be called when done.
func startApp(ctx context.Context) (*app, error) {
	log := logger.Get()
	a := &app{frames: metrics.NewFrameStats()}

	classifier, err := a.loadClassifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	maps, api, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	gctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)
	a.group, a.cancel = g, cancel

	w, h := worker.New(maps, api, cfg.APIToken, logger.Named("worker"))
	a.handle = h
	g.Go(func() error { return w.Run(gctx) })

	collector := metrics.NewCollector(cfg.MetricsInterval, a.frames, logger.Named("metrics"))
	g.Go(func() error { return collector.Start(gctx) })

	a.session = editor.NewSession(h, editor.Options{
		MaxViewOffset: cfg.MaxViewOffset,
		Classifier:    classifier,
		Observer:      a.frames,
		Logger:        logger.Named("editor"),
	})

	log.Debug("Session started",
		zap.Float64("zoom", cfg.Zoom),
		zap.String("fill", string(cfg.FillMode)),
		zap.Float64("max_view_offset", cfg.MaxViewOffset))

	return a, nil
}

func (a *app) loadClassifier() (cache.AreaClassifier, error) {
	rules := style.DefaultAreaRules()
	if cfg.StyleFile != "" {
		sc, err := style.LoadConfig(cfg.StyleFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load style: %w", err)
		}
		rules = style.NewAreaRules(sc)
	}
	if cfg.LuaScript == "" {
		return rules, nil
	}

	lc := style.NewLuaClassifier(rules, logger.Named("lua"))
	a.cleanup = append(a.cleanup, lc.Close)
	if err := lc.LoadFile(cfg.LuaScript); err != nil {
		return nil, fmt.Errorf("failed to load Lua script: %w", err)
	}
	return lc, nil
}

// openSource returns the map source of the configured input and the API
// client for changeset calls. It also picks the initial view center.
func (a *app) openSource(ctx context.Context) (worker.MapSource, *source.API, error) {
	log := logger.Get()

	server, err := source.ParseServer(cfg.APIServer)
	if err != nil {
		return nil, nil, err
	}
	api := source.NewAPI(server, cfg.APITimeout, cfg.APIMaxRetries)

	if cfg.BBox != nil && cfg.BBox.IsSet {
		a.center = cfg.BBox.Center()
	}

	switch {
	case cfg.UseAPI:
		log.Info("Loading from OSM API", zap.String("server", server.BaseURL))
		return api, api, nil

	case cfg.UseDB:
		db, err := source.NewPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		a.cleanup = append(a.cleanup, db.Close)
		log.Info("Loading from database",
			zap.String("db", cfg.DBName),
			zap.String("schema", cfg.DBSchema))
		return db, api, nil

	default:
		var bound *orb.Bound
		if cfg.BBox != nil && cfg.BBox.IsSet {
			b := cfg.BBox.Bound()
			bound = &b
		}

		start := time.Now()
		batch, err := source.ReadFile(ctx, cfg.InputFile, bound)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Input file read",
			zap.String("file", cfg.InputFile),
			zap.Int("nodes", len(batch.Nodes)),
			zap.Int("ways", len(batch.Ways)),
			zap.Duration("took", time.Since(start)))

		if bound == nil {
			a.center = batchCenter(batch)
		}
		return worker.Static{Batch: batch}, api, nil
	}
}

// batchCenter returns the center of the bound of all nodes
func batchCenter(b *osmdata.Batch) orb.Point {
	if len(b.Nodes) == 0 {
		return orb.Point{}
	}
	bound := osmdata.NodePoint(b.Nodes[0]).Bound()
	for _, n := range b.Nodes[1:] {
		bound = bound.Extend(osmdata.NodePoint(n))
	}
	return bound.Center()
}

// frame builds the frame context for a view center from the config
func (a *app) frame(center orb.Point) editor.FrameContext {
	return editor.NewFrame(center, cfg.Zoom, cfg.ScreenWidth, cfg.ScreenHeight, cfg.FillMode)
}

// loadBound returns the area requested from the source on startup
func (a *app) loadBound() orb.Bound {
	if cfg.BBox != nil && cfg.BBox.IsSet {
		return cfg.BBox.Bound()
	}
	return a.frame(a.center).Viewport.Bound
}

// load requests the map data and runs frames until the worker answers
func (a *app) load(ctx context.Context) (editor.FrameResult, error) {
	a.session.Request(worker.GetMap{Bound: a.loadBound()})
	res, err := a.await(ctx, a.frame(a.center))
	if err != nil {
		return res, err
	}
	if len(res.Errors) > 0 {
		return res, fmt.Errorf("failed to load map data: %w", errors.Join(res.Errors...))
	}
	return res, nil
}

// await runs frames until one applies a worker response
func (a *app) await(ctx context.Context, frame editor.FrameContext) (editor.FrameResult, error) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		res := a.session.Update(frame)
		a.frames.RecordFrame(time.Since(start))
		if res.Applied > 0 {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the worker and the collector and releases sources
func (a *app) Close() {
	if a.handle != nil {
		a.handle.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.group != nil {
		if err := a.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Get().Warn("Background task failed", zap.Error(err))
		}
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmview-go/internal/editor"
	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/metrics"
	"github.com/wegman-software/osmview-go/internal/source"
	"github.com/wegman-software/osmview-go/internal/worker"
)

var changesetComment string

var changesetCmd = &cobra.Command{
	Use:   "changeset",
	Short: "Open and close changesets on the OSM API",
	Long: `Open and close changesets on the selected OSM API server. The bearer
token comes from --token or $OSM_TOKEN.

Examples:
  # Open a changeset on the development server
  osmview-go changeset open --server dev --comment "Add sidewalks"

  # Close it again
  osmview-go changeset close 1234 --server dev`,
}

var changesetOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Create a changeset and print its id",
	Args:  cobra.NoArgs,
	Run:   runChangesetOpen,
}

var changesetCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a changeset",
	Args:  cobra.ExactArgs(1),
	Run:   runChangesetClose,
}

func init() {
	rootCmd.AddCommand(changesetCmd)
	changesetCmd.AddCommand(changesetOpenCmd)
	changesetCmd.AddCommand(changesetCloseCmd)

	changesetOpenCmd.Flags().StringVarP(&changesetComment, "comment", "m", "", "Changeset comment")
}

// startAPIApp starts a worker that only talks to the API. Map requests
// are not served.
func startAPIApp(ctx context.Context) (*app, *source.Server, error) {
	if cfg.APIToken == "" {
		return nil, nil, errors.New("a token is required (--token or $OSM_TOKEN)")
	}
	server, err := source.ParseServer(serverID)
	if err != nil {
		return nil, nil, err
	}
	api := source.NewAPI(source.ServerOpenStreetMap, cfg.APITimeout, cfg.APIMaxRetries)

	gctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)
	w, h := worker.New(worker.Static{}, api, cfg.APIToken, logger.Named("worker"))
	g.Go(func() error { return w.Run(gctx) })

	a := &app{
		handle: h,
		frames: metrics.NewFrameStats(),
		group:  g,
		cancel: cancel,
		session: editor.NewSession(h, editor.Options{
			Logger: logger.Named("editor"),
		}),
	}
	// the worker switches servers before serving changeset calls
	a.session.Request(worker.SetTargetServer{Server: server})
	return a, server, nil
}

// awaitAll runs frames until n worker responses were applied
func (a *app) awaitAll(ctx context.Context, n int) error {
	var errs []error
	for applied := 0; applied < n; {
		res, err := a.await(ctx, a.frame(a.center))
		if err != nil {
			return err
		}
		applied += res.Applied
		errs = append(errs, res.Errors...)
	}
	return errors.Join(errs...)
}

func runChangesetOpen(cmd *cobra.Command, args []string) {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, server, err := startAPIApp(ctx)
	if err != nil {
		exitWithError("failed to start", err)
	}
	defer a.Close()

	tags := osm.Tags{{Key: "created_by", Value: "osmview-go"}}
	if changesetComment != "" {
		tags = append(tags, osm.Tag{Key: "comment", Value: changesetComment})
	}
	a.session.Request(worker.CreateChangeset{Tags: tags})

	if err := a.awaitAll(ctx, 2); err != nil {
		exitWithError("failed to create changeset", err)
	}

	id := a.session.Changeset()
	log.Info("Changeset opened",
		zap.String("server", a.session.Server()),
		zap.Int64("changeset", int64(id)))
	fmt.Printf("%d\n", id)
	fmt.Printf("%s/changeset/%d\n", server.BaseURL, id)
}

func runChangesetClose(cmd *cobra.Command, args []string) {
	log := logger.Get()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		exitWithError("invalid changeset id "+args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, _, err := startAPIApp(ctx)
	if err != nil {
		exitWithError("failed to start", err)
	}
	defer a.Close()

	a.session.Request(worker.CloseChangeset{ID: osm.ChangesetID(id)})
	if err := a.awaitAll(ctx, 2); err != nil {
		exitWithError("failed to close changeset", err)
	}

	log.Info("Changeset closed",
		zap.String("server", a.session.Server()),
		zap.Int64("changeset", id))
	fmt.Printf("Closed changeset %d\n", id)
}

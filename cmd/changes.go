package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/edit"
	"github.com/wegman-software/osmview-go/internal/editor"
	"github.com/wegman-software/osmview-go/internal/expire"
	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/osmchange"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

var (
	editWays      []int64
	setTags       []string
	sidewalkLeft  string
	sidewalkRight string
	replayFiles   []string
	changesetID   int64
	changesOut    string
	saveToDB      bool
	expireOutput  string
	expireMinZoom uint32
	expireMaxZoom uint32
)

var changesCmd = &cobra.Command{
	Use:   "changes [input.osm|input.osm.pbf]",
	Short: "Edit ways and print the resulting osmChange",
	Long: `Load map data, apply edits to ways and print the osmChange document
holding the last state of every edited way.

Edits are applied in this order:
  1. ways from --replay osmChange files (create and modify blocks)
  2. --sidewalk-left/--sidewalk-right on every --way
  3. --set key=value on every --way (an empty value removes the key)

Examples:
  # Mark sidewalks on both sides of a road
  osmview-go changes monaco.osm.pbf --way 4097656 --sidewalk-left yes --sidewalk-right yes

  # Tag a way and stamp the output for changeset 1234
  osmview-go changes --db --bbox 7.41,43.72,7.43,43.74 --way 4097656 --set surface=asphalt --changeset 1234

  # Also list the tiles touched by the edits
  osmview-go changes monaco.osm.pbf --way 4097656 --set lit=yes --expire-output expire.txt`,
	Args: cobra.MaximumNArgs(1),
	Run:  runChanges,
}

func init() {
	rootCmd.AddCommand(changesCmd)

	changesCmd.Flags().Int64SliceVar(&editWays, "way", nil, "Way ids to edit")
	changesCmd.Flags().StringArrayVar(&setTags, "set", nil, "Tag to set as key=value (repeatable)")
	changesCmd.Flags().StringVar(&sidewalkLeft, "sidewalk-left", "", "Left sidewalk: yes, no or separate")
	changesCmd.Flags().StringVar(&sidewalkRight, "sidewalk-right", "", "Right sidewalk: yes, no or separate")
	changesCmd.Flags().StringArrayVar(&replayFiles, "replay", nil, "osmChange file to replay (.osc or .osc.gz, repeatable)")
	changesCmd.Flags().Int64Var(&changesetID, "changeset", 0, "Changeset id to stamp on the output")
	changesCmd.Flags().StringVarP(&changesOut, "out", "o", "", "Write the osmChange to a file instead of stdout")
	changesCmd.Flags().BoolVar(&saveToDB, "save", false, "Write edited ways back to the slim tables (requires --db)")
	changesCmd.Flags().StringVar(&expireOutput, "expire-output", "", "Write tiles touched by edited ways to this file")
	changesCmd.Flags().Uint32Var(&expireMinZoom, "expire-min-zoom", 14, "Minimum zoom for expired tiles")
	changesCmd.Flags().Uint32Var(&expireMaxZoom, "expire-max-zoom", 18, "Maximum zoom for expired tiles")
}

// tagEdit is one parsed --set flag
type tagEdit struct {
	key, value string
}

func parseTagEdits(flags []string) ([]tagEdit, error) {
	edits := make([]tagEdit, 0, len(flags))
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", f)
		}
		edits = append(edits, tagEdit{key: k, value: strings.TrimSpace(v)})
	}
	return edits, nil
}

func parseSide(flag, s string) (edit.TagValue, error) {
	if s == "" {
		return edit.Unknown, nil
	}
	v := edit.ParseTagValue(strings.ToLower(strings.TrimSpace(s)))
	if v == edit.Unknown {
		return v, fmt.Errorf("invalid --%s %q: expected yes, no or separate", flag, s)
	}
	return v, nil
}

// wayEdits returns the changes for one way; the sides and tags are
// applied on top of each other
func wayEdits(w *osm.Way, left, right edit.TagValue, tags []tagEdit) []cache.Change {
	var out []cache.Change
	if left != edit.Unknown || right != edit.Unknown {
		attr := edit.ParseAttribute2D(w.Tags, edit.SidewalkKey)
		if left != edit.Unknown {
			attr.Left = left
		}
		if right != edit.Unknown {
			attr.Right = right
		}
		c := edit.SetSidewalks(w, attr)
		out = append(out, c)
		w = c.Way
	}
	for _, t := range tags {
		c := edit.SetTag(w, t.key, t.value)
		out = append(out, c)
		w = c.Way
	}
	return out
}

func runChanges(cmd *cobra.Command, args []string) {
	log := logger.Get()

	if err := finishConfig(args); err != nil {
		exitWithError("invalid configuration", err)
	}
	if saveToDB && !cfg.UseDB {
		exitWithError("--save requires --db", nil)
	}
	tags, err := parseTagEdits(setTags)
	if err != nil {
		exitWithError("invalid tag edit", err)
	}
	left, err := parseSide("sidewalk-left", sidewalkLeft)
	if err != nil {
		exitWithError("invalid sidewalk edit", err)
	}
	right, err := parseSide("sidewalk-right", sidewalkRight)
	if err != nil {
		exitWithError("invalid sidewalk edit", err)
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
	s := a.session

	for _, path := range replayFiles {
		applied, err := replay(ctx, s, path)
		if err != nil {
			exitWithError("failed to replay "+path, err)
		}
		log.Info("Replayed osmChange", zap.String("file", path), zap.Int("ways", applied))
	}

	store := s.Bank().Store()
	for _, id := range editWays {
		w, ok := store.Ways[osm.WayID(id)]
		if !ok {
			log.Warn("Way not loaded, skipping", zap.Int64("way", id))
			continue
		}
		for _, c := range wayEdits(w, left, right, tags) {
			s.ApplyChange(c)
		}
	}

	res := s.Update(a.frame(a.center))
	log.Debug("Caches refreshed after edits", zap.Stringer("rebuilt", res.Rebuilt))

	changes := s.Bank().Changes()
	doc := osmchange.Build(changes)
	if changesetID > 0 {
		osmchange.PrepareUpload(doc, osm.ChangesetID(changesetID))
	}
	log.Info("Changes collected",
		zap.Int("log_entries", changes.Len()),
		zap.Int("ways", len(changes.LatestWays())))

	if saveToDB && !osmchange.IsEmpty(doc) {
		if err := a.db.SaveWays(ctx, changes.LatestWays()); err != nil {
			exitWithError("failed to save ways", err)
		}
		log.Info("Edited ways saved", zap.String("db", cfg.DBName))
	}

	if expireOutput != "" {
		tracker := expire.NewTracker(maptile.Zoom(expireMinZoom), maptile.Zoom(expireMaxZoom))
		expireWays(tracker, store.Nodes, changes.LatestWays())
		if err := tracker.WriteToFile(expireOutput, logger.Named("expire")); err != nil {
			exitWithError("failed to write expire tiles", err)
		}
	}

	data, err := osmchange.Marshal(doc)
	if err != nil {
		exitWithError("failed to render osmChange", err)
	}
	if changesOut == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(changesOut, data, 0o644); err != nil {
		exitWithError("failed to write osmChange", err)
	}
	fmt.Printf("Wrote %d ways to %s\n", len(changes.LatestWays()), changesOut)
}

// replay applies the created and modified ways of an osmChange file that
// are present in the store
func replay(ctx context.Context, s *editor.Session, path string) (int, error) {
	p := osmchange.NewParser()
	entries, err := osmchange.Collect(p.ParseFile(ctx, path))
	if err != nil {
		return 0, err
	}

	store := s.Bank().Store()
	applied := 0
	for _, c := range osmchange.WayChanges(entries) {
		if _, ok := store.Ways[c.Way.ID]; !ok || !nodesLoaded(store.Nodes, c.Way) {
			logger.Get().Debug("Replayed way not loaded, skipping", zap.Int64("way", int64(c.Way.ID)))
			continue
		}
		s.ApplyChange(c)
		applied++
	}
	return applied, nil
}

// expireWays marks the tiles covered by each way's nodes
func expireWays(t *expire.Tracker, nodes map[osm.NodeID]*osm.Node, ways []*osm.Way) {
	for _, w := range ways {
		points := make([]orb.Point, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			if n, ok := nodes[wn.ID]; ok {
				points = append(points, osmdata.NodePoint(n))
			}
		}
		t.ExpirePoints(points)
	}
}

func nodesLoaded(nodes map[osm.NodeID]*osm.Node, w *osm.Way) bool {
	for _, wn := range w.Nodes {
		if _, ok := nodes[wn.ID]; !ok {
			return false
		}
	}
	return true
}

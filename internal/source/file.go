package source

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// objectScanner is what osmxml and osmpbf scanners have in common
type objectScanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// ReadFile loads nodes and ways from an .osm or .osm.pbf file. When bound
// is non-nil only nodes inside it, ways touching it and the nodes those
// ways need are kept. Ways referencing nodes absent from the file are
// dropped.
func ReadFile(ctx context.Context, path string, bound *orb.Bound) (*osmdata.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	var scanner objectScanner
	if strings.HasSuffix(path, ".pbf") {
		s := osmpbf.New(ctx, f, runtime.NumCPU())
		s.SkipRelations = true
		scanner = s
	} else {
		scanner = osmxml.New(ctx, f)
	}
	defer scanner.Close()

	return readObjects(scanner, bound)
}

// ReadXML loads nodes and ways from an OSM XML stream
func ReadXML(ctx context.Context, r io.Reader, bound *orb.Bound) (*osmdata.Batch, error) {
	scanner := osmxml.New(ctx, r)
	defer scanner.Close()
	return readObjects(scanner, bound)
}

func readObjects(scanner objectScanner, bound *orb.Bound) (*osmdata.Batch, error) {
	log := logger.Get()

	nodes := make(map[osm.NodeID]*osm.Node)
	var ways osm.Ways
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			nodes[o.ID] = o
		case *osm.Way:
			ways = append(ways, o)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to scan input: %w", err)
	}

	batch := &osmdata.Batch{}
	keep := make(map[osm.NodeID]bool)
	dropped := 0

	for _, w := range ways {
		complete := true
		touches := bound == nil
		for _, wn := range w.Nodes {
			n, ok := nodes[wn.ID]
			if !ok {
				complete = false
				break
			}
			if !touches && bound.Contains(osmdata.NodePoint(n)) {
				touches = true
			}
		}
		if !complete {
			dropped++
			continue
		}
		if !touches {
			continue
		}
		for _, wn := range w.Nodes {
			keep[wn.ID] = true
		}
		batch.Ways = append(batch.Ways, w)
	}

	for id, n := range nodes {
		if keep[id] || bound == nil || bound.Contains(osmdata.NodePoint(n)) {
			batch.Nodes = append(batch.Nodes, n)
		}
	}

	slices.SortFunc(batch.Nodes, func(a, b *osm.Node) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if dropped > 0 {
		log.Warn("Dropped ways with missing nodes", zap.Int("ways", dropped))
	}
	log.Info("Input loaded",
		zap.Int("nodes", len(batch.Nodes)),
		zap.Int("ways", len(batch.Ways)))

	return batch, nil
}

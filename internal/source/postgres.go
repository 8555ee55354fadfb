package source

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/config"
	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

// Postgres reads features from the middle tables of an osm2pgsql slim
// import: planet_osm_nodes (coordinates scaled by 10^7, JSONB tags) and
// planet_osm_ways (bigint[] node list, JSONB tags)
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres connects to the database named in cfg
func NewPostgres(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Postgres{pool: pool, schema: cfg.DBSchema}, nil
}

// Close closes connections
func (p *Postgres) Close() {
	p.pool.Close()
}

// FetchMap loads nodes inside b, the ways referencing them and every
// further node those ways need
func (p *Postgres) FetchMap(ctx context.Context, b orb.Bound) (*osmdata.Batch, error) {
	log := logger.Get()

	nodes, err := p.queryNodes(ctx,
		fmt.Sprintf(`SELECT id, lat, lon, tags FROM %s.planet_osm_nodes
			WHERE lon BETWEEN $1 AND $2 AND lat BETWEEN $3 AND $4`, p.schema),
		osmdata.Quantize(b.Min[0]), osmdata.Quantize(b.Max[0]),
		osmdata.Quantize(b.Min[1]), osmdata.Quantize(b.Max[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	have := make(map[osm.NodeID]bool, len(nodes))
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		have[n.ID] = true
		ids = append(ids, int64(n.ID))
	}

	ways, err := p.queryWays(ctx,
		fmt.Sprintf("SELECT id, nodes, tags FROM %s.planet_osm_ways WHERE nodes && $1::bigint[]", p.schema),
		ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}

	var missing []int64
	for _, w := range ways {
		for _, wn := range w.Nodes {
			if !have[wn.ID] {
				have[wn.ID] = true
				missing = append(missing, int64(wn.ID))
			}
		}
	}

	if len(missing) > 0 {
		extra, err := p.queryNodes(ctx,
			fmt.Sprintf("SELECT id, lat, lon, tags FROM %s.planet_osm_nodes WHERE id = ANY($1)", p.schema),
			missing)
		if err != nil {
			return nil, fmt.Errorf("failed to query way nodes: %w", err)
		}
		nodes = append(nodes, extra...)
	}

	ways, dropped := completeWays(nodes, ways)

	log.Debug("Loaded features from middle tables",
		zap.Int("nodes", len(nodes)),
		zap.Int("ways", len(ways)),
		zap.Int("outside_nodes", len(missing)),
		zap.Int("dropped_ways", dropped))

	return &osmdata.Batch{Nodes: nodes, Ways: ways}, nil
}

// completeWays keeps the ways whose nodes were all loaded
func completeWays(nodes osm.Nodes, ways osm.Ways) (osm.Ways, int) {
	have := make(map[osm.NodeID]bool, len(nodes))
	for _, n := range nodes {
		have[n.ID] = true
	}
	kept := ways[:0]
	for _, w := range ways {
		if !slices.ContainsFunc(w.Nodes, func(wn osm.WayNode) bool { return !have[wn.ID] }) {
			kept = append(kept, w)
		}
	}
	return kept, len(ways) - len(kept)
}

// SaveWays writes edited ways back into planet_osm_ways
func (p *Postgres) SaveWays(ctx context.Context, ways []*osm.Way) error {
	batch := &pgx.Batch{}
	for _, w := range ways {
		refs := make([]int64, len(w.Nodes))
		for i, wn := range w.Nodes {
			refs[i] = int64(wn.ID)
		}
		batch.Queue(
			fmt.Sprintf(`INSERT INTO %s.planet_osm_ways (id, nodes, tags) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET nodes = EXCLUDED.nodes, tags = EXCLUDED.tags`, p.schema),
			int64(w.ID), refs, TagsToJSON(w.Tags))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range ways {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save way: %w", err)
		}
	}
	return nil
}

func (p *Postgres) queryNodes(ctx context.Context, sql string, args ...any) (osm.Nodes, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes osm.Nodes
	for rows.Next() {
		var id int64
		var lat, lon int32
		var tagsJSON []byte
		if err := rows.Scan(&id, &lat, &lon, &tagsJSON); err != nil {
			return nil, err
		}
		tags, err := TagsFromJSON(tagsJSON)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		nodes = append(nodes, &osm.Node{
			ID:      osm.NodeID(id),
			Lat:     unscale(lat),
			Lon:     unscale(lon),
			Tags:    tags,
			Visible: true,
		})
	}
	return nodes, rows.Err()
}

func (p *Postgres) queryWays(ctx context.Context, sql string, args ...any) (osm.Ways, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ways osm.Ways
	for rows.Next() {
		var id int64
		var refs []int64
		var tagsJSON []byte
		if err := rows.Scan(&id, &refs, &tagsJSON); err != nil {
			return nil, err
		}
		tags, err := TagsFromJSON(tagsJSON)
		if err != nil {
			return nil, fmt.Errorf("way %d: %w", id, err)
		}
		w := &osm.Way{ID: osm.WayID(id), Tags: tags, Visible: true}
		w.Nodes = make(osm.WayNodes, len(refs))
		for i, ref := range refs {
			w.Nodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
		}
		ways = append(ways, w)
	}
	return ways, rows.Err()
}

// unscale converts a scaled integer coordinate back to degrees
func unscale(scaled int32) float64 {
	return float64(scaled) / 1e7
}

// TagsFromJSON decodes a JSONB tag object into key-sorted tags
func TagsFromJSON(data []byte) (osm.Tags, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid tags: %w", err)
	}
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	slices.SortFunc(tags, func(a, b osm.Tag) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return tags, nil
}

// TagsToJSON encodes tags as a JSON object; empty tags become NULL
func TagsToJSON(tags osm.Tags) []byte {
	if len(tags) == 0 {
		return nil
	}
	data, _ := json.Marshal(tags.Map())
	return data
}

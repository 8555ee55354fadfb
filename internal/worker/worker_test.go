package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/source"
)

func testBatch() *osmdata.Batch {
	return &osmdata.Batch{
		Nodes: osm.Nodes{
			{ID: 1, Lat: 0.5, Lon: 0.5},
			{ID: 2, Lat: 0.5, Lon: 3},
			{ID: 3, Lat: 5, Lon: 5},
		},
		Ways: osm.Ways{
			{ID: 10, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}},
			{ID: 11, Nodes: osm.WayNodes{{ID: 2}, {ID: 3}}},
		},
	}
}

type failingSource struct{}

func (failingSource) FetchMap(ctx context.Context, b orb.Bound) (*osmdata.Batch, error) {
	return nil, errors.New("connection refused")
}

func startWorker(t *testing.T, maps MapSource, api *source.API) (*Handle, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	w, h := New(maps, api, "token", nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		h.Close()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
		cancel()
	})
	return h, ctx
}

func TestStaticFetchMap(t *testing.T) {
	s := Static{Batch: testBatch()}
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	got, err := s.FetchMap(context.Background(), b)
	if err != nil {
		t.Fatalf("FetchMap() error = %v", err)
	}
	if len(got.Ways) != 1 || got.Ways[0].ID != 10 {
		t.Errorf("ways = %v, want [10]", got.Ways)
	}
	if len(got.Nodes) != 2 || got.Nodes[0].ID != 1 || got.Nodes[1].ID != 2 {
		t.Errorf("nodes = %v, want [1 2]", got.Nodes)
	}
}

func TestGetMap(t *testing.T) {
	h, ctx := startWorker(t, Static{Batch: testBatch()}, nil)

	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	h.Send(GetMap{Bound: b})

	resp, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if resp.Err != nil {
		t.Fatalf("response error = %v", resp.Err)
	}
	if _, ok := resp.Request.(GetMap); !ok {
		t.Errorf("Request = %T, want GetMap", resp.Request)
	}
	if len(resp.Batch.Nodes) != 3 || len(resp.Batch.Ways) != 2 {
		t.Errorf("batch = %d nodes, %d ways, want 3, 2", len(resp.Batch.Nodes), len(resp.Batch.Ways))
	}
}

func TestResponsesInOrder(t *testing.T) {
	h, ctx := startWorker(t, Static{Batch: testBatch()}, nil)

	bounds := []orb.Bound{
		{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		{Min: orb.Point{4, 4}, Max: orb.Point{6, 6}},
		{Min: orb.Point{20, 20}, Max: orb.Point{21, 21}},
	}
	for _, b := range bounds {
		h.Send(GetMap{Bound: b})
	}

	for i, b := range bounds {
		resp, err := h.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if got := resp.Request.(GetMap).Bound; got != b {
			t.Errorf("response %d bound = %v, want %v", i, got, b)
		}
	}
}

func TestFailedFetch(t *testing.T) {
	h, ctx := startWorker(t, failingSource{}, nil)

	h.Send(GetMap{})
	resp, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if resp.Err == nil || resp.Batch != nil {
		t.Errorf("response = %+v, want error and no batch", resp)
	}
}

func TestRequestsWithoutAPI(t *testing.T) {
	h, ctx := startWorker(t, Static{Batch: testBatch()}, nil)

	for _, req := range []Request{
		SetTargetServer{Server: source.ServerOpenStreetMapDev},
		CreateChangeset{},
		CloseChangeset{ID: 1},
	} {
		h.Send(req)
		resp, err := h.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if !errors.Is(resp.Err, ErrNoAPI) {
			t.Errorf("%v: error = %v, want ErrNoAPI", req, resp.Err)
		}
	}
}

func TestChangesetRequests(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/api/0.6/changeset/create" {
			io.WriteString(w, "77")
		}
	}))
	defer srv.Close()

	api := source.NewAPI(source.ServerOpenStreetMapDev, time.Second, 0)
	h, ctx := startWorker(t, api, api)

	h.Send(SetTargetServer{Server: &source.Server{Name: "local", BaseURL: srv.URL}})
	h.Send(CreateChangeset{Tags: osm.Tags{{Key: "comment", Value: "test"}}})

	resp, err := h.Wait(ctx)
	if err != nil || resp.Err != nil {
		t.Fatalf("SetTargetServer failed: %v %v", err, resp.Err)
	}
	if resp.Server == nil || resp.Server.Name != "local" {
		t.Errorf("Server = %v, want local", resp.Server)
	}

	resp, err = h.Wait(ctx)
	if err != nil || resp.Err != nil {
		t.Fatalf("CreateChangeset failed: %v %v", err, resp.Err)
	}
	if resp.Changeset != 77 {
		t.Errorf("Changeset = %d, want 77", resp.Changeset)
	}

	h.Send(CloseChangeset{ID: resp.Changeset})
	resp, err = h.Wait(ctx)
	if err != nil || resp.Err != nil {
		t.Fatalf("CloseChangeset failed: %v %v", err, resp.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/api/0.6/changeset/create", "/api/0.6/changeset/77/close"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestPollDoesNotBlock(t *testing.T) {
	_, h := New(Static{Batch: testBatch()}, nil, "", nil)
	if _, ok := h.Poll(); ok {
		t.Error("Poll() returned a response from an idle worker")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _ := New(Static{Batch: testBatch()}, nil, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/source"
)

// queueSize bounds the request and response channels
const queueSize = 16

// ErrNoAPI is returned for API requests when the worker has no API client
var ErrNoAPI = errors.New("no API client configured")

// MapSource provides features inside a bounding box. source.API,
// source.Postgres and Static implement it.
type MapSource interface {
	FetchMap(ctx context.Context, b orb.Bound) (*osmdata.Batch, error)
}

// Static serves a batch loaded up front, filtered to the requested bound
type Static struct {
	Batch *osmdata.Batch
}

// FetchMap returns the nodes inside b and the ways touching b together
// with their nodes
func (s Static) FetchMap(ctx context.Context, b orb.Bound) (*osmdata.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byID := make(map[osm.NodeID]*osm.Node, len(s.Batch.Nodes))
	for _, n := range s.Batch.Nodes {
		byID[n.ID] = n
	}

	out := &osmdata.Batch{}
	keep := make(map[osm.NodeID]bool)
	for _, w := range s.Batch.Ways {
		for _, wn := range w.Nodes {
			if n, ok := byID[wn.ID]; ok && b.Contains(osmdata.NodePoint(n)) {
				out.Ways = append(out.Ways, w)
				for _, wn := range w.Nodes {
					keep[wn.ID] = true
				}
				break
			}
		}
	}
	for _, n := range s.Batch.Nodes {
		if keep[n.ID] || b.Contains(osmdata.NodePoint(n)) {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out, nil
}

// Worker executes requests on its own goroutine so the frame loop never
// blocks on I/O
type Worker struct {
	maps      MapSource
	api       *source.API
	token     string
	requests  chan Request
	responses chan Response
	logger    *zap.Logger
}

// Handle is the frame loop's side of a worker
type Handle struct {
	requests  chan<- Request
	responses <-chan Response
}

// New creates a worker and its handle. api may be nil when maps is not
// an API client; changeset and server requests then fail with ErrNoAPI.
func New(maps MapSource, api *source.API, token string, logger *zap.Logger) (*Worker, *Handle) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		maps:      maps,
		api:       api,
		token:     token,
		requests:  make(chan Request, queueSize),
		responses: make(chan Response, queueSize),
		logger:    logger,
	}
	return w, &Handle{requests: w.requests, responses: w.responses}
}

// Run serves requests until the handle is closed or ctx is cancelled.
// Requests are handled one at a time in arrival order.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.responses)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-w.requests:
			if !ok {
				return nil
			}
			resp := w.handle(ctx, req)
			select {
			case w.responses <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := Response{Request: req}

	switch r := req.(type) {
	case GetMap:
		resp.Batch, resp.Err = w.maps.FetchMap(ctx, r.Bound)
	case SetTargetServer:
		switch {
		case w.api == nil:
			resp.Err = ErrNoAPI
		case r.Server == nil:
			resp.Err = fmt.Errorf("no server given")
		default:
			w.api.SetServer(r.Server)
			resp.Server = r.Server
		}
	case CreateChangeset:
		if w.api == nil {
			resp.Err = ErrNoAPI
			break
		}
		resp.Changeset, resp.Err = w.api.CreateChangeset(ctx, w.token, r.Tags)
	case CloseChangeset:
		if w.api == nil {
			resp.Err = ErrNoAPI
			break
		}
		resp.Changeset = r.ID
		resp.Err = w.api.CloseChangeset(ctx, w.token, r.ID)
	default:
		resp.Err = fmt.Errorf("unsupported request: %v", req)
	}

	if resp.Err != nil {
		w.logger.Warn("Request failed",
			zap.Stringer("request", req),
			zap.Error(resp.Err))
	} else {
		w.logger.Debug("Request done",
			zap.Stringer("request", req),
			zap.Duration("took", time.Since(start)))
	}
	return resp
}

// Send queues a request. It blocks only when the queue is full.
func (h *Handle) Send(req Request) {
	h.requests <- req
}

// Poll returns the next response without blocking
func (h *Handle) Poll() (Response, bool) {
	select {
	case resp, ok := <-h.responses:
		return resp, ok
	default:
		return Response{}, false
	}
}

// Wait blocks until the next response arrives or ctx is done
func (h *Handle) Wait(ctx context.Context) (Response, error) {
	select {
	case resp, ok := <-h.responses:
		if !ok {
			return Response{}, errors.New("worker stopped")
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close stops the worker after queued requests are served
func (h *Handle) Close() {
	close(h.requests)
}

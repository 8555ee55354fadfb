package source

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/logger"
	"github.com/wegman-software/osmview-go/internal/osmdata"
)

const userAgent = "osmview-go/1.0"

// API talks to an OSM API server
type API struct {
	server     *Server
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewAPI creates a client for server
func NewAPI(server *Server, timeout time.Duration, maxRetries int) *API {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &API{
		server: server,
		client: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: 5 * time.Second,
	}
}

// SetServer switches the target server
func (a *API) SetServer(server *Server) {
	a.server = server
}

// Server returns the current target server
func (a *API) Server() *Server {
	return a.server
}

// SetRetryDelay changes the pause between attempts
func (a *API) SetRetryDelay(d time.Duration) {
	a.retryDelay = d
}

// FetchMap downloads every node and way inside b
func (a *API) FetchMap(ctx context.Context, b orb.Bound) (*osmdata.Batch, error) {
	log := logger.Get()
	url := a.server.MapURL(b)

	log.Debug("Fetching map data", zap.String("url", url))

	resp, err := a.doWithRetry(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch map: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, readMessage(resp.Body))
	}

	batch, err := DecodeOSM(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode map: %w", err)
	}

	log.Debug("Fetched map data",
		zap.Int("nodes", len(batch.Nodes)),
		zap.Int("ways", len(batch.Ways)))

	return batch, nil
}

// DecodeOSM reads an <osm> document and keeps its nodes and ways
func DecodeOSM(r io.Reader) (*osmdata.Batch, error) {
	var doc osm.OSM
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &osmdata.Batch{Nodes: doc.Nodes, Ways: doc.Ways}, nil
}

// changesetDocument is the request body of a changeset create call
type changesetDocument struct {
	XMLName   xml.Name `xml:"osm"`
	Changeset struct {
		Tags osm.Tags `xml:"tag"`
	} `xml:"changeset"`
}

// CreateChangeset opens a changeset with the given tags and returns its id
func (a *API) CreateChangeset(ctx context.Context, token string, tags osm.Tags) (osm.ChangesetID, error) {
	doc := changesetDocument{}
	doc.Changeset.Tags = tags
	body, err := xml.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode changeset: %w", err)
	}

	resp, err := a.doWithRetry(ctx, http.MethodPut, a.server.ChangesetCreateURL(), body, token)
	if err != nil {
		return 0, fmt.Errorf("failed to create changeset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, readMessage(resp.Body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read changeset id: %w", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid changeset id %q: %w", raw, err)
	}

	logger.Get().Info("Opened changeset", zap.Int64("changeset", id))
	return osm.ChangesetID(id), nil
}

// CloseChangeset closes an open changeset
func (a *API) CloseChangeset(ctx context.Context, token string, id osm.ChangesetID) error {
	resp, err := a.doWithRetry(ctx, http.MethodPut, a.server.ChangesetCloseURL(id), nil, token)
	if err != nil {
		return fmt.Errorf("failed to close changeset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, readMessage(resp.Body))
	}

	logger.Get().Info("Closed changeset", zap.Int64("changeset", int64(id)))
	return nil
}

// doWithRetry performs a request, retrying transport errors and 5xx
// responses
func (a *API) doWithRetry(ctx context.Context, method, url string, body []byte, token string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.retryDelay):
			}
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "text/xml")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// readMessage returns the start of an error body for diagnostics
func readMessage(r io.Reader) string {
	msg, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(msg))
}

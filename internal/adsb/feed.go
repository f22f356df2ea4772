package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultFeedURL is where a local dump1090 instance serves its snapshot.
const DefaultFeedURL = "http://localhost:8080/data/aircraft.json"

// FeedError wraps any failure to fetch or parse a snapshot. It is
// transient: the caller skips this poll and the next scheduled run retries.
type FeedError struct {
	URL string
	Err error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.URL, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// FeedClient fetches snapshots from the receiver's HTTP endpoint.
type FeedClient struct {
	URL        string
	HTTPClient *http.Client
	Debug      bool
}

// NewFeedClient returns a client with a bounded request timeout.
func NewFeedClient(url string, timeout time.Duration) *FeedClient {
	if url == "" {
		url = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FeedClient{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves and parses one snapshot. Any transport, status, or decode
// failure is returned as a *FeedError.
func (c *FeedClient) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, &FeedError{URL: c.URL, Err: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FeedError{URL: c.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FeedError{URL: c.URL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &FeedError{URL: c.URL, Err: fmt.Errorf("decode snapshot: %w", err)}
	}

	if c.Debug {
		log.Printf("feed: %d aircraft in snapshot (now=%f)", len(snap.Aircraft), snap.Now)
	}

	return &snap, nil
}

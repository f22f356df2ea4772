package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the free, keyless ADS-B Database API.
const DefaultBaseURL = "https://api.adsbdb.com"

const defaultUserAgent = "adsb-analytics/1.0"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
)

// ClientConfig configures the lookup client.
type ClientConfig struct {
	BaseURL     string
	Timeout     time.Duration // per-lookup HTTP timeout
	MinInterval time.Duration // pacing between lookups
	UserAgent   string
	Debug       bool
}

// Client performs rate-limited metadata lookups against the external
// service. Lookups are paced sequentially; the service is free and the
// pacing is what keeps us a good citizen of it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      *Pacer
	breaker    *gobreaker.CircuitBreaker
	userAgent  string
	debug      bool
}

// NewClient returns a lookup client with pacing and a circuit breaker.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "adsbdb",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pacer:      NewPacer(cfg.MinInterval),
		breaker:    cb,
		userAgent:  cfg.UserAgent,
		debug:      cfg.Debug,
	}
}

// LookupBatch looks up each identifier in order, pacing between requests.
// A single identifier's failure never aborts the batch; every identifier
// gets an outcome.
func (c *Client) LookupBatch(ctx context.Context, hexes []string) []Lookup {
	results := make([]Lookup, 0, len(hexes))
	for _, hex := range hexes {
		if ctx.Err() != nil {
			results = append(results, Lookup{Hex: hex, Outcome: Failed{Err: ctx.Err()}})
			continue
		}
		c.pacer.Wait()
		results = append(results, Lookup{Hex: hex, Outcome: c.lookupOne(ctx, hex)})
	}
	return results
}

func (c *Client) lookupOne(ctx context.Context, hex string) Outcome {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doLookup(ctx, hex)
	})
	if err != nil {
		if c.debug {
			log.Printf("enrich: lookup %s failed: %v", hex, err)
		}
		return Failed{Err: err}
	}
	return result.(Outcome)
}

// adsbdbAircraft mirrors the fields of interest in the adsbdb payload.
type adsbdbAircraft struct {
	Registration               string `json:"registration"`
	ICAOType                   string `json:"icao_type"`
	Manufacturer               string `json:"manufacturer"`
	RegisteredOwner            string `json:"registered_owner"`
	RegisteredOwnerCountryName string `json:"registered_owner_country_name"`
}

// doLookup issues one HTTP request and classifies the response. Returned
// errors count against the circuit breaker and become Failed outcomes;
// a "not found" of any flavour is a successful Empty.
func (c *Client) doLookup(ctx context.Context, hex string) (Outcome, error) {
	url := fmt.Sprintf("%s/v0/aircraft/%s", c.baseURL, hex)
	if c.debug {
		log.Printf("enrich: GET %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if c.debug {
		log.Printf("enrich: %s status=%d body=%s", hex, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Backing off and retrying next cycle beats tombstoning a
		// perfectly lookupable aircraft.
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	case resp.StatusCode >= 400:
		// Not found: the service answered, there is just no data.
		return Empty{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The response field is either an object with an aircraft, or the
	// string "unknown aircraft".
	var wrapper struct {
		Aircraft *adsbdbAircraft `json:"aircraft"`
	}
	if err := json.Unmarshal(payload.Response, &wrapper); err != nil || wrapper.Aircraft == nil {
		return Empty{}, nil
	}

	ac := wrapper.Aircraft
	return Found{
		Registration:  ac.Registration,
		Type:          ac.ICAOType,
		Manufacturer:  ac.Manufacturer,
		Operator:      ac.RegisteredOwner,
		OriginCountry: ac.RegisteredOwnerCountryName,
	}, nil
}

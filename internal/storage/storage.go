// Package storage persists aircraft observations and enrichment metadata.
//
// Two tables: observations is an append-only time series (one row per
// aircraft per poll), aircraft_enriched is keyed by hex code with at most
// one mutable row per aircraft. SQLite is the primary backend; Postgres
// implements the same contract for installs that outgrow a single file,
// and ClickHouse provides an optional append-only observation archive.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks store-level I/O failures. The invocation aborts and
// the next scheduled run retries; nothing is retried in-process.
var ErrUnavailable = errors.New("storage unavailable")

// timeLayout is fixed-width UTC so that lexicographic comparison of stored
// timestamps matches chronological order (SQLite stores them as TEXT).
const timeLayout = "2006-01-02T15:04:05.000Z"

// Observation is one snapshot row for one aircraft. Only Hex and
// CapturedAt are guaranteed; unlocated aircraft are still recorded.
type Observation struct {
	ID          int64     `json:"id,omitempty"`
	Hex         string    `json:"hex"`
	CapturedAt  time.Time `json:"captured_at"`
	Flight      *string   `json:"flight,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	AltBaro     *int      `json:"alt_baro,omitempty"`
	Track       *float64  `json:"track,omitempty"`
	GroundSpeed *float64  `json:"ground_speed,omitempty"`
	Squawk      *string   `json:"squawk,omitempty"`
	Category    *string   `json:"category,omitempty"`
	RSSI        *float64  `json:"rssi,omitempty"`
}

// HasPosition reports whether the observation carries a position fix.
func (o *Observation) HasPosition() bool {
	return o.Lat != nil && o.Lon != nil
}

// EnrichmentRecord is the latest known descriptive metadata for one
// aircraft. A row with empty descriptive fields but a LastUpdated is a
// tombstone: the lookup was attempted and the service had nothing.
type EnrichmentRecord struct {
	Hex           string    `json:"hex"`
	Registration  *string   `json:"registration,omitempty"`
	Type          *string   `json:"type,omitempty"`
	Manufacturer  *string   `json:"manufacturer,omitempty"`
	Operator      *string   `json:"operator,omitempty"`
	OriginCountry *string   `json:"origin_country,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
	Source        string    `json:"source"`
}

// CandidateQuery selects aircraft needing an enrichment lookup.
type CandidateQuery struct {
	// WindowStart/WindowEnd bound observation capture times; a zero value
	// leaves that side unbounded.
	WindowStart time.Time
	WindowEnd   time.Time

	// EnrichedBefore re-selects aircraft whose record is older than the
	// cutoff. Nil selects never-enriched aircraft only.
	EnrichedBefore *time.Time

	// Limit caps the result. Zero means no cap.
	Limit int
}

// Stats summarizes enrichment progress.
type Stats struct {
	TotalAircraft     int
	TotalObservations int64
	Enriched          int // rows in aircraft_enriched, tombstones included
	WithRegistration  int
}

// Store is the full read/write contract over both tables.
type Store interface {
	// AppendObservations writes the whole batch in one transaction.
	// A batch is never partially applied.
	AppendObservations(ctx context.Context, batch []Observation) (int, error)

	// ListEnrichmentCandidates returns hex codes with at least one
	// in-window observation and a missing or stale enrichment record,
	// most recently observed first.
	ListEnrichmentCandidates(ctx context.Context, q CandidateQuery) ([]string, error)

	// UpsertEnrichment inserts or replaces one record atomically.
	// Last writer wins.
	UpsertEnrichment(ctx context.Context, rec EnrichmentRecord) error

	GetEnrichment(ctx context.Context, hex string) (*EnrichmentRecord, error)
	ListObservationsByAircraft(ctx context.Context, hex string, limit int) ([]Observation, error)
	ListObservationsForDay(ctx context.Context, day time.Time) ([]Observation, error)
	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

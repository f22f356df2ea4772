package enrich

import (
	"context"
	"fmt"
	"time"

	"adsb_analytics/internal/storage"
)

// SourceNotFound tags tombstone records for aircraft the lookup service
// has no data for.
const SourceNotFound = "not_found"

// DefaultSource tags records written from successful lookups.
const DefaultSource = "adsbdb"

// Upserter is the slice of the store the merger needs.
type Upserter interface {
	UpsertEnrichment(ctx context.Context, rec storage.EnrichmentRecord) error
}

// Merger writes lookup outcomes into the store. Found writes the full
// record, Empty writes a tombstone, Failed writes nothing.
type Merger struct {
	Store  Upserter
	Source string // defaults to DefaultSource
}

// Apply writes one outcome. Failed outcomes are a no-op so the aircraft
// stays selectable for retry.
func (m *Merger) Apply(ctx context.Context, hex string, outcome Outcome, now time.Time) error {
	source := m.Source
	if source == "" {
		source = DefaultSource
	}

	var rec storage.EnrichmentRecord
	switch o := outcome.(type) {
	case Found:
		rec = storage.EnrichmentRecord{
			Hex:           hex,
			Registration:  optional(o.Registration),
			Type:          optional(o.Type),
			Manufacturer:  optional(o.Manufacturer),
			Operator:      optional(o.Operator),
			OriginCountry: optional(o.OriginCountry),
			LastUpdated:   now.UTC(),
			Source:        source,
		}
	case Empty:
		rec = storage.EnrichmentRecord{
			Hex:         hex,
			LastUpdated: now.UTC(),
			Source:      SourceNotFound,
		}
	case Failed:
		return nil
	default:
		return fmt.Errorf("unhandled outcome %T", outcome)
	}

	if err := m.Store.UpsertEnrichment(ctx, rec); err != nil {
		return fmt.Errorf("upsert %s: %w", hex, err)
	}
	return nil
}

// ApplyAll applies a batch of lookups and reports how many records were
// written, tombstoned, and skipped. The first store error aborts.
func (m *Merger) ApplyAll(ctx context.Context, lookups []Lookup, now time.Time) (written, tombstoned, skipped int, err error) {
	for _, l := range lookups {
		if err := m.Apply(ctx, l.Hex, l.Outcome, now); err != nil {
			return written, tombstoned, skipped, err
		}
		switch l.Outcome.(type) {
		case Found:
			written++
		case Empty:
			tombstoned++
		default:
			skipped++
		}
	}
	return written, tombstoned, skipped, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package ingest turns receiver snapshots into stored observation rows.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"adsb_analytics/internal/adsb"
	"adsb_analytics/internal/storage"
)

// ObservationAppender is the slice of the store the ingestor needs.
type ObservationAppender interface {
	AppendObservations(ctx context.Context, obs []storage.Observation) (int, error)
}

// Every backend that can sit behind Store or Archive.
var (
	_ ObservationAppender = (*storage.SQLiteDB)(nil)
	_ ObservationAppender = (*storage.PostgresDB)(nil)
	_ ObservationAppender = (*storage.ClickHouseArchive)(nil)
)

// Ingestor converts one snapshot into one batch of observation rows.
// Archive and Publisher are optional; their failures are logged but never
// fail the ingest, the primary store is the source of truth.
type Ingestor struct {
	Store     ObservationAppender
	Archive   ObservationAppender
	Publisher Publisher
	Debug     bool
}

// Result summarizes one ingest cycle.
type Result struct {
	Written      int
	Dropped      int
	WithPosition int
}

// IngestOnce writes every valid aircraft entry of the snapshot as one
// observation row. Every poll appends; repeated sightings of the same
// aircraft are the time series, not duplicates.
func (ing *Ingestor) IngestOnce(ctx context.Context, snap *adsb.Snapshot) (*Result, error) {
	capturedAt := snap.CapturedAt()
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	res := &Result{}
	obs := make([]storage.Observation, 0, len(snap.Aircraft))
	for _, entry := range snap.Aircraft {
		hex := adsb.NormalizeIdentifier(entry.Hex)
		if !adsb.ValidIdentifier(hex) {
			res.Dropped++
			if ing.Debug {
				log.Printf("ingest: dropping entry with identifier %q", entry.Hex)
			}
			continue
		}

		o := storage.Observation{
			Hex:         hex,
			CapturedAt:  capturedAt,
			Lat:         entry.Lat,
			Lon:         entry.Lon,
			Track:       entry.Track,
			GroundSpeed: entry.GS,
			RSSI:        entry.RSSI,
		}
		if flight := strings.TrimSpace(entry.Flight); flight != "" {
			o.Flight = &flight
		}
		if entry.Squawk != "" {
			squawk := entry.Squawk
			o.Squawk = &squawk
		}
		if entry.Category != "" {
			category := entry.Category
			o.Category = &category
		}
		if entry.AltBaro.Valid {
			feet := entry.AltBaro.Feet
			o.AltBaro = &feet
		}
		if o.HasPosition() {
			res.WithPosition++
		}
		obs = append(obs, o)
	}

	if len(obs) == 0 {
		return res, nil
	}

	written, err := ing.Store.AppendObservations(ctx, obs)
	if err != nil {
		return res, fmt.Errorf("append observations: %w", err)
	}
	res.Written = written

	if ing.Archive != nil {
		if _, err := ing.Archive.AppendObservations(ctx, obs); err != nil {
			log.Printf("ingest: archive append failed: %v", err)
		}
	}
	if ing.Publisher != nil {
		if err := ing.Publisher.Publish(ctx, obs); err != nil {
			log.Printf("ingest: publish failed: %v", err)
		}
	}

	return res, nil
}

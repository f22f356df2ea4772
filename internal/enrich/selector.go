package enrich

import (
	"context"
	"fmt"
	"time"

	"adsb_analytics/internal/storage"
)

// Mode controls which slice of the observation history the selector
// draws candidates from.
type Mode int

const (
	// ModeToday selects aircraft seen since UTC midnight, refreshing
	// records older than the staleness cutoff.
	ModeToday Mode = iota
	// ModeWindow selects never-enriched aircraft seen in the last N days.
	ModeWindow
	// ModeBackfill selects never-enriched aircraft across all history.
	ModeBackfill
)

func (m Mode) String() string {
	switch m {
	case ModeToday:
		return "today"
	case ModeWindow:
		return "window"
	case ModeBackfill:
		return "backfill"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "today":
		return ModeToday, nil
	case "window":
		return ModeWindow, nil
	case "backfill":
		return ModeBackfill, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want today, window, or backfill)", s)
}

// DefaultStaleness is how old an enrichment record may get before the
// today-mode selector refreshes it.
const DefaultStaleness = 6 * time.Hour

// CandidateLister is the slice of the store the selector needs.
type CandidateLister interface {
	ListEnrichmentCandidates(ctx context.Context, q storage.CandidateQuery) ([]string, error)
}

// Selector decides which aircraft to look up next.
type Selector struct {
	Store      CandidateLister
	Staleness  time.Duration // today mode; defaults to DefaultStaleness
	WindowDays int           // window mode; defaults to 7
	ReEnrich   bool          // window/backfill: also refresh stale records

	now func() time.Time
}

// NewSelector returns a selector over the given store.
func NewSelector(store CandidateLister) *Selector {
	return &Selector{Store: store, now: time.Now}
}

// Select returns up to limit candidate identifiers for the mode, most
// recently seen first. An empty result is normal, not an error.
func (s *Selector) Select(ctx context.Context, mode Mode, limit int) ([]string, error) {
	nowFn := s.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()

	staleness := s.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}

	q := storage.CandidateQuery{Limit: limit}
	switch mode {
	case ModeToday:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		q.WindowStart = midnight
		q.WindowEnd = now
		cutoff := now.Add(-staleness)
		q.EnrichedBefore = &cutoff
	case ModeWindow:
		days := s.WindowDays
		if days <= 0 {
			days = 7
		}
		q.WindowStart = now.AddDate(0, 0, -days)
		q.WindowEnd = now
		if s.ReEnrich {
			cutoff := now.Add(-staleness)
			q.EnrichedBefore = &cutoff
		}
	case ModeBackfill:
		if s.ReEnrich {
			cutoff := now.Add(-staleness)
			q.EnrichedBefore = &cutoff
		}
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}

	hexes, err := s.Store.ListEnrichmentCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return hexes, nil
}

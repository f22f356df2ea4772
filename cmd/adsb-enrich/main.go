// Package main provides the adsb-enrich command.
//
// adsb-enrich selects observed aircraft that still need metadata, looks
// each one up against the external aircraft database, and writes the
// results back. Aircraft the service has no data for get a tombstone
// record so they are not retried every run; transient lookup failures
// write nothing and are retried next run.
//
// Usage:
//
//	adsb-enrich [options]
//
// Options:
//
//	-mode M          Selection mode: today, window, or backfill (default: today)
//	-days N          Look-back window in days for window mode (default: 7)
//	-batch N         Maximum lookups per run (env: ADSB_LOOKUP_BATCH)
//	-re-enrich       In window/backfill mode, also refresh stale records
//	-db-backend B    Primary store: sqlite or postgres (env: ADSB_DB_BACKEND)
//	-sqlite PATH     SQLite database path (env: ADSB_SQLITE_PATH)
//	-debug           Log each lookup request and response
//
// Exit status is 0 even when individual lookups fail; only an unreachable
// store or a selection failure exits 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"adsb_analytics/internal/config"
	"adsb_analytics/internal/enrich"
	"adsb_analytics/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	modeStr := flag.String("mode", "today", "Selection mode: today, window, or backfill")
	days := flag.Int("days", 7, "Look-back window in days (window mode)")
	batch := flag.Int("batch", cfg.BatchSize, "Maximum lookups per run")
	reEnrich := flag.Bool("re-enrich", false, "Also refresh stale records (window/backfill)")
	dbBackend := flag.String("db-backend", cfg.DBBackend, "Primary store: sqlite or postgres")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "SQLite database path")
	debug := flag.Bool("debug", false, "Log each lookup request and response")
	flag.Parse()

	mode, err := enrich.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.DBBackend = *dbBackend
	cfg.SQLitePath = *sqlitePath

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	selector := enrich.NewSelector(store)
	selector.Staleness = cfg.Staleness
	selector.WindowDays = *days
	selector.ReEnrich = *reEnrich

	hexes, err := selector.Select(ctx, mode, *batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting candidates: %v\n", err)
		os.Exit(1)
	}
	if len(hexes) == 0 {
		log.Printf("no aircraft need enrichment (mode=%s)", mode)
		return
	}
	log.Printf("enriching %d aircraft (mode=%s)", len(hexes), mode)

	// Backfill runs tolerate slower pacing; the batch is large and nobody
	// is waiting on the result.
	interval := cfg.LookupInterval
	if mode == enrich.ModeBackfill {
		interval = cfg.BackfillPause
	}

	client := enrich.NewClient(enrich.ClientConfig{
		BaseURL:     cfg.LookupBaseURL,
		Timeout:     cfg.LookupTimeout,
		MinInterval: interval,
		Debug:       *debug,
	})

	lookups := client.LookupBatch(ctx, hexes)

	merger := &enrich.Merger{Store: store}
	written, tombstoned, skipped, err := merger.ApplyAll(ctx, lookups, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing enrichments: %v\n", err)
		os.Exit(1)
	}

	log.Printf("enrichment complete: %d found, %d not in database, %d failed (will retry)",
		written, tombstoned, skipped)
}

func openStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.DBBackend {
	case "postgres":
		return storage.OpenPostgres(ctx, storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDatabase,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
		})
	default:
		return storage.OpenSQLite(cfg.SQLitePath)
	}
}

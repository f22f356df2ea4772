// Package main provides the adsb-ingest command.
//
// adsb-ingest polls the local receiver's aircraft.json feed once, appends
// every tracked aircraft as observation rows, and exits. It is designed
// to run from cron or a systemd timer; each invocation is one poll.
//
// Usage:
//
//	adsb-ingest [options]
//
// Options:
//
//	-feed URL        Receiver feed URL (env: ADSB_FEED_URL)
//	-db-backend B    Primary store: sqlite or postgres (env: ADSB_DB_BACKEND)
//	-sqlite PATH     SQLite database path (env: ADSB_SQLITE_PATH)
//	-debug           Log dropped entries and feed details
//
// PostgreSQL, NATS, and ClickHouse settings come from the environment
// (POSTGRES_*, NATS_URL, CLICKHOUSE_*). A missing or malformed feed
// response exits 1 so the scheduler sees the missed poll; the next tick
// retries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"adsb_analytics/internal/adsb"
	"adsb_analytics/internal/config"
	"adsb_analytics/internal/ingest"
	"adsb_analytics/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	feedURL := flag.String("feed", cfg.FeedURL, "Receiver feed URL")
	dbBackend := flag.String("db-backend", cfg.DBBackend, "Primary store: sqlite or postgres")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "SQLite database path")
	debug := flag.Bool("debug", false, "Log dropped entries and feed details")
	flag.Parse()

	cfg.FeedURL = *feedURL
	cfg.DBBackend = *dbBackend
	cfg.SQLitePath = *sqlitePath

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ing := &ingest.Ingestor{Store: store, Debug: *debug}

	if cfg.ClickHouseEnabled {
		archive, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDatabase,
			User:     cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			log.Printf("ClickHouse archive unavailable, continuing without: %v", err)
		} else {
			defer archive.Close()
			ing.Archive = archive
		}
	}

	if cfg.NATSURL != "" {
		pub, err := ingest.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Printf("NATS unavailable, continuing without: %v", err)
		} else {
			defer pub.Close()
			ing.Publisher = pub
		}
	}

	feed := adsb.NewFeedClient(cfg.FeedURL, cfg.FeedTimeout)
	feed.Debug = *debug

	snap, err := feed.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching feed: %v\n", err)
		os.Exit(1)
	}

	res, err := ing.IngestOnce(ctx, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error ingesting snapshot: %v\n", err)
		os.Exit(1)
	}

	log.Printf("ingested %d observations (%d with position, %d dropped) at %s",
		res.Written, res.WithPosition, res.Dropped, snap.CapturedAt().Format(time.RFC3339))
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

// Package main provides adsbd, the all-in-one daemon.
//
// adsbd runs the full pipeline in a single process: it polls the receiver
// feed on a short interval, runs today-mode enrichment on a longer one,
// and serves the REST API. It is the deployment for installs that do not
// want cron-driven one-shot commands.
//
// Usage:
//
//	adsbd [options]
//
// Options:
//
//	-feed URL           Receiver feed URL (env: ADSB_FEED_URL)
//	-port N             HTTP port for the API (env: ADSB_API_PORT)
//	-ingest-interval D  Poll interval, e.g. 1m (env: ADSB_INGEST_INTERVAL)
//	-enrich-interval D  Enrichment interval, e.g. 15m (env: ADSB_ENRICH_INTERVAL)
//	-debug              Verbose feed and lookup logging
//
// Store, NATS, and ClickHouse settings come from the environment as for
// the one-shot commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adsb_analytics/internal/adsb"
	"adsb_analytics/internal/api"
	"adsb_analytics/internal/config"
	"adsb_analytics/internal/enrich"
	"adsb_analytics/internal/ingest"
	"adsb_analytics/internal/scheduler"
	"adsb_analytics/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	feedURL := flag.String("feed", cfg.FeedURL, "Receiver feed URL")
	port := flag.Int("port", cfg.APIPort, "HTTP port for API server")
	ingestEvery := flag.Duration("ingest-interval", cfg.IngestInterval, "Feed poll interval")
	enrichEvery := flag.Duration("enrich-interval", cfg.EnrichInterval, "Enrichment interval")
	debug := flag.Bool("debug", false, "Verbose feed and lookup logging")
	flag.Parse()

	cfg.FeedURL = *feedURL

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

	selector := enrich.NewSelector(store)
	selector.Staleness = cfg.Staleness

	// One client for the daemon's lifetime so pacing and the circuit
	// breaker span enrichment cycles.
	client := enrich.NewClient(enrich.ClientConfig{
		BaseURL:     cfg.LookupBaseURL,
		Timeout:     cfg.LookupTimeout,
		MinInterval: cfg.LookupInterval,
		Debug:       *debug,
	})
	merger := &enrich.Merger{Store: store}

	sched := scheduler.New([]scheduler.Job{
		{
			Name:     "ingest",
			Interval: *ingestEvery,
			Run: func(ctx context.Context) error {
				snap, err := feed.Fetch(ctx)
				if err != nil {
					return err
				}
				res, err := ing.IngestOnce(ctx, snap)
				if err != nil {
					return err
				}
				log.Printf("ingested %d observations (%d with position, %d dropped)",
					res.Written, res.WithPosition, res.Dropped)
				return nil
			},
		},
		{
			Name:     "enrich",
			Interval: *enrichEvery,
			Timeout:  *enrichEvery + time.Minute,
			Run: func(ctx context.Context) error {
				hexes, err := selector.Select(ctx, enrich.ModeToday, cfg.BatchSize)
				if err != nil {
					return err
				}
				if len(hexes) == 0 {
					return nil
				}
				lookups := client.LookupBatch(ctx, hexes)
				written, tombstoned, skipped, err := merger.ApplyAll(ctx, lookups, time.Now().UTC())
				if err != nil {
					return err
				}
				log.Printf("enriched %d aircraft (%d not in database, %d failed)",
					written, tombstoned, skipped)
				return nil
			},
		},
	})

	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting scheduler: %v\n", err)
		os.Exit(1)
	}
	defer sched.Stop()

	var keys []string
	if cfg.APIKeys != "" {
		keys = strings.Split(cfg.APIKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(store, api.Config{
		Port:        *port,
		AuthEnabled: cfg.AuthEnabled,
		APIKeys:     keys,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
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

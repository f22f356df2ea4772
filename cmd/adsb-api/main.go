// Package main provides the adsb-api server.
//
// adsb-api serves read-only REST access to stored observations and
// enrichment records.
//
// Usage:
//
//	adsb-api [options]
//
// Options:
//
//	-port N          HTTP port (default: 8081, env: ADSB_API_PORT)
//	-db-backend B    Primary store: sqlite or postgres (env: ADSB_DB_BACKEND)
//	-sqlite PATH     SQLite database path (env: ADSB_SQLITE_PATH)
//	-auth            Enable API key authentication
//	-api-keys KEYS   Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/stats
//	    Totals: aircraft seen, observations stored, enrichment coverage.
//
//	GET /api/v1/aircraft/{hex}
//	    Enrichment record plus most recent observation for one aircraft.
//
//	GET /api/v1/aircraft/{hex}/observations?limit=N
//	    Observation history for one aircraft, newest first.
//
//	GET /api/v1/day/{date}/log?limit=N
//	    One day's observations as a plain-text log (YYYY-MM-DD).
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"adsb_analytics/internal/api"
	"adsb_analytics/internal/config"
	"adsb_analytics/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	port := flag.Int("port", cfg.APIPort, "HTTP port for API server")
	dbBackend := flag.String("db-backend", cfg.DBBackend, "Primary store: sqlite or postgres")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "SQLite database path")
	authEnabled := flag.Bool("auth", cfg.AuthEnabled, "Enable API key authentication")
	apiKeys := flag.String("api-keys", cfg.APIKeys, "Comma-separated list of valid API keys (when auth enabled)")
	flag.Parse()

	cfg.DBBackend = *dbBackend
	cfg.SQLitePath = *sqlitePath

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(store, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if err := server.Run(); err != nil {
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

// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the shared configuration for every command. Commands layer
// their flags on top; flags win over environment values.
type AppConfig struct {
	// Primary store.
	DBBackend  string // "sqlite" or "postgres"
	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string

	// Receiver feed.
	FeedURL     string
	FeedTimeout time.Duration

	// Metadata lookups.
	LookupBaseURL  string
	LookupTimeout  time.Duration
	LookupInterval time.Duration // pacing between lookups
	BackfillPause  time.Duration // slower pacing for backfill runs
	BatchSize      int
	Staleness      time.Duration

	// Optional fan-out.
	NATSURL     string // empty disables publishing
	NATSSubject string

	ClickHouseEnabled  bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string

	// API server.
	APIPort     int
	AuthEnabled bool
	APIKeys     string

	// Daemon schedule.
	IngestInterval time.Duration
	EnrichInterval time.Duration
}

// Load reads configuration from the environment with sensible defaults. A
// .env file in the working directory is honoured when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := &AppConfig{
		DBBackend:  getenvDefault("ADSB_DB_BACKEND", "sqlite"),
		SQLitePath: getenvDefault("ADSB_SQLITE_PATH", "adsb.db"),

		PostgresHost:     getenvDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenvInt("POSTGRES_PORT", 5432),
		PostgresDatabase: getenvDefault("POSTGRES_DATABASE", "adsb_analytics"),
		PostgresUser:     getenvDefault("POSTGRES_USER", "adsb"),
		PostgresPassword: getenvDefault("POSTGRES_PASSWORD", "adsb"),

		FeedURL: getenvDefault("ADSB_FEED_URL", "http://localhost:8080/data/aircraft.json"),

		LookupBaseURL: getenvDefault("ADSB_LOOKUP_URL", "https://api.adsbdb.com"),
		BatchSize:     getenvInt("ADSB_LOOKUP_BATCH", 50),

		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getenvDefault("NATS_SUBJECT", "adsb.observations"),

		ClickHouseEnabled:  getenvBool("CLICKHOUSE_ENABLED", false),
		ClickHouseHost:     getenvDefault("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getenvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getenvDefault("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUser:     getenvDefault("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),

		APIPort:     getenvInt("ADSB_API_PORT", 8081),
		AuthEnabled: getenvBool("ADSB_API_AUTH", false),
		APIKeys:     os.Getenv("ADSB_API_KEYS"),
	}

	var err error
	if cfg.FeedTimeout, err = getenvDuration("ADSB_FEED_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LookupTimeout, err = getenvDuration("ADSB_LOOKUP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LookupInterval, err = getenvDuration("ADSB_LOOKUP_INTERVAL", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.BackfillPause, err = getenvDuration("ADSB_BACKFILL_PAUSE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Staleness, err = getenvDuration("ADSB_STALENESS", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.IngestInterval, err = getenvDuration("ADSB_INGEST_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.EnrichInterval, err = getenvDuration("ADSB_ENRICH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.DBBackend {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("invalid ADSB_DB_BACKEND %q (want sqlite or postgres)", cfg.DBBackend)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

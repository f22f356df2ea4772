package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseArchive mirrors observation batches into ClickHouse for
// long-range analytics. It is strictly additive: the SQLite/Postgres store
// remains the source of truth and archive failures never fail an ingest.
type ClickHouseArchive struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection and ensures the archive table exists.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	a := &ClickHouseArchive{conn: conn}
	if err := a.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the ClickHouse connection.
func (a *ClickHouseArchive) Close() error {
	return a.conn.Close()
}

func (a *ClickHouseArchive) createSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS observations_archive (
		hex             LowCardinality(String),
		captured_at     DateTime64(3),
		flight          LowCardinality(String),
		lat             Nullable(Float64),
		lon             Nullable(Float64),
		alt_baro        Nullable(Int32),
		track           Nullable(Float64),
		ground_speed    Nullable(Float64),
		squawk          LowCardinality(String),
		category        LowCardinality(String),
		rssi            Nullable(Float64)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(captured_at)
	ORDER BY (hex, captured_at)
	SETTINGS index_granularity = 8192`

	if err := a.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// AppendObservations stores a batch in the archive using a prepared batch.
func (a *ClickHouseArchive) AppendObservations(ctx context.Context, batch []Observation) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	b, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO observations_archive (hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, o := range batch {
		var alt *int32
		if o.AltBaro != nil {
			v := int32(*o.AltBaro)
			alt = &v
		}
		err = b.Append(o.Hex, o.CapturedAt.UTC(), deref(o.Flight), o.Lat, o.Lon,
			alt, o.Track, o.GroundSpeed, deref(o.Squawk), deref(o.Category), o.RSSI)
		if err != nil {
			return 0, fmt.Errorf("append to archive batch: %w", err)
		}
	}

	if err := b.Send(); err != nil {
		return 0, fmt.Errorf("send archive batch: %w", err)
	}
	return len(batch), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB implements Store on PostgreSQL for installs where several
// receivers write into one shared database. Row-level locking serializes
// overlapping enrichment upserts.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres config: %v", ErrUnavailable, err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", ErrUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", ErrUnavailable, err)
	}

	d := &PostgresDB{pool: pool}
	if err := d.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
	}
	return d, nil
}

// Close closes the connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

func (d *PostgresDB) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id              BIGSERIAL PRIMARY KEY,
		hex             TEXT NOT NULL,
		captured_at     TIMESTAMPTZ NOT NULL,
		flight          TEXT,
		lat             DOUBLE PRECISION,
		lon             DOUBLE PRECISION,
		alt_baro        INTEGER,
		track           DOUBLE PRECISION,
		ground_speed    DOUBLE PRECISION,
		squawk          TEXT,
		category        TEXT,
		rssi            DOUBLE PRECISION
	);

	CREATE INDEX IF NOT EXISTS idx_observations_hex ON observations(hex);
	CREATE INDEX IF NOT EXISTS idx_observations_captured ON observations(captured_at);

	CREATE TABLE IF NOT EXISTS aircraft_enriched (
		hex             TEXT PRIMARY KEY,
		registration    TEXT,
		type            TEXT,
		manufacturer    TEXT,
		operator        TEXT,
		origin_country  TEXT,
		last_updated    TIMESTAMPTZ NOT NULL,
		source          TEXT NOT NULL
	);
	`
	_, err := d.pool.Exec(ctx, schema)
	return err
}

// AppendObservations writes the batch in one transaction.
func (d *PostgresDB) AppendObservations(ctx context.Context, batch []Observation) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin append: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO observations (hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, o.Hex, o.CapturedAt.UTC(), o.Flight, o.Lat, o.Lon, o.AltBaro,
			o.Track, o.GroundSpeed, o.Squawk, o.Category, o.RSSI)
		if err != nil {
			return 0, fmt.Errorf("%w: insert observation %s: %v", ErrUnavailable, o.Hex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit append: %v", ErrUnavailable, err)
	}
	return len(batch), nil
}

// ListEnrichmentCandidates returns hex codes needing a lookup, most
// recently observed first.
func (d *PostgresDB) ListEnrichmentCandidates(ctx context.Context, q CandidateQuery) ([]string, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.WindowStart.IsZero() {
		conditions = append(conditions, "o.captured_at >= "+arg(q.WindowStart.UTC()))
	}
	if !q.WindowEnd.IsZero() {
		conditions = append(conditions, "o.captured_at < "+arg(q.WindowEnd.UTC()))
	}
	if q.EnrichedBefore != nil {
		conditions = append(conditions, "(e.hex IS NULL OR e.last_updated < "+arg(q.EnrichedBefore.UTC())+")")
	} else {
		conditions = append(conditions, "e.hex IS NULL")
	}

	query := `
		SELECT o.hex
		FROM observations o
		LEFT JOIN aircraft_enriched e ON o.hex = e.hex
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY o.hex
		ORDER BY MAX(o.captured_at) DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list candidates: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var hexes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %v", ErrUnavailable, err)
		}
		hexes = append(hexes, h)
	}
	return hexes, rows.Err()
}

// UpsertEnrichment inserts or replaces one record. Last writer wins.
func (d *PostgresDB) UpsertEnrichment(ctx context.Context, rec EnrichmentRecord) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO aircraft_enriched (hex, registration, type, manufacturer, operator, origin_country, last_updated, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hex) DO UPDATE SET
			registration = EXCLUDED.registration,
			type = EXCLUDED.type,
			manufacturer = EXCLUDED.manufacturer,
			operator = EXCLUDED.operator,
			origin_country = EXCLUDED.origin_country,
			last_updated = EXCLUDED.last_updated,
			source = EXCLUDED.source
	`, rec.Hex, rec.Registration, rec.Type, rec.Manufacturer, rec.Operator,
		rec.OriginCountry, rec.LastUpdated.UTC(), rec.Source)
	if err != nil {
		return fmt.Errorf("%w: upsert enrichment %s: %v", ErrUnavailable, rec.Hex, err)
	}
	return nil
}

// GetEnrichment retrieves a record by hex. Nil means never attempted.
func (d *PostgresDB) GetEnrichment(ctx context.Context, hex string) (*EnrichmentRecord, error) {
	var rec EnrichmentRecord
	err := d.pool.QueryRow(ctx, `
		SELECT hex, registration, type, manufacturer, operator, origin_country, last_updated, source
		FROM aircraft_enriched WHERE hex = $1
	`, hex).Scan(&rec.Hex, &rec.Registration, &rec.Type, &rec.Manufacturer,
		&rec.Operator, &rec.OriginCountry, &rec.LastUpdated, &rec.Source)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get enrichment %s: %v", ErrUnavailable, hex, err)
	}
	return &rec, nil
}

// ListObservationsByAircraft returns the most recent observations for one
// aircraft, newest first.
func (d *PostgresDB) ListObservationsByAircraft(ctx context.Context, hex string, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi
		FROM observations WHERE hex = $1
		ORDER BY captured_at DESC LIMIT $2
	`, hex, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list observations %s: %v", ErrUnavailable, hex, err)
	}
	defer rows.Close()
	return scanPGObservations(rows)
}

// ListObservationsForDay returns every observation captured on the given
// UTC day, in capture order.
func (d *PostgresDB) ListObservationsForDay(ctx context.Context, day time.Time) ([]Observation, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows, err := d.pool.Query(ctx, `
		SELECT id, hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi
		FROM observations
		WHERE captured_at >= $1 AND captured_at < $2
		ORDER BY captured_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: list day observations: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	return scanPGObservations(rows)
}

func scanPGObservations(rows pgx.Rows) ([]Observation, error) {
	var obs []Observation
	for rows.Next() {
		var o Observation
		err := rows.Scan(&o.ID, &o.Hex, &o.CapturedAt, &o.Flight, &o.Lat, &o.Lon,
			&o.AltBaro, &o.Track, &o.GroundSpeed, &o.Squawk, &o.Category, &o.RSSI)
		if err != nil {
			return nil, fmt.Errorf("%w: scan observation: %v", ErrUnavailable, err)
		}
		o.CapturedAt = o.CapturedAt.UTC()
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// GetStats returns enrichment progress counters.
func (d *PostgresDB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := d.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT hex) FROM observations").Scan(&s.TotalAircraft); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	if err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM observations").Scan(&s.TotalObservations); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	if err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM aircraft_enriched").Scan(&s.Enriched); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	if err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM aircraft_enriched WHERE registration IS NOT NULL AND registration != ''").Scan(&s.WithRegistration); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	return &s, nil
}

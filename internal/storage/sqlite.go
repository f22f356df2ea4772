package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB is the primary Store backend: a single local database file,
// shared by the ingest and enrichment invocations. WAL mode lets the two
// write concurrently (they touch disjoint tables) while SQLite serializes
// overlapping enrichment upserts itself.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", ErrUnavailable, err)
	}
	// Writers from overlapping invocations wait instead of failing fast.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set busy_timeout: %v", ErrUnavailable, err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hex TEXT NOT NULL,
		captured_at TEXT NOT NULL,
		flight TEXT,
		lat REAL,
		lon REAL,
		alt_baro INTEGER,
		track REAL,
		ground_speed REAL,
		squawk TEXT,
		category TEXT,
		rssi REAL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_hex ON observations(hex);
	CREATE INDEX IF NOT EXISTS idx_observations_captured ON observations(captured_at);

	CREATE TABLE IF NOT EXISTS aircraft_enriched (
		hex TEXT PRIMARY KEY,
		registration TEXT,
		type TEXT,
		manufacturer TEXT,
		operator TEXT,
		origin_country TEXT,
		last_updated TEXT NOT NULL,
		source TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AppendObservations writes the batch in one transaction; the batch is
// never partially applied.
func (d *SQLiteDB) AppendObservations(ctx context.Context, batch []Observation) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin append: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare append: %v", ErrUnavailable, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range batch {
		_, err := stmt.ExecContext(ctx, o.Hex, formatTime(o.CapturedAt),
			o.Flight, o.Lat, o.Lon, o.AltBaro, o.Track, o.GroundSpeed,
			o.Squawk, o.Category, o.RSSI)
		if err != nil {
			return 0, fmt.Errorf("%w: insert observation %s: %v", ErrUnavailable, o.Hex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit append: %v", ErrUnavailable, err)
	}
	return len(batch), nil
}

// ListEnrichmentCandidates returns hex codes needing a lookup, most
// recently observed first.
func (d *SQLiteDB) ListEnrichmentCandidates(ctx context.Context, q CandidateQuery) ([]string, error) {
	var conditions []string
	var args []interface{}

	if !q.WindowStart.IsZero() {
		conditions = append(conditions, "o.captured_at >= ?")
		args = append(args, formatTime(q.WindowStart))
	}
	if !q.WindowEnd.IsZero() {
		conditions = append(conditions, "o.captured_at < ?")
		args = append(args, formatTime(q.WindowEnd))
	}

	if q.EnrichedBefore != nil {
		conditions = append(conditions, "(e.hex IS NULL OR e.last_updated < ?)")
		args = append(args, formatTime(*q.EnrichedBefore))
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

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list candidates: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

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
func (d *SQLiteDB) UpsertEnrichment(ctx context.Context, rec EnrichmentRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO aircraft_enriched
		(hex, registration, type, manufacturer, operator, origin_country, last_updated, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Hex, rec.Registration, rec.Type, rec.Manufacturer, rec.Operator,
		rec.OriginCountry, formatTime(rec.LastUpdated), rec.Source)
	if err != nil {
		return fmt.Errorf("%w: upsert enrichment %s: %v", ErrUnavailable, rec.Hex, err)
	}
	return nil
}

// GetEnrichment retrieves a record by hex. Nil means never attempted.
func (d *SQLiteDB) GetEnrichment(ctx context.Context, hex string) (*EnrichmentRecord, error) {
	var rec EnrichmentRecord
	var lastUpdated string
	err := d.db.QueryRowContext(ctx, `
		SELECT hex, registration, type, manufacturer, operator, origin_country, last_updated, source
		FROM aircraft_enriched WHERE hex = ?
	`, hex).Scan(&rec.Hex, &rec.Registration, &rec.Type, &rec.Manufacturer,
		&rec.Operator, &rec.OriginCountry, &lastUpdated, &rec.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get enrichment %s: %v", ErrUnavailable, hex, err)
	}
	rec.LastUpdated = parseTime(lastUpdated)
	return &rec, nil
}

const observationColumns = "id, hex, captured_at, flight, lat, lon, alt_baro, track, ground_speed, squawk, category, rssi"

func scanObservation(rows *sql.Rows) (Observation, error) {
	var o Observation
	var capturedAt string
	err := rows.Scan(&o.ID, &o.Hex, &capturedAt, &o.Flight, &o.Lat, &o.Lon,
		&o.AltBaro, &o.Track, &o.GroundSpeed, &o.Squawk, &o.Category, &o.RSSI)
	if err != nil {
		return o, err
	}
	o.CapturedAt = parseTime(capturedAt)
	return o, nil
}

// ListObservationsByAircraft returns the most recent observations for one
// aircraft, newest first.
func (d *SQLiteDB) ListObservationsByAircraft(ctx context.Context, hex string, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations WHERE hex = ?
		ORDER BY captured_at DESC LIMIT ?
	`, hex, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list observations %s: %v", ErrUnavailable, hex, err)
	}
	defer func() { _ = rows.Close() }()

	var obs []Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan observation: %v", ErrUnavailable, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// ListObservationsForDay returns every observation captured on the given
// UTC day, in capture order. This feeds the downstream daily summarizer.
func (d *SQLiteDB) ListObservationsForDay(ctx context.Context, day time.Time) ([]Observation, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE captured_at >= ? AND captured_at < ?
		ORDER BY captured_at
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("%w: list day observations: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var obs []Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan observation: %v", ErrUnavailable, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// GetStats returns enrichment progress counters.
func (d *SQLiteDB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	row := d.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT hex) FROM observations")
	if err := row.Scan(&s.TotalAircraft); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	row = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations")
	if err := row.Scan(&s.TotalObservations); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	row = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM aircraft_enriched")
	if err := row.Scan(&s.Enriched); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	row = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM aircraft_enriched WHERE registration IS NOT NULL AND registration != ''")
	if err := row.Scan(&s.WithRegistration); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	return &s, nil
}

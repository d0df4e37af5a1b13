package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// migrations are applied in order; schema_migrations records the last
// applied version. Append only, never edit an applied entry.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_samples (
		device_id TEXT NOT NULL,
		ts BIGINT NOT NULL,
		gps_ts BIGINT,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		odometer DOUBLE PRECISION NOT NULL DEFAULT 0,
		angle DOUBLE PRECISION,
		ignition INT,
		io_speed DOUBLE PRECISION,
		fuel_level DOUBLE PRECISION,
		fuel_counter DOUBLE PRECISION,
		driver_card_id TEXT,
		driver_work_state INT,
		PRIMARY KEY (device_id, ts)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_samples_device_ts ON telemetry_samples (device_id, ts DESC)`,
}

// SQLStore is the Postgres-backed cache used when DATABASE_URL is set.
// One table keyed (device_id, ts) holds every device, so a new device
// needs no runtime schema change.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQL connects, pings and migrates the sample schema.
func OpenSQL(dbURL string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		applied_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	var current sql.NullInt64
	if err := s.db.Get(&current, `SELECT MAX(version) FROM schema_migrations`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	from := int(current.Int64)
	for i := from; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		log.Printf("store: applied schema migration %d", i+1)
	}
	return nil
}

type sampleRow struct {
	DeviceID        string   `db:"device_id"`
	TS              int64    `db:"ts"`
	GPSTS           *int64   `db:"gps_ts"`
	Longitude       float64  `db:"longitude"`
	Latitude        float64  `db:"latitude"`
	Speed           float64  `db:"speed"`
	Odometer        float64  `db:"odometer"`
	Angle           *float64 `db:"angle"`
	Ignition        *int     `db:"ignition"`
	IOSpeed         *float64 `db:"io_speed"`
	FuelLevel       *float64 `db:"fuel_level"`
	FuelCounter     *float64 `db:"fuel_counter"`
	DriverCardID    *string  `db:"driver_card_id"`
	DriverWorkState *int     `db:"driver_work_state"`
}

func rowFromSample(deviceID string, s telemetry.Sample) sampleRow {
	row := sampleRow{
		DeviceID:        deviceID,
		TS:              s.Timestamp,
		Longitude:       s.GPS.Longitude,
		Latitude:        s.GPS.Latitude,
		Speed:           s.GPS.Speed,
		Odometer:        s.GPS.Odometer,
		Angle:           s.GPS.Angle,
		Ignition:        s.IO.Ignition,
		IOSpeed:         s.IO.Speed,
		FuelLevel:       s.IO.FuelLevel,
		FuelCounter:     s.IO.FuelCounter,
		DriverCardID:    s.IO.DriverCardID,
		DriverWorkState: s.IO.DriverWorkState,
	}
	if s.GPS.Timestamp > 0 {
		ts := s.GPS.Timestamp
		row.GPSTS = &ts
	}
	return row
}

func (r sampleRow) toSample() telemetry.Sample {
	s := telemetry.Sample{
		Timestamp: r.TS,
		GPS: telemetry.GPS{
			Longitude: r.Longitude,
			Latitude:  r.Latitude,
			Speed:     r.Speed,
			Odometer:  r.Odometer,
			Angle:     r.Angle,
		},
		IO: telemetry.IO{
			Ignition:        r.Ignition,
			Speed:           r.IOSpeed,
			FuelLevel:       r.FuelLevel,
			FuelCounter:     r.FuelCounter,
			DriverCardID:    r.DriverCardID,
			DriverWorkState: r.DriverWorkState,
		},
	}
	if r.GPSTS != nil {
		s.GPS.Timestamp = *r.GPSTS
	}
	return s
}

// EnsureDevice is a no-op for the keyed table layout; it only validates the id.
func (s *SQLStore) EnsureDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("store: empty device id")
	}
	return nil
}

// Get returns samples with from <= ts <= to, ordered and truncated per opts.
// Filters are applied after the scan so both backends share one predicate.
func (s *SQLStore) Get(ctx context.Context, deviceID string, from, to int64, opts GetOptions) ([]telemetry.Sample, error) {
	order := "ASC"
	if opts.Direction == Descending {
		order = "DESC"
	}
	query := `SELECT * FROM telemetry_samples WHERE device_id = $1 AND ts BETWEEN $2 AND $3 ORDER BY ts ` + order
	var rows []sampleRow
	if err := s.db.SelectContext(ctx, &rows, query, deviceID, from, to); err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	out := make([]telemetry.Sample, 0, len(rows))
	for _, r := range rows {
		sample := r.toSample()
		if !matchFilters(sample, opts.Filters) {
			continue
		}
		out = append(out, sample)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

const upsertSample = `INSERT INTO telemetry_samples (
		device_id, ts, gps_ts, longitude, latitude, speed, odometer, angle,
		ignition, io_speed, fuel_level, fuel_counter, driver_card_id, driver_work_state
	) VALUES (
		:device_id, :ts, :gps_ts, :longitude, :latitude, :speed, :odometer, :angle,
		:ignition, :io_speed, :fuel_level, :fuel_counter, :driver_card_id, :driver_work_state
	) ON CONFLICT (device_id, ts) DO UPDATE SET
		gps_ts = EXCLUDED.gps_ts, longitude = EXCLUDED.longitude,
		latitude = EXCLUDED.latitude, speed = EXCLUDED.speed,
		odometer = EXCLUDED.odometer, angle = EXCLUDED.angle,
		ignition = EXCLUDED.ignition, io_speed = EXCLUDED.io_speed,
		fuel_level = EXCLUDED.fuel_level, fuel_counter = EXCLUDED.fuel_counter,
		driver_card_id = EXCLUDED.driver_card_id, driver_work_state = EXCLUDED.driver_work_state
	RETURNING (xmax = 0) AS inserted`

const insertSampleSkip = `INSERT INTO telemetry_samples (
		device_id, ts, gps_ts, longitude, latitude, speed, odometer, angle,
		ignition, io_speed, fuel_level, fuel_counter, driver_card_id, driver_work_state
	) VALUES (
		:device_id, :ts, :gps_ts, :longitude, :latitude, :speed, :odometer, :angle,
		:ignition, :io_speed, :fuel_level, :fuel_counter, :driver_card_id, :driver_work_state
	) ON CONFLICT (device_id, ts) DO NOTHING`

// AddMany upserts a batch. Per-record failures are accumulated in the
// result; the batch never aborts. The insert-vs-update outcome comes from
// the statement itself, so concurrent batches count correctly.
func (s *SQLStore) AddMany(ctx context.Context, deviceID string, records []telemetry.RawSample, opts AddOptions) (AddResult, error) {
	var res AddResult
	if deviceID == "" {
		return res, fmt.Errorf("store: empty device id")
	}
	for _, r := range records {
		sample, ok := telemetry.Sanitize(r)
		if !ok {
			res.Errors = append(res.Errors, fmt.Errorf("record %q: %w", r.ID, telemetry.ErrNoTimestamp))
			continue
		}
		row := rowFromSample(deviceID, sample)
		if opts.OnDuplicate == SkipOnDuplicate {
			result, err := s.db.NamedExecContext(ctx, insertSampleSkip, row)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("record %q: %w", r.ID, err))
				continue
			}
			if n, err := result.RowsAffected(); err == nil && n > 0 {
				res.Inserted++
			}
			continue
		}
		rows, err := s.db.NamedQueryContext(ctx, upsertSample, row)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("record %q: %w", r.ID, err))
			continue
		}
		var inserted bool
		if rows.Next() {
			if err := rows.Scan(&inserted); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("record %q: %w", r.ID, err))
				rows.Close()
				continue
			}
		}
		rows.Close()
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// Stats summarizes cache contents for the health endpoint.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st.Samples, `SELECT COUNT(*) FROM telemetry_samples`); err != nil {
		return st, fmt.Errorf("counting samples: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.Devices, `SELECT COUNT(DISTINCT device_id) FROM telemetry_samples`); err != nil {
		return st, fmt.Errorf("counting devices: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

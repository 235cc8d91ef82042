package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitoredLocation is one buoy station the scheduler re-ingests every cycle.
type MonitoredLocation struct {
	StationID string  `json:"station_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Record is one persisted surf condition reading from one source.
type Record struct {
	Source     string    `json:"source"`
	StationID  string    `json:"station_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt time.Time `json:"observed_at"`

	WaveHeightM      *float64 `json:"wave_height_m"`
	WavePeriodS      *float64 `json:"wave_period_s"`
	WaveDirectionDeg *float64 `json:"wave_direction_deg"`
	WindSpeedMS      *float64 `json:"wind_speed_ms"`
	WindDirectionDeg *float64 `json:"wind_direction_deg"`
	WaterTempC       *float64 `json:"water_temp_c"`
	AirTempC         *float64 `json:"air_temp_c"`
	TideHeightM      *float64 `json:"tide_height_m"`
	CurrentSpeedMS   *float64 `json:"current_speed_ms"`
}

// ConditionStats summarizes stored readings over a time window.
type ConditionStats struct {
	RecordCount int      `json:"record_count"`
	WaveAvgM    *float64 `json:"wave_avg_m"`
	WaveMinM    *float64 `json:"wave_min_m"`
	WaveMaxM    *float64 `json:"wave_max_m"`
	WindAvgMS   *float64 `json:"wind_avg_ms"`
	WindMinMS   *float64 `json:"wind_min_ms"`
	WindMaxMS   *float64 `json:"wind_max_ms"`
	PeriodAvgS  *float64 `json:"period_avg_s"`
}

// Postgres is the durable store behind ingestion: monitored locations in,
// surf condition records out. Upserts are idempotent on
// (source, station_id, observed_at).
type Postgres struct {
	pool *pgxpool.Pool
}

// New connects a pool and verifies connectivity before returning.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// Ping is the trivial connectivity probe used by the health monitor.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListMonitoredLocations returns every buoy station, fresh from the database.
// Called at the start of each scheduler cycle so edits take effect next cycle.
func (s *Postgres) ListMonitoredLocations(ctx context.Context) ([]MonitoredLocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT station_id, latitude, longitude FROM buoy_stations ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("list monitored locations: %w", err)
	}
	defer rows.Close()

	var locations []MonitoredLocation
	for rows.Next() {
		var loc MonitoredLocation
		if err := rows.Scan(&loc.StationID, &loc.Lat, &loc.Lon); err != nil {
			return nil, fmt.Errorf("scan monitored location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// CountMonitoredLocations backs the ingest status endpoint.
func (s *Postgres) CountMonitoredLocations(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM buoy_stations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count monitored locations: %w", err)
	}
	return count, nil
}

const recordColumns = `source, station_id, latitude, longitude, observed_at,
	wave_height, wave_period, wave_direction,
	wind_speed, wind_direction, water_temp, air_temp, tide_height, current_speed`

func scanRecord(rows pgx.Rows) (Record, error) {
	var r Record
	err := rows.Scan(
		&r.Source, &r.StationID, &r.Lat, &r.Lon, &r.ObservedAt,
		&r.WaveHeightM, &r.WavePeriodS, &r.WaveDirectionDeg,
		&r.WindSpeedMS, &r.WindDirectionDeg, &r.WaterTempC, &r.AirTempC,
		&r.TideHeightM, &r.CurrentSpeedMS,
	)
	return r, err
}

// ListRecentRecords returns the newest stored readings, newest first,
// optionally filtered to one station. An empty stationID matches everything.
func (s *Postgres) ListRecentRecords(ctx context.Context, stationID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 24
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM surf_conditions
		 WHERE ($1 = '' OR station_id = $1)
		 ORDER BY observed_at DESC
		 LIMIT $2`,
		stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestRecord returns the single most recent reading, or nil when the store
// is empty. An empty stationID matches everything.
func (s *Postgres) LatestRecord(ctx context.Context, stationID string) (*Record, error) {
	records, err := s.ListRecentRecords(ctx, stationID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ConditionStatsSince aggregates wave height, wind speed, and wave period over
// readings newer than since. Aggregates over metrics no row reported are nil.
func (s *Postgres) ConditionStatsSince(ctx context.Context, since time.Time, stationID string) (ConditionStats, error) {
	var stats ConditionStats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        avg(wave_height), min(wave_height), max(wave_height),
		        avg(wind_speed), min(wind_speed), max(wind_speed),
		        avg(wave_period)
		 FROM surf_conditions
		 WHERE observed_at >= $1 AND ($2 = '' OR station_id = $2)`,
		since, stationID).Scan(
		&stats.RecordCount,
		&stats.WaveAvgM, &stats.WaveMinM, &stats.WaveMaxM,
		&stats.WindAvgMS, &stats.WindMinMS, &stats.WindMaxMS,
		&stats.PeriodAvgS,
	)
	if err != nil {
		return ConditionStats{}, fmt.Errorf("aggregate condition stats: %w", err)
	}
	return stats, nil
}

// UpsertRecords writes a batch of readings idempotently and returns how many
// rows were written. Re-ingesting the same reading overwrites, never duplicates.
func (s *Postgres) UpsertRecords(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(
			`INSERT INTO surf_conditions (
				source, station_id, latitude, longitude, observed_at,
				wave_height, wave_period, wave_direction,
				wind_speed, wind_direction, water_temp, air_temp, tide_height, current_speed
			)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (source, station_id, observed_at) DO UPDATE SET
			   latitude = $3, longitude = $4,
			   wave_height = $6, wave_period = $7, wave_direction = $8,
			   wind_speed = $9, wind_direction = $10, water_temp = $11,
			   air_temp = $12, tide_height = $13, current_speed = $14`,
			r.Source, r.StationID, r.Lat, r.Lon, r.ObservedAt,
			r.WaveHeightM, r.WavePeriodS, r.WaveDirectionDeg,
			r.WindSpeedMS, r.WindDirectionDeg, r.WaterTempC, r.AirTempC,
			r.TideHeightM, r.CurrentSpeedMS,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range records {
		if _, err := br.Exec(); err != nil {
			return written, fmt.Errorf("upsert record: %w", err)
		}
		written++
	}
	return written, nil
}

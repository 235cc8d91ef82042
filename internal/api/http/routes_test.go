package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
	"github.com/swellsense/surf-data-aggregation/internal/scheduler"
	"github.com/swellsense/surf-data-aggregation/internal/store"
)

// fakeDB stands in for Postgres across every handler dependency.
type fakeDB struct {
	locations []store.MonitoredLocation
	records   []store.Record
	stats     store.ConditionStats
	pingErr   error

	gotStationID string
	gotLimit     int
	gotSince     time.Time
}

func (db *fakeDB) ListMonitoredLocations(ctx context.Context) ([]store.MonitoredLocation, error) {
	return db.locations, nil
}

func (db *fakeDB) CountMonitoredLocations(ctx context.Context) (int, error) {
	return len(db.locations), nil
}

func (db *fakeDB) ListRecentRecords(ctx context.Context, stationID string, limit int) ([]store.Record, error) {
	db.gotStationID = stationID
	db.gotLimit = limit
	if limit < len(db.records) {
		return db.records[:limit], nil
	}
	return db.records, nil
}

func (db *fakeDB) LatestRecord(ctx context.Context, stationID string) (*store.Record, error) {
	db.gotStationID = stationID
	if len(db.records) == 0 {
		return nil, nil
	}
	return &db.records[0], nil
}

func (db *fakeDB) ConditionStatsSince(ctx context.Context, since time.Time, stationID string) (store.ConditionStats, error) {
	db.gotStationID = stationID
	db.gotSince = since
	return db.stats, nil
}

func (db *fakeDB) Ping(ctx context.Context) error {
	return db.pingErr
}

type staticProvider struct {
	name string
	obs  forecast.Observation
	ok   bool
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if !p.ok {
		return forecast.Observation{}, errors.New("unavailable")
	}
	obs := p.obs
	obs.Provider = p.name
	obs.Lat, obs.Lon = lat, lon
	return obs, nil
}

func (p *staticProvider) HealthCheck(ctx context.Context) forecast.Probe {
	return forecast.Probe{OK: p.ok}
}

func (p *staticProvider) Timeout() time.Duration  { return time.Second }
func (p *staticProvider) GridResolution() float64 { return 0.1 }
func (p *staticProvider) CacheTTL() time.Duration { return time.Hour }

func newTestApp(provs []forecast.Provider, db *fakeDB) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})

	svc := forecast.NewService(provs, nil, nil, nil)
	health := forecast.NewHealthMonitor(provs, db, 5*time.Minute, nil)
	sched := scheduler.New(scheduler.Config{DB: db, LocationDelay: time.Millisecond})

	RegisterRoutes(app, svc, health, sched, db)
	return app
}

func getJSON(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestForecastValidation(t *testing.T) {
	app := newTestApp(nil, &fakeDB{})

	for _, target := range []string{
		"/forecast/global",
		"/forecast/global?lat=33.63",
		"/forecast/global?lat=abc&lon=-118",
		"/forecast/global?lat=91&lon=-118",
		"/forecast/global?lat=33.63&lon=-181",
		"/forecast/global?lat=33.63&lon=-118&hours=0",
	} {
		status, body := getJSON(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, true, body["error"], target)
	}
}

func TestForecastAggregation(t *testing.T) {
	wave := 1.8
	app := newTestApp([]forecast.Provider{
		&staticProvider{name: "stormglass", ok: true, obs: forecast.Observation{WaveHeightM: &wave}},
		&staticProvider{name: "worldtides", ok: false},
	}, &fakeDB{})

	status, body := getJSON(t, app, http.MethodGet, "/forecast/global?lat=33.63&lon=-118.0")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, true, body["partial"])
	assert.Equal(t, []any{"stormglass"}, body["sources_available"])
	assert.Equal(t, []any{"worldtides"}, body["sources_failed"])
	assert.NotContains(t, body, "diagnostics", "diagnostics are debug-only")

	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1.8, summary["wave_height_m"], 1e-9)
}

func TestForecastDebugIncludesDiagnostics(t *testing.T) {
	wave1, wave2 := 1.8, 2.2
	app := newTestApp([]forecast.Provider{
		&staticProvider{name: "stormglass", ok: true, obs: forecast.Observation{WaveHeightM: &wave1}},
		&staticProvider{name: "openmeteo", ok: true, obs: forecast.Observation{WaveHeightM: &wave2}},
	}, &fakeDB{})

	status, body := getJSON(t, app, http.MethodGet, "/forecast/global/debug?lat=33.63&lon=-118.0")
	require.Equal(t, http.StatusOK, status)

	diags, ok := body["diagnostics"].(map[string]any)
	require.True(t, ok)
	wave, ok := diags["wave_height_m"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2.0, wave["mean"], 1e-9)
	assert.EqualValues(t, 2, wave["count"])
}

func TestForecastHealth(t *testing.T) {
	app := newTestApp([]forecast.Provider{
		&staticProvider{name: "openmeteo", ok: true},
	}, &fakeDB{})

	status, body := getJSON(t, app, http.MethodGet, "/forecast/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestForecastHealth_Degraded(t *testing.T) {
	app := newTestApp(nil, &fakeDB{pingErr: errors.New("connection refused")})

	status, body := getJSON(t, app, http.MethodGet, "/forecast/health")
	assert.Equal(t, http.StatusMultiStatus, status)
	assert.Equal(t, "degraded", body["status"])
}

func TestIngestStatus(t *testing.T) {
	db := &fakeDB{locations: []store.MonitoredLocation{
		{StationID: "46222"}, {StationID: "46253"}, {StationID: "46221"},
	}}
	app := newTestApp(nil, db)

	status, body := getJSON(t, app, http.MethodGet, "/ingest/status")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "stopped", body["status"])
	assert.EqualValues(t, 3, body["monitored_location_count"])
	assert.EqualValues(t, 1, body["interval_hours"])
}

func storedRecord(station string, hoursAgo int, wave float64) store.Record {
	return store.Record{
		Source:      "ndbc",
		StationID:   station,
		ObservedAt:  time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC).Add(-time.Duration(hoursAgo) * time.Hour),
		WaveHeightM: &wave,
	}
}

func TestStoredForecast(t *testing.T) {
	db := &fakeDB{records: []store.Record{
		storedRecord("46222", 0, 2.1),
		storedRecord("46222", 1, 2.0),
		storedRecord("46253", 2, 1.8),
	}}
	app := newTestApp(nil, db)

	status, body := getJSON(t, app, http.MethodGet, "/forecast?station_id=46222&limit=2")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "46222", db.gotStationID)
	assert.Equal(t, 2, db.gotLimit)
	assert.EqualValues(t, 2, body["count"])

	data, ok := body["data"].([]any)
	require.True(t, ok)
	first, ok := data[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ndbc", first["source"])
	assert.InDelta(t, 2.1, first["wave_height_m"], 1e-9)
}

func TestStoredForecast_Validation(t *testing.T) {
	app := newTestApp(nil, &fakeDB{})

	for _, target := range []string{
		"/forecast?limit=0",
		"/forecast?limit=abc",
		"/forecast?limit=501",
		"/forecast/stats?hours=0",
		"/forecast/stats?hours=169",
	} {
		status, body := getJSON(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, true, body["error"], target)
	}
}

func TestStoredForecastLatest(t *testing.T) {
	db := &fakeDB{records: []store.Record{storedRecord("46222", 0, 2.1)}}
	app := newTestApp(nil, db)

	status, body := getJSON(t, app, http.MethodGet, "/forecast/latest")
	require.Equal(t, http.StatusOK, status)

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "46222", data["station_id"])
}

func TestStoredForecastLatest_Empty(t *testing.T) {
	app := newTestApp(nil, &fakeDB{})

	status, body := getJSON(t, app, http.MethodGet, "/forecast/latest")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
}

func TestStoredForecastStats(t *testing.T) {
	avg, low, high := 2.0555, 1.8, 2.1
	db := &fakeDB{stats: store.ConditionStats{
		RecordCount: 3,
		WaveAvgM:    &avg, WaveMinM: &low, WaveMaxM: &high,
	}}
	app := newTestApp(nil, db)

	status, body := getJSON(t, app, http.MethodGet, "/forecast/stats?hours=6&station_id=46222")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "46222", db.gotStationID)
	assert.WithinDuration(t, time.Now().UTC().Add(-6*time.Hour), db.gotSince, time.Minute)

	assert.EqualValues(t, 6, body["period_hours"])
	assert.EqualValues(t, 3, body["record_count"])

	wave, ok := body["wave_height"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2.06, wave["avg"], 1e-9, "averages are rounded to two decimals")
	assert.Equal(t, "meters", wave["unit"])

	wind, ok := body["wind_speed"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, wind["avg"], "metrics no row reported stay null")
}

func TestIngestTrigger(t *testing.T) {
	app := newTestApp(nil, &fakeDB{})

	status, body := getJSON(t, app, http.MethodPost, "/ingest/trigger")
	require.Equal(t, http.StatusOK, status)

	assert.EqualValues(t, 0, body["records_inserted"])
	assert.EqualValues(t, 0, body["buoys_processed"])
}

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
)

type stubProvider struct {
	obs forecast.Observation
	err error
}

func (p *stubProvider) Name() string { return "stormglass" }

func (p *stubProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if p.err != nil {
		return forecast.Observation{}, p.err
	}
	obs := p.obs
	obs.Provider = p.Name()
	obs.Lat, obs.Lon = lat, lon
	return obs, nil
}

func (p *stubProvider) HealthCheck(ctx context.Context) forecast.Probe {
	return forecast.Probe{OK: p.err == nil}
}

func (p *stubProvider) Timeout() time.Duration  { return time.Second }
func (p *stubProvider) GridResolution() float64 { return 0.1 }
func (p *stubProvider) CacheTTL() time.Duration { return time.Hour }

func TestProviderSource_Ingest(t *testing.T) {
	wave, airTemp := 1.8, 17.5
	observedAt := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	p := &stubProvider{obs: forecast.Observation{Timestamp: observedAt, WaveHeightM: &wave, AirTempC: &airTemp}}

	db := &captureStore{}
	src := NewProviderSource(p, db)
	assert.Equal(t, "stormglass", src.Name())

	n, err := src.Ingest(context.Background(), testLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, db.records, 1)
	rec := db.records[0]
	assert.Equal(t, "stormglass", rec.Source)
	assert.Equal(t, "46222", rec.StationID)
	assert.Equal(t, 33.618, rec.Lat)
	assert.Equal(t, observedAt, rec.ObservedAt)
	require.NotNil(t, rec.WaveHeightM)
	assert.InDelta(t, 1.8, *rec.WaveHeightM, 1e-9)
	require.NotNil(t, rec.AirTempC)
	assert.InDelta(t, 17.5, *rec.AirTempC, 1e-9)
}

func TestProviderSource_FetchFailure(t *testing.T) {
	src := NewProviderSource(&stubProvider{err: errors.New("quota exhausted")}, &captureStore{})

	n, err := src.Ingest(context.Background(), testLocation)
	assert.Error(t, err)
	assert.Zero(t, n)
}

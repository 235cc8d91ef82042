package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stormglassPayload = `{
	"hours": [
		{
			"time": "2025-01-15T14:00:00+00:00",
			"waveHeight": {"sg": 1.85},
			"wavePeriod": {"sg": 12.4},
			"waveDirection": {"sg": 245.0},
			"waterTemperature": {"sg": 16.2},
			"windSpeed": {"sg": 3.1},
			"windDirection": {"sg": 210.0}
		}
	]
}`

func TestStormGlass_Fetch(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, stormglassPayload)
	}))
	defer srv.Close()

	p := NewStormGlassProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	obs, err := p.Fetch(context.Background(), 33.63, -118.0)
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotAuth)
	assert.Contains(t, gotQuery, "waveHeight")

	assert.Equal(t, "stormglass", obs.Provider)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), obs.Timestamp)
	require.NotNil(t, obs.WaveHeightM)
	assert.InDelta(t, 1.85, *obs.WaveHeightM, 1e-9)
	require.NotNil(t, obs.WavePeriodS)
	assert.InDelta(t, 12.4, *obs.WavePeriodS, 1e-9)
	require.NotNil(t, obs.WaterTempC)
	assert.InDelta(t, 16.2, *obs.WaterTempC, 1e-9)
	require.NotNil(t, obs.WindSpeedMS)
	assert.InDelta(t, 3.1, *obs.WindSpeedMS, 1e-9)
}

func TestStormGlass_MissingKey(t *testing.T) {
	p := NewStormGlassProvider(http.DefaultClient, "")

	_, err := p.Fetch(context.Background(), 33.63, -118.0)
	assert.Error(t, err)

	probe := p.HealthCheck(context.Background())
	assert.False(t, probe.OK)
}

func TestStormGlass_NoForecastHours(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hours": []}`)
	}))
	defer srv.Close()

	p := NewStormGlassProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), 33.63, -118.0)
	assert.Error(t, err)
}

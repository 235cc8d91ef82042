package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
)

// OpenMeteoProvider reads the free Open-Meteo marine API. No key required,
// which makes it the dependable fallback when the commercial sources are out.
type OpenMeteoProvider struct {
	base
	baseURL string
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		base:    newBase("openmeteo", client, 10*time.Second, 0.1),
		baseURL: "https://marine-api.open-meteo.com/v1/marine",
	}
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	var payload struct {
		Hourly struct {
			Time          []string   `json:"time"`
			WaveHeight    []*float64 `json:"wave_height"`
			WavePeriod    []*float64 `json:"wave_period"`
			WaveDirection []*float64 `json:"wave_direction"`
		} `json:"hourly"`
	}

	if err := p.getJSON(ctx, p.queryURL(lat, lon), nil, &payload); err != nil {
		return forecast.Observation{}, err
	}
	if len(payload.Hourly.Time) == 0 {
		return forecast.Observation{}, errors.New("openmeteo returned no hourly data")
	}

	obs := forecast.Observation{
		Provider:  p.name,
		Lat:       lat,
		Lon:       lon,
		Timestamp: parseTimestamp(payload.Hourly.Time[0]),
	}
	if len(payload.Hourly.WaveHeight) > 0 {
		obs.WaveHeightM = payload.Hourly.WaveHeight[0]
	}
	if len(payload.Hourly.WavePeriod) > 0 {
		obs.WavePeriodS = payload.Hourly.WavePeriod[0]
	}
	if len(payload.Hourly.WaveDirection) > 0 {
		obs.WaveDirectionDeg = payload.Hourly.WaveDirection[0]
	}
	return obs, nil
}

func (p *OpenMeteoProvider) HealthCheck(ctx context.Context) forecast.Probe {
	return p.probe(ctx, p.queryURL(healthCheckLat, healthCheckLon), nil)
}

func (p *OpenMeteoProvider) queryURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("hourly", "wave_height,wave_period,wave_direction")
	values.Set("forecast_hours", "1")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

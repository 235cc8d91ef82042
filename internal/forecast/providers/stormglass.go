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

const stormglassParams = "waveHeight,wavePeriod,waveDirection,waterTemperature,windSpeed,windDirection"

// StormGlassProvider reads the StormGlass marine point forecast. Values come
// back nested per model; we use the "sg" consensus value like the rest of
// their API consumers.
type StormGlassProvider struct {
	base
	apiKey  string
	baseURL string
}

func NewStormGlassProvider(client *http.Client, apiKey string) *StormGlassProvider {
	return &StormGlassProvider{
		base:    newBase("stormglass", client, 10*time.Second, 0.1),
		apiKey:  apiKey,
		baseURL: "https://api.stormglass.io/v2/weather/point",
	}
}

type sgValue struct {
	SG *float64 `json:"sg"`
}

func (p *StormGlassProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if p.apiKey == "" {
		return forecast.Observation{}, errors.New("stormglass api key is not configured")
	}

	var payload struct {
		Hours []struct {
			Time             string  `json:"time"`
			WaveHeight       sgValue `json:"waveHeight"`
			WavePeriod       sgValue `json:"wavePeriod"`
			WaveDirection    sgValue `json:"waveDirection"`
			WaterTemperature sgValue `json:"waterTemperature"`
			WindSpeed        sgValue `json:"windSpeed"`
			WindDirection    sgValue `json:"windDirection"`
		} `json:"hours"`
	}

	header := http.Header{}
	header.Set("Authorization", p.apiKey)
	if err := p.getJSON(ctx, p.pointURL(lat, lon), header, &payload); err != nil {
		return forecast.Observation{}, err
	}
	if len(payload.Hours) == 0 {
		return forecast.Observation{}, errors.New("stormglass returned no forecast hours")
	}

	hour := payload.Hours[0]
	return forecast.Observation{
		Provider:         p.name,
		Lat:              lat,
		Lon:              lon,
		Timestamp:        parseTimestamp(hour.Time),
		WaveHeightM:      hour.WaveHeight.SG,
		WavePeriodS:      hour.WavePeriod.SG,
		WaveDirectionDeg: hour.WaveDirection.SG,
		WaterTempC:       hour.WaterTemperature.SG,
		WindSpeedMS:      hour.WindSpeed.SG,
		WindDirectionDeg: hour.WindDirection.SG,
	}, nil
}

func (p *StormGlassProvider) HealthCheck(ctx context.Context) forecast.Probe {
	if p.apiKey == "" {
		return forecast.Probe{OK: false, Error: "api key not configured"}
	}
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.2f", healthCheckLat))
	values.Set("lng", fmt.Sprintf("%.2f", healthCheckLon))
	values.Set("params", "waveHeight")

	header := http.Header{}
	header.Set("Authorization", p.apiKey)
	return p.probe(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), header)
}

func (p *StormGlassProvider) pointURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lng", fmt.Sprintf("%f", lon))
	values.Set("params", stormglassParams)
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

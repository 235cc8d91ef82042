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

// OpenWeatherProvider contributes wind and air-side context from
// OpenWeatherMap. It carries no wave data, so its observations only populate
// the wind and air temperature metrics.
type OpenWeatherProvider struct {
	base
	apiKey  string
	baseURL string
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		base:    newBase("openweather", client, 10*time.Second, 0.1),
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
	}
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if p.apiKey == "" {
		return forecast.Observation{}, errors.New("openweather api key is not configured")
	}

	var payload struct {
		Dt   int64 `json:"dt"`
		Wind struct {
			Speed *float64 `json:"speed"`
			Deg   *float64 `json:"deg"`
		} `json:"wind"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
	}

	if err := p.getJSON(ctx, p.queryURL(lat, lon), nil, &payload); err != nil {
		return forecast.Observation{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return forecast.Observation{
		Provider:         p.name,
		Lat:              lat,
		Lon:              lon,
		Timestamp:        ts,
		WindSpeedMS:      payload.Wind.Speed,
		WindDirectionDeg: payload.Wind.Deg,
		AirTempC:         payload.Main.Temp,
	}, nil
}

func (p *OpenWeatherProvider) HealthCheck(ctx context.Context) forecast.Probe {
	if p.apiKey == "" {
		return forecast.Probe{OK: false, Error: "api key not configured"}
	}
	return p.probe(ctx, p.queryURL(healthCheckLat, healthCheckLon), nil)
}

func (p *OpenWeatherProvider) queryURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

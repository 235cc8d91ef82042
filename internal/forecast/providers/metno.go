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

// MetNoProvider reads the Norwegian Meteorological Institute ocean forecast.
// Free and keyless, but Met.no rejects anonymous clients, so every request
// carries an identifying User-Agent.
type MetNoProvider struct {
	base
	baseURL   string
	userAgent string
}

func NewMetNoProvider(client *http.Client, userAgent string) *MetNoProvider {
	if userAgent == "" {
		userAgent = "surf-data-aggregation/1.0"
	}
	return &MetNoProvider{
		base:      newBase("metno", client, 10*time.Second, 0.1),
		baseURL:   "https://api.met.no/weatherapi/oceanforecast/2.0/complete",
		userAgent: userAgent,
	}
}

func (p *MetNoProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	var payload struct {
		Properties struct {
			Timeseries []struct {
				Time string `json:"time"`
				Data struct {
					Instant struct {
						Details struct {
							WaveHeight    *float64 `json:"sea_surface_wave_height"`
							WavePeriod    *float64 `json:"sea_surface_wave_period_at_variance_spectral_density_maximum"`
							WaveDirection *float64 `json:"sea_surface_wave_from_direction"`
							SeaTemp       *float64 `json:"sea_water_temperature"`
							CurrentSpeed  *float64 `json:"sea_water_speed"`
						} `json:"details"`
					} `json:"instant"`
				} `json:"data"`
			} `json:"timeseries"`
		} `json:"properties"`
	}

	header := http.Header{}
	header.Set("User-Agent", p.userAgent)
	if err := p.getJSON(ctx, p.queryURL(lat, lon), header, &payload); err != nil {
		return forecast.Observation{}, err
	}
	if len(payload.Properties.Timeseries) == 0 {
		return forecast.Observation{}, errors.New("metno returned no timeseries")
	}

	ts := payload.Properties.Timeseries[0]
	details := ts.Data.Instant.Details
	return forecast.Observation{
		Provider:         p.name,
		Lat:              lat,
		Lon:              lon,
		Timestamp:        parseTimestamp(ts.Time),
		WaveHeightM:      details.WaveHeight,
		WavePeriodS:      details.WavePeriod,
		WaveDirectionDeg: details.WaveDirection,
		WaterTempC:       details.SeaTemp,
		CurrentSpeedMS:   details.CurrentSpeed,
	}, nil
}

func (p *MetNoProvider) HealthCheck(ctx context.Context) forecast.Probe {
	header := http.Header{}
	header.Set("User-Agent", p.userAgent)
	return p.probe(ctx, p.queryURL(healthCheckLat, healthCheckLon), header)
}

func (p *MetNoProvider) queryURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.4f", lat))
	values.Set("lon", fmt.Sprintf("%.4f", lon))
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

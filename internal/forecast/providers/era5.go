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

// ERA5Provider reads ECMWF ERA5 reanalysis through the Open-Meteo archive
// endpoint. Reanalysis trails real time by a few days, so the adapter asks
// for the most recent fully-published day and takes its last hour.
type ERA5Provider struct {
	base
	baseURL string
	now     func() time.Time
}

func NewERA5Provider(client *http.Client) *ERA5Provider {
	return &ERA5Provider{
		base:    newBase("era5", client, 10*time.Second, 0.25),
		baseURL: "https://archive-api.open-meteo.com/v1/era5",
		now:     time.Now,
	}
}

func (p *ERA5Provider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	var payload struct {
		Hourly struct {
			Time          []string   `json:"time"`
			WindSpeed     []*float64 `json:"wind_speed_10m"`
			WindDirection []*float64 `json:"wind_direction_10m"`
		} `json:"hourly"`
	}

	if err := p.getJSON(ctx, p.archiveURL(lat, lon), nil, &payload); err != nil {
		return forecast.Observation{}, err
	}

	// Walk backwards to the newest hour that actually has values.
	for i := len(payload.Hourly.Time) - 1; i >= 0; i-- {
		if i >= len(payload.Hourly.WindSpeed) || payload.Hourly.WindSpeed[i] == nil {
			continue
		}
		obs := forecast.Observation{
			Provider:    p.name,
			Lat:         lat,
			Lon:         lon,
			Timestamp:   parseTimestamp(payload.Hourly.Time[i]),
			WindSpeedMS: payload.Hourly.WindSpeed[i],
		}
		if i < len(payload.Hourly.WindDirection) {
			obs.WindDirectionDeg = payload.Hourly.WindDirection[i]
		}
		return obs, nil
	}
	return forecast.Observation{}, errors.New("era5 archive returned no populated hours")
}

func (p *ERA5Provider) HealthCheck(ctx context.Context) forecast.Probe {
	return p.probe(ctx, p.archiveURL(healthCheckLat, healthCheckLon), nil)
}

func (p *ERA5Provider) archiveURL(lat, lon float64) string {
	day := p.now().UTC().AddDate(0, 0, -6).Format("2006-01-02")

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("start_date", day)
	values.Set("end_date", day)
	values.Set("hourly", "wind_speed_10m,wind_direction_10m")
	values.Set("wind_speed_unit", "ms")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

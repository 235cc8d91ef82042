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

// WorldTidesProvider is the tide-height source. The v3 API returns a series
// of heights; the first entry is the current tide.
type WorldTidesProvider struct {
	base
	apiKey  string
	baseURL string
}

func NewWorldTidesProvider(client *http.Client, apiKey string) *WorldTidesProvider {
	return &WorldTidesProvider{
		base:    newBase("worldtides", client, 10*time.Second, 0.1),
		apiKey:  apiKey,
		baseURL: "https://www.worldtides.info/api/v3",
	}
}

func (p *WorldTidesProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if p.apiKey == "" {
		return forecast.Observation{}, errors.New("worldtides api key is not configured")
	}

	var payload struct {
		Heights []struct {
			Dt     int64    `json:"dt"`
			Height *float64 `json:"height"`
		} `json:"heights"`
	}

	if err := p.getJSON(ctx, p.queryURL(lat, lon, true), nil, &payload); err != nil {
		return forecast.Observation{}, err
	}
	if len(payload.Heights) == 0 {
		return forecast.Observation{}, errors.New("worldtides returned no heights")
	}

	current := payload.Heights[0]
	ts := time.Now().UTC()
	if current.Dt > 0 {
		ts = time.Unix(current.Dt, 0).UTC()
	}

	return forecast.Observation{
		Provider:    p.name,
		Lat:         lat,
		Lon:         lon,
		Timestamp:   ts,
		TideHeightM: current.Height,
	}, nil
}

func (p *WorldTidesProvider) HealthCheck(ctx context.Context) forecast.Probe {
	if p.apiKey == "" {
		return forecast.Probe{OK: false, Error: "api key not configured"}
	}
	return p.probe(ctx, p.queryURL(healthCheckLat, healthCheckLon, false), nil)
}

func (p *WorldTidesProvider) queryURL(lat, lon float64, heights bool) string {
	values := url.Values{}
	if heights {
		values.Set("heights", "")
	}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("key", p.apiKey)
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

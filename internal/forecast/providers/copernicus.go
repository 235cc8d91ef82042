package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
)

// CopernicusProvider reads ocean current and sea temperature from the CMEMS
// physics analysis via the THREDDS subset service. Requires free CMEMS
// account credentials; without them every fetch reports unavailability.
type CopernicusProvider struct {
	base
	baseURL  string
	username string
	password string
}

func NewCopernicusProvider(client *http.Client, username, password string) *CopernicusProvider {
	return &CopernicusProvider{
		base:     newBase("copernicus", client, 15*time.Second, 0.25),
		baseURL:  "https://nrt.cmems-du.eu/thredds/ncss/global-analysis-forecast-phy-001-024-hourly",
		username: username,
		password: password,
	}
}

func (p *CopernicusProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	if p.username == "" || p.password == "" {
		return forecast.Observation{}, errors.New("cmems credentials not configured")
	}

	resp, err := p.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.subsetURL(lat, lon), nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(p.username, p.password)
		return req, nil
	})
	if err != nil {
		return forecast.Observation{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return forecast.Observation{}, err
	}

	columns, err := parseNCSSCSV(body)
	if err != nil {
		return forecast.Observation{}, err
	}

	obs := forecast.Observation{
		Provider:  p.name,
		Lat:       lat,
		Lon:       lon,
		Timestamp: time.Now().UTC(),
	}
	if v, ok := columns["thetao"]; ok {
		obs.WaterTempC = fptr(v)
	}
	u, uok := columns["uo"]
	v, vok := columns["vo"]
	if uok && vok {
		obs.CurrentSpeedMS = fptr(math.Sqrt(u*u + v*v))
	}
	if obs.WaterTempC == nil && obs.CurrentSpeedMS == nil {
		return forecast.Observation{}, errors.New("cmems subset contained no known variables")
	}
	return obs, nil
}

func (p *CopernicusProvider) HealthCheck(ctx context.Context) forecast.Probe {
	if p.username == "" || p.password == "" {
		return forecast.Probe{OK: false, Error: "credentials not configured"}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.subsetURL(healthCheckLat, healthCheckLon), nil)
	if err != nil {
		return forecast.Probe{OK: false, Error: truncate(err.Error())}
	}
	req.SetBasicAuth(p.username, p.password)

	resp, err := p.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return forecast.Probe{OK: false, LatencyMS: latency, Error: truncate(err.Error())}
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return forecast.Probe{OK: false, LatencyMS: latency, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return forecast.Probe{OK: true, LatencyMS: latency}
}

func (p *CopernicusProvider) subsetURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("var", "uo,vo,thetao")
	values.Set("north", fmt.Sprintf("%.2f", math.Min(90, lat+0.5)))
	values.Set("south", fmt.Sprintf("%.2f", math.Max(-90, lat-0.5)))
	values.Set("east", fmt.Sprintf("%.2f", math.Min(180, lon+0.5)))
	values.Set("west", fmt.Sprintf("%.2f", math.Max(-180, lon-0.5)))
	values.Set("time", "latest")
	values.Set("accept", "csv")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

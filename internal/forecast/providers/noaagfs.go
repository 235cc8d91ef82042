package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
)

// NOAAGFSProvider pulls WaveWatch III fields from the NOMADS GRIB2 filter.
// Downloads are slow and the payload is a binary grid, so the timeout is the
// longest of any adapter and the decode runs on the shared worker pool.
type NOAAGFSProvider struct {
	base
	baseURL string
	now     func() time.Time
}

func NewNOAAGFSProvider(client *http.Client) *NOAAGFSProvider {
	return &NOAAGFSProvider{
		base:    newBase("noaa_gfs", client, 15*time.Second, 0.5),
		baseURL: "https://nomads.ncep.noaa.gov/cgi-bin/filter_wave_multi.pl",
		now:     time.Now,
	}
}

func (p *NOAAGFSProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	cycle := currentCycle(p.now().UTC())

	// Model output lags the cycle time; walk forward until a forecast hour
	// has published data.
	var lastErr error
	for _, forecastHour := range []string{"000", "003", "006"} {
		body, contentType, err := p.getRaw(ctx, p.filterURL(lat, lon, cycle, forecastHour), nil)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.Contains(contentType, "text/html") || len(body) < 100 {
			lastErr = fmt.Errorf("no GRIB2 data for forecast hour %s", forecastHour)
			continue
		}

		means, err := decodeGRIBMeans(ctx, body)
		if err != nil {
			lastErr = fmt.Errorf("forecast hour %s: %w", forecastHour, err)
			continue
		}

		hours, _ := strconv.Atoi(forecastHour)
		obs := forecast.Observation{
			Provider:  p.name,
			Lat:       lat,
			Lon:       lon,
			Timestamp: cycle.Add(time.Duration(hours) * time.Hour),
		}
		if v, ok := means[paramWaveHeight]; ok {
			obs.WaveHeightM = fptr(round2(v))
		}
		if v, ok := means[paramWavePeriod]; ok {
			obs.WavePeriodS = fptr(round1(v))
		}
		if v, ok := means[paramWaveDirection]; ok {
			obs.WaveDirectionDeg = fptr(round1(v))
		}
		if v, ok := means[paramWindSpeed]; ok {
			obs.WindSpeedMS = fptr(round2(v))
		}
		return obs, nil
	}

	if lastErr == nil {
		lastErr = errors.New("all forecast hours failed")
	}
	return forecast.Observation{}, lastErr
}

func (p *NOAAGFSProvider) HealthCheck(ctx context.Context) forecast.Probe {
	// A HEAD-style reachability check against the filter endpoint itself;
	// pulling a full GRIB2 file is far too heavy for a liveness probe.
	return p.probe(ctx, p.baseURL, nil)
}

func (p *NOAAGFSProvider) filterURL(lat, lon float64, cycle time.Time, forecastHour string) string {
	leftLon := math.Max(-180, lon-1)
	rightLon := math.Min(180, lon+1)
	topLat := math.Min(90, lat+1)
	bottomLat := math.Max(-90, lat-1)

	// NOMADS expects longitudes in 0-360.
	if leftLon < 0 {
		leftLon += 360
	}
	if rightLon < 0 {
		rightLon += 360
	}

	values := url.Values{}
	values.Set("file", fmt.Sprintf("multi_1.glo_30m.t%02dz.f%s.grib2", cycle.Hour(), forecastHour))
	values.Set("lev_surface", "on")
	values.Set("var_HTSGW", "on")
	values.Set("var_WVPER", "on")
	values.Set("var_WVDIR", "on")
	values.Set("var_WIND", "on")
	values.Set("subregion", "")
	values.Set("leftlon", fmt.Sprintf("%.2f", leftLon))
	values.Set("rightlon", fmt.Sprintf("%.2f", rightLon))
	values.Set("toplat", fmt.Sprintf("%.2f", topLat))
	values.Set("bottomlat", fmt.Sprintf("%.2f", bottomLat))
	values.Set("dir", "/multi_1."+cycle.Format("20060102"))
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// currentCycle picks the most recent 6-hourly model cycle, stepping back one
// cycle when the newest is under three hours old and likely not published yet.
func currentCycle(now time.Time) time.Time {
	cycle := time.Date(now.Year(), now.Month(), now.Day(), (now.Hour()/6)*6, 0, 0, 0, time.UTC)
	if now.Sub(cycle) < 3*time.Hour {
		cycle = cycle.Add(-6 * time.Hour)
	}
	return cycle
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

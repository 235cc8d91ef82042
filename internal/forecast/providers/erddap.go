package providers

import (
	"context"
	"encoding/csv"
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

// NOAAERDDAPProvider reads WaveWatch III through the THREDDS NetCDF Subset
// Service. The subset is requested as CSV, one row per grid point, and
// averaged over the bounding box.
type NOAAERDDAPProvider struct {
	base
	baseURL string
}

func NewNOAAERDDAPProvider(client *http.Client, baseURL string) *NOAAERDDAPProvider {
	if baseURL == "" {
		baseURL = "https://www.ncei.noaa.gov/thredds-ocean/ncss/ncep_global/WW3-Global-Latest"
	}
	return &NOAAERDDAPProvider{
		base:    newBase("noaa_erddap", client, 12*time.Second, 0.5),
		baseURL: baseURL,
	}
}

func (p *NOAAERDDAPProvider) Fetch(ctx context.Context, lat, lon float64) (forecast.Observation, error) {
	body, _, err := p.getRaw(ctx, p.subsetURL(lat, lon), nil)
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
	if v, ok := columns["HTSGW"]; ok {
		obs.WaveHeightM = fptr(v)
	}
	if v, ok := columns["WVPER"]; ok {
		obs.WavePeriodS = fptr(v)
	}
	if v, ok := columns["WVDIR"]; ok {
		obs.WaveDirectionDeg = fptr(v)
	}
	if v, ok := columns["WIND"]; ok {
		obs.WindSpeedMS = fptr(v)
	}
	if obs.WaveHeightM == nil && obs.WindSpeedMS == nil {
		return forecast.Observation{}, errors.New("erddap subset contained no known variables")
	}
	return obs, nil
}

func (p *NOAAERDDAPProvider) HealthCheck(ctx context.Context) forecast.Probe {
	return p.probe(ctx, p.subsetURL(healthCheckLat, healthCheckLon), nil)
}

func (p *NOAAERDDAPProvider) subsetURL(lat, lon float64) string {
	values := url.Values{}
	values.Set("var", "HTSGW,WVPER,WVDIR,WIND")
	values.Set("north", fmt.Sprintf("%.2f", math.Min(90, lat+1)))
	values.Set("south", fmt.Sprintf("%.2f", math.Max(-90, lat-1)))
	values.Set("east", fmt.Sprintf("%.2f", math.Min(180, lon+1)))
	values.Set("west", fmt.Sprintf("%.2f", math.Max(-180, lon-1)))
	values.Set("time", "latest")
	values.Set("accept", "csv")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// parseNCSSCSV averages every variable column of an NCSS CSV response. Header
// names arrive decorated with units ("HTSGW[unit=\"m\"]"); only the bare
// variable name is kept.
func parseNCSSCSV(body []byte) (map[string]float64, error) {
	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse NCSS csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("NCSS csv has no data rows")
	}

	header := records[0]
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, row := range records[1:] {
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			name := header[i]
			if idx := strings.IndexAny(name, "[("); idx > 0 {
				name = name[:idx]
			}
			name = strings.TrimSpace(name)
			switch name {
			case "time", "latitude", "longitude", "date":
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			sums[name] += v
			counts[name]++
		}
	}

	columns := make(map[string]float64, len(sums))
	for name, sum := range sums {
		columns[name] = sum / float64(counts[name])
	}
	return columns, nil
}

package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swellsense/surf-data-aggregation/internal/store"
)

const (
	ndbcBaseURL     = "https://www.ndbc.noaa.gov/data/realtime2"
	ndbcMaxReadings = 10
	feetToMeters    = 0.3048
)

// NDBCSource ingests the NOAA NDBC realtime2 text feed for a buoy station.
// The feed is a fixed-column space-delimited table with "MM" marking missing
// values; the newest readings come first.
type NDBCSource struct {
	client  *http.Client
	baseURL string
	db      Store
}

func NewNDBCSource(client *http.Client, db Store) *NDBCSource {
	return &NDBCSource{client: client, baseURL: ndbcBaseURL, db: db}
}

func (s *NDBCSource) Name() string {
	return "ndbc"
}

func (s *NDBCSource) Ingest(ctx context.Context, loc store.MonitoredLocation) (int, error) {
	url := fmt.Sprintf("%s/%s.txt", s.baseURL, loc.StationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch ndbc %s: %w", loc.StationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ndbc %s: status %d", loc.StationID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	records := ParseNDBC(string(body), loc)
	if len(records) == 0 {
		return 0, fmt.Errorf("ndbc %s: no parseable readings", loc.StationID)
	}

	return s.db.UpsertRecords(ctx, records)
}

// ParseNDBC parses the realtime2 text format into records, newest first,
// capped at ndbcMaxReadings rows.
//
//	#YY  MM DD hh mm WDIR WSPD GST  WVHT   DPD   APD MWD   PRES  ATMP  WTMP  DEWP  VIS PTDY  TIDE
//	2025 01 15 14 50  220  8.5 10.2  2.10  10.0   7.5 210 1013.2  18.5  20.1  15.0   MM   MM    MM
func ParseNDBC(raw string, loc store.MonitoredLocation) []store.Record {
	var records []store.Record

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if len(records) >= ndbcMaxReadings {
			break
		}

		parts := strings.Fields(line)
		if len(parts) < 9 {
			continue
		}

		observedAt, ok := parseNDBCTime(parts[:5])
		if !ok {
			continue
		}

		rec := store.Record{
			Source:     "ndbc",
			StationID:  loc.StationID,
			Lat:        loc.Lat,
			Lon:        loc.Lon,
			ObservedAt: observedAt,

			WindDirectionDeg: ndbcField(parts, 5),
			WindSpeedMS:      ndbcField(parts, 6),
			WaveHeightM:      ndbcField(parts, 8),
			WavePeriodS:      ndbcField(parts, 9),
			WaveDirectionDeg: ndbcField(parts, 11),
			AirTempC:         ndbcField(parts, 13),
			WaterTempC:       ndbcField(parts, 14),
		}
		if tide := ndbcField(parts, 18); tide != nil {
			meters := *tide * feetToMeters
			rec.TideHeightM = &meters
		}

		// Rows with a timestamp but no measurements carry nothing worth keeping.
		if rec.WaveHeightM == nil && rec.WindSpeedMS == nil && rec.WaterTempC == nil {
			continue
		}
		records = append(records, rec)
	}

	return records
}

func parseNDBCTime(parts []string) (time.Time, bool) {
	vals := make([]int, 5)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		vals[i] = v
	}
	return time.Date(vals[0], time.Month(vals[1]), vals[2], vals[3], vals[4], 0, 0, time.UTC), true
}

// ndbcField reads one numeric column, treating "MM" (missing) and absent
// columns as nil.
func ndbcField(parts []string, idx int) *float64 {
	if idx >= len(parts) || parts[idx] == "MM" {
		return nil
	}
	v, err := strconv.ParseFloat(parts[idx], 64)
	if err != nil {
		return nil
	}
	return &v
}

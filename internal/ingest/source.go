package ingest

import (
	"context"
	"fmt"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
	"github.com/swellsense/surf-data-aggregation/internal/store"
)

// Store is the slice of storage the ingestion path needs.
type Store interface {
	UpsertRecords(ctx context.Context, records []store.Record) (int, error)
}

// Source ingests fresh observations for one monitored location and reports
// how many records it wrote. A failing source returns an error; the scheduler
// isolates it from its siblings.
type Source interface {
	Name() string
	Ingest(ctx context.Context, loc store.MonitoredLocation) (int, error)
}

// ProviderSource adapts a forecast provider into an ingestion source: one
// fetch, one upserted record.
type ProviderSource struct {
	provider forecast.Provider
	db       Store
}

func NewProviderSource(provider forecast.Provider, db Store) *ProviderSource {
	return &ProviderSource{provider: provider, db: db}
}

func (s *ProviderSource) Name() string {
	return s.provider.Name()
}

func (s *ProviderSource) Ingest(ctx context.Context, loc store.MonitoredLocation) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.provider.Timeout())
	defer cancel()

	obs, err := s.provider.Fetch(callCtx, loc.Lat, loc.Lon)
	if err != nil {
		return 0, fmt.Errorf("fetch %s for %s: %w", s.provider.Name(), loc.StationID, err)
	}

	return s.db.UpsertRecords(ctx, []store.Record{recordFromObservation(obs, loc)})
}

func recordFromObservation(obs forecast.Observation, loc store.MonitoredLocation) store.Record {
	return store.Record{
		Source:     obs.Provider,
		StationID:  loc.StationID,
		Lat:        loc.Lat,
		Lon:        loc.Lon,
		ObservedAt: obs.Timestamp,

		WaveHeightM:      obs.WaveHeightM,
		WavePeriodS:      obs.WavePeriodS,
		WaveDirectionDeg: obs.WaveDirectionDeg,
		WindSpeedMS:      obs.WindSpeedMS,
		WindDirectionDeg: obs.WindDirectionDeg,
		WaterTempC:       obs.WaterTempC,
		AirTempC:         obs.AirTempC,
		TideHeightM:      obs.TideHeightM,
		CurrentSpeedMS:   obs.CurrentSpeedMS,
	}
}

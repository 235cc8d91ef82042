package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/swellsense/surf-data-aggregation/internal/observability"
)

// ErrInvalidCoordinates rejects a query before any provider is contacted.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// providerPriority is the fixed tie-break order for any single representative
// value surfaced outside the statistics block. Completion order is never used.
var providerPriority = []string{
	"stormglass",
	"openmeteo",
	"metno",
	"noaa_gfs",
	"noaa_erddap",
	"openweather",
	"worldtides",
	"era5",
	"copernicus",
}

// Service fans one query out to every provider concurrently, merges whatever
// comes back, and annotates the result with consensus and disagreement
// statistics. A provider failing, timing out, or panicking costs the caller
// nothing but a name in sources_failed.
type Service struct {
	providers []Provider
	cache     *Cache
	clock     clockwork.Clock
	metrics   *observability.Metrics
	priority  map[string]int
}

// NewService creates a Service over the given providers. metrics may be nil.
func NewService(providers []Provider, cache *Cache, clock clockwork.Clock, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cache == nil {
		cache = NewCache(clock)
	}
	priority := make(map[string]int, len(providerPriority))
	for i, name := range providerPriority {
		priority[name] = i
	}
	return &Service{
		providers: providers,
		cache:     cache,
		clock:     clock,
		metrics:   metrics,
		priority:  priority,
	}
}

// Aggregate answers one (lat, lon) query. Partial failure is success: only
// invalid coordinates return an error, and that happens before any fan-out.
// hours bounds the requested forecast horizon; every current adapter returns
// its leading forecast hour regardless, so the value only gates validation.
func (s *Service) Aggregate(ctx context.Context, lat, lon float64, hours int) (*AggregationResult, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	if hours <= 0 {
		hours = 24
	}

	start := s.clock.Now()
	results := s.fanOut(ctx, lat, lon)

	res := s.merge(lat, lon, results)
	res.ResponseTimeS = s.clock.Since(start).Seconds()
	s.metrics.ObserveAggregation(res.Partial, s.clock.Since(start))
	return res, nil
}

// fanOut launches every adapter fetch concurrently, cache first. Each call is
// isolated: a timeout, error, or panic in one adapter never cancels or blocks
// the others, so the effective deadline is the slowest single adapter timeout.
func (s *Service) fanOut(ctx context.Context, lat, lon float64) []Result {
	results := make([]Result, len(s.providers))

	var wg sync.WaitGroup
	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			results[i] = s.fetchOne(ctx, p, lat, lon)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (s *Service) fetchOne(ctx context.Context, p Provider, lat, lon float64) (res Result) {
	res = Result{Provider: p.Name()}

	// Adapters must never take the whole aggregation down.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARN: provider %s panicked: %v", p.Name(), r)
			res.Obs = nil
			res.Reason = fmt.Sprintf("panic: %v", r)
			s.metrics.ObserveProviderFailure(p.Name())
		}
	}()

	key := CellKey(p.Name(), lat, lon, p.GridResolution())
	if obs, ok := s.cache.Get(key); ok {
		s.metrics.ObserveCache(p.Name(), true)
		res.Obs = &obs
		return res
	}
	s.metrics.ObserveCache(p.Name(), false)

	callCtx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	obs, err := p.Fetch(callCtx, lat, lon)
	if err != nil {
		log.Printf("WARN: provider %s fetch failed for (%.4f, %.4f): %v", p.Name(), lat, lon, err)
		res.Reason = err.Error()
		s.metrics.ObserveProviderFailure(p.Name())
		return res
	}

	s.cache.Put(key, obs, p.CacheTTL())
	res.Obs = &obs
	return res
}

// merge folds per-provider results into one quality-annotated answer.
func (s *Service) merge(lat, lon float64, results []Result) *AggregationResult {
	res := &AggregationResult{
		Timestamp:     s.clock.Now().UTC(),
		Location:      Coordinates{Lat: lat, Lon: lon},
		Sources:       make(map[string]*Observation, len(results)),
		Diagnostics:   make(map[string]MetricStats),
		SourcesFailed: nil,
	}

	available := make([]*Observation, 0, len(results))
	for _, r := range results {
		res.Sources[r.Provider] = r.Obs
		if r.Unavailable() {
			res.SourcesFailed = append(res.SourcesFailed, r.Provider)
			continue
		}
		res.SourcesAvailable = append(res.SourcesAvailable, r.Provider)
		available = append(available, r.Obs)
	}
	s.sortByPriority(res.SourcesAvailable)
	s.sortByPriority(res.SourcesFailed)
	res.Partial = len(res.SourcesFailed) > 0

	for _, m := range metricAccessors {
		var samples []sample
		for _, obs := range available {
			if v := m.get(obs); v != nil {
				samples = append(samples, sample{provider: obs.Provider, value: *v})
			}
		}
		if stats, ok := computeStats(samples); ok {
			res.Diagnostics[m.name] = stats
		}
	}

	res.Summary = Summary{
		WaveHeightM:  meanOf(res.Diagnostics, "wave_height_m"),
		WindSpeedMS:  meanOf(res.Diagnostics, "wind_speed_ms"),
		TemperatureC: meanOf(res.Diagnostics, "water_temp_c"),
		TideHeightM:  meanOf(res.Diagnostics, "tide_height_m"),
	}
	res.Summary.Conditions = describeConditions(res.Summary.WaveHeightM, res.Summary.WindSpeedMS)

	return res
}

// sortByPriority orders provider names by the fixed priority list so output
// never depends on goroutine completion order.
func (s *Service) sortByPriority(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, iok := s.priority[names[i]]
		pj, jok := s.priority[names[j]]
		if iok != jok {
			return iok
		}
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
}

func meanOf(diags map[string]MetricStats, metric string) *float64 {
	stats, ok := diags[metric]
	if !ok {
		return nil
	}
	mean := stats.Mean
	return &mean
}

// Providers exposes the configured provider set, used by the health monitor.
func (s *Service) Providers() []Provider {
	return s.providers
}

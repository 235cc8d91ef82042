package forecast

import (
	"context"
	"time"
)

// Provider abstracts one external marine data source (StormGlass, Met.no,
// Open-Meteo, ...). Fetch returns whatever subset of metrics the source knows
// about; an error is converted to an absent result by the aggregation layer
// and never travels further.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (Observation, error)

	// HealthCheck performs a minimal remote call under a tight budget purely
	// to test reachability. It reports failure in the Probe, never as an error.
	HealthCheck(ctx context.Context) Probe

	// Timeout is the per-call deadline applied to Fetch.
	Timeout() time.Duration

	// GridResolution is the native model cell size in degrees; fetches within
	// the same cell share a cache entry.
	GridResolution() float64

	// CacheTTL is how long one of this provider's observations stays servable.
	CacheTTL() time.Duration
}

// Pinger is the storage connectivity probe contract used by the health monitor.
type Pinger interface {
	Ping(ctx context.Context) error
}

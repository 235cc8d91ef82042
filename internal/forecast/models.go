package forecast

import (
	"time"
)

// Observation is a single provider's normalized reading for one coordinate.
// Every metric is optional; a nil pointer means the provider did not report it.
// Observations are never mutated after the adapter returns them.
type Observation struct {
	Provider  string    `json:"provider"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"` // always UTC

	WaveHeightM      *float64 `json:"wave_height_m,omitempty"`
	WavePeriodS      *float64 `json:"wave_period_s,omitempty"`
	WaveDirectionDeg *float64 `json:"wave_direction_deg,omitempty"`
	WindSpeedMS      *float64 `json:"wind_speed_ms,omitempty"`
	WindDirectionDeg *float64 `json:"wind_direction_deg,omitempty"`
	WaterTempC       *float64 `json:"water_temp_c,omitempty"`
	AirTempC         *float64 `json:"air_temp_c,omitempty"`
	TideHeightM      *float64 `json:"tide_height_m,omitempty"`
	CurrentSpeedMS   *float64 `json:"current_speed_ms,omitempty"`
}

// Result is the tagged outcome of one adapter call. Exactly one of Obs/Reason
// is meaningful: a nil Obs means the provider was unavailable and Reason says why.
type Result struct {
	Provider string
	Obs      *Observation
	Reason   string
}

// Unavailable reports whether the provider produced no usable observation.
func (r Result) Unavailable() bool {
	return r.Obs == nil
}

// Coordinates is the queried point, echoed back in responses.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Summary is the consensus block of an aggregation: per-metric means plus a
// human-readable conditions phrase. Nil means no provider reported the metric.
type Summary struct {
	WaveHeightM  *float64 `json:"wave_height_m"`
	WindSpeedMS  *float64 `json:"wind_speed_ms"`
	TemperatureC *float64 `json:"temperature_c"`
	TideHeightM  *float64 `json:"tide_height_m"`
	Conditions   string   `json:"conditions"`
}

// MetricStats describes inter-provider dispersion for one metric.
type MetricStats struct {
	Mean      float64  `json:"mean"`
	Count     int      `json:"count"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	StdDev    float64  `json:"std_dev"`
	CV        float64  `json:"coefficient_of_variation"`
	Agreement string   `json:"agreement,omitempty"`
	Outliers  []string `json:"outliers,omitempty"`
}

// Agreement buckets, classified from the coefficient of variation.
const (
	AgreementExcellent = "excellent"
	AgreementGood      = "good"
	AgreementModerate  = "moderate"
	AgreementPoor      = "poor"
)

// AggregationResult is the full multi-source answer for one query. It is
// produced even when most providers fail; Partial and SourcesFailed tell the
// caller how much to trust it.
type AggregationResult struct {
	Timestamp        time.Time               `json:"timestamp"`
	Location         Coordinates             `json:"location"`
	Sources          map[string]*Observation `json:"sources"`
	Summary          Summary                 `json:"summary"`
	Diagnostics      map[string]MetricStats  `json:"diagnostics,omitempty"`
	Partial          bool                    `json:"partial"`
	SourcesAvailable []string                `json:"sources_available"`
	SourcesFailed    []string                `json:"sources_failed"`
	ResponseTimeS    float64                 `json:"response_time_s"`
}

// Probe is the outcome of one provider health check.
type Probe struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DatabaseStatus reports storage connectivity inside a health snapshot.
type DatabaseStatus struct {
	Connected bool `json:"connected"`
}

// HealthSnapshot is the cached result of probing every provider plus storage.
type HealthSnapshot struct {
	Status   string           `json:"status"` // "ok" or "degraded"
	Services map[string]Probe `json:"services"`
	Database DatabaseStatus   `json:"database"`
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

package forecast

import (
	"fmt"
	"math"
	"sort"
)

const (
	metersToFeet = 3.28084
	msToKnots    = 1.94384
	outlierZ     = 1.5
)

// metricAccessors maps each numeric metric to its field, in a fixed order so
// diagnostics iterate deterministically.
var metricAccessors = []struct {
	name string
	get  func(*Observation) *float64
}{
	{"wave_height_m", func(o *Observation) *float64 { return o.WaveHeightM }},
	{"wave_period_s", func(o *Observation) *float64 { return o.WavePeriodS }},
	{"wave_direction_deg", func(o *Observation) *float64 { return o.WaveDirectionDeg }},
	{"wind_speed_ms", func(o *Observation) *float64 { return o.WindSpeedMS }},
	{"wind_direction_deg", func(o *Observation) *float64 { return o.WindDirectionDeg }},
	{"water_temp_c", func(o *Observation) *float64 { return o.WaterTempC }},
	{"air_temp_c", func(o *Observation) *float64 { return o.AirTempC }},
	{"tide_height_m", func(o *Observation) *float64 { return o.TideHeightM }},
	{"current_speed_ms", func(o *Observation) *float64 { return o.CurrentSpeedMS }},
}

type sample struct {
	provider string
	value    float64
}

// computeStats derives dispersion statistics for one metric from the values
// the available providers reported. Returns false when no provider reported it.
func computeStats(samples []sample) (MetricStats, bool) {
	if len(samples) == 0 {
		return MetricStats{}, false
	}

	stats := MetricStats{
		Count: len(samples),
		Min:   samples[0].value,
		Max:   samples[0].value,
	}

	var sum float64
	for _, s := range samples {
		sum += s.value
		if s.value < stats.Min {
			stats.Min = s.value
		}
		if s.value > stats.Max {
			stats.Max = s.value
		}
	}
	stats.Mean = sum / float64(len(samples))

	if len(samples) < 2 {
		return stats, true
	}

	var sumSq float64
	for _, s := range samples {
		d := s.value - stats.Mean
		sumSq += d * d
	}
	stats.StdDev = math.Sqrt(sumSq / float64(len(samples)))

	if stats.Mean != 0 {
		stats.CV = stats.StdDev / math.Abs(stats.Mean) * 100
	}
	stats.Agreement = classifyAgreement(stats.CV)

	if stats.StdDev > 0 {
		for _, s := range samples {
			if math.Abs(s.value-stats.Mean)/stats.StdDev > outlierZ {
				stats.Outliers = append(stats.Outliers, s.provider)
			}
		}
		sort.Strings(stats.Outliers)
	}

	return stats, true
}

func classifyAgreement(cv float64) string {
	switch {
	case cv < 10:
		return AgreementExcellent
	case cv < 20:
		return AgreementGood
	case cv < 30:
		return AgreementModerate
	default:
		return AgreementPoor
	}
}

// describeConditions turns consensus wave height and wind speed into the short
// phrase surfers actually read, e.g. "2-3ft, light winds".
func describeConditions(waveHeightM, windSpeedMS *float64) string {
	wave := "Unknown"
	if waveHeightM != nil {
		wave = describeWaveHeight(*waveHeightM * metersToFeet)
	}
	if windSpeedMS == nil {
		return wave
	}
	return wave + ", " + describeWind(*windSpeedMS*msToKnots)
}

func describeWaveHeight(feet float64) string {
	switch {
	case feet < 2:
		return "Small"
	case feet < 4:
		return "2-3ft"
	case feet < 6:
		return "4-5ft"
	case feet < 8:
		return "6-7ft"
	default:
		return fmt.Sprintf("%dft+", int(feet))
	}
}

func describeWind(knots float64) string {
	switch {
	case knots < 5:
		return "calm"
	case knots < 10:
		return "light winds"
	case knots <= 15:
		return "moderate winds"
	default:
		return "strong winds"
	}
}

package domain

import (
	"fmt"
	"time"
)

// RainfallSeries is an ordered rainfall intensity time series. Timestamps are
// opaque ordering/display labels (ISO-8601 UTC strings in practice); the
// engine pairs each with its intensity by index and never parses them.
// Both slices must have equal, nonzero length.
type RainfallSeries struct {
	Timestamps  []string  `json:"timestamps_utc"`
	Intensities []float64 `json:"rain_mmhr"`
}

// Validate enforces the series contract: aligned 1:1 and nonempty.
func (s RainfallSeries) Validate() error {
	if len(s.Intensities) == 0 {
		return fmt.Errorf("%w: rainfall series is empty", ErrInvalidInput)
	}
	if len(s.Intensities) != len(s.Timestamps) {
		return fmt.Errorf("%w: %d intensities but %d timestamps", ErrInvalidInput,
			len(s.Intensities), len(s.Timestamps))
	}
	return nil
}

// Len returns the number of time steps.
func (s RainfallSeries) Len() int { return len(s.Intensities) }

// PeakIntensity returns the largest intensity in the series, or 0 if empty.
func (s RainfallSeries) PeakIntensity() float64 {
	peak := 0.0
	for _, i := range s.Intensities {
		if i > peak {
			peak = i
		}
	}
	return peak
}

// TotalRainfallMm sums intensities scaled by the step duration in hours.
func (s RainfallSeries) TotalRainfallMm(stepHours float64) float64 {
	total := 0.0
	for _, i := range s.Intensities {
		total += i * stepHours
	}
	return total
}

// RainfallEvent is a stored rainfall scenario: a design storm, a historical
// record, or a real-time observation window.
type RainfallEvent struct {
	ID   string `json:"event_id"`
	Name string `json:"name"`

	Series RainfallSeries `json:"series"`

	EventType         string  `json:"event_type,omitempty"` // "design", "historical", ...
	ReturnPeriodYears int     `json:"return_period_years,omitempty"`
	TotalRainfallMm   float64 `json:"total_rainfall_mm,omitempty"`
	PeakIntensityMmhr float64 `json:"peak_intensity_mmhr,omitempty"`
	DurationHours     float64 `json:"duration_hours,omitempty"`
	Source            string  `json:"source,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SimulationPoint holds one instant's derived values. Field order mirrors the
// computation: intensity -> runoff -> loading -> risk. LoadingRatio is the
// raw (pre-compression) load, useful for debugging; Risk is the displayed
// post-compression score.
type SimulationPoint struct {
	Timestamp     string  `json:"t"`
	IntensityMmhr float64 `json:"i"`
	RunoffM3s     float64 `json:"q_runoff"`
	LoadingRatio  float64 `json:"loading"`
	Risk          float64 `json:"risk"`
}

// SimulationResult is the outcome of one catchment simulation. The series is
// ordered exactly as the input and PeakRisk equals the maximum per-step risk.
type SimulationResult struct {
	Series   []SimulationPoint `json:"series"`
	PeakRisk float64           `json:"peak_risk"`

	// PeakTime is the timestamp of the first step reaching PeakRisk.
	PeakTime string `json:"peak_time,omitempty"`

	// CapacityUsedM3s is the effective capacity after the adaptive policy
	// and the minimum floor were applied.
	CapacityUsedM3s float64 `json:"capacity_used_m3s"`

	GeneratedAt time.Time `json:"generated_at"`
}

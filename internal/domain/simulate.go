package domain

import "math"

// Simulate runs the risk engine over a rainfall series for one catchment.
// Each step is independent: intensity -> discharge -> loading -> risk, with a
// running maximum. The output series is ordered exactly as the input and has
// the same length.
//
// Inputs are validated up front: an empty or misaligned series and
// out-of-range parameters return ErrInvalidInput rather than propagating
// NaN/Inf through the result.
func Simulate(series RainfallSeries, params CatchmentParameters, cfg RiskConfig) (SimulationResult, error) {
	if err := series.Validate(); err != nil {
		return SimulationResult{}, err
	}
	if err := params.Validate(); err != nil {
		return SimulationResult{}, err
	}

	capacityUsed := effectiveCapacity(series, params, cfg)

	points := make([]SimulationPoint, series.Len())
	peakRisk := 0.0
	peakTime := ""
	for idx, intensity := range series.Intensities {
		q := Runoff(params.RunoffCoeff, intensity, params.AreaKm2)
		loading := q / capacityUsed

		loadingForRisk := loading
		if cfg.LogCompression {
			loadingForRisk = CompressLoading(loading, cfg.LogRange)
		}
		risk := RiskFromLoading(loadingForRisk, cfg.Steepness)

		if risk > peakRisk {
			peakRisk = risk
			peakTime = series.Timestamps[idx]
		}
		points[idx] = SimulationPoint{
			Timestamp:     series.Timestamps[idx],
			IntensityMmhr: intensity,
			RunoffM3s:     q,
			LoadingRatio:  loading,
			Risk:          risk,
		}
	}

	return SimulationResult{
		Series:          points,
		PeakRisk:        peakRisk,
		PeakTime:        peakTime,
		CapacityUsedM3s: capacityUsed,
		GeneratedAt:     clock.Now().UTC(),
	}, nil
}

// effectiveCapacity applies the configured capacity policy. In raw mode the
// stored capacity is used directly (floored to stay finite). In adaptive mode
// the capacity is scaled up, bounded by CapBoostMax, so that discharge at
// peak rainfall loads the catchment near 1/Headroom.
func effectiveCapacity(series RainfallSeries, params CatchmentParameters, cfg RiskConfig) float64 {
	scale := 1.0
	if cfg.AdaptiveCapacity && params.CapacityM3s > 0 {
		qPeak := Runoff(params.RunoffCoeff, series.PeakIntensity(), params.AreaKm2)
		if qPeak > 0 {
			required := qPeak / (params.CapacityM3s * cfg.Headroom)
			if required > 1.0 {
				scale = math.Min(required, cfg.CapBoostMax)
			}
		}
	}
	return math.Max(params.CapacityM3s*scale, minCapacityM3s)
}

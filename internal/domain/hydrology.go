package domain

import "math"

// rationalMethodConst converts (mm/hr, km^2) into m^3/s in Q = 0.278*C*i*A.
const rationalMethodConst = 0.278

// minCapacityM3s is the floor substituted for zero capacity so the loading
// ratio stays finite. Zero capacity means any nonzero discharge saturates
// risk, not an error.
const minCapacityM3s = 1e-6

// RiskConfig holds the tunables of the risk transform and the capacity
// policy. Deployments tune these independently; nothing here is hard-coded.
type RiskConfig struct {
	// Steepness is the logistic k: larger values sharpen the transition
	// around the capacity threshold.
	Steepness float64

	// AdaptiveCapacity rescales the effective capacity before a run so the
	// series' peak rainfall lands near a target headroom band. Stored
	// capacities can be wildly mis-estimated; without rescaling a run either
	// pins risk at 1.0 or never leaves 0, which is useless for ranking.
	AdaptiveCapacity bool
	// Headroom is the target peak loading band: the policy aims for
	// L ~ 1/Headroom at peak rainfall.
	Headroom float64
	// CapBoostMax bounds the capacity scale-up so differences between
	// catchments survive the rescale.
	CapBoostMax float64

	// LogCompression compresses loading above 1 before the logistic so
	// extreme over-capacity scenarios stay numerically distinguishable.
	LogCompression bool
	// LogRange controls compression strength; larger compresses more.
	LogRange float64
}

// DefaultRiskConfig is the adaptive variant: capacity rescaling with log
// compression and a gentle k. This is the shipped default.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Steepness:        3.0,
		AdaptiveCapacity: true,
		Headroom:         2.5,
		CapBoostMax:      50.0,
		LogCompression:   true,
		LogRange:         40.0,
	}
}

// RawRiskConfig is the plain variant: stored capacity used as-is with a
// steeper logistic. Kept for deployments with trusted capacity data.
func RawRiskConfig() RiskConfig {
	return RiskConfig{Steepness: 8.0}
}

// Runoff computes Rational Method discharge in m^3/s.
// No bounds are enforced here; Simulate validates parameters once per run.
func Runoff(c, intensityMmhr, areaKm2 float64) float64 {
	return rationalMethodConst * c * intensityMmhr * areaKm2
}

// LoadingRatio divides discharge by capacity, substituting the minimum
// capacity floor so a zero capacity yields a very large, finite ratio.
func LoadingRatio(dischargeM3s, capacityM3s float64) float64 {
	return dischargeM3s / math.Max(capacityM3s, minCapacityM3s)
}

// RiskFromLoading maps a loading ratio to (0, 1) through a logistic centered
// at ratio 1: exactly at capacity the risk is exactly 0.5. Extreme loadings
// make math.Exp under- or overflow; the result is clamped so the interval
// stays open at both ends.
func RiskFromLoading(ratio, k float64) float64 {
	risk := 1.0 / (1.0 + math.Exp(-k*(ratio-1.0)))
	if risk <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if risk >= 1 {
		return math.Nextafter(1, 0)
	}
	return risk
}

// CompressLoading maps loading above 1 into a slow-growing range:
//
//	L_eff = 1 + ln(1 + (L-1)) / ln(1 + logRange)
//
// Loading at or below 1 passes through unchanged, so the R == 0.5 pivot at
// capacity is preserved.
func CompressLoading(ratio, logRange float64) float64 {
	if ratio <= 1.0 {
		return ratio
	}
	return 1.0 + math.Log1p(ratio-1.0)/math.Log(1.0+logRange)
}

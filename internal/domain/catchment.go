package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Point is a WGS-84 longitude/latitude coordinate pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Bounds is an axis-aligned bounding box in longitude/latitude. Legacy
// catchment records carry only bounds; newer records carry full geometry.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	return b.MinLon <= p.Lon && p.Lon <= b.MaxLon &&
		b.MinLat <= p.Lat && p.Lat <= b.MaxLat
}

// CatchmentParameters is a drainage sub-basin's hydrologic identity, passed
// read-only into the engine per simulation call.
type CatchmentParameters struct {
	RunoffCoeff float64 `json:"c"`            // dimensionless, [0, 1]
	AreaKm2     float64 `json:"area_km2"`     // > 0
	CapacityM3s float64 `json:"capacity_m3s"` // >= 0; 0 means certain exceedance
}

// Validate checks the parameter ranges the engine depends on.
func (p CatchmentParameters) Validate() error {
	if p.RunoffCoeff < 0 || p.RunoffCoeff > 1 {
		return fmt.Errorf("%w: runoff coefficient %g outside [0, 1]", ErrInvalidInput, p.RunoffCoeff)
	}
	if p.AreaKm2 <= 0 {
		return fmt.Errorf("%w: area %g km2 must be positive", ErrInvalidInput, p.AreaKm2)
	}
	if p.CapacityM3s < 0 {
		return fmt.Errorf("%w: capacity %g m3/s must be non-negative", ErrInvalidInput, p.CapacityM3s)
	}
	return nil
}

// Catchment is a stored drainage sub-basin: hydrologic parameters plus
// geographic identity. Geometry is GeoJSON (Polygon or MultiPolygon) when the
// full boundary is known; Bounds is the bbox fallback for legacy records.
// Either may be absent, never both on a well-formed record.
type Catchment struct {
	ID   string `json:"catchment_id"`
	Name string `json:"name"`

	CatchmentParameters

	LandUse          string  `json:"land_use,omitempty"`
	PipeCount        int     `json:"pipe_count,omitempty"`
	TotalPipeLengthM float64 `json:"total_pipe_length_m,omitempty"`

	Geometry json.RawMessage `json:"geometry,omitempty"`
	Bounds   *Bounds         `json:"bounds,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// RiskLevel is the discrete user-facing label derived from peak risk.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// RiskLevelFor buckets a [0, 1] risk score into the conventional bands at
// 0.2 / 0.4 / 0.6 / 0.8.
func RiskLevelFor(risk float64) RiskLevel {
	switch {
	case risk >= 0.8:
		return RiskVeryHigh
	case risk >= 0.6:
		return RiskHigh
	case risk >= 0.4:
		return RiskMedium
	case risk >= 0.2:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

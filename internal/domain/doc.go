// Package domain models urban drainage catchments and computes a flood-risk
// proxy from rainfall intensity time series.
//
// # Hydrologic Model
//
// Discharge uses the Rational Method:
//
//	Q = 0.278 * C * i * A
//	  Q  discharge in m^3/s
//	  C  runoff coefficient, dimensionless, [0, 1]
//	  i  rainfall intensity in mm/hr
//	  A  catchment area in km^2
//
// 0.278 is the unit-conversion constant for (mm/hr, km^2) -> m^3/s.
//
// Loading ratio is discharge divided by drainage capacity; values above 1
// imply capacity exceedance. Risk maps loading through a logistic curve:
//
//	R = 1 / (1 + e^(-k * (L - 1)))
//
// so that R == 0.5 exactly when discharge equals capacity. R approaches but
// never reaches 0 or 1. The steepness k and the capacity policy (raw vs
// adaptive, with optional log compression of excess loading) are tunables on
// [RiskConfig]; stored capacities are often unreliable, and the adaptive
// policy preserves relative risk ordering across catchments regardless.
//
// This is a proxy for relative ranking and alerting, not a hydraulic
// simulation: each time step is independent (no infiltration memory, no
// routing delay, no backwater effects).
//
// # Catchment Resolution
//
// [Resolve] picks the catchment containing a WGS-84 point. The dataset
// migrated from bounding-box-only records to full GeoJSON polygons over time
// and both representations persist, so resolution is two-tier: exact polygon
// containment first (with a bounding-box pre-filter), then bounding-box
// fallback for records without full geometry. Ties go to the smallest nominal
// area on the assumption that smaller catchments nest inside larger ones,
// then to the lexically smallest ID for determinism. Points exactly on a
// shared boundary follow go-geom ring semantics and may match either side.
package domain

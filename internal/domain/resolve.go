package domain

import (
	"log/slog"
	"sort"
)

// Resolve returns the single catchment containing the given point.
//
// Resolution is two-tier: catchments with full polygon geometry are tested by
// exact containment first; only if none match does the bounding-box fallback
// over geometry-less records apply. A geometry record that also carries
// stored bounds is skipped without parsing when the point is outside that
// envelope. Within a tier, ties are broken by smallest nominal area, then by
// ID. A record with malformed geometry is logged and skipped; one bad record
// never blocks resolution against the rest. ErrNoCatchment is returned when
// neither tier matches.
func Resolve(p Point, catchments []Catchment, logger *slog.Logger) (Catchment, error) {
	var polygonMatches, boxMatches []Catchment

	for _, c := range catchments {
		if len(c.Geometry) > 0 {
			if c.Bounds != nil && !c.Bounds.Contains(p) {
				continue
			}
			g, err := ParseGeometry(c.Geometry)
			if err != nil {
				logger.Warn("skipping catchment with malformed geometry",
					"catchment_id", c.ID,
					"error", err,
				)
				continue
			}
			if GeometryContains(g, p) {
				polygonMatches = append(polygonMatches, c)
			}
			continue
		}
		if c.Bounds != nil && c.Bounds.Contains(p) {
			boxMatches = append(boxMatches, c)
		}
	}

	if len(polygonMatches) > 0 {
		return pickSmallest(polygonMatches), nil
	}
	if len(boxMatches) > 0 {
		return pickSmallest(boxMatches), nil
	}
	return Catchment{}, ErrNoCatchment
}

// pickSmallest orders matches by nominal area, then ID, and returns the
// first. Smaller catchments are assumed nested inside larger ones and are the
// more specific answer; the ID tie-break keeps equal-area resolution
// deterministic.
func pickSmallest(matches []Catchment) Catchment {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].AreaKm2 != matches[j].AreaKm2 {
			return matches[i].AreaKm2 < matches[j].AreaKm2
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0]
}

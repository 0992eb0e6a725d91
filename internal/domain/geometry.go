package domain

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// ParseGeometry decodes a GeoJSON geometry into a go-geom Polygon or
// MultiPolygon. Other geometry types are rejected: catchment boundaries are
// always areal.
func ParseGeometry(raw []byte) (geom.T, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse catchment geometry: %w", err)
	}
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	default:
		return nil, fmt.Errorf("parse catchment geometry: unsupported type %T", g)
	}
}

// GeometryContains reports whether the geometry contains the point, with a
// bounding-box pre-filter before the exact ring test. Boundary membership
// follows go-geom ring semantics.
func GeometryContains(g geom.T, p Point) bool {
	coord := geom.Coord{p.Lon, p.Lat}
	if !g.Bounds().OverlapsPoint(g.Layout(), coord) {
		return false
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, coord)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), coord) {
				return true
			}
		}
	}
	return false
}

// polygonContains tests the outer ring and subtracts holes.
func polygonContains(poly *geom.Polygon, coord geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	outer := poly.LinearRing(0)
	if !xy.IsPointInRing(outer.Layout(), coord, outer.FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		hole := poly.LinearRing(i)
		if xy.IsPointInRing(hole.Layout(), coord, hole.FlatCoords()) {
			return false
		}
	}
	return true
}

// GeometryBounds derives an axis-aligned Bounds from a parsed geometry.
func GeometryBounds(g geom.T) Bounds {
	b := g.Bounds()
	return Bounds{
		MinLon: b.Min(0),
		MinLat: b.Min(1),
		MaxLon: b.Max(0),
		MaxLat: b.Max(1),
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squarePolygon builds a GeoJSON Polygon covering [minLon,maxLon]x[minLat,maxLat].
func squarePolygon(minLon, minLat, maxLon, maxLat float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"Polygon","coordinates":[[[%[1]g,%[2]g],[%[3]g,%[2]g],[%[3]g,%[4]g],[%[1]g,%[4]g],[%[1]g,%[2]g]]]}`,
		minLon, minLat, maxLon, maxLat,
	))
}

func TestResolve(t *testing.T) {
	logger := slog.Default()

	inner := Catchment{
		ID:                  "perth_cbd_c1",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.8, AreaKm2: 1.0, CapacityM3s: 3},
		Geometry:            squarePolygon(115.80, -31.96, 115.90, -31.90),
	}
	outer := Catchment{
		ID:                  "swan_basin",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 40.0, CapacityM3s: 80},
		Geometry:            squarePolygon(115.70, -32.10, 116.00, -31.80),
	}
	elsewhere := Catchment{
		ID:                  "mandurah_c3",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.6, AreaKm2: 2.0, CapacityM3s: 5},
		Geometry:            squarePolygon(115.60, -32.60, 115.70, -32.50),
	}

	t.Run("point inside one polygon", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.65, Lat: -32.55}, []Catchment{inner, outer, elsewhere}, logger)
		require.NoError(t, err)
		assert.Equal(t, "mandurah_c3", got.ID)
	})

	t.Run("nested polygons pick the smaller area", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{outer, inner}, logger)
		require.NoError(t, err)
		assert.Equal(t, "perth_cbd_c1", got.ID)
	})

	t.Run("point outside all polygons is not found", func(t *testing.T) {
		_, err := Resolve(Point{Lon: 120.0, Lat: -25.0}, []Catchment{inner, outer, elsewhere}, logger)
		require.ErrorIs(t, err, ErrNoCatchment)
	})

	t.Run("empty catchment list is not found", func(t *testing.T) {
		_, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, nil, logger)
		require.ErrorIs(t, err, ErrNoCatchment)
	})
}

func TestResolve_BoundingBoxFallback(t *testing.T) {
	logger := slog.Default()

	legacy := Catchment{
		ID:                  "legacy_bbox_only",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.7, AreaKm2: 3.0, CapacityM3s: 6},
		Bounds:              &Bounds{MinLon: 115.80, MinLat: -31.96, MaxLon: 115.90, MaxLat: -31.90},
	}
	polygonal := Catchment{
		ID:                  "polygonal",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 50.0, CapacityM3s: 90},
		Geometry:            squarePolygon(115.70, -32.10, 116.00, -31.80),
	}

	t.Run("polygon match wins over a smaller bbox-only record", func(t *testing.T) {
		// Both contain the point; the polygon tier is authoritative even
		// though the legacy record has the smaller area.
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{legacy, polygonal}, logger)
		require.NoError(t, err)
		assert.Equal(t, "polygonal", got.ID)
	})

	t.Run("bbox tier applies when no polygon contains the point", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{legacy}, logger)
		require.NoError(t, err)
		assert.Equal(t, "legacy_bbox_only", got.ID)
	})

	t.Run("bbox ties break by smallest area", func(t *testing.T) {
		wide := Catchment{
			ID:                  "wide",
			CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 30.0, CapacityM3s: 50},
			Bounds:              &Bounds{MinLon: 115.0, MinLat: -33.0, MaxLon: 116.5, MaxLat: -31.0},
		}
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{wide, legacy}, logger)
		require.NoError(t, err)
		assert.Equal(t, "legacy_bbox_only", got.ID)
	})
}

func TestResolve_BoundsPrefilter(t *testing.T) {
	logger := slog.Default()

	// Geometry contains the point, but the stored envelope says the point is
	// elsewhere: the record is skipped before the polygon is ever parsed.
	stale := Catchment{
		ID:                  "stale_envelope",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.6, AreaKm2: 2.0, CapacityM3s: 4},
		Geometry:            squarePolygon(115.80, -31.96, 115.90, -31.90),
		Bounds:              &Bounds{MinLon: 116.5, MinLat: -31.0, MaxLon: 116.8, MaxLat: -30.8},
	}
	consistent := Catchment{
		ID:                  "consistent",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 9.0, CapacityM3s: 10},
		Geometry:            squarePolygon(115.70, -32.10, 116.00, -31.80),
		Bounds:              &Bounds{MinLon: 115.70, MinLat: -32.10, MaxLon: 116.00, MaxLat: -31.80},
	}

	t.Run("envelope excludes the point before exact containment", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{stale, consistent}, logger)
		require.NoError(t, err)
		assert.Equal(t, "consistent", got.ID)
	})

	t.Run("matching envelope still resolves by exact containment", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{consistent}, logger)
		require.NoError(t, err)
		assert.Equal(t, "consistent", got.ID)
	})
}

func TestResolve_DegradedRecords(t *testing.T) {
	logger := slog.Default()

	valid := Catchment{
		ID:                  "valid",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.6, AreaKm2: 2.0, CapacityM3s: 4},
		Geometry:            squarePolygon(115.80, -31.96, 115.90, -31.90),
	}
	broken := Catchment{
		ID:       "broken",
		Geometry: json.RawMessage(`{"type":"Polygon","coordinates":"oops"}`),
	}
	lineString := Catchment{
		ID:       "not_areal",
		Geometry: json.RawMessage(`{"type":"LineString","coordinates":[[115.8,-31.9],[115.9,-31.95]]}`),
	}

	t.Run("malformed geometry is skipped not fatal", func(t *testing.T) {
		got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{broken, lineString, valid}, logger)
		require.NoError(t, err)
		assert.Equal(t, "valid", got.ID)
	})

	t.Run("record with neither geometry nor bounds never matches", func(t *testing.T) {
		bare := Catchment{ID: "bare"}
		_, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{bare}, logger)
		require.ErrorIs(t, err, ErrNoCatchment)
	})
}

func TestResolve_EqualAreaTieBreak(t *testing.T) {
	logger := slog.Default()

	a := Catchment{
		ID:                  "zone_a",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 4.0, CapacityM3s: 5},
		Geometry:            squarePolygon(115.80, -31.96, 115.90, -31.90),
	}
	b := Catchment{
		ID:                  "zone_b",
		CatchmentParameters: CatchmentParameters{RunoffCoeff: 0.5, AreaKm2: 4.0, CapacityM3s: 5},
		Geometry:            squarePolygon(115.79, -31.97, 115.91, -31.89),
	}

	// Same nominal area: resolution falls back to the lexically smallest ID,
	// regardless of input order.
	got, err := Resolve(Point{Lon: 115.85, Lat: -31.93}, []Catchment{b, a}, logger)
	require.NoError(t, err)
	assert.Equal(t, "zone_a", got.ID)
}

func TestGeometryContains(t *testing.T) {
	t.Run("polygon with hole excludes the hole", func(t *testing.T) {
		donut := json.RawMessage(`{"type":"Polygon","coordinates":[
			[[0,0],[10,0],[10,10],[0,10],[0,0]],
			[[4,4],[6,4],[6,6],[4,6],[4,4]]
		]}`)
		g, err := ParseGeometry(donut)
		require.NoError(t, err)

		assert.True(t, GeometryContains(g, Point{Lon: 2, Lat: 2}))
		assert.False(t, GeometryContains(g, Point{Lon: 5, Lat: 5}))
		assert.False(t, GeometryContains(g, Point{Lon: 20, Lat: 2}))
	})

	t.Run("multipolygon matches any member", func(t *testing.T) {
		pair := json.RawMessage(`{"type":"MultiPolygon","coordinates":[
			[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
			[[[5,5],[6,5],[6,6],[5,6],[5,5]]]
		]}`)
		g, err := ParseGeometry(pair)
		require.NoError(t, err)

		assert.True(t, GeometryContains(g, Point{Lon: 0.5, Lat: 0.5}))
		assert.True(t, GeometryContains(g, Point{Lon: 5.5, Lat: 5.5}))
		assert.False(t, GeometryContains(g, Point{Lon: 3, Lat: 3}))
	})

	t.Run("bounds derivation", func(t *testing.T) {
		g, err := ParseGeometry(squarePolygon(115.7, -32.1, 116.0, -31.8))
		require.NoError(t, err)
		b := GeometryBounds(g)
		assert.Equal(t, Bounds{MinLon: 115.7, MinLat: -32.1, MaxLon: 116.0, MaxLat: -31.8}, b)
	})

	t.Run("non-areal geometry is rejected", func(t *testing.T) {
		_, err := ParseGeometry(json.RawMessage(`{"type":"Point","coordinates":[1,2]}`))
		require.Error(t, err)
	})
}

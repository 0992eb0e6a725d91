// Command seed loads a demo Perth metro dataset: catchments with polygon
// boundaries (plus a couple of bbox-only legacy records) and the standard
// design rainfall events. Re-running is safe; records are upserted by id.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/urbantwin/flood-risk-service/internal/config"
	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	eventsOnly := flag.Bool("events-only", false, "seed rainfall events but not catchments")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if !*eventsOnly {
		repo := store.NewCatchmentRepository(pool)
		for _, c := range demoCatchments() {
			if err := repo.Upsert(ctx, c); err != nil {
				return fmt.Errorf("upsert catchment %s: %w", c.ID, err)
			}
			log.Printf("catchment %s (%s)", c.ID, c.Name)
		}
	}

	repo := store.NewRainfallEventRepository(pool)
	for _, e := range designEvents() {
		if err := repo.Upsert(ctx, e); err != nil {
			return fmt.Errorf("upsert event %s: %w", e.ID, err)
		}
		log.Printf("rainfall event %s (%.1f mm over %.0f h)", e.ID, e.TotalRainfallMm, e.DurationHours)
	}

	log.Print("seed complete")
	return nil
}

// polygon builds a closed GeoJSON Polygon from lon/lat vertex pairs.
func polygon(coords ...[2]float64) json.RawMessage {
	ring := make([][2]float64, 0, len(coords)+1)
	ring = append(ring, coords...)
	ring = append(ring, coords[0])
	raw, err := json.Marshal(map[string]any{
		"type":        "Polygon",
		"coordinates": [][][2]float64{ring},
	})
	if err != nil {
		panic(err)
	}
	return raw
}

// withDerivedBounds fills in the bbox from the polygon so resolution can
// pre-filter without parsing geometry.
func withDerivedBounds(c domain.Catchment) domain.Catchment {
	g, err := domain.ParseGeometry(c.Geometry)
	if err != nil {
		panic(fmt.Sprintf("bad seed geometry for %s: %v", c.ID, err))
	}
	b := domain.GeometryBounds(g)
	c.Bounds = &b
	return c
}

func demoCatchments() []domain.Catchment {
	polygonal := []domain.Catchment{
		{
			ID:   "perth_cbd",
			Name: "Perth CBD",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.85,
				AreaKm2:     4.2,
				CapacityM3s: 6.0,
			},
			LandUse:          "commercial",
			PipeCount:        412,
			TotalPipeLengthM: 48200,
			Geometry: polygon(
				[2]float64{115.845, -31.965},
				[2]float64{115.870, -31.965},
				[2]float64{115.870, -31.940},
				[2]float64{115.845, -31.940},
			),
		},
		{
			ID:   "subiaco_wembley",
			Name: "Subiaco / Wembley",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.65,
				AreaKm2:     7.8,
				CapacityM3s: 9.5,
			},
			LandUse:          "residential",
			PipeCount:        688,
			TotalPipeLengthM: 91400,
			Geometry: polygon(
				[2]float64{115.790, -31.965},
				[2]float64{115.840, -31.965},
				[2]float64{115.840, -31.930},
				[2]float64{115.790, -31.930},
			),
		},
		{
			ID:   "osborne_park",
			Name: "Osborne Park Industrial",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.90,
				AreaKm2:     5.5,
				CapacityM3s: 4.0,
			},
			LandUse:          "industrial",
			PipeCount:        295,
			TotalPipeLengthM: 37600,
			Geometry: polygon(
				[2]float64{115.800, -31.910},
				[2]float64{115.845, -31.910},
				[2]float64{115.845, -31.880},
				[2]float64{115.800, -31.880},
			),
		},
		{
			ID:   "kings_park",
			Name: "Kings Park Reserve",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.25,
				AreaKm2:     4.0,
				CapacityM3s: 12.0,
			},
			LandUse:   "parkland",
			PipeCount: 64,
			Geometry: polygon(
				[2]float64{115.820, -31.975},
				[2]float64{115.845, -31.975},
				[2]float64{115.845, -31.955},
				[2]float64{115.820, -31.955},
			),
		},
	}
	for i, c := range polygonal {
		polygonal[i] = withDerivedBounds(c)
	}

	// Legacy records imported before boundaries were digitised.
	legacy := []domain.Catchment{
		{
			ID:   "swan_east",
			Name: "Swan Valley East",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.45,
				AreaKm2:     22.0,
				CapacityM3s: 18.0,
			},
			LandUse: "rural",
			Bounds:  &domain.Bounds{MinLon: 116.00, MinLat: -31.90, MaxLon: 116.12, MaxLat: -31.78},
		},
		{
			ID:   "cannington_south",
			Name: "Cannington South",
			CatchmentParameters: domain.CatchmentParameters{
				RunoffCoeff: 0.70,
				AreaKm2:     9.3,
				CapacityM3s: 7.5,
			},
			LandUse: "residential",
			Bounds:  &domain.Bounds{MinLon: 115.93, MinLat: -32.03, MaxLon: 116.00, MaxLat: -31.97},
		},
	}

	return append(polygonal, legacy...)
}

// designEvent derives the summary fields from the hourly series so they can
// never disagree with it.
func designEvent(id, name string, returnPeriod int, intensities []float64) domain.RainfallEvent {
	timestamps := make([]string, len(intensities))
	for i := range intensities {
		timestamps[i] = fmt.Sprintf("2025-06-01T%02d:00:00Z", i)
	}
	series := domain.RainfallSeries{Timestamps: timestamps, Intensities: intensities}
	return domain.RainfallEvent{
		ID:                id,
		Name:              name,
		Series:            series,
		EventType:         "design",
		ReturnPeriodYears: returnPeriod,
		TotalRainfallMm:   series.TotalRainfallMm(1),
		PeakIntensityMmhr: series.PeakIntensity(),
		DurationHours:     float64(series.Len()),
		Source:            "Design storm catalogue",
	}
}

func designEvents() []domain.RainfallEvent {
	return []domain.RainfallEvent{
		designEvent("design_2yr", "2-year ARI design storm", 2,
			[]float64{2, 5, 8, 12, 8, 5, 2}),
		designEvent("design_10yr", "10-year ARI design storm", 10,
			[]float64{5, 12, 20, 28, 20, 12, 5}),
		designEvent("design_100yr", "100-year ARI design storm", 100,
			[]float64{10, 25, 45, 65, 45, 25, 10}),
	}
}

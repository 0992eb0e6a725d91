package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urbantwin/flood-risk-service/internal/domain"
)

// CatchmentRepository provides data access for the catchments table.
type CatchmentRepository struct {
	db DBTX
}

// NewCatchmentRepository creates a repository backed by the given connection
// (pool or transaction).
func NewCatchmentRepository(db DBTX) *CatchmentRepository {
	return &CatchmentRepository{db: db}
}

const catchmentColumns = `catchment_id, name, runoff_coeff, area_km2, capacity_m3s,
	land_use, pipe_count, total_pipe_length_m, geometry,
	min_lon, min_lat, max_lon, max_lat, created_at, updated_at`

// scanCatchment scans a row in catchmentColumns order.
func scanCatchment(row pgx.Row) (*domain.Catchment, error) {
	var c domain.Catchment
	var (
		landUse  *string
		geometry []byte
		minLon   *float64
		minLat   *float64
		maxLon   *float64
		maxLat   *float64
	)

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.RunoffCoeff,
		&c.AreaKm2,
		&c.CapacityM3s,
		&landUse,
		&c.PipeCount,
		&c.TotalPipeLengthM,
		&geometry,
		&minLon,
		&minLat,
		&maxLon,
		&maxLat,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if landUse != nil {
		c.LandUse = *landUse
	}
	if len(geometry) > 0 {
		c.Geometry = geometry
	}
	if minLon != nil && minLat != nil && maxLon != nil && maxLat != nil {
		c.Bounds = &domain.Bounds{MinLon: *minLon, MinLat: *minLat, MaxLon: *maxLon, MaxLat: *maxLat}
	}
	return &c, nil
}

// Upsert inserts or replaces a catchment by ID, preserving created_at on
// replacement.
func (r *CatchmentRepository) Upsert(ctx context.Context, c domain.Catchment) error {
	var landUse *string
	if c.LandUse != "" {
		landUse = &c.LandUse
	}
	var geometry []byte
	if len(c.Geometry) > 0 {
		geometry = c.Geometry
	}
	var minLon, minLat, maxLon, maxLat *float64
	if c.Bounds != nil {
		minLon, minLat = &c.Bounds.MinLon, &c.Bounds.MinLat
		maxLon, maxLat = &c.Bounds.MaxLon, &c.Bounds.MaxLat
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO catchments (catchment_id, name, runoff_coeff, area_km2, capacity_m3s,
			land_use, pipe_count, total_pipe_length_m, geometry,
			min_lon, min_lat, max_lon, max_lat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (catchment_id) DO UPDATE SET
			name = EXCLUDED.name,
			runoff_coeff = EXCLUDED.runoff_coeff,
			area_km2 = EXCLUDED.area_km2,
			capacity_m3s = EXCLUDED.capacity_m3s,
			land_use = EXCLUDED.land_use,
			pipe_count = EXCLUDED.pipe_count,
			total_pipe_length_m = EXCLUDED.total_pipe_length_m,
			geometry = EXCLUDED.geometry,
			min_lon = EXCLUDED.min_lon,
			min_lat = EXCLUDED.min_lat,
			max_lon = EXCLUDED.max_lon,
			max_lat = EXCLUDED.max_lat,
			updated_at = now()`,
		c.ID, c.Name, c.RunoffCoeff, c.AreaKm2, c.CapacityM3s,
		landUse, c.PipeCount, c.TotalPipeLengthM, geometry,
		minLon, minLat, maxLon, maxLat,
	)
	if err != nil {
		return fmt.Errorf("upsert catchment %s: %w", c.ID, err)
	}
	return nil
}

// Get returns one catchment by ID, or ErrNotFound.
func (r *CatchmentRepository) Get(ctx context.Context, id string) (*domain.Catchment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+catchmentColumns+` FROM catchments WHERE catchment_id = $1`, id)
	c, err := scanCatchment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catchment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get catchment %s: %w", id, err)
	}
	return c, nil
}

// List returns all catchments, optionally filtered by land use, ordered by ID
// for stable output.
func (r *CatchmentRepository) List(ctx context.Context, landUse string) ([]domain.Catchment, error) {
	query := `SELECT ` + catchmentColumns + ` FROM catchments`
	args := []any{}
	if landUse != "" {
		query += ` WHERE land_use = $1`
		args = append(args, landUse)
	}
	query += ` ORDER BY catchment_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list catchments: %w", err)
	}
	defer rows.Close()

	return collectCatchments(rows)
}

// ListByMaxCapacity returns up to limit catchments whose capacity does not
// exceed max, largest capacity first. The monitor uses this to prioritize the
// most exposed catchments.
func (r *CatchmentRepository) ListByMaxCapacity(ctx context.Context, maxCapacity float64, limit int) ([]domain.Catchment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+catchmentColumns+` FROM catchments
		WHERE capacity_m3s <= $1
		ORDER BY capacity_m3s DESC, catchment_id
		LIMIT $2`, maxCapacity, limit)
	if err != nil {
		return nil, fmt.Errorf("list catchments by capacity: %w", err)
	}
	defer rows.Close()

	return collectCatchments(rows)
}

func collectCatchments(rows pgx.Rows) ([]domain.Catchment, error) {
	var out []domain.Catchment
	for rows.Next() {
		c, err := scanCatchment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catchment: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catchments: %w", err)
	}
	return out, nil
}

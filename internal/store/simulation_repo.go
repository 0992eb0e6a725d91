package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/urbantwin/flood-risk-service/internal/domain"
)

// SimulationRecord is a persisted simulation run: the catchment parameters
// used at run time (a later catchment edit must not rewrite history), the
// full per-step series, and its peak summary.
type SimulationRecord struct {
	ID              string                     `json:"simulation_id"`
	CatchmentID     string                     `json:"catchment_id"`
	RainfallEventID string                     `json:"rainfall_event_id,omitempty"`
	Parameters      domain.CatchmentParameters `json:"parameters"`
	CapacityUsedM3s float64                    `json:"capacity_used_m3s"`
	Series          []domain.SimulationPoint   `json:"series"`
	PeakRisk        float64                    `json:"peak_risk"`
	PeakTime        string                     `json:"peak_time,omitempty"`
	Notes           string                     `json:"notes,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// SimulationRepository provides data access for the simulations table.
type SimulationRepository struct {
	db DBTX
}

// NewSimulationRepository creates a repository backed by the given connection
// (pool or transaction).
func NewSimulationRepository(db DBTX) *SimulationRepository {
	return &SimulationRepository{db: db}
}

const simulationColumns = `simulation_id, catchment_id, rainfall_event_id,
	runoff_coeff, area_km2, capacity_m3s, capacity_used_m3s, series,
	peak_risk, peak_time, notes, created_at`

func scanSimulation(row pgx.Row) (*SimulationRecord, error) {
	var rec SimulationRecord
	var (
		eventID  *string
		series   []byte
		peakTime *string
		notes    *string
	)

	err := row.Scan(
		&rec.ID,
		&rec.CatchmentID,
		&eventID,
		&rec.Parameters.RunoffCoeff,
		&rec.Parameters.AreaKm2,
		&rec.Parameters.CapacityM3s,
		&rec.CapacityUsedM3s,
		&series,
		&rec.PeakRisk,
		&peakTime,
		&notes,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(series, &rec.Series); err != nil {
		return nil, fmt.Errorf("decode simulation series: %w", err)
	}
	if eventID != nil {
		rec.RainfallEventID = *eventID
	}
	if peakTime != nil {
		rec.PeakTime = *peakTime
	}
	if notes != nil {
		rec.Notes = *notes
	}
	return &rec, nil
}

// Insert stores a completed simulation run.
func (r *SimulationRepository) Insert(ctx context.Context, rec SimulationRecord) error {
	series, err := json.Marshal(rec.Series)
	if err != nil {
		return fmt.Errorf("encode simulation series: %w", err)
	}

	var eventID, peakTime, notes *string
	if rec.RainfallEventID != "" {
		eventID = &rec.RainfallEventID
	}
	if rec.PeakTime != "" {
		peakTime = &rec.PeakTime
	}
	if rec.Notes != "" {
		notes = &rec.Notes
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO simulations (simulation_id, catchment_id, rainfall_event_id,
			runoff_coeff, area_km2, capacity_m3s, capacity_used_m3s, series,
			peak_risk, peak_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.CatchmentID, eventID,
		rec.Parameters.RunoffCoeff, rec.Parameters.AreaKm2, rec.Parameters.CapacityM3s,
		rec.CapacityUsedM3s, series,
		rec.PeakRisk, peakTime, notes,
	)
	if err != nil {
		return fmt.Errorf("insert simulation %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns one simulation by ID, or ErrNotFound.
func (r *SimulationRepository) Get(ctx context.Context, id string) (*SimulationRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+simulationColumns+` FROM simulations WHERE simulation_id = $1`, id)
	rec, err := scanSimulation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation %s: %w", id, err)
	}
	return rec, nil
}

// ListByCatchment returns a page of a catchment's simulations, newest first.
func (r *SimulationRepository) ListByCatchment(ctx context.Context, catchmentID string, limit, offset int) ([]SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+simulationColumns+` FROM simulations
		WHERE catchment_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, catchmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list simulations for %s: %w", catchmentID, err)
	}
	defer rows.Close()

	return collectSimulations(rows)
}

// ListHighRisk returns up to limit simulations whose peak risk meets the
// threshold, highest risk first.
func (r *SimulationRepository) ListHighRisk(ctx context.Context, threshold float64, limit int) ([]SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+simulationColumns+` FROM simulations
		WHERE peak_risk >= $1
		ORDER BY peak_risk DESC, created_at DESC
		LIMIT $2`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("list high-risk simulations: %w", err)
	}
	defer rows.Close()

	return collectSimulations(rows)
}

// ListRecent returns up to limit simulations created at or after since,
// newest first.
func (r *SimulationRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+simulationColumns+` FROM simulations
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent simulations: %w", err)
	}
	defer rows.Close()

	return collectSimulations(rows)
}

func collectSimulations(rows pgx.Rows) ([]SimulationRecord, error) {
	var out []SimulationRecord
	for rows.Next() {
		rec, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulations: %w", err)
	}
	return out, nil
}

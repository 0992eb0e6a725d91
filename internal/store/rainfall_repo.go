package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urbantwin/flood-risk-service/internal/domain"
)

// RainfallEventRepository provides data access for the rainfall_events table.
type RainfallEventRepository struct {
	db DBTX
}

// NewRainfallEventRepository creates a repository backed by the given
// connection (pool or transaction).
func NewRainfallEventRepository(db DBTX) *RainfallEventRepository {
	return &RainfallEventRepository{db: db}
}

const rainfallColumns = `event_id, name, rain_mmhr, timestamps_utc, event_type,
	return_period_years, total_rainfall_mm, peak_intensity_mmhr, duration_hours,
	source, created_at`

func scanRainfallEvent(row pgx.Row) (*domain.RainfallEvent, error) {
	var e domain.RainfallEvent
	var (
		rain         []byte
		timestamps   []byte
		eventType    *string
		returnPeriod *int
		totalMm      *float64
		peakMmhr     *float64
		durationHrs  *float64
		source       *string
	)

	err := row.Scan(
		&e.ID,
		&e.Name,
		&rain,
		&timestamps,
		&eventType,
		&returnPeriod,
		&totalMm,
		&peakMmhr,
		&durationHrs,
		&source,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rain, &e.Series.Intensities); err != nil {
		return nil, fmt.Errorf("decode rain series: %w", err)
	}
	if err := json.Unmarshal(timestamps, &e.Series.Timestamps); err != nil {
		return nil, fmt.Errorf("decode timestamps: %w", err)
	}
	if eventType != nil {
		e.EventType = *eventType
	}
	if returnPeriod != nil {
		e.ReturnPeriodYears = *returnPeriod
	}
	if totalMm != nil {
		e.TotalRainfallMm = *totalMm
	}
	if peakMmhr != nil {
		e.PeakIntensityMmhr = *peakMmhr
	}
	if durationHrs != nil {
		e.DurationHours = *durationHrs
	}
	if source != nil {
		e.Source = *source
	}
	return &e, nil
}

// Upsert inserts or replaces a rainfall event by ID.
func (r *RainfallEventRepository) Upsert(ctx context.Context, e domain.RainfallEvent) error {
	if err := e.Series.Validate(); err != nil {
		return err
	}

	rain, err := json.Marshal(e.Series.Intensities)
	if err != nil {
		return fmt.Errorf("encode rain series: %w", err)
	}
	timestamps, err := json.Marshal(e.Series.Timestamps)
	if err != nil {
		return fmt.Errorf("encode timestamps: %w", err)
	}

	var eventType, source *string
	if e.EventType != "" {
		eventType = &e.EventType
	}
	if e.Source != "" {
		source = &e.Source
	}
	var returnPeriod *int
	if e.ReturnPeriodYears > 0 {
		returnPeriod = &e.ReturnPeriodYears
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO rainfall_events (event_id, name, rain_mmhr, timestamps_utc,
			event_type, return_period_years, total_rainfall_mm,
			peak_intensity_mmhr, duration_hours, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO UPDATE SET
			name = EXCLUDED.name,
			rain_mmhr = EXCLUDED.rain_mmhr,
			timestamps_utc = EXCLUDED.timestamps_utc,
			event_type = EXCLUDED.event_type,
			return_period_years = EXCLUDED.return_period_years,
			total_rainfall_mm = EXCLUDED.total_rainfall_mm,
			peak_intensity_mmhr = EXCLUDED.peak_intensity_mmhr,
			duration_hours = EXCLUDED.duration_hours,
			source = EXCLUDED.source`,
		e.ID, e.Name, rain, timestamps,
		eventType, returnPeriod, e.TotalRainfallMm,
		e.PeakIntensityMmhr, e.DurationHours, source,
	)
	if err != nil {
		return fmt.Errorf("upsert rainfall event %s: %w", e.ID, err)
	}
	return nil
}

// Get returns one rainfall event by ID, or ErrNotFound.
func (r *RainfallEventRepository) Get(ctx context.Context, id string) (*domain.RainfallEvent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+rainfallColumns+` FROM rainfall_events WHERE event_id = $1`, id)
	e, err := scanRainfallEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rainfall event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rainfall event %s: %w", id, err)
	}
	return e, nil
}

// List returns rainfall events, optionally filtered by type and minimum
// return period, newest first.
func (r *RainfallEventRepository) List(ctx context.Context, eventType string, minReturnPeriod int) ([]domain.RainfallEvent, error) {
	query := `SELECT ` + rainfallColumns + ` FROM rainfall_events WHERE 1=1`
	args := []any{}
	if eventType != "" {
		args = append(args, eventType)
		query += fmt.Sprintf(` AND event_type = $%d`, len(args))
	}
	if minReturnPeriod > 0 {
		args = append(args, minReturnPeriod)
		query += fmt.Sprintf(` AND return_period_years >= $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rainfall events: %w", err)
	}
	defer rows.Close()

	var out []domain.RainfallEvent
	for rows.Next() {
		e, err := scanRainfallEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rainfall event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rainfall events: %w", err)
	}
	return out, nil
}

// Package monitor runs the periodic real-time risk assessment: fetch the
// current rainfall observations, simulate the most exposed catchments, persist
// each run, and publish alerts for those at or above the risk threshold.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/urbantwin/flood-risk-service/internal/adapter/weather"
	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/observability"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

// WeatherSource fetches the current rainfall event for a coordinate.
type WeatherSource interface {
	FetchRainfallEvent(ctx context.Context, lat, lon float64) (domain.RainfallEvent, error)
}

// EventStore persists fetched rainfall events.
type EventStore interface {
	Upsert(ctx context.Context, e domain.RainfallEvent) error
}

// CatchmentStore selects the catchments to assess.
type CatchmentStore interface {
	Get(ctx context.Context, id string) (*domain.Catchment, error)
	ListByMaxCapacity(ctx context.Context, maxCapacity float64, limit int) ([]domain.Catchment, error)
}

// SimulationStore persists completed simulation runs.
type SimulationStore interface {
	Insert(ctx context.Context, rec store.SimulationRecord) error
}

// AlertPublisher publishes risk alerts. A nil publisher disables alerting.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []domain.RiskAlert) error
}

// Options configures one Monitor.
type Options struct {
	Interval       time.Duration
	RiskThreshold  float64
	MaxCatchments  int
	MaxCapacityM3s float64

	// CatchmentIDs pins the assessment to specific catchments. Empty means
	// pick the lowest-capacity ones.
	CatchmentIDs []string

	// Lat/Lon is the observation point for the weather fetch.
	Lat float64
	Lon float64

	Risk domain.RiskConfig
}

// Monitor orchestrates the fetch-simulate-alert loop.
type Monitor struct {
	source     WeatherSource
	events     EventStore
	catchments CatchmentStore
	sims       SimulationStore
	publisher  AlertPublisher
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool
}

// New creates a Monitor with the given dependencies and observability.
func New(source WeatherSource, events EventStore, catchments CatchmentStore, sims SimulationStore, publisher AlertPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Monitor {
	return &Monitor{
		source:     source,
		events:     events,
		catchments: catchments,
		sims:       sims,
		publisher:  publisher,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock. Test use only.
func (m *Monitor) SetClock(clock clockwork.Clock) { m.clock = clock }

// CheckReadiness returns nil once the monitor has completed at least one
// assessment cycle.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("monitor has not completed an assessment cycle yet")
	}
	return nil
}

// Run executes assessment cycles until the context is cancelled. A cycle runs
// immediately on start, then every Interval. Failed cycles retry with
// exponential backoff instead of waiting out the full interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"interval", m.opts.Interval,
		"risk_threshold", m.opts.RiskThreshold,
	)
	m.metrics.MonitorRunning.Set(1)
	defer m.metrics.MonitorRunning.Set(0)

	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		wait := m.opts.Interval
		if err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info("monitor stopping", "reason", ctx.Err())
				return nil
			}
			m.logger.Error("assessment cycle failed", "error", err)
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = 200 * time.Millisecond
		}

		if !m.sleep(ctx, wait) {
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunCycle performs one assessment: fetch weather, store the event, simulate
// the selected catchments, persist the runs, publish alerts. A provider
// response with no rainfall data is a no-op, not an error.
func (m *Monitor) RunCycle(ctx context.Context) error {
	event, err := m.source.FetchRainfallEvent(ctx, m.opts.Lat, m.opts.Lon)
	if errors.Is(err, weather.ErrNoObservations) {
		m.logger.Info("no rainfall observations, skipping cycle")
		m.finishCycle()
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch weather: %w", err)
	}

	if err := m.events.Upsert(ctx, event); err != nil {
		return fmt.Errorf("store rainfall event: %w", err)
	}

	catchments, err := m.selectCatchments(ctx)
	if err != nil {
		return err
	}
	if len(catchments) == 0 {
		m.logger.Warn("no catchments to assess")
		m.finishCycle()
		return nil
	}

	severity := weather.Severity(event.PeakIntensityMmhr)
	var alerts []domain.RiskAlert
	assessed := 0
	for _, c := range catchments {
		alert, ok, err := m.assess(ctx, c, event, severity)
		if err != nil {
			// One bad catchment must not sink the cycle.
			m.logger.Warn("catchment assessment failed, skipping",
				"catchment_id", c.ID, "error", err)
			continue
		}
		assessed++
		if ok {
			alerts = append(alerts, alert)
		}
	}

	if len(alerts) > 0 && m.publisher != nil {
		if err := m.publisher.PublishAlerts(ctx, alerts); err != nil {
			return fmt.Errorf("publish alerts: %w", err)
		}
		m.metrics.AlertsPublished.Add(float64(len(alerts)))
	}

	m.logger.Info("assessment cycle complete",
		"event_id", event.ID,
		"rainfall_severity", severity,
		"catchments_assessed", assessed,
		"alerts", len(alerts),
	)
	m.finishCycle()
	return nil
}

func (m *Monitor) finishCycle() {
	m.metrics.MonitorCycles.Inc()
	m.ready.Store(true)
}

// selectCatchments resolves the configured ID list, or falls back to the
// lowest-capacity catchments. Unknown configured IDs are skipped with a
// warning.
func (m *Monitor) selectCatchments(ctx context.Context) ([]domain.Catchment, error) {
	if len(m.opts.CatchmentIDs) == 0 {
		catchments, err := m.catchments.ListByMaxCapacity(ctx, m.opts.MaxCapacityM3s, m.opts.MaxCatchments)
		if err != nil {
			return nil, fmt.Errorf("list catchments: %w", err)
		}
		return catchments, nil
	}

	out := make([]domain.Catchment, 0, len(m.opts.CatchmentIDs))
	for _, id := range m.opts.CatchmentIDs {
		c, err := m.catchments.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("configured catchment not found, skipping", "catchment_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get catchment %s: %w", id, err)
		}
		out = append(out, *c)
	}
	return out, nil
}

// assess simulates one catchment against the event, persists the run, and
// returns an alert when the peak risk meets the threshold.
func (m *Monitor) assess(ctx context.Context, c domain.Catchment, event domain.RainfallEvent, severity string) (domain.RiskAlert, bool, error) {
	start := m.clock.Now()
	result, err := domain.Simulate(event.Series, c.CatchmentParameters, m.opts.Risk)
	if err != nil {
		return domain.RiskAlert{}, false, fmt.Errorf("simulate: %w", err)
	}
	m.metrics.SimulationsRun.Inc()
	m.metrics.SimulationDuration.Observe(m.clock.Since(start).Seconds())
	m.metrics.PeakRisk.Observe(result.PeakRisk)

	level := domain.RiskLevelFor(result.PeakRisk)
	rec := store.SimulationRecord{
		ID:              uuid.NewString(),
		CatchmentID:     c.ID,
		RainfallEventID: event.ID,
		Parameters:      c.CatchmentParameters,
		CapacityUsedM3s: result.CapacityUsedM3s,
		Series:          result.Series,
		PeakRisk:        result.PeakRisk,
		PeakTime:        result.PeakTime,
		Notes:           fmt.Sprintf("Real-time risk assessment - %s risk", level),
	}
	if err := m.sims.Insert(ctx, rec); err != nil {
		return domain.RiskAlert{}, false, fmt.Errorf("store simulation: %w", err)
	}

	if result.PeakRisk < m.opts.RiskThreshold {
		return domain.RiskAlert{}, false, nil
	}
	alert := domain.RiskAlert{
		CatchmentID:       c.ID,
		CatchmentName:     c.Name,
		SimulationID:      rec.ID,
		EventID:           event.ID,
		PeakRisk:          result.PeakRisk,
		RiskLevel:         level,
		PeakTime:          result.PeakTime,
		RainfallSeverity:  severity,
		PeakIntensityMmhr: event.PeakIntensityMmhr,
		TotalRainfallMm:   event.TotalRainfallMm,
		GeneratedAt:       result.GeneratedAt,
	}
	return alert, true, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleep waits for d using the monitor's clock. Returns false when the context
// was cancelled first.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := m.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

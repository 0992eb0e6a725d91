// Command batch runs a stored rainfall event against the catchment inventory
// and writes a risk assessment report. Every run is persisted to the
// simulations table so the API's history endpoints see batch results too.
//
// Usage:
//
//	go run ./cmd/batch -event design_10yr -top 25 -report report.txt
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	kafkaadapter "github.com/urbantwin/flood-risk-service/internal/adapter/kafka"
	"github.com/urbantwin/flood-risk-service/internal/adapter/weather"
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
	eventID := flag.String("event", "design_10yr", "rainfall event id to simulate")
	rain := flag.String("rain", "", "inline hourly intensities in mm/hr (e.g. 5,20,45,20), overrides -event")
	topN := flag.Int("top", 0, "assess only the N highest-exposure catchments (0 = all)")
	reportPath := flag.String("report", "", "write the report to this file instead of stdout")
	publish := flag.Bool("publish", false, "publish alerts for catchments at or above the monitor threshold")
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

	var event *domain.RainfallEvent
	if *rain != "" {
		event, err = inlineEvent(*rain)
		if err != nil {
			return err
		}
	} else {
		event, err = store.NewRainfallEventRepository(pool).Get(ctx, *eventID)
		if err != nil {
			return fmt.Errorf("rainfall event %q: %w (run ./cmd/seed first?)", *eventID, err)
		}
	}

	catchments, err := store.NewCatchmentRepository(pool).List(ctx, "")
	if err != nil {
		return fmt.Errorf("list catchments: %w", err)
	}
	if len(catchments) == 0 {
		return fmt.Errorf("no catchments stored (run ./cmd/seed first?)")
	}
	selected := selectByExposure(catchments, *topN)
	log.Printf("assessing %d of %d catchments against %s", len(selected), len(catchments), event.ID)

	results, err := assess(ctx, store.NewSimulationRepository(pool), selected, *event, cfg.RiskConfig())
	if err != nil {
		return err
	}

	report := buildReport(event, results, len(catchments))
	if *reportPath == "" {
		fmt.Println(report)
	} else {
		if err := os.WriteFile(*reportPath, []byte(report+"\n"), 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Printf("wrote report: %s", *reportPath)
	}

	if *publish {
		return publishAlerts(ctx, cfg, *event, results)
	}
	return nil
}

// inlineEvent builds an ad-hoc hourly rainfall event from a comma-separated
// intensity list.
func inlineEvent(raw string) (*domain.RainfallEvent, error) {
	parts := strings.Split(raw, ",")
	intensities := make([]float64, 0, len(parts))
	timestamps := make([]string, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse -rain value %q: %w", p, err)
		}
		intensities = append(intensities, v)
		timestamps = append(timestamps, fmt.Sprintf("T+%dh", i))
	}
	series := domain.RainfallSeries{Timestamps: timestamps, Intensities: intensities}
	return &domain.RainfallEvent{
		ID:                fmt.Sprintf("inline_%s", uuid.NewString()[:8]),
		Name:              "Inline rainfall series",
		Series:            series,
		EventType:         "adhoc",
		TotalRainfallMm:   series.TotalRainfallMm(1),
		PeakIntensityMmhr: series.PeakIntensity(),
		DurationHours:     float64(series.Len()),
		Source:            "command line",
	}, nil
}

// result pairs a catchment with its completed simulation.
type result struct {
	catchment    domain.Catchment
	simulationID string
	sim          domain.SimulationResult
}

// selectByExposure orders catchments by the C*A/Qcap exposure heuristic,
// highest first, and keeps the top n.
func selectByExposure(catchments []domain.Catchment, n int) []domain.Catchment {
	score := func(c domain.Catchment) float64 {
		cap := c.CapacityM3s
		if cap < 0.1 {
			cap = 0.1
		}
		return c.RunoffCoeff * c.AreaKm2 / cap
	}
	sort.Slice(catchments, func(i, j int) bool {
		si, sj := score(catchments[i]), score(catchments[j])
		if si != sj {
			return si > sj
		}
		return catchments[i].ID < catchments[j].ID
	})
	if n > 0 && n < len(catchments) {
		return catchments[:n]
	}
	return catchments
}

func assess(ctx context.Context, sims *store.SimulationRepository, catchments []domain.Catchment, event domain.RainfallEvent, riskCfg domain.RiskConfig) ([]result, error) {
	results := make([]result, 0, len(catchments))
	for _, c := range catchments {
		sim, err := domain.Simulate(event.Series, c.CatchmentParameters, riskCfg)
		if err != nil {
			log.Printf("skipping %s: %v", c.ID, err)
			continue
		}
		rec := store.SimulationRecord{
			ID:              uuid.NewString(),
			CatchmentID:     c.ID,
			RainfallEventID: event.ID,
			Parameters:      c.CatchmentParameters,
			CapacityUsedM3s: sim.CapacityUsedM3s,
			Series:          sim.Series,
			PeakRisk:        sim.PeakRisk,
			PeakTime:        sim.PeakTime,
			Notes:           fmt.Sprintf("Batch risk assessment - %s risk", domain.RiskLevelFor(sim.PeakRisk)),
		}
		if err := sims.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("store simulation for %s: %w", c.ID, err)
		}
		results = append(results, result{catchment: c, simulationID: rec.ID, sim: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].sim.PeakRisk > results[j].sim.PeakRisk })
	return results, nil
}

func buildReport(event *domain.RainfallEvent, results []result, totalCatchments int) string {
	divider := strings.Repeat("=", 70)

	var counts [5]int // very_low, low, medium, high, very_high
	for _, r := range results {
		switch domain.RiskLevelFor(r.sim.PeakRisk) {
		case domain.RiskVeryLow:
			counts[0]++
		case domain.RiskLow:
			counts[1]++
		case domain.RiskMedium:
			counts[2]++
		case domain.RiskHigh:
			counts[3]++
		case domain.RiskVeryHigh:
			counts[4]++
		}
	}

	var b strings.Builder
	fmt.Fprintln(&b, divider)
	fmt.Fprintln(&b, "Flood Risk Batch Assessment")
	fmt.Fprintln(&b, divider)
	fmt.Fprintf(&b, "Rainfall event: %s (%s)\n", event.Name, event.ID)
	fmt.Fprintf(&b, "Peak intensity: %.1f mm/hr over %.1f hours (%.1f mm total)\n",
		event.PeakIntensityMmhr, event.DurationHours, event.TotalRainfallMm)
	fmt.Fprintf(&b, "Catchments assessed: %d of %d\n", len(results), totalCatchments)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "[Risk Statistics]")
	fmt.Fprintf(&b, "very_high: %d  high: %d  medium: %d  low: %d  very_low: %d\n",
		counts[4], counts[3], counts[2], counts[1], counts[0])

	var flagged []result
	for _, r := range results {
		if r.sim.PeakRisk >= 0.6 {
			flagged = append(flagged, r)
		}
	}
	fmt.Fprintln(&b)
	if len(flagged) == 0 {
		fmt.Fprintln(&b, "[No High-Risk Areas]")
	} else {
		fmt.Fprintln(&b, "[High-Risk Areas]")
		for _, r := range flagged {
			fmt.Fprintf(&b, "\n%s (%s)\n", r.catchment.Name, r.catchment.ID)
			fmt.Fprintf(&b, "  Peak risk: %.3f (%s)\n", r.sim.PeakRisk, domain.RiskLevelFor(r.sim.PeakRisk))
			fmt.Fprintf(&b, "  Area: %.2f km2, capacity: %.1f m3/s (effective %.1f)\n",
				r.catchment.AreaKm2, r.catchment.CapacityM3s, r.sim.CapacityUsedM3s)
			if r.sim.PeakTime != "" {
				fmt.Fprintf(&b, "  Peak at: %s\n", r.sim.PeakTime)
			}
			fmt.Fprintf(&b, "  %-22s %10s %10s %8s %6s\n", "time", "mm/hr", "q m3/s", "load", "risk")
			for _, p := range r.sim.Series {
				fmt.Fprintf(&b, "  %-22s %10.1f %10.2f %8.2f %6.3f\n",
					p.Timestamp, p.IntensityMmhr, p.RunoffM3s, p.LoadingRatio, p.Risk)
			}
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprint(&b, divider)
	return b.String()
}

func publishAlerts(ctx context.Context, cfg *config.Config, event domain.RainfallEvent, results []result) error {
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("-publish requires KAFKA_BROKERS")
	}

	var alerts []domain.RiskAlert
	for _, r := range results {
		if r.sim.PeakRisk < cfg.MonitorRiskThreshold {
			continue
		}
		alerts = append(alerts, domain.RiskAlert{
			CatchmentID:       r.catchment.ID,
			CatchmentName:     r.catchment.Name,
			SimulationID:      r.simulationID,
			EventID:           event.ID,
			PeakRisk:          r.sim.PeakRisk,
			RiskLevel:         domain.RiskLevelFor(r.sim.PeakRisk),
			PeakTime:          r.sim.PeakTime,
			RainfallSeverity:  weather.Severity(event.PeakIntensityMmhr),
			PeakIntensityMmhr: event.PeakIntensityMmhr,
			TotalRainfallMm:   event.TotalRainfallMm,
			GeneratedAt:       r.sim.GeneratedAt,
		})
	}
	if len(alerts) == 0 {
		log.Print("no catchments at or above the alert threshold")
		return nil
	}

	publisher := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, slog.Default())
	defer publisher.Close()
	if err := publisher.PublishAlerts(ctx, alerts); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	log.Printf("published %d alerts to %s", len(alerts), cfg.KafkaAlertTopic)
	return nil
}

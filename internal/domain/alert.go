package domain

import "time"

// RiskAlert is published when a monitored catchment's simulated peak risk
// reaches the alert threshold.
type RiskAlert struct {
	CatchmentID   string    `json:"catchment_id"`
	CatchmentName string    `json:"catchment_name,omitempty"`
	SimulationID  string    `json:"simulation_id"`
	EventID       string    `json:"rainfall_event_id"`
	PeakRisk      float64   `json:"peak_risk"`
	RiskLevel     RiskLevel `json:"risk_level"`
	PeakTime      string    `json:"peak_time,omitempty"`

	// Rainfall context for the alert consumer.
	RainfallSeverity  string  `json:"rainfall_severity,omitempty"`
	PeakIntensityMmhr float64 `json:"peak_intensity_mmhr"`
	TotalRainfallMm   float64 `json:"total_rainfall_mm"`

	GeneratedAt time.Time `json:"generated_at"`
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// flood-risk service.
type Metrics struct {
	SimulationsRun     prometheus.Counter
	SimulationDuration prometheus.Histogram
	PeakRisk           prometheus.Histogram

	// Catchment resolution metrics.
	ResolveRequests *prometheus.CounterVec // labels: outcome={polygon,bbox,miss}
	ResolveDuration prometheus.Histogram

	// Real-time monitor metrics.
	MonitorRunning   prometheus.Gauge
	MonitorCycles    prometheus.Counter
	AlertsPublished  prometheus.Counter
	WeatherFetches   *prometheus.CounterVec // labels: outcome={success,error,empty}
	WeatherCacheHits *prometheus.CounterVec // labels: result={hit,miss}
	WeatherDuration  prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SimulationsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "simulations_total",
			Help:      "Total catchment simulations executed.",
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "simulation_duration_seconds",
			Help:      "Duration of a single catchment simulation.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		PeakRisk: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "simulation_peak_risk",
			Help:      "Distribution of peak risk scores across simulations.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
		}),
		ResolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "resolve_requests_total",
			Help:      "Catchment resolution attempts by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of point-to-catchment resolution.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5},
		}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "monitor_running",
			Help:      "1 when the real-time monitor loop is active, 0 when shut down.",
		}),
		MonitorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "monitor_cycles_total",
			Help:      "Completed real-time assessment cycles.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "alerts_published_total",
			Help:      "Risk alerts published to the alert topic.",
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "weather_fetches_total",
			Help:      "Weather provider requests by outcome.",
		}, []string{"outcome"}),
		WeatherCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "weather_cache_total",
			Help:      "Weather response cache lookups by result.",
		}, []string{"result"}),
		WeatherDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "weather_fetch_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.SimulationsRun,
		m.SimulationDuration,
		m.PeakRisk,
		m.ResolveRequests,
		m.ResolveDuration,
		m.MonitorRunning,
		m.MonitorCycles,
		m.AlertsPublished,
		m.WeatherFetches,
		m.WeatherCacheHits,
		m.WeatherDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SimulationsRun:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "simulations_total"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "simulation_duration_seconds"}),
		PeakRisk:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "simulation_peak_risk"}),
		ResolveRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "resolve_requests_total"}, []string{"outcome"}),
		ResolveDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "resolve_duration_seconds"}),
		MonitorRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "monitor_running"}),
		MonitorCycles:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "monitor_cycles_total"}),
		AlertsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "alerts_published_total"}),
		WeatherFetches:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "weather_fetches_total"}, []string{"outcome"}),
		WeatherCacheHits:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "weather_cache_total"}, []string{"result"}),
		WeatherDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "weather_fetch_duration_seconds"}),
	}
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/urbantwin/flood-risk-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// APIToken guards the v1 endpoints. Empty disables auth (dev only).
	APIToken string `envconfig:"API_TOKEN"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"postgres://localhost:5432/flood_risk?sslmode=disable"`

	// Risk engine tunables. The adaptive/raw fork and both steepness values
	// come from the model's revision history; see internal/domain.
	RiskAdaptiveCapacity bool    `envconfig:"RISK_ADAPTIVE_CAPACITY" default:"true"`
	RiskSteepness        float64 `envconfig:"RISK_STEEPNESS" default:"3.0"`
	RiskRawSteepness     float64 `envconfig:"RISK_RAW_STEEPNESS" default:"8.0"`
	RiskHeadroom         float64 `envconfig:"RISK_HEADROOM" default:"2.5"`
	RiskCapBoostMax      float64 `envconfig:"RISK_CAP_BOOST_MAX" default:"50.0"`
	RiskLogCompression   bool    `envconfig:"RISK_LOG_COMPRESSION" default:"true"`
	RiskLogRange         float64 `envconfig:"RISK_LOG_RANGE" default:"40.0"`

	// DefaultRainfallEventID is the design storm used when a risk query
	// names no event.
	DefaultRainfallEventID string `envconfig:"DEFAULT_RAINFALL_EVENT_ID" default:"design_10yr"`

	// Weather provider configuration.
	WeatherAPIURL    string        `envconfig:"WEATHER_API_URL" default:"http://localhost:8000/api/v1/weather"`
	WeatherAPIToken  string        `envconfig:"WEATHER_API_TOKEN"`
	WeatherEnabled   bool          `envconfig:"WEATHER_ENABLED"`
	WeatherTimeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"30s"`
	WeatherCacheSize int           `envconfig:"WEATHER_CACHE_SIZE" default:"256"`
	DefaultLat       float64       `envconfig:"DEFAULT_LAT" default:"-31.95"`
	DefaultLon       float64       `envconfig:"DEFAULT_LON" default:"115.86"`
	WeatherStepHours float64       `envconfig:"WEATHER_STEP_HOURS" default:"0.5"`

	// Real-time monitor configuration. When MONITOR_CATCHMENT_IDS is set the
	// monitor assesses exactly those catchments; otherwise it picks the
	// lowest-capacity ones.
	MonitorInterval       time.Duration `envconfig:"MONITOR_INTERVAL" default:"30m"`
	MonitorRiskThreshold  float64       `envconfig:"MONITOR_RISK_THRESHOLD" default:"0.5"`
	MonitorMaxCatchments  int           `envconfig:"MONITOR_MAX_CATCHMENTS" default:"10"`
	MonitorMaxCapacityM3s float64       `envconfig:"MONITOR_MAX_CAPACITY_M3S" default:"50"`
	MonitorCatchmentIDs   []string      `envconfig:"MONITOR_CATCHMENT_IDS"`

	// Kafka alert publishing. Disabled when no brokers are configured.
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	KafkaAlertTopic string   `envconfig:"KAFKA_ALERT_TOPIC" default:"flood-risk-alerts"`
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file is honored when present, matching the original
// deployment layout.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.RiskSteepness <= 0 || cfg.RiskRawSteepness <= 0 {
		return nil, errors.New("risk steepness values must be positive")
	}
	if cfg.RiskHeadroom <= 0 || cfg.RiskCapBoostMax < 1 {
		return nil, errors.New("RISK_HEADROOM must be positive and RISK_CAP_BOOST_MAX at least 1")
	}
	if cfg.RiskLogRange <= 0 {
		return nil, errors.New("RISK_LOG_RANGE must be positive")
	}
	if cfg.MonitorRiskThreshold < 0 || cfg.MonitorRiskThreshold > 1 {
		return nil, errors.New("MONITOR_RISK_THRESHOLD must be within [0, 1]")
	}
	if cfg.WeatherEnabled && cfg.WeatherAPIToken == "" {
		return nil, errors.New("WEATHER_ENABLED is true but WEATHER_API_TOKEN is not set")
	}
	if cfg.WeatherStepHours <= 0 {
		return nil, errors.New("WEATHER_STEP_HOURS must be positive")
	}

	return &cfg, nil
}

// RiskConfig assembles the engine configuration from the environment
// settings. Raw mode (adaptive capacity off) pairs with the steeper
// historical default steepness.
func (c *Config) RiskConfig() domain.RiskConfig {
	cfg := domain.RiskConfig{
		Steepness:        c.RiskSteepness,
		AdaptiveCapacity: c.RiskAdaptiveCapacity,
		Headroom:         c.RiskHeadroom,
		CapBoostMax:      c.RiskCapBoostMax,
		LogCompression:   c.RiskLogCompression,
		LogRange:         c.RiskLogRange,
	}
	if !cfg.AdaptiveCapacity {
		cfg.Steepness = c.RiskRawSteepness
	}
	return cfg
}

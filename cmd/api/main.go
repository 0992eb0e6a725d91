package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urbantwin/flood-risk-service/internal/adapter/httpapi"
	kafkaadapter "github.com/urbantwin/flood-risk-service/internal/adapter/kafka"
	"github.com/urbantwin/flood-risk-service/internal/adapter/weather"
	"github.com/urbantwin/flood-risk-service/internal/config"
	"github.com/urbantwin/flood-risk-service/internal/monitor"
	"github.com/urbantwin/flood-risk-service/internal/observability"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

// readinessFunc adapts a plain function to httpapi.ReadinessChecker.
type readinessFunc func(ctx context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	catchments := store.NewCatchmentRepository(pool)
	events := store.NewRainfallEventRepository(pool)
	sims := store.NewSimulationRepository(pool)

	// Alert publishing is optional: no brokers, no publisher.
	var publisher *kafkaadapter.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		logger.Info("alert publishing enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("alert publishing disabled")
	}

	// The monitor only runs when the weather provider is configured
	// (WEATHER_ENABLED / WEATHER_API_TOKEN).
	var mon *monitor.Monitor
	ready := readinessFunc(pool.Ping)
	if cfg.WeatherEnabled {
		client := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIToken,
			cfg.WeatherStepHours, cfg.WeatherTimeout, logger, metrics)
		source := weather.NewCachedSource(client, cfg.WeatherCacheSize, metrics)

		var alerts monitor.AlertPublisher
		if publisher != nil {
			alerts = publisher
		}
		mon = monitor.New(source, events, catchments, sims, alerts, monitor.Options{
			Interval:       cfg.MonitorInterval,
			RiskThreshold:  cfg.MonitorRiskThreshold,
			MaxCatchments:  cfg.MonitorMaxCatchments,
			MaxCapacityM3s: cfg.MonitorMaxCapacityM3s,
			CatchmentIDs:   cfg.MonitorCatchmentIDs,
			Lat:            cfg.DefaultLat,
			Lon:            cfg.DefaultLon,
			Risk:           cfg.RiskConfig(),
		}, logger, metrics)
		ready = mon.CheckReadiness
		logger.Info("real-time monitor enabled",
			"interval", cfg.MonitorInterval, "cache_size", cfg.WeatherCacheSize)
	} else {
		logger.Info("real-time monitor disabled")
	}

	srv := httpapi.NewServer(catchments, events, sims, ready, httpapi.Options{
		Addr:           cfg.HTTPAddr,
		APIToken:       cfg.APIToken,
		DefaultEventID: cfg.DefaultRainfallEventID,
		Risk:           cfg.RiskConfig(),
	}, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if mon != nil {
		go func() {
			if err := mon.Run(ctx); err != nil {
				logger.Error("monitor error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

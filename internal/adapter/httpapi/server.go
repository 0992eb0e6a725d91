// Package httpapi exposes the flood-risk service over HTTP: simulation and
// point risk queries, catchment and rainfall event reads, and the usual
// health/readiness/metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/observability"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// CatchmentStore is the catchment read surface the API needs.
type CatchmentStore interface {
	Get(ctx context.Context, id string) (*domain.Catchment, error)
	List(ctx context.Context, landUse string) ([]domain.Catchment, error)
}

// RainfallStore is the rainfall event read surface the API needs.
type RainfallStore interface {
	Get(ctx context.Context, id string) (*domain.RainfallEvent, error)
	List(ctx context.Context, eventType string, minReturnPeriod int) ([]domain.RainfallEvent, error)
}

// SimulationStore is the simulation read surface the API needs.
type SimulationStore interface {
	ListByCatchment(ctx context.Context, catchmentID string, limit, offset int) ([]store.SimulationRecord, error)
	ListHighRisk(ctx context.Context, threshold float64, limit int) ([]store.SimulationRecord, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]store.SimulationRecord, error)
}

// Options configures one Server.
type Options struct {
	Addr string

	// APIToken guards the /v1 endpoints. Empty disables auth.
	APIToken string

	// DefaultEventID is the rainfall event used by point risk queries that
	// name no event.
	DefaultEventID string

	Risk domain.RiskConfig
}

// Server wires the routes and owns the http.Server lifecycle.
type Server struct {
	httpServer *http.Server
	catchments CatchmentStore
	events     RainfallStore
	sims       SimulationStore
	opts       Options
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the API server with all routes registered.
func NewServer(catchments CatchmentStore, events RainfallStore, sims SimulationStore, ready ReadinessChecker, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		catchments: catchments,
		events:     events,
		sims:       sims,
		opts:       opts,
		validate:   validator.New(),
		logger:     logger,
		metrics:    metrics,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/simulate", s.auth(s.handleSimulate))
	mux.HandleFunc("POST /v1/risk/point", s.auth(s.handlePointRisk))
	mux.HandleFunc("GET /v1/catchments", s.auth(s.handleListCatchments))
	mux.HandleFunc("GET /v1/catchments/{id}", s.auth(s.handleGetCatchment))
	mux.HandleFunc("GET /v1/catchments/{id}/simulations", s.auth(s.handleListCatchmentSimulations))
	mux.HandleFunc("GET /v1/rainfall-events", s.auth(s.handleListRainfallEvents))
	mux.HandleFunc("GET /v1/simulations/high-risk", s.auth(s.handleListHighRisk))
	mux.HandleFunc("GET /v1/simulations/recent", s.auth(s.handleListRecent))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// auth enforces the static bearer token on /v1 routes. An empty configured
// token disables the check (dev only).
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIToken != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.APIToken {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

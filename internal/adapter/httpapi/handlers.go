package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

type simulateRequest struct {
	RunoffCoeff   float64   `json:"c" validate:"gte=0,lte=1"`
	AreaKm2       float64   `json:"area_km2" validate:"required,gt=0"`
	CapacityM3s   float64   `json:"capacity_m3s" validate:"gte=0"`
	RainMmhr      []float64 `json:"rain_mmhr" validate:"required,min=1"`
	TimestampsUTC []string  `json:"timestamps_utc" validate:"required,min=1"`
}

type simulateResponse struct {
	domain.SimulationResult
	RiskLevel domain.RiskLevel `json:"risk_level"`
}

// handleSimulate runs the engine over ad-hoc parameters without touching the
// store.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series := domain.RainfallSeries{Timestamps: req.TimestampsUTC, Intensities: req.RainMmhr}
	params := domain.CatchmentParameters{
		RunoffCoeff: req.RunoffCoeff,
		AreaKm2:     req.AreaKm2,
		CapacityM3s: req.CapacityM3s,
	}

	start := time.Now()
	result, err := domain.Simulate(series, params, s.opts.Risk)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("simulation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	s.metrics.SimulationsRun.Inc()
	s.metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	s.metrics.PeakRisk.Observe(result.PeakRisk)

	writeJSON(w, http.StatusOK, simulateResponse{
		SimulationResult: result,
		RiskLevel:        domain.RiskLevelFor(result.PeakRisk),
	})
}

type pointRiskRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`

	// RainfallEventID overrides the configured default design storm.
	RainfallEventID string `json:"rainfall_event_id"`
}

type catchmentSummary struct {
	ID          string  `json:"catchment_id"`
	Name        string  `json:"name"`
	RunoffCoeff float64 `json:"c"`
	AreaKm2     float64 `json:"area_km2"`
	CapacityM3s float64 `json:"capacity_m3s"`
}

type pointRiskResponse struct {
	Catchment       catchmentSummary        `json:"catchment"`
	Resolution      string                  `json:"resolution"` // "polygon" or "bbox"
	RainfallEventID string                  `json:"rainfall_event_id"`
	PeakRisk        float64                 `json:"peak_risk"`
	RiskLevel       domain.RiskLevel        `json:"risk_level"`
	PeakTime        string                  `json:"peak_time,omitempty"`
	PeakPoint       *domain.SimulationPoint `json:"peak_point,omitempty"`
	CapacityUsedM3s float64                 `json:"capacity_used_m3s"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// handlePointRisk resolves a coordinate to its catchment and simulates the
// selected rainfall event against it.
func (s *Server) handlePointRisk(w http.ResponseWriter, r *http.Request) {
	var req pointRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	catchments, err := s.catchments.List(r.Context(), "")
	if err != nil {
		s.logger.Error("list catchments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catchment lookup failed")
		return
	}

	point := domain.Point{Lon: *req.Lon, Lat: *req.Lat}
	start := time.Now()
	catchment, err := domain.Resolve(point, catchments, s.logger)
	s.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, domain.ErrNoCatchment) {
		s.metrics.ResolveRequests.WithLabelValues("miss").Inc()
		writeError(w, http.StatusNotFound, "no catchment contains the given point")
		return
	}
	if err != nil {
		s.logger.Error("resolve failed", "error", err)
		writeError(w, http.StatusInternalServerError, "resolution failed")
		return
	}
	// A polygon-tier match always carries geometry; a bbox fallback never
	// does.
	resolution := "bbox"
	if len(catchment.Geometry) > 0 {
		resolution = "polygon"
	}
	s.metrics.ResolveRequests.WithLabelValues(resolution).Inc()

	event, status, msg := s.selectEvent(r, req.RainfallEventID)
	if event == nil {
		writeError(w, status, msg)
		return
	}

	result, err := domain.Simulate(event.Series, catchment.CatchmentParameters, s.opts.Risk)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("simulation failed", "catchment_id", catchment.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	s.metrics.SimulationsRun.Inc()
	s.metrics.PeakRisk.Observe(result.PeakRisk)

	resp := pointRiskResponse{
		Catchment: catchmentSummary{
			ID:          catchment.ID,
			Name:        catchment.Name,
			RunoffCoeff: catchment.RunoffCoeff,
			AreaKm2:     catchment.AreaKm2,
			CapacityM3s: catchment.CapacityM3s,
		},
		Resolution:      resolution,
		RainfallEventID: event.ID,
		PeakRisk:        result.PeakRisk,
		RiskLevel:       domain.RiskLevelFor(result.PeakRisk),
		PeakTime:        result.PeakTime,
		CapacityUsedM3s: result.CapacityUsedM3s,
		GeneratedAt:     result.GeneratedAt,
	}
	for i := range result.Series {
		if result.Series[i].Risk == result.PeakRisk {
			resp.PeakPoint = &result.Series[i]
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectEvent picks the rainfall event for a point risk query: the requested
// ID, else the configured default, else any stored event. A nil return means
// the response was decided; status and msg describe the error to write.
func (s *Server) selectEvent(r *http.Request, requested string) (*domain.RainfallEvent, int, string) {
	id := requested
	if id == "" {
		id = s.opts.DefaultEventID
	}

	event, err := s.events.Get(r.Context(), id)
	if err == nil {
		return event, 0, ""
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("get rainfall event failed", "event_id", id, "error", err)
		return nil, http.StatusInternalServerError, "rainfall event lookup failed"
	}
	if requested != "" {
		return nil, http.StatusNotFound, "rainfall event not found: " + requested
	}

	// The default design storm is not seeded; fall back to any stored event.
	events, err := s.events.List(r.Context(), "", 0)
	if err != nil {
		s.logger.Error("list rainfall events failed", "error", err)
		return nil, http.StatusInternalServerError, "rainfall event lookup failed"
	}
	if len(events) == 0 {
		return nil, http.StatusNotFound, "no rainfall events available"
	}
	return &events[0], 0, ""
}

func (s *Server) handleListCatchments(w http.ResponseWriter, r *http.Request) {
	catchments, err := s.catchments.List(r.Context(), r.URL.Query().Get("land_use"))
	if err != nil {
		s.logger.Error("list catchments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catchment lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catchments": catchments,
		"count":      len(catchments),
	})
}

func (s *Server) handleGetCatchment(w http.ResponseWriter, r *http.Request) {
	catchment, err := s.catchments.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "catchment not found")
		return
	}
	if err != nil {
		s.logger.Error("get catchment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catchment lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, catchment)
}

func (s *Server) handleListCatchmentSimulations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	recs, err := s.sims.ListByCatchment(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		s.logger.Error("list simulations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "simulation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"simulations": recs,
		"count":       len(recs),
	})
}

func (s *Server) handleListRainfallEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.List(r.Context(),
		r.URL.Query().Get("event_type"),
		queryInt(r, "min_return_period", 0))
	if err != nil {
		s.logger.Error("list rainfall events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "rainfall event lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rainfall_events": events,
		"count":           len(events),
	})
}

func (s *Server) handleListHighRisk(w http.ResponseWriter, r *http.Request) {
	threshold := queryFloat(r, "threshold", 0.6)
	limit := queryInt(r, "limit", 50)

	recs, err := s.sims.ListHighRisk(r.Context(), threshold, limit)
	if err != nil {
		s.logger.Error("list high-risk simulations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "simulation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold":   threshold,
		"simulations": recs,
		"count":       len(recs),
	})
}

func (s *Server) handleListRecent(w http.ResponseWriter, r *http.Request) {
	hours := queryFloat(r, "hours", 24)
	limit := queryInt(r, "limit", 50)

	since := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))
	recs, err := s.sims.ListRecent(r.Context(), since, limit)
	if err != nil {
		s.logger.Error("list recent simulations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "simulation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":       since,
		"simulations": recs,
		"count":       len(recs),
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

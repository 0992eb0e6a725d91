package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbantwin/flood-risk-service/internal/adapter/httpapi"
	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/observability"
	"github.com/urbantwin/flood-risk-service/internal/store"
)

// --- fakes ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakeCatchments struct {
	list    []domain.Catchment
	landUse string
}

func (f *fakeCatchments) Get(_ context.Context, id string) (*domain.Catchment, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			return &f.list[i], nil
		}
	}
	return nil, fmt.Errorf("catchment %s: %w", id, store.ErrNotFound)
}

func (f *fakeCatchments) List(_ context.Context, landUse string) ([]domain.Catchment, error) {
	f.landUse = landUse
	return f.list, nil
}

type fakeEvents struct {
	events []domain.RainfallEvent
}

func (f *fakeEvents) Get(_ context.Context, id string) (*domain.RainfallEvent, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			return &f.events[i], nil
		}
	}
	return nil, fmt.Errorf("rainfall event %s: %w", id, store.ErrNotFound)
}

func (f *fakeEvents) List(_ context.Context, _ string, _ int) ([]domain.RainfallEvent, error) {
	return f.events, nil
}

type fakeSims struct {
	recs      []store.SimulationRecord
	limit     int
	offset    int
	threshold float64
	since     time.Time
}

func (f *fakeSims) ListByCatchment(_ context.Context, _ string, limit, offset int) ([]store.SimulationRecord, error) {
	f.limit, f.offset = limit, offset
	return f.recs, nil
}

func (f *fakeSims) ListHighRisk(_ context.Context, threshold float64, limit int) ([]store.SimulationRecord, error) {
	f.threshold, f.limit = threshold, limit
	return f.recs, nil
}

func (f *fakeSims) ListRecent(_ context.Context, since time.Time, limit int) ([]store.SimulationRecord, error) {
	f.since, f.limit = since, limit
	return f.recs, nil
}

// --- helpers ---

// squareGeometry is a GeoJSON polygon covering Perth's CBD block used by the
// resolver tests.
const squareGeometry = `{"type":"Polygon","coordinates":[[[115.8,-32.0],[115.9,-32.0],[115.9,-31.9],[115.8,-31.9],[115.8,-32.0]]]}`

func polygonCatchment() domain.Catchment {
	return domain.Catchment{
		ID:   "perth_cbd",
		Name: "Perth CBD",
		CatchmentParameters: domain.CatchmentParameters{
			RunoffCoeff: 0.8,
			AreaKm2:     4,
			CapacityM3s: 5,
		},
		Geometry: json.RawMessage(squareGeometry),
	}
}

func boxCatchment() domain.Catchment {
	return domain.Catchment{
		ID:   "swan_east",
		Name: "Swan East",
		CatchmentParameters: domain.CatchmentParameters{
			RunoffCoeff: 0.5,
			AreaKm2:     12,
			CapacityM3s: 20,
		},
		Bounds: &domain.Bounds{MinLon: 116.0, MinLat: -32.1, MaxLon: 116.3, MaxLat: -31.8},
	}
}

func designStorm() domain.RainfallEvent {
	return domain.RainfallEvent{
		ID:   "design_10yr",
		Name: "10-year design storm",
		Series: domain.RainfallSeries{
			Timestamps:  []string{"2025-01-01T00:00:00Z", "2025-01-01T01:00:00Z", "2025-01-01T02:00:00Z"},
			Intensities: []float64{5, 25, 10},
		},
		EventType:         "design",
		ReturnPeriodYears: 10,
	}
}

type testDeps struct {
	catchments *fakeCatchments
	events     *fakeEvents
	sims       *fakeSims
}

func newTestServer(t *testing.T, opts httpapi.Options) (*httpapi.Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		catchments: &fakeCatchments{list: []domain.Catchment{polygonCatchment(), boxCatchment()}},
		events:     &fakeEvents{events: []domain.RainfallEvent{designStorm()}},
		sims:       &fakeSims{},
	}
	if opts.Addr == "" {
		opts.Addr = ":0"
	}
	if opts.DefaultEventID == "" {
		opts.DefaultEventID = "design_10yr"
	}
	if opts.Risk == (domain.RiskConfig{}) {
		opts.Risk = domain.DefaultRiskConfig()
	}
	srv := httpapi.NewServer(deps.catchments, deps.events, deps.sims, &mockReadiness{}, opts,
		slog.Default(), observability.NewMetricsForTesting())
	return srv, deps
}

func doJSON(srv *httpapi.Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	srv.ServeHTTP(rec, req)
	return rec
}

// --- health endpoints ---

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	rec := doJSON(srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	deps := &testDeps{catchments: &fakeCatchments{}, events: &fakeEvents{}, sims: &fakeSims{}}
	srv := httpapi.NewServer(deps.catchments, deps.events, deps.sims,
		&mockReadiness{err: fmt.Errorf("not ready yet")},
		httpapi.Options{Addr: ":0", Risk: domain.DefaultRiskConfig()},
		slog.Default(), observability.NewMetricsForTesting())

	rec := doJSON(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	rec := doJSON(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- auth ---

func TestAuth_RejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{APIToken: "secret"})
	rec := doJSON(srv, http.MethodGet, "/v1/catchments", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_AcceptsBearerToken(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{APIToken: "secret"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/catchments", nil)
	req.Header.Set("Authorization", "Bearer secret")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_HealthEndpointsUnguarded(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{APIToken: "secret"})
	rec := doJSON(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- POST /v1/simulate ---

func TestSimulate_HappyPath(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/simulate", `{
		"c": 0.8, "area_km2": 2.5, "capacity_m3s": 10,
		"rain_mmhr": [0, 10],
		"timestamps_utc": ["2025-01-01T00:00:00Z", "2025-01-01T01:00:00Z"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Series    []domain.SimulationPoint `json:"series"`
		PeakRisk  float64                  `json:"peak_risk"`
		PeakTime  string                   `json:"peak_time"`
		RiskLevel domain.RiskLevel         `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Series, 2)
	// Q = 0.278 * C * i * A
	assert.InDelta(t, 0.278*0.8*10*2.5, body.Series[1].RunoffM3s, 1e-9)
	assert.Equal(t, "2025-01-01T01:00:00Z", body.PeakTime)
	assert.Greater(t, body.PeakRisk, 0.0)
	assert.Less(t, body.PeakRisk, 1.0)
	assert.NotEmpty(t, body.RiskLevel)
}

func TestSimulate_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"coefficient above one", `{"c": 1.5, "area_km2": 1, "rain_mmhr": [1], "timestamps_utc": ["t0"]}`},
		{"zero area", `{"c": 0.5, "area_km2": 0, "rain_mmhr": [1], "timestamps_utc": ["t0"]}`},
		{"empty series", `{"c": 0.5, "area_km2": 1, "rain_mmhr": [], "timestamps_utc": []}`},
		{"misaligned series", `{"c": 0.5, "area_km2": 1, "rain_mmhr": [1, 2], "timestamps_utc": ["t0"]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(srv, http.MethodPost, "/v1/simulate", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

// --- POST /v1/risk/point ---

func TestPointRisk_PolygonMatch(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lat": -31.95, "lon": 115.85}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Catchment struct {
			ID string `json:"catchment_id"`
		} `json:"catchment"`
		Resolution      string                  `json:"resolution"`
		RainfallEventID string                  `json:"rainfall_event_id"`
		PeakRisk        float64                 `json:"peak_risk"`
		RiskLevel       domain.RiskLevel        `json:"risk_level"`
		PeakPoint       *domain.SimulationPoint `json:"peak_point"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "perth_cbd", body.Catchment.ID)
	assert.Equal(t, "polygon", body.Resolution)
	assert.Equal(t, "design_10yr", body.RainfallEventID)
	assert.Greater(t, body.PeakRisk, 0.0)
	assert.NotEmpty(t, body.RiskLevel)
	require.NotNil(t, body.PeakPoint)
	assert.Equal(t, 25.0, body.PeakPoint.IntensityMmhr)
}

func TestPointRisk_BboxFallback(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lat": -31.9, "lon": 116.2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Catchment struct {
			ID string `json:"catchment_id"`
		} `json:"catchment"`
		Resolution string `json:"resolution"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "swan_east", body.Catchment.ID)
	assert.Equal(t, "bbox", body.Resolution)
}

func TestPointRisk_NoCatchment(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lat": 0.0001, "lon": 10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPointRisk_MissingCoordinates(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lon": 115.85}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointRisk_ExplicitEventNotFound(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point",
		`{"lat": -31.95, "lon": 115.85, "rainfall_event_id": "design_100yr"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "design_100yr")
}

func TestPointRisk_FallsBackToAnyStoredEvent(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{DefaultEventID: "design_50yr"})
	// Only the 10-year storm is stored; the configured default is absent.
	require.Len(t, deps.events.events, 1)

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lat": -31.95, "lon": 115.85}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rainfall_event_id":"design_10yr"`)
}

func TestPointRisk_NoEventsAvailable(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{})
	deps.events.events = nil

	rec := doJSON(srv, http.MethodPost, "/v1/risk/point", `{"lat": -31.95, "lon": 115.85}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no rainfall events")
}

// --- read endpoints ---

func TestListCatchments_LandUseFilter(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodGet, "/v1/catchments?land_use=residential", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "residential", deps.catchments.landUse)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestGetCatchment_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	rec := doJSON(srv, http.MethodGet, "/v1/catchments/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCatchment_Found(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	rec := doJSON(srv, http.MethodGet, "/v1/catchments/perth_cbd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Perth CBD"`)
}

func TestListCatchmentSimulations_Paging(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodGet, "/v1/catchments/perth_cbd/simulations?limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, deps.sims.limit)
	assert.Equal(t, 10, deps.sims.offset)
}

func TestListRainfallEvents(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	rec := doJSON(srv, http.MethodGet, "/v1/rainfall-events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "design_10yr")
}

func TestListHighRisk_DefaultThreshold(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodGet, "/v1/simulations/high-risk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.6, deps.sims.threshold)

	rec = doJSON(srv, http.MethodGet, "/v1/simulations/high-risk?threshold=0.8&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.8, deps.sims.threshold)
	assert.Equal(t, 3, deps.sims.limit)
}

func TestListRecent_DefaultWindow(t *testing.T) {
	srv, deps := newTestServer(t, httpapi.Options{})

	rec := doJSON(srv, http.MethodGet, "/v1/simulations/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, deps.sims.limit)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), deps.sims.since, time.Minute)

	rec = doJSON(srv, http.MethodGet, "/v1/simulations/recent?hours=2&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, deps.sims.limit)
	assert.WithinDuration(t, time.Now().UTC().Add(-2*time.Hour), deps.sims.since, time.Minute)
}

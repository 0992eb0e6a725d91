// Package weather fetches rainfall observations from the weather provider
// and converts them into rainfall events the engine can simulate.
package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/observability"
)

// Source fetches the current rainfall event for a coordinate.
type Source interface {
	FetchRainfallEvent(ctx context.Context, lat, lon float64) (domain.RainfallEvent, error)
}

// Client implements Source against the observation provider's HTTP API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	stepHours  float64
	local      *time.Location
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a weather provider client. stepHours is the observation
// cadence in hours (0.5 for the half-hourly feed).
func NewClient(baseURL, token string, stepHours float64, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	// Station timestamps are Perth local time. Perth observes no DST, so a
	// fixed offset is a safe fallback when the tz database is unavailable.
	local, err := time.LoadLocation("Australia/Perth")
	if err != nil {
		local = time.FixedZone("AWST", 8*60*60)
	}

	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		stepHours: stepHours,
		local:     local,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
	}
}

// SetClock replaces the clock. Test use only.
func (c *Client) SetClock(clock clockwork.Clock) { c.clock = clock }

// Provider response types.

type response struct {
	Data struct {
		Observations []observation `json:"observations"`
		StationInfo  stationInfo   `json:"station_info"`
	} `json:"data"`
}

type observation struct {
	LocalDateTime string `json:"local_date_time_full"` // yyyymmddHHMMSS, station local time
	RainTrace     string `json:"rain_trace"`           // cumulative mm over the step, as text
}

type stationInfo struct {
	Name      string  `json:"name"`
	StationID string  `json:"station_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// FetchRainfallEvent requests current observations for a coordinate and
// converts them into a stored-shape rainfall event. Returns ErrNoObservations
// when the provider has no rainfall data for the point.
func (c *Client) FetchRainfallEvent(ctx context.Context, lat, lon float64) (domain.RainfallEvent, error) {
	start := c.clock.Now()
	resp, err := c.fetch(ctx, lat, lon)
	if c.metrics != nil {
		c.metrics.WeatherDuration.Observe(c.clock.Since(start).Seconds())
	}
	if err != nil {
		c.observeFetch("error")
		return domain.RainfallEvent{}, err
	}

	event, err := c.eventFromResponse(resp)
	if err != nil {
		c.observeFetch("empty")
		return domain.RainfallEvent{}, err
	}
	c.observeFetch("success")
	return event, nil
}

func (c *Client) observeFetch(outcome string) {
	if c.metrics != nil {
		c.metrics.WeatherFetches.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*response, error) {
	body, err := json.Marshal(map[string]float64{"lat": lat, "lon": lon})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, respBody)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

// ErrNoObservations reports a well-formed provider response that carried no
// usable rainfall observations.
var ErrNoObservations = fmt.Errorf("no rainfall observations")

func (c *Client) eventFromResponse(resp *response) (domain.RainfallEvent, error) {
	obs := make([]observation, len(resp.Data.Observations))
	copy(obs, resp.Data.Observations)
	sort.Slice(obs, func(i, j int) bool { return obs[i].LocalDateTime < obs[j].LocalDateTime })

	series := domain.RainfallSeries{}
	for _, o := range obs {
		dtLocal, err := time.ParseInLocation("20060102150405", o.LocalDateTime, c.local)
		if err != nil {
			c.logger.Warn("skipping observation with bad timestamp",
				"timestamp", o.LocalDateTime, "error", err)
			continue
		}
		rain := 0.0
		if o.RainTrace != "" && o.RainTrace != "-" {
			rain, err = strconv.ParseFloat(o.RainTrace, 64)
			if err != nil {
				c.logger.Warn("skipping observation with bad rain trace",
					"rain_trace", o.RainTrace, "error", err)
				continue
			}
		}
		// rain_trace is millimetres over one step; divide by the step
		// duration to get an intensity in mm/hr.
		series.Intensities = append(series.Intensities, rain/c.stepHours)
		series.Timestamps = append(series.Timestamps, dtLocal.UTC().Format("2006-01-02T15:04:05Z"))
	}

	if series.Len() == 0 {
		return domain.RainfallEvent{}, ErrNoObservations
	}

	station := resp.Data.StationInfo
	now := c.clock.Now().UTC()
	event := domain.RainfallEvent{
		ID:                fmt.Sprintf("weather_api_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8]),
		Name:              fmt.Sprintf("%s - %s", stationName(station), series.Timestamps[0]),
		Series:            series,
		EventType:         "historical",
		TotalRainfallMm:   series.TotalRainfallMm(c.stepHours),
		PeakIntensityMmhr: series.PeakIntensity(),
		DurationHours:     float64(series.Len()) * c.stepHours,
		Source:            fmt.Sprintf("Weather API - %s (%s)", stationName(station), station.StationID),
		CreatedAt:         now,
	}
	return event, nil
}

func stationName(s stationInfo) string {
	if s.Name == "" {
		return "Unknown"
	}
	return s.Name
}

// Severity labels a rainfall burst by its peak intensity in mm/hr.
func Severity(peakIntensityMmhr float64) string {
	switch {
	case peakIntensityMmhr >= 50:
		return "extreme"
	case peakIntensityMmhr >= 30:
		return "heavy"
	case peakIntensityMmhr >= 10:
		return "moderate"
	case peakIntensityMmhr >= 2:
		return "light"
	default:
		return "drizzle"
	}
}

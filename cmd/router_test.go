package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/engine"
	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/model"
	"github.com/findmyspot/findmyspot/internal/ranker"
	"github.com/findmyspot/findmyspot/pkg/geocode"
)

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, q string) (*geocode.Result, error) {
	switch q {
	case "Collins St":
		return &geocode.Result{Latitude: -37.8100, Longitude: 144.9600, DisplayName: "Collins Street", Matched: true}, nil
	case "down":
		return nil, &geocode.TransportError{Op: "search", Err: errors.New("status 502")}
	default:
		return &geocode.Result{}, nil
	}
}

func (stubGeocoder) Autocomplete(_ context.Context, q string, _ int) ([]geocode.Suggestion, error) {
	return []geocode.Suggestion{{DisplayName: q + " Street, Melbourne"}}, nil
}

func testRouter(t *testing.T, baseline *forecast.Baseline) http.Handler {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	at := time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC)

	holder := dataset.NewHolder(nil)
	holder.Store(dataset.NewSnapshot(dataset.Tables{
		Bays: []model.Bay{
			{ID: "b1", Lat: -37.8100, Lon: 144.9600, RoadSegmentID: "s1"},
			{ID: "b2", Lat: -37.8105, Lon: 144.9600, RoadSegmentID: "s2"},
		},
		Readings: []model.SensorReading{
			{BayID: "b1", Zone: 4002, Status: model.StatusUnoccupied, Timestamp: at},
			{BayID: "b2", Zone: 4010, Status: model.StatusOccupied, Timestamp: at},
		},
		Links: []model.ZoneLink{{RoadSegmentID: "s1", Zone: 4002, OnStreet: "Collins Street"}},
		Rules: []model.SignPlateRule{{Zone: 4002, Days: "Mon-Fri", StartTime: "07:30", EndTime: "18:30", Duration: "2P"}},
	}, time.UTC, now()))

	resolver := forecast.NewResolver(forecast.Options{Baseline: baseline, Now: now})
	rk := ranker.New(resolver, ranker.Options{})
	eng := engine.New(holder, resolver, rk, stubGeocoder{}, engine.Options{Now: now})
	return newRouter(eng, []string{"https://findmyspot.example"}, 5*time.Second)
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var body map[string]any
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestHealthEndpoint(t *testing.T) {
	rr, body := get(t, testRouter(t, forecast.NewBaseline(0.5)), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["baseline"])
	assert.Equal(t, "disabled", body["scorer"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestPredictEndpoint(t *testing.T) {
	rr, body := get(t, testRouter(t, forecast.NewBaseline(0.5)), "/api/parking/predict?zone_number=4002.0&hour=9&day_type=monday&hours_ahead=2")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(4002), body["zone_number"])
	assert.Equal(t, "weekday", body["day_type"])
	assert.Equal(t, float64(2), body["hours_ahead"])

	forecasts := body["forecasts"].([]any)
	require.Len(t, forecasts, 2)
	first := forecasts[0].(map[string]any)
	assert.Equal(t, "historical", first["source_tier"])
	assert.Equal(t, float64(100), first["available_spots"])
	assert.Equal(t, "baseline", forecasts[1].(map[string]any)["source_tier"])

	suggested := body["suggested_zones"].([]any)
	require.Len(t, suggested, 1)
	assert.Equal(t, float64(4010), suggested[0].(map[string]any)["zone_number"])
}

func TestPredictEndpoint_NamedDay(t *testing.T) {
	rr, body := get(t, testRouter(t, forecast.NewBaseline(0.5)), "/api/parking/predict?zone_number=4002&hour=9&day_type=wednesday&suggest=false")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "weekday", body["day_type"])
	forecasts := body["forecasts"].([]any)
	require.Len(t, forecasts, 1)
	assert.Equal(t, "2026-10-21T09:00:00Z", forecasts[0].(map[string]any)["timestamp"])
}

func TestPredictEndpoint_BadInput(t *testing.T) {
	h := testRouter(t, nil)

	rr, body := get(t, h, "/api/parking/predict?zone_number=abc&hour=9")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["error"], "zone")

	rr, _ = get(t, h, "/api/parking/predict?zone_number=4002&hour=nine")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = get(t, h, "/api/parking/predict?zone_number=4002&hour=25")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = get(t, h, "/api/parking/predict?zone_number=4002&hour=9&suggest=maybe")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPredictEndpoint_Unavailable(t *testing.T) {
	rr, body := get(t, testRouter(t, nil), "/api/parking/predict?zone_number=9999&hour=9")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, body["error"], "forecast unavailable")
}

func TestFindEndpoint(t *testing.T) {
	h := testRouter(t, forecast.NewBaseline(0.5))

	rr, body := get(t, h, "/api/parking/find?lat=-37.81&lon=144.96&radius=100")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(2), body["bays_found"])
	assert.Equal(t, float64(1), body["available_bays"])
	assert.Len(t, body["zones"], 2)
	assert.Equal(t, []any{"You can park here on Mon-Fri from 07:30 to 18:30 for 2p"}, body["restrictions_pretty"])

	rr, body = get(t, h, "/api/parking/find?address=Collins+St&include_predictions=false")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Collins Street", body["center"].(map[string]any)["display_name"])

	rr, _ = get(t, h, "/api/parking/find?address=Nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = get(t, h, "/api/parking/find?address=down")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr, _ = get(t, h, "/api/parking/find")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = get(t, h, "/api/parking/find?lat=x&lon=144.96")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestZoneEndpoints(t *testing.T) {
	h := testRouter(t, nil)

	rr, body := get(t, h, "/api/parking/zone/4002/rules")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["rules"], 1)

	rr, body = get(t, h, "/api/parking/zones?on_street=collins")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{float64(4002)}, body["zones"])

	rr, body = get(t, h, "/api/parking/realtime?zone_number=4010&only_available=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), body["count"])

	rr, body = get(t, h, "/api/parking/historical?zone_number=4002&day_type=weekday")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["hours"], 1)

	rr, _ = get(t, h, "/api/parking/zone/abc/rules")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGeocodeEndpoints(t *testing.T) {
	h := testRouter(t, nil)

	rr, body := get(t, h, "/api/parking/geocode?q=Nowhere")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["matched"])

	rr, body = get(t, h, "/api/parking/autocomplete?q=Collins&limit=3")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["suggestions"], 1)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/parking/predict", nil)
	req.Header.Set("Origin", "https://findmyspot.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rr, req)

	assert.Equal(t, "https://findmyspot.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := testRouter(t, nil)
	get(t, h, "/health")

	rr, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "findmyspot_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(model.ErrInvalidZone))
	assert.Equal(t, http.StatusNotFound, statusFor(engine.ErrAddressNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(engine.ErrGeocoderDisabled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(model.NewDataUnavailable("bays", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&geocode.TransportError{Op: "search", Err: errors.New("x")}))
}

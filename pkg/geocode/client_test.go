package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

func TestGeocode_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "Flinders Street Station", q.Get("q"))
		assert.Equal(t, "au", q.Get("countrycodes"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "json", q.Get("format"))
		_, _ = io.WriteString(w, `[{"lat":"-37.8183","lon":"144.9671","display_name":"Flinders Street Station, Melbourne","type":"station"}]`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Geocode(context.Background(), "  Flinders Street Station ")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, -37.8183, result.Latitude, 1e-6)
	assert.InDelta(t, 144.9671, result.Longitude, 1e-6)
	assert.Equal(t, "Flinders Street Station, Melbourne", result.DisplayName)
	assert.Equal(t, "station", result.Type)
}

func TestGeocode_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_EmptyArrayIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Geocode(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_EmptyQuery(t *testing.T) {
	result, err := newTestClient("http://127.0.0.1:1").Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_TransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "Collins St")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocode_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "Collins St")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[{"lat":"-37.81","lon":"144.96","display_name":"Collins St"}]`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Geocode(context.Background(), "Collins St")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeocode_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "locationiq", FailureThreshold: 1, ResetTimeout: time.Hour})
	g := newTestClient(srv.URL, WithBreaker(cb), WithRetry(resilience.RetryConfig{MaxAttempts: 1}))

	_, err := g.Geocode(context.Background(), "a")
	require.Error(t, err)
	_, err = g.Geocode(context.Background(), "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_DefaultBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		_, _ = io.WriteString(w, `[{"lat":"-37.8","lon":"144.9","display_name":"Melbourne"}]`)
	}))
	defer srv.Close()

	g := NewClient("k", WithHTTPClient(newRewriteClient(srv.URL, DefaultBaseURL))).(*geocoder)
	g.limiter = newTestLimiter()

	result, err := g.Geocode(context.Background(), "Melbourne")
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestGeocode_CachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache, err := NewSQLiteCache(context.Background(), filepath.Join(t.TempDir(), "geocode.db"))
	require.NoError(t, err)
	defer cache.Close() //nolint:errcheck

	g := newTestClient(srv.URL, WithCache(cache, time.Hour))
	for i := 0; i < 3; i++ {
		result, err := g.Geocode(context.Background(), "Nowhere Lane")
		require.NoError(t, err)
		assert.False(t, result.Matched)
	}
	assert.Equal(t, int32(1), calls.Load(), "non-matches are cached too")
}

func TestAutocomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autocomplete", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("dedupe"))
		_, _ = io.WriteString(w, `[
			{"lat":"-37.81","lon":"144.96","display_name":"Collins Street, Melbourne","type":"road"},
			{"lat":"bad","lon":"144.96","display_name":"Broken"},
			{"lat":"-37.82","lon":"144.97","display_name":"Collins Place"}
		]`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Autocomplete(context.Background(), "Collins", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Collins Street, Melbourne", got[0].DisplayName)
	assert.Equal(t, "road", got[0].Type)
	assert.InDelta(t, 144.97, got[1].Longitude, 1e-9)
}

func TestAutocomplete_EmptyAndNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := newTestClient(srv.URL)
	got, err := g.Autocomplete(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = g.Autocomplete(context.Background(), "zzzz", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

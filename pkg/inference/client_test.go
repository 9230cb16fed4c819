package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
}

func TestScore_PostsFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4002, req.ZoneNumber)
		assert.Equal(t, 17, req.Hour)
		assert.Equal(t, 6, req.DayOfWeek)
		assert.Equal(t, "saturday", req.DayType)
		assert.Equal(t, "2026-10-24T17:00:00Z", req.Timestamp)

		_, _ = io.WriteString(w, `{"predicted_availability":0.42}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", fastRetry())
	got, err := c.Score(context.Background(), 4002, time.Date(2026, 10, 24, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 0.42, got, 1e-9)
}

func TestScore_PredictionsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[{"predicted_availability":0.8},{"predicted_availability":0.1}]}`)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, fastRetry()).Score(context.Background(), 7, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestScore_MissingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).Score(context.Background(), 7, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predicted_availability")
}

func TestScore_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"predicted_availability":0.5}`)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, fastRetry()).Score(context.Background(), 7, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScore_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `unknown zone`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).Score(context.Background(), 7, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown zone")
	assert.Equal(t, int32(1), calls.Load())
}

func TestScore_HonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"predicted_availability":0.5}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, fastRetry()).Score(ctx, 7, time.Now())
	require.Error(t, err)
}

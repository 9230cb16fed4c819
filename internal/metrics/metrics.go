// Package metrics exposes Prometheus instruments for the availability engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

const namespace = "findmyspot"

var (
	ForecastTier = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_hours_total",
		Help:      "Forecast hours resolved, by the cascade tier that produced them",
	}, []string{"tier"})

	ForecastUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_unavailable_total",
		Help:      "Forecast requests where no tier produced a value",
	})

	ScorerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scorer_duration_seconds",
		Help:      "Live model scorer call latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_requests_total",
		Help:      "Geocoding adapter calls by operation and outcome",
	}, []string{"operation", "outcome"})

	GeocodeCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_cache_total",
		Help:      "Geocode cache lookups by result",
	}, []string{"result"})

	SnapshotRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_refresh_total",
		Help:      "Dataset snapshot refresh attempts by outcome",
	}, []string{"outcome"})

	SnapshotRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_rows",
		Help:      "Rows per table in the current dataset snapshot",
	}, []string{"table"})

	SnapshotLoadedAt = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_loaded_timestamp_seconds",
		Help:      "Unix time the current dataset snapshot was loaded",
	})

	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_state",
		Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"breaker"})

	RankerCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ranker_candidates",
		Help:      "Candidate zones forecast per ranking request",
		Buckets:   prometheus.LinearBuckets(0, 2, 10),
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route and status code",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP API latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCircuit records breaker transitions. It matches
// resilience.CircuitBreakerConfig.OnStateChange.
func ObserveCircuit(name string, _, to resilience.CircuitState) {
	CircuitState.WithLabelValues(name).Set(float64(to))
}

// ObserveSnapshot records the shape of a freshly loaded snapshot.
func ObserveSnapshot(loadedAt time.Time, rows map[string]int) {
	SnapshotRefreshes.WithLabelValues("success").Inc()
	SnapshotLoadedAt.Set(float64(loadedAt.Unix()))
	for table, n := range rows {
		SnapshotRows.WithLabelValues(table).Set(float64(n))
	}
}

package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
	"github.com/findmyspot/findmyspot/internal/resilience"
)

var melbourne = mustLocation("Australia/Melbourne")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Monday 2026-10-19 09:00 Melbourne.
func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 9, 0, 0, 0, melbourne)
}

// historicalSnapshot holds 10 readings for zone 4002 at 17:00 on weekdays:
// 8 distinct bays, 6 of them seen unoccupied.
func historicalSnapshot() *dataset.Snapshot {
	var readings []model.SensorReading
	add := func(bay string, status model.Status, day, minute int) {
		readings = append(readings, model.SensorReading{
			BayID:     bay,
			Zone:      4002,
			Status:    status,
			Timestamp: time.Date(2026, 10, day, 17, minute, 0, 0, melbourne),
		})
	}
	for i := 1; i <= 6; i++ {
		add(fmt.Sprintf("b%d", i), model.StatusUnoccupied, 13, i)
	}
	add("b7", model.StatusOccupied, 13, 10)
	add("b8", model.StatusOccupied, 14, 10)
	add("b7", model.StatusOccupied, 14, 20)
	add("b8", model.StatusOccupied, 15, 30)
	// Saturday reading, outside the weekday bucket.
	add("b9", model.StatusUnoccupied, 17, 5)

	return dataset.NewSnapshot(dataset.Tables{Readings: readings}, melbourne, time.Now())
}

func newResolver(scorer Scorer, baseline *Baseline) *Resolver {
	return NewResolver(Options{
		Scorer:   scorer,
		Baseline: baseline,
		Location: melbourne,
		Now:      fixedNow,
	})
}

func failingScorer() Scorer {
	return ScorerFunc(func(context.Context, model.ZoneID, time.Time) (float64, error) {
		return 0, errors.New("model offline")
	})
}

func TestForecastHistoricalScenario(t *testing.T) {
	r := newResolver(failingScorer(), NewBaseline(0.42))

	got, err := r.Forecast(context.Background(), historicalSnapshot(), Request{Zone: 4002, Hour: 17, DayType: model.Weekday})
	require.NoError(t, err)
	require.Len(t, got, 1)

	f := got[0]
	assert.Equal(t, model.TierHistorical, f.SourceTier)
	assert.InDelta(t, 0.75, f.PredictedAvailability, 1e-9)
	assert.Equal(t, model.LabelGood, f.StatusLabel)
	assert.Equal(t, 75, f.AvailableSpots)
	assert.Equal(t, 0.5, f.Confidence)
	assert.Equal(t, 17, f.Hour)
	assert.Equal(t, time.Date(2026, 10, 19, 17, 0, 0, 0, melbourne), f.Timestamp)
}

func TestForecastModelTierWins(t *testing.T) {
	scorer := ScorerFunc(func(_ context.Context, zone model.ZoneID, at time.Time) (float64, error) {
		assert.Equal(t, model.ZoneID(4002), zone)
		return 0.5, nil
	})
	r := newResolver(scorer, NewBaseline(0.1))

	got, err := r.Forecast(context.Background(), historicalSnapshot(), Request{Zone: 4002, Hour: 17, DayType: model.Weekday, HoursAhead: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, f := range got {
		assert.Equal(t, model.TierModel, f.SourceTier)
		assert.Equal(t, 1.0, f.Confidence)
		assert.Equal(t, 17+i, f.Hour)
	}
}

func TestForecastPerHourFallback(t *testing.T) {
	// The model answers only for 18:00; 17:00 has history; 19:00 has neither.
	scorer := ScorerFunc(func(_ context.Context, _ model.ZoneID, at time.Time) (float64, error) {
		if at.Hour() == 18 {
			return 0.2, nil
		}
		return 0, errors.New("no prediction")
	})
	r := newResolver(scorer, NewBaseline(0.33))

	got, err := r.Forecast(context.Background(), historicalSnapshot(), Request{Zone: 4002, Hour: 17, DayType: model.Weekday, HoursAhead: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.TierHistorical, got[0].SourceTier)
	assert.Equal(t, model.TierModel, got[1].SourceTier)
	assert.Equal(t, model.LabelPoor, got[1].StatusLabel)
	assert.Equal(t, model.TierBaseline, got[2].SourceTier)
	assert.InDelta(t, 0.33, got[2].PredictedAvailability, 1e-9)
}

func TestForecastNamedDayAnchorsOnThatDay(t *testing.T) {
	thursday := func() time.Time { return time.Date(2026, 10, 22, 9, 0, 0, 0, melbourne) }
	r := NewResolver(Options{Baseline: NewBaseline(0.4), Location: melbourne, Now: thursday})

	got, err := r.Forecast(context.Background(), historicalSnapshot(), Request{
		Zone:    4002,
		Hour:    17,
		DayType: model.ParseDayType("monday"),
		Weekday: model.ParseDayOfWeek("monday"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, time.Date(2026, 10, 26, 17, 0, 0, 0, melbourne), got[0].Timestamp)
	assert.Equal(t, time.Monday, got[0].Timestamp.Weekday())
	assert.Equal(t, model.Weekday, got[0].DayType)
	// the weekday bucket still drives the historical tier
	assert.Equal(t, model.TierHistorical, got[0].SourceTier)
	assert.InDelta(t, 0.75, got[0].PredictedAvailability, 1e-9)
}

func TestForecastUnavailableWithoutBaseline(t *testing.T) {
	r := newResolver(nil, nil)

	_, err := r.Forecast(context.Background(), historicalSnapshot(), Request{Zone: 9999, Hour: 8, DayType: model.Sunday})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrForecastUnavailable)
}

func TestForecastInvalidInput(t *testing.T) {
	r := newResolver(nil, NewBaseline(0.5))

	_, err := r.Forecast(context.Background(), nil, Request{Zone: 0, Hour: 8})
	assert.ErrorIs(t, err, model.ErrInvalidZone)

	_, err = r.Forecast(context.Background(), nil, Request{Zone: 1, Hour: 24})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestForecastValuesAlwaysBounded(t *testing.T) {
	values := []float64{-0.5, 0, 0.3, 1, 1.7}
	for _, v := range values {
		scorer := ScorerFunc(func(context.Context, model.ZoneID, time.Time) (float64, error) { return v, nil })
		got, err := newResolver(scorer, nil).Forecast(context.Background(), nil, Request{Zone: 5, Hour: 10, HoursAhead: 2})
		require.NoError(t, err)
		for _, f := range got {
			assert.GreaterOrEqual(t, f.PredictedAvailability, 0.0)
			assert.LessOrEqual(t, f.PredictedAvailability, 1.0)
			assert.GreaterOrEqual(t, f.Confidence, 0.0)
			assert.LessOrEqual(t, f.Confidence, 1.0)
			assert.NotEmpty(t, f.SourceTier)
		}
	}
}

func TestForecastNaNFromScorerFallsThrough(t *testing.T) {
	scorer := ScorerFunc(func(context.Context, model.ZoneID, time.Time) (float64, error) {
		var zero float64
		return zero / zero, nil
	})
	got, err := newResolver(scorer, NewBaseline(0.6)).Forecast(context.Background(), nil, Request{Zone: 5, Hour: 10})
	require.NoError(t, err)
	assert.Equal(t, model.TierBaseline, got[0].SourceTier)
}

func TestForecastSlowScorerTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	scorer := ScorerFunc(func(context.Context, model.ZoneID, time.Time) (float64, error) {
		<-release
		return 0.9, nil
	})
	r := NewResolver(Options{
		Scorer:       scorer,
		Baseline:     NewBaseline(0.4),
		ModelTimeout: 20 * time.Millisecond,
		Location:     melbourne,
		Now:          fixedNow,
	})

	start := time.Now()
	got, err := r.Forecast(context.Background(), historicalSnapshot(), Request{Zone: 4002, Hour: 17, HoursAhead: 2})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.TierHistorical, got[0].SourceTier)
	assert.Equal(t, model.TierBaseline, got[1].SourceTier)
}

func TestForecastDeadlineFallsToBaseline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := newResolver(failingScorer(), NewBaseline(0.4)).Forecast(ctx, historicalSnapshot(), Request{Zone: 4002, Hour: 17})
	require.NoError(t, err)
	assert.Equal(t, model.TierBaseline, got[0].SourceTier)
}

func TestForecastBreakerStopsCallingScorer(t *testing.T) {
	var calls atomic.Int32
	scorer := ScorerFunc(func(context.Context, model.ZoneID, time.Time) (float64, error) {
		calls.Add(1)
		return 0, errors.New("model offline")
	})
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "scorer",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		ShouldTrip:       ShouldTripScorer,
	})
	r := NewResolver(Options{Scorer: scorer, Breaker: breaker, Baseline: NewBaseline(0.5), Location: melbourne, Now: fixedNow})

	for i := 0; i < 4; i++ {
		_, err := r.Forecast(context.Background(), nil, Request{Zone: 7, Hour: 9})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", r.ScorerState())
}

func TestScorerState(t *testing.T) {
	assert.Equal(t, "disabled", newResolver(nil, nil).ScorerState())
	assert.Equal(t, "closed", newResolver(failingScorer(), nil).ScorerState())
	assert.True(t, newResolver(nil, NewBaseline(0.1)).HasBaseline())
}

func TestShouldTripScorer(t *testing.T) {
	assert.False(t, ShouldTripScorer(nil))
	assert.False(t, ShouldTripScorer(context.Canceled))
	assert.True(t, ShouldTripScorer(context.DeadlineExceeded))
	assert.True(t, ShouldTripScorer(errors.New("boom")))
}

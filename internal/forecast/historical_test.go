package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
)

func TestHistoricalRate(t *testing.T) {
	snap := historicalSnapshot()

	rate, ok := HistoricalRate(snap, 4002, 17, model.Weekday)
	require.True(t, ok)
	assert.InDelta(t, 0.75, rate, 1e-9)

	rate, ok = HistoricalRate(snap, 4002, 17, model.Saturday)
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	_, ok = HistoricalRate(snap, 4002, 17, model.Sunday)
	assert.False(t, ok)
	_, ok = HistoricalRate(snap, 4002, 9, model.Weekday)
	assert.False(t, ok)
	_, ok = HistoricalRate(snap, 1234, 17, model.Weekday)
	assert.False(t, ok)
}

func TestHistoricalUsesLocalHour(t *testing.T) {
	// 06:00 UTC on a Monday is 17:00 in Melbourne during daylight saving.
	snap := dataset.NewSnapshot(dataset.Tables{Readings: []model.SensorReading{
		{BayID: "1", Zone: 10, Status: model.StatusUnoccupied, Timestamp: time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)},
		{BayID: "2", Zone: 10, Status: model.StatusOccupied},
	}}, melbourne, time.Now())

	rate, ok := HistoricalRate(snap, 10, 17, model.Weekday)
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)
}

func TestHistoricalByHour(t *testing.T) {
	snap := historicalSnapshot()

	got := HistoricalByHour(snap, 4002, model.Weekday)
	require.Len(t, got, 1)
	assert.Equal(t, HourlyAvailability{Hour: 17, AvailableBays: 6, TotalBays: 8, Rate: 0.75}, got[0])

	assert.Empty(t, HistoricalByHour(snap, 4002, model.Sunday))
}

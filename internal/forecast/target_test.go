package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/findmyspot/findmyspot/internal/model"
)

func TestTargetTime(t *testing.T) {
	monday := fixedNow()
	saturday := time.Date(2026, 10, 24, 22, 30, 15, 0, melbourne)

	tests := []struct {
		name    string
		now     time.Time
		hour    int
		dayType model.DayType
		want    time.Time
	}{
		{"weekday today", monday, 17, model.Weekday, time.Date(2026, 10, 19, 17, 0, 0, 0, melbourne)},
		{"past hour stays today", monday, 7, model.Weekday, time.Date(2026, 10, 19, 7, 0, 0, 0, melbourne)},
		{"next saturday", monday, 10, model.Saturday, time.Date(2026, 10, 24, 10, 0, 0, 0, melbourne)},
		{"next sunday", monday, 0, model.Sunday, time.Date(2026, 10, 25, 0, 0, 0, 0, melbourne)},
		{"weekday from saturday", saturday, 8, model.Weekday, time.Date(2026, 10, 26, 8, 0, 0, 0, melbourne)},
		{"saturday from saturday", saturday, 23, model.Saturday, time.Date(2026, 10, 24, 23, 0, 0, 0, melbourne)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetTime(tt.now, tt.hour, tt.dayType)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Zero(t, got.Minute())
			assert.Zero(t, got.Second())
		})
	}
}

func TestTimestamps(t *testing.T) {
	anchor := time.Date(2026, 10, 19, 23, 0, 0, 0, melbourne)
	got := Timestamps(anchor, 3)
	assert.Len(t, got, 3)
	assert.Equal(t, 0, got[1].Hour())
	assert.Equal(t, model.Weekday, model.DayTypeOf(got[2]))
	assert.Equal(t, 2*time.Hour, got[2].Sub(anchor))
}

func TestClampHoursAhead(t *testing.T) {
	assert.Equal(t, 1, ClampHoursAhead(0, 3))
	assert.Equal(t, 1, ClampHoursAhead(-4, 3))
	assert.Equal(t, 3, ClampHoursAhead(5, 3))
	assert.Equal(t, 1, ClampHoursAhead(2, 1))
	assert.Equal(t, 2, ClampHoursAhead(2, 0))
	assert.Equal(t, 3, ClampHoursAhead(9, 10))
}

func TestTargetTimeOn(t *testing.T) {
	thursday := time.Date(2026, 10, 22, 9, 0, 0, 0, melbourne)

	tests := []struct {
		name string
		day  time.Weekday
		want time.Time
	}{
		{"monday from thursday", time.Monday, time.Date(2026, 10, 26, 17, 0, 0, 0, melbourne)},
		{"same day", time.Thursday, time.Date(2026, 10, 22, 17, 0, 0, 0, melbourne)},
		{"saturday", time.Saturday, time.Date(2026, 10, 24, 17, 0, 0, 0, melbourne)},
		{"wednesday wraps", time.Wednesday, time.Date(2026, 10, 28, 17, 0, 0, 0, melbourne)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetTimeOn(thursday, 17, tt.day)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, tt.day, got.Weekday())
		})
	}
}

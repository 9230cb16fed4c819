package locator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
)

func at(hour int) time.Time {
	return time.Date(2026, 10, 19, hour, 0, 0, 0, time.UTC)
}

func testSnapshot() *dataset.Snapshot {
	return dataset.NewSnapshot(dataset.Tables{
		Bays: []model.Bay{
			{ID: "1", Lat: -37.8100, Lon: 144.9600, RoadSegmentID: "S1"},
			{ID: "2", Lat: -37.8101, Lon: 144.9601, RoadSegmentID: "S1"},
			{ID: "3", Lat: -37.8102, Lon: 144.9602, RoadSegmentID: "S2"},
			{ID: "4", Lat: -37.8103, Lon: 144.9603},
			{ID: "far", Lat: -37.9000, Lon: 145.1000, RoadSegmentID: "S9"},
		},
		Readings: []model.SensorReading{
			{BayID: "1", Zone: 100, Status: model.StatusOccupied, Timestamp: at(6)},
			{BayID: "1", Zone: 100, Status: model.StatusUnoccupied, Timestamp: at(7)},
			{BayID: "2", Zone: 100, Status: model.StatusOccupied, Timestamp: at(7)},
			{BayID: "3", Zone: 300, Status: model.StatusUnknown, Timestamp: at(7)},
			{BayID: "far", Zone: 900, Status: model.StatusUnoccupied, Timestamp: at(7)},
		},
		Links: []model.ZoneLink{
			{RoadSegmentID: "S1", Zone: 100},
			{RoadSegmentID: "S1", Zone: 200},
			{RoadSegmentID: "S9", Zone: 900},
		},
		Rules: []model.SignPlateRule{
			{Zone: 200, Days: "Mon-Fri", StartTime: "07:30", EndTime: "18:30", Duration: "2P"},
			{Zone: 100, Days: "Sat", Duration: "1P", Permit: "Resident"},
			{Zone: 900, Days: "Sun"},
		},
	}, time.UTC, time.Now())
}

func TestFindNearby(t *testing.T) {
	res, err := FindNearby(testSnapshot(), -37.8101, 144.9601, 0.001)
	require.NoError(t, err)

	assert.Equal(t, 4, res.BaysFound)
	assert.Equal(t, 1, res.AvailableBays, "bay 1's latest reading is unoccupied")
	assert.Equal(t, 1, res.OccupiedBays)
	assert.Equal(t, []model.ZoneID{100, 200, 300}, res.Zones)

	require.Len(t, res.Restrictions, 2)
	assert.Equal(t, model.ZoneID(100), res.Restrictions[0].Zone)
	assert.Equal(t, []string{
		"You can park here on Sat for 1p with permit Resident",
		"You can park here on Mon-Fri from 07:30 to 18:30 for 2p",
	}, res.RestrictionsPretty)
}

func TestFindNearbyZoneFromOnePathOnly(t *testing.T) {
	// Bay 3 has a sensor zone but no linked segment zone; zone 200 is only
	// reachable through S1's links.
	res, err := FindNearby(testSnapshot(), -37.8102, 144.9602, 0.00015)
	require.NoError(t, err)
	assert.Equal(t, 3, res.BaysFound)
	assert.Equal(t, []model.ZoneID{100, 200, 300}, res.Zones)
}

func TestFindNearbyBayWithoutReadings(t *testing.T) {
	res, err := FindNearby(testSnapshot(), -37.8103, 144.9603, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.BaysFound)
	assert.Zero(t, res.AvailableBays)
	assert.Zero(t, res.OccupiedBays)
	assert.Empty(t, res.Zones)
}

func TestFindNearbyZeroRadius(t *testing.T) {
	snap := testSnapshot()

	res, err := FindNearby(snap, -37.8100, 144.9600, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.BaysFound)

	res, err = FindNearby(snap, -37.81005, 144.9600, 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Zones)
	assert.Empty(t, res.RestrictionsPretty)
}

func TestFindNearbyInvalidRadius(t *testing.T) {
	_, err := FindNearby(testSnapshot(), -37.81, 144.96, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestMetersToDegrees(t *testing.T) {
	assert.InDelta(t, 0.0017966, MetersToDegrees(200), 1e-6)
	assert.Zero(t, MetersToDegrees(0))
}

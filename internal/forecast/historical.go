package forecast

import (
	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
)

// HourlyAvailability is the distinct-bay aggregate for one local hour.
type HourlyAvailability struct {
	Hour          int     `json:"hour" yaml:"hour"`
	AvailableBays int     `json:"available_bays" yaml:"available_bays"`
	TotalBays     int     `json:"total_bays" yaml:"total_bays"`
	Rate          float64 `json:"rate" yaml:"rate"`
}

type hourBucket struct {
	total map[string]struct{}
	free  map[string]struct{}
}

// aggregate buckets a zone's readings by local hour for one day type.
// Readings without a timestamp are skipped.
func aggregate(snap *dataset.Snapshot, zone model.ZoneID, dayType model.DayType) map[int]*hourBucket {
	buckets := make(map[int]*hourBucket)
	for _, r := range snap.ReadingsForZone(zone) {
		if r.Timestamp.IsZero() {
			continue
		}
		local := r.Timestamp.In(snap.Location)
		if !dayType.Matches(local.Weekday()) {
			continue
		}
		b, ok := buckets[local.Hour()]
		if !ok {
			b = &hourBucket{total: map[string]struct{}{}, free: map[string]struct{}{}}
			buckets[local.Hour()] = b
		}
		b.total[r.BayID] = struct{}{}
		if r.Status == model.StatusUnoccupied {
			b.free[r.BayID] = struct{}{}
		}
	}
	return buckets
}

// HistoricalRate is distinct unoccupied bays over distinct bays among the
// zone's readings at the given local hour and day type. ok is false when no
// reading matches.
func HistoricalRate(snap *dataset.Snapshot, zone model.ZoneID, hour int, dayType model.DayType) (rate float64, ok bool) {
	b, found := aggregate(snap, zone, dayType)[hour]
	if !found || len(b.total) == 0 {
		return 0, false
	}
	return float64(len(b.free)) / float64(len(b.total)), true
}

// HistoricalByHour returns the aggregate for every hour with readings,
// ordered by hour.
func HistoricalByHour(snap *dataset.Snapshot, zone model.ZoneID, dayType model.DayType) []HourlyAvailability {
	buckets := aggregate(snap, zone, dayType)
	out := make([]HourlyAvailability, 0, len(buckets))
	for h := 0; h < 24; h++ {
		b, ok := buckets[h]
		if !ok {
			continue
		}
		out = append(out, HourlyAvailability{
			Hour:          h,
			AvailableBays: len(b.free),
			TotalBays:     len(b.total),
			Rate:          float64(len(b.free)) / float64(len(b.total)),
		})
	}
	return out
}

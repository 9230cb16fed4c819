package ranker

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
)

// EarthRadiusM is the mean Earth radius used for great-circle distances.
const EarthRadiusM = 6371000.0

// Centroids computes the median coordinate of every zone's bays, where a bay
// belongs to each zone its sensor readings report. Bays are counted once per
// zone; readings for bays absent from the bay table are ignored.
func Centroids(snap *dataset.Snapshot) map[model.ZoneID]model.ZoneCentroid {
	members := make(map[model.ZoneID]map[string]model.Bay)
	for _, r := range snap.SensorReadings() {
		if !r.Zone.Valid() {
			continue
		}
		bay, ok := snap.Bay(r.BayID)
		if !ok {
			continue
		}
		m, ok := members[r.Zone]
		if !ok {
			m = make(map[string]model.Bay)
			members[r.Zone] = m
		}
		m[bay.ID] = bay
	}

	out := make(map[model.ZoneID]model.ZoneCentroid, len(members))
	for zone, bays := range members {
		lats := make([]float64, 0, len(bays))
		lons := make([]float64, 0, len(bays))
		for _, b := range bays {
			lats = append(lats, b.Lat)
			lons = append(lons, b.Lon)
		}
		out[zone] = model.ZoneCentroid{Zone: zone, Lat: median(lats), Lon: median(lons)}
	}
	return out
}

// median averages the lower and upper empirical medians; they coincide for
// an odd count.
func median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	n := len(x)
	lower := stat.Quantile(0.5, stat.Empirical, x, nil)
	upper := stat.Quantile((float64(n/2)+0.5)/float64(n), stat.Empirical, x, nil)
	return (lower + upper) / 2
}

// HaversineMeters is the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(a)))
}

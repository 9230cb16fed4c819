// Package locator resolves a coordinate to nearby bays, their current
// occupancy, the rule zones that govern them and those zones' sign plates.
package locator

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/model"
)

// MetersPerDegree is the length of one degree of latitude. Longitude degrees
// are shorter away from the equator, so a converted radius slightly
// over-selects east and west.
const MetersPerDegree = 111320.0

// MetersToDegrees converts a radius in meters for the bounding-box filter.
func MetersToDegrees(m float64) float64 {
	return m / MetersPerDegree
}

// Result is the outcome of FindNearby. A zero BaysFound is the NoResults
// condition, not an error.
type Result struct {
	BaysFound          int                   `json:"bays_found" yaml:"bays_found"`
	AvailableBays      int                   `json:"available_bays" yaml:"available_bays"`
	OccupiedBays       int                   `json:"occupied_bays" yaml:"occupied_bays"`
	Zones              []model.ZoneID        `json:"zones" yaml:"zones"`
	Restrictions       []model.SignPlateRule `json:"restrictions" yaml:"restrictions"`
	RestrictionsPretty []string              `json:"restrictions_pretty" yaml:"restrictions_pretty"`
}

// Empty reports whether no bays fell inside the search box.
func (r Result) Empty() bool {
	return r.BaysFound == 0
}

// FindNearby returns the bays inside the square of half-width radiusDeg
// centered on (lat, lon). The box is inclusive so a zero radius still matches
// a bay at exactly the query point.
//
// Occupancy uses each bay's latest reading; unknown status counts toward
// neither total. Zones are the union of the zones reported by every reading
// of a matched bay and the zones linked to the matched bays' road segments.
func FindNearby(snap *dataset.Snapshot, lat, lon, radiusDeg float64) (Result, error) {
	if math.IsNaN(radiusDeg) || radiusDeg < 0 {
		return Result{}, eris.Wrapf(model.ErrInvalidArgument, "locator: radius %v", radiusDeg)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Result{}, eris.Wrap(model.ErrInvalidArgument, "locator: coordinate is not a number")
	}

	box := geom.NewBounds(geom.XY).Set(lon-radiusDeg, lat-radiusDeg, lon+radiusDeg, lat+radiusDeg)

	res := Result{
		Zones:              []model.ZoneID{},
		Restrictions:       []model.SignPlateRule{},
		RestrictionsPretty: []string{},
	}
	zones := model.ZoneSet{}

	for _, bay := range snap.Bays() {
		if !box.OverlapsPoint(geom.XY, geom.Coord{bay.Lon, bay.Lat}) {
			continue
		}
		res.BaysFound++

		for _, r := range snap.ReadingsForBay(bay.ID) {
			zones.Add(r.Zone)
		}
		if latest, ok := snap.LatestReading(bay.ID); ok {
			switch latest.Status {
			case model.StatusUnoccupied:
				res.AvailableBays++
			case model.StatusOccupied:
				res.OccupiedBays++
			}
		}

		if bay.RoadSegmentID != "" {
			for _, z := range snap.ZonesForSegment(bay.RoadSegmentID) {
				zones.Add(z)
			}
		}
	}

	if res.Empty() {
		return res, nil
	}

	res.Zones = zones.Sorted()
	for _, z := range res.Zones {
		for _, rule := range snap.RulesForZone(z) {
			res.Restrictions = append(res.Restrictions, rule)
			res.RestrictionsPretty = append(res.RestrictionsPretty, RenderRule(rule))
		}
	}
	return res, nil
}

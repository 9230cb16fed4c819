// Package dataset owns the read-only reference tables (bays, sensor readings,
// zone links, sign plate rules and zone names) and swaps them atomically on
// refresh.
package dataset

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/findmyspot/findmyspot/internal/model"
)

// Table names, used in DataUnavailable errors and metrics.
const (
	TableBays           = "bays"
	TableSensorReadings = "sensor_readings"
	TableZoneLinks      = "zone_links"
	TableSignPlates     = "sign_plates"
	TableZoneLocations  = "zone_locations"
)

// Tables is the raw content a Loader produces.
type Tables struct {
	Bays      []model.Bay
	Readings  []model.SensorReading
	Links     []model.ZoneLink
	Rules     []model.SignPlateRule
	ZoneNames map[model.ZoneID]string
}

// Snapshot is an immutable, indexed view of the reference tables. Slices
// returned by its accessors are shared and must not be modified.
type Snapshot struct {
	Version  string
	LoadedAt time.Time
	Location *time.Location

	t Tables

	bayByID        map[string]int
	readingsByBay  map[string][]int
	readingsByZone map[model.ZoneID][]int
	zonesBySegment map[string][]model.ZoneID
	rulesByZone    map[model.ZoneID][]int
}

// NewSnapshot indexes t. loc is the local timezone used to bucket reading
// timestamps; nil means UTC.
func NewSnapshot(t Tables, loc *time.Location, loadedAt time.Time) *Snapshot {
	if loc == nil {
		loc = time.UTC
	}
	if t.ZoneNames == nil {
		t.ZoneNames = map[model.ZoneID]string{}
	}
	s := &Snapshot{
		Version:        uuid.NewString(),
		LoadedAt:       loadedAt,
		Location:       loc,
		t:              t,
		bayByID:        make(map[string]int, len(t.Bays)),
		readingsByBay:  make(map[string][]int),
		readingsByZone: make(map[model.ZoneID][]int),
		zonesBySegment: make(map[string][]model.ZoneID),
		rulesByZone:    make(map[model.ZoneID][]int),
	}

	for i, b := range t.Bays {
		if _, dup := s.bayByID[b.ID]; !dup {
			s.bayByID[b.ID] = i
		}
	}
	for i, r := range t.Readings {
		s.readingsByBay[r.BayID] = append(s.readingsByBay[r.BayID], i)
		if r.Zone.Valid() {
			s.readingsByZone[r.Zone] = append(s.readingsByZone[r.Zone], i)
		}
	}
	seen := make(map[string]model.ZoneSet)
	for _, l := range t.Links {
		set, ok := seen[l.RoadSegmentID]
		if !ok {
			set = model.ZoneSet{}
			seen[l.RoadSegmentID] = set
		}
		if l.Zone.Valid() && !set.Has(l.Zone) {
			set.Add(l.Zone)
			s.zonesBySegment[l.RoadSegmentID] = append(s.zonesBySegment[l.RoadSegmentID], l.Zone)
		}
	}
	for i, r := range t.Rules {
		s.rulesByZone[r.Zone] = append(s.rulesByZone[r.Zone], i)
	}

	return s
}

// Bays returns every bay.
func (s *Snapshot) Bays() []model.Bay { return s.t.Bays }

// SensorReadings returns every sensor reading.
func (s *Snapshot) SensorReadings() []model.SensorReading { return s.t.Readings }

// ZoneLinks returns every segment to zone link.
func (s *Snapshot) ZoneLinks() []model.ZoneLink { return s.t.Links }

// SignPlateRules returns every sign plate rule.
func (s *Snapshot) SignPlateRules() []model.SignPlateRule { return s.t.Rules }

// ZoneLocation returns the display name of a zone, if known.
func (s *Snapshot) ZoneLocation(z model.ZoneID) (string, bool) {
	name, ok := s.t.ZoneNames[z]
	return name, ok
}

// ZoneName returns the display name of a zone, or "Zone <id>" when the zone
// has no entry in the zone names table.
func (s *Snapshot) ZoneName(z model.ZoneID) string {
	if name, ok := s.ZoneLocation(z); ok && name != "" {
		return name
	}
	return fmt.Sprintf("Zone %d", z)
}

// Bay looks a bay up by id.
func (s *Snapshot) Bay(id string) (model.Bay, bool) {
	i, ok := s.bayByID[id]
	if !ok {
		return model.Bay{}, false
	}
	return s.t.Bays[i], true
}

// ReadingsForBay returns every reading recorded for a bay.
func (s *Snapshot) ReadingsForBay(id string) []model.SensorReading {
	return s.collect(s.readingsByBay[id])
}

// LatestReading returns the most recent reading for a bay.
func (s *Snapshot) LatestReading(id string) (model.SensorReading, bool) {
	idx := s.readingsByBay[id]
	if len(idx) == 0 {
		return model.SensorReading{}, false
	}
	latest := s.t.Readings[idx[0]]
	for _, i := range idx[1:] {
		if r := s.t.Readings[i]; r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return latest, true
}

// ReadingsForZone returns every reading whose sensor reported the zone.
func (s *Snapshot) ReadingsForZone(z model.ZoneID) []model.SensorReading {
	return s.collect(s.readingsByZone[z])
}

// ZonesForSegment returns the zones linked to a road segment, deduplicated.
func (s *Snapshot) ZonesForSegment(segmentID string) []model.ZoneID {
	return s.zonesBySegment[segmentID]
}

// RulesForZone returns the sign plate rules of a zone in source order.
func (s *Snapshot) RulesForZone(z model.ZoneID) []model.SignPlateRule {
	idx := s.rulesByZone[z]
	out := make([]model.SignPlateRule, len(idx))
	for j, i := range idx {
		out[j] = s.t.Rules[i]
	}
	return out
}

// SensorZones returns every zone reported by at least one sensor reading.
func (s *Snapshot) SensorZones() model.ZoneSet {
	out := make(model.ZoneSet, len(s.readingsByZone))
	for z := range s.readingsByZone {
		out.Add(z)
	}
	return out
}

// Counts reports rows per table.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		TableBays:           len(s.t.Bays),
		TableSensorReadings: len(s.t.Readings),
		TableZoneLinks:      len(s.t.Links),
		TableSignPlates:     len(s.t.Rules),
		TableZoneLocations:  len(s.t.ZoneNames),
	}
}

func (s *Snapshot) collect(idx []int) []model.SensorReading {
	out := make([]model.SensorReading, len(idx))
	for j, i := range idx {
		out[j] = s.t.Readings[i]
	}
	return out
}

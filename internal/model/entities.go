package model

import (
	"strings"
	"time"
)

// Bay is a physical kerbside parking bay.
type Bay struct {
	ID            string  `json:"bay_id"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	RoadSegmentID string  `json:"road_segment_id"`
	RoadSegment   string  `json:"road_segment,omitempty"`
}

// Status is the occupancy reported by a bay sensor.
type Status string

const (
	StatusOccupied   Status = "occupied"
	StatusUnoccupied Status = "unoccupied"
	StatusUnknown    Status = "unknown"
)

// ParseStatus maps sensor status descriptions onto Status. The city feed
// reports "Present" for an occupied bay.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unoccupied", "free", "vacant":
		return StatusUnoccupied
	case "present", "occupied":
		return StatusOccupied
	default:
		return StatusUnknown
	}
}

// SensorReading is one occupancy sample for a bay.
type SensorReading struct {
	BayID     string    `json:"bay_id"`
	Zone      ZoneID    `json:"zone_number,omitempty"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ZoneLink maps a road segment to a governing parking zone.
type ZoneLink struct {
	RoadSegmentID string `json:"road_segment_id"`
	Zone          ZoneID `json:"zone_number"`
	OnStreet      string `json:"on_street,omitempty"`
}

// SignPlateRule is a regulatory rule attached to a zone.
type SignPlateRule struct {
	Zone      ZoneID `json:"zone_number" yaml:"zone_number"`
	Days      string `json:"days" yaml:"days"`
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
	Duration  string `json:"duration" yaml:"duration"`
	Permit    string `json:"permit" yaml:"permit"`
}

// ZoneCentroid is the representative point of a zone's bays.
type ZoneCentroid struct {
	Zone ZoneID  `json:"zone_number"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

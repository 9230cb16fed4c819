package dataset

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/findmyspot/findmyspot/internal/model"
)

// Column aliases in normalized form (lowercase alphanumerics only), covering
// the open data exports and the Postgres column names.
var (
	colBayID       = []string{"kerbsideid", "bayid", "kerbside"}
	colLat         = []string{"latitude", "lat"}
	colLon         = []string{"longitude", "lon", "lng"}
	colSegmentID   = []string{"roadsegmentid", "segmentid", "rdsegid", "roadsegid"}
	colSegmentDesc = []string{"roadsegmentdescription", "roadsegmentdesc", "rdsegdsc", "roadsegdsc"}
	colZone        = []string{"zonenumber", "parkingzone", "zone"}
	colStatus      = []string{"statusdescription", "status"}
	colTimestamp   = []string{"statustimestamp", "lastupdated", "timestamp"}
	colOnStreet    = []string{"onstreet", "street"}
	colDays        = []string{"days", "restrictiondays"}
	colStart       = []string{"starttime", "timerestrictionsstart"}
	colEnd         = []string{"endtime", "timerestrictionsfinish"}
	colDuration    = []string{"duration", "restrictiondisplay"}
	colPermit      = []string{"permit"}
)

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type columnIndex map[string]int

func indexHeader(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func (c columnIndex) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := c[a]; ok {
			return i
		}
	}
	return -1
}

func (c columnIndex) require(table string, aliases []string) (int, error) {
	if i := c.find(aliases); i >= 0 {
		return i, nil
	}
	return -1, eris.Errorf("dataset: %s: missing column %s", table, aliases[0])
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// normalizeKey renders identifier cells consistently; spreadsheets often
// store integer ids as floats ("20001.0").
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04",
}

// parseTimestamp accepts the layouts seen in sensor exports. Values without
// an offset are taken as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBays(header []string, rows [][]string) ([]model.Bay, error) {
	c := indexHeader(header)
	idCol, err := c.require(TableBays, colBayID)
	if err != nil {
		return nil, err
	}
	latCol, err := c.require(TableBays, colLat)
	if err != nil {
		return nil, err
	}
	lonCol, err := c.require(TableBays, colLon)
	if err != nil {
		return nil, err
	}
	segCol := c.find(colSegmentID)
	descCol := c.find(colSegmentDesc)

	bays := make([]model.Bay, 0, len(rows))
	for _, row := range rows {
		id := normalizeKey(cell(row, idCol))
		lat, latErr := strconv.ParseFloat(cell(row, latCol), 64)
		lon, lonErr := strconv.ParseFloat(cell(row, lonCol), 64)
		if id == "" || latErr != nil || lonErr != nil {
			continue
		}
		bays = append(bays, model.Bay{
			ID:            id,
			Lat:           lat,
			Lon:           lon,
			RoadSegmentID: normalizeKey(cell(row, segCol)),
			RoadSegment:   cell(row, descCol),
		})
	}
	return bays, nil
}

func parseReadings(header []string, rows [][]string) ([]model.SensorReading, error) {
	c := indexHeader(header)
	idCol, err := c.require(TableSensorReadings, colBayID)
	if err != nil {
		return nil, err
	}
	statusCol, err := c.require(TableSensorReadings, colStatus)
	if err != nil {
		return nil, err
	}
	zoneCol := c.find(colZone)
	tsCol := c.find(colTimestamp)

	readings := make([]model.SensorReading, 0, len(rows))
	for _, row := range rows {
		id := normalizeKey(cell(row, idCol))
		if id == "" {
			continue
		}
		r := model.SensorReading{
			BayID:  id,
			Status: model.ParseStatus(cell(row, statusCol)),
		}
		if z, err := model.ParseZoneID(cell(row, zoneCol)); err == nil {
			r.Zone = z
		}
		r.Timestamp, _ = parseTimestamp(cell(row, tsCol))
		readings = append(readings, r)
	}
	return readings, nil
}

func parseLinks(header []string, rows [][]string) ([]model.ZoneLink, error) {
	c := indexHeader(header)
	segCol, err := c.require(TableZoneLinks, colSegmentID)
	if err != nil {
		return nil, err
	}
	zoneCol, err := c.require(TableZoneLinks, colZone)
	if err != nil {
		return nil, err
	}
	streetCol := c.find(colOnStreet)

	links := make([]model.ZoneLink, 0, len(rows))
	for _, row := range rows {
		z, err := model.ParseZoneID(cell(row, zoneCol))
		seg := normalizeKey(cell(row, segCol))
		if err != nil || seg == "" {
			continue
		}
		links = append(links, model.ZoneLink{RoadSegmentID: seg, Zone: z, OnStreet: cell(row, streetCol)})
	}
	return links, nil
}

func parseRules(header []string, rows [][]string) ([]model.SignPlateRule, error) {
	c := indexHeader(header)
	zoneCol, err := c.require(TableSignPlates, colZone)
	if err != nil {
		return nil, err
	}
	daysCol := c.find(colDays)
	startCol := c.find(colStart)
	endCol := c.find(colEnd)
	durCol := c.find(colDuration)
	permitCol := c.find(colPermit)

	rules := make([]model.SignPlateRule, 0, len(rows))
	for _, row := range rows {
		z, err := model.ParseZoneID(cell(row, zoneCol))
		if err != nil {
			continue
		}
		rules = append(rules, model.SignPlateRule{
			Zone:      z,
			Days:      cell(row, daysCol),
			StartTime: cell(row, startCol),
			EndTime:   cell(row, endCol),
			Duration:  cell(row, durCol),
			Permit:    cell(row, permitCol),
		})
	}
	return rules, nil
}

func parseZoneNames(raw map[string]string) map[model.ZoneID]string {
	out := make(map[model.ZoneID]string, len(raw))
	for k, v := range raw {
		if z, err := model.ParseZoneID(k); err == nil && strings.TrimSpace(v) != "" {
			out[z] = strings.TrimSpace(v)
		}
	}
	return out
}

package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/locator"
	"github.com/findmyspot/findmyspot/internal/model"
	"github.com/findmyspot/findmyspot/internal/ranker"
)

// HourNow asks ForecastZone for the current local hour.
const HourNow = -1

// ZoneQuery asks for a zone forecast and, optionally, ranked alternatives.
type ZoneQuery struct {
	Zone       model.ZoneID
	Hour       int
	DayType    model.DayType
	Weekday    model.DayOfWeek
	HoursAhead int
	Suggest    bool
	RadiusM    float64
	MaxResults int
}

// ZoneResult is the query-by-zone payload.
type ZoneResult struct {
	Zone           model.ZoneID        `json:"zone_number" yaml:"zone_number"`
	ZoneName       string              `json:"zone_name" yaml:"zone_name"`
	RequestedHour  int                 `json:"requested_hour" yaml:"requested_hour"`
	DayType        model.DayType       `json:"day_type" yaml:"day_type"`
	HoursAhead     int                 `json:"hours_ahead" yaml:"hours_ahead"`
	Forecasts      []model.Forecast    `json:"forecasts" yaml:"forecasts"`
	SuggestedZones []ranker.RankedZone `json:"suggested_zones" yaml:"suggested_zones"`
}

// ForecastZone runs the cascade for q.Zone and ranks nearby alternatives
// when q.Suggest is set.
func (e *Engine) ForecastZone(ctx context.Context, q ZoneQuery) (*ZoneResult, error) {
	if !q.Zone.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "engine: zone %d", q.Zone)
	}
	if q.Weekday.Set {
		q.DayType = model.DayTypeFor(q.Weekday.Day)
	}
	if q.DayType == "" {
		q.DayType = model.Weekday
	}
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if q.Hour == HourNow {
		q.Hour = e.localNow(snap).Hour()
	}

	fs, err := e.resolver.Forecast(ctx, snap, forecast.Request{
		Zone:       q.Zone,
		Hour:       q.Hour,
		DayType:    q.DayType,
		Weekday:    q.Weekday,
		HoursAhead: q.HoursAhead,
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: forecast zone")
	}

	out := &ZoneResult{
		Zone:           q.Zone,
		RequestedHour:  q.Hour,
		DayType:        q.DayType,
		HoursAhead:     len(fs),
		Forecasts:      fs,
		SuggestedZones: []ranker.RankedZone{},
	}
	out.ZoneName = snap.ZoneName(q.Zone)
	if !q.Suggest || e.ranker == nil {
		return out, nil
	}

	suggested, err := e.ranker.RankNearby(ctx, snap, ranker.Query{
		Origin:     q.Zone,
		Hour:       q.Hour,
		DayType:    q.DayType,
		Weekday:    q.Weekday,
		HoursAhead: q.HoursAhead,
		RadiusM:    q.RadiusM,
		MaxResults: q.MaxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: rank nearby")
	}
	out.SuggestedZones = suggested
	return out, nil
}

// ZoneRulesResult lists the sign plates of one zone.
type ZoneRulesResult struct {
	Zone        model.ZoneID          `json:"zone_number" yaml:"zone_number"`
	ZoneName    string                `json:"zone_name" yaml:"zone_name"`
	Rules       []model.SignPlateRule `json:"rules" yaml:"rules"`
	RulesPretty []string              `json:"rules_pretty" yaml:"rules_pretty"`
}

// ZoneRules returns the raw and rendered sign plate rules for zone.
func (e *Engine) ZoneRules(zone model.ZoneID) (*ZoneRulesResult, error) {
	if !zone.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "engine: zone %d", zone)
	}
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	rules := append([]model.SignPlateRule{}, snap.RulesForZone(zone)...)
	return &ZoneRulesResult{
		Zone:        zone,
		ZoneName:    snap.ZoneName(zone),
		Rules:       rules,
		RulesPretty: locator.RenderRules(rules),
	}, nil
}

// StreetZones lists zones linked to segments on a street.
type StreetZones struct {
	OnStreet string         `json:"on_street" yaml:"on_street"`
	Zones    []model.ZoneID `json:"zones" yaml:"zones"`
}

// ZonesByStreet returns the distinct zones whose links name a street
// containing name, case-insensitively.
func (e *Engine) ZonesByStreet(name string) (*StreetZones, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, eris.Wrap(model.ErrInvalidArgument, "engine: street name is required")
	}
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	zones := model.ZoneSet{}
	for _, l := range snap.ZoneLinks() {
		if strings.Contains(strings.ToLower(l.OnStreet), needle) {
			zones.Add(l.Zone)
		}
	}
	return &StreetZones{OnStreet: strings.TrimSpace(name), Zones: zones.Sorted()}, nil
}

// HistoricalResult is the hourly aggregate the historical tier draws from.
type HistoricalResult struct {
	Zone    model.ZoneID                  `json:"zone_number" yaml:"zone_number"`
	DayType model.DayType                 `json:"day_type" yaml:"day_type"`
	Hours   []forecast.HourlyAvailability `json:"hours" yaml:"hours"`
}

// HistoricalByHour aggregates the zone's readings by local hour.
func (e *Engine) HistoricalByHour(zone model.ZoneID, dayType model.DayType) (*HistoricalResult, error) {
	if !zone.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "engine: zone %d", zone)
	}
	if dayType == "" {
		dayType = model.Weekday
	}
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return &HistoricalResult{
		Zone:    zone,
		DayType: dayType,
		Hours:   forecast.HistoricalByHour(snap, zone, dayType),
	}, nil
}

// RealtimeBay is the latest status of one bay in a zone.
type RealtimeBay struct {
	BayID       string       `json:"bay_id" yaml:"bay_id"`
	Lat         float64      `json:"lat" yaml:"lat"`
	Lon         float64      `json:"lon" yaml:"lon"`
	Status      model.Status `json:"status" yaml:"status"`
	RoadSegment string       `json:"road_segment,omitempty" yaml:"road_segment,omitempty"`
	UpdatedAt   string       `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// RealtimeResult lists a zone's bays with their latest sensor status.
type RealtimeResult struct {
	Zone  model.ZoneID  `json:"zone_number" yaml:"zone_number"`
	Count int           `json:"count" yaml:"count"`
	Items []RealtimeBay `json:"items" yaml:"items"`
}

// Realtime joins the zone's latest reading per bay to the bay coordinates.
// Readings for bays missing from the bay table are dropped. onlyAvailable
// keeps unoccupied bays.
func (e *Engine) Realtime(zone model.ZoneID, onlyAvailable bool) (*RealtimeResult, error) {
	if !zone.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "engine: zone %d", zone)
	}
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]model.SensorReading)
	for _, r := range snap.ReadingsForZone(zone) {
		prev, ok := latest[r.BayID]
		if !ok || r.Timestamp.After(prev.Timestamp) {
			latest[r.BayID] = r
		}
	}

	items := make([]RealtimeBay, 0, len(latest))
	for id, r := range latest {
		if onlyAvailable && r.Status != model.StatusUnoccupied {
			continue
		}
		bay, ok := snap.Bay(id)
		if !ok {
			continue
		}
		item := RealtimeBay{BayID: id, Lat: bay.Lat, Lon: bay.Lon, Status: r.Status, RoadSegment: bay.RoadSegment}
		if !r.Timestamp.IsZero() {
			item.UpdatedAt = r.Timestamp.In(snap.Location).Format(time.RFC3339)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BayID < items[j].BayID })

	return &RealtimeResult{Zone: zone, Count: len(items), Items: items}, nil
}

package engine

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/locator"
	"github.com/findmyspot/findmyspot/internal/model"
)

// LocationQuery selects a search point by address or coordinate. A
// coordinate wins when both are given.
type LocationQuery struct {
	Address            string
	Lat, Lon           float64
	HasCoordinate      bool
	RadiusM            float64
	IncludePredictions bool
	HoursAhead         int
}

// Center is the resolved search point.
type Center struct {
	Lat         float64 `json:"lat" yaml:"lat"`
	Lon         float64 `json:"lon" yaml:"lon"`
	DisplayName string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// ZoneForecast is one governing zone with its forecasts for the current hour.
// PredictionError is set instead of failing the whole response.
type ZoneForecast struct {
	Zone            model.ZoneID     `json:"zone" yaml:"zone"`
	ZoneName        string           `json:"zone_name" yaml:"zone_name"`
	Forecasts       []model.Forecast `json:"forecasts" yaml:"forecasts"`
	PredictionError string           `json:"prediction_error,omitempty" yaml:"prediction_error,omitempty"`
}

// LocationResult is the query-by-location payload.
type LocationResult struct {
	Center             Center                `json:"center" yaml:"center"`
	RadiusM            float64               `json:"radius" yaml:"radius"`
	BaysFound          int                   `json:"bays_found" yaml:"bays_found"`
	AvailableBays      int                   `json:"available_bays" yaml:"available_bays"`
	OccupiedBays       int                   `json:"occupied_bays" yaml:"occupied_bays"`
	Zones              []ZoneForecast        `json:"zones" yaml:"zones"`
	Restrictions       []model.SignPlateRule `json:"restrictions" yaml:"restrictions"`
	RestrictionsPretty []string              `json:"restrictions_pretty" yaml:"restrictions_pretty"`
}

// FindByLocation geocodes the address when no coordinate is given, finds the
// bays and zones around the point and attaches a forecast per zone. No bays
// in range is an empty result, not an error.
func (e *Engine) FindByLocation(ctx context.Context, q LocationQuery) (*LocationResult, error) {
	center, err := e.resolveCenter(ctx, q)
	if err != nil {
		return nil, err
	}
	radius := q.RadiusM
	if radius <= 0 {
		radius = e.opts.LocatorRadiusM
	}

	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	found, err := locator.FindNearby(snap, center.Lat, center.Lon, locator.MetersToDegrees(radius))
	if err != nil {
		return nil, eris.Wrap(err, "engine: find nearby")
	}

	out := &LocationResult{
		Center:             center,
		RadiusM:            radius,
		BaysFound:          found.BaysFound,
		AvailableBays:      found.AvailableBays,
		OccupiedBays:       found.OccupiedBays,
		Zones:              make([]ZoneForecast, len(found.Zones)),
		Restrictions:       found.Restrictions,
		RestrictionsPretty: found.RestrictionsPretty,
	}
	for i, z := range found.Zones {
		out.Zones[i] = ZoneForecast{Zone: z, ZoneName: snap.ZoneName(z), Forecasts: []model.Forecast{}}
	}
	if !q.IncludePredictions || len(out.Zones) == 0 {
		return out, nil
	}

	now := e.localNow(snap)
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i := range out.Zones {
		g.Go(func() error {
			e.attachForecast(ctx, snap, &out.Zones[i], now.Hour(), model.DayTypeOf(now), q.HoursAhead)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (e *Engine) attachForecast(ctx context.Context, snap *dataset.Snapshot, zf *ZoneForecast, hour int, dayType model.DayType, hoursAhead int) {
	fs, err := e.resolver.Forecast(ctx, snap, forecast.Request{
		Zone:       zf.Zone,
		Hour:       hour,
		DayType:    dayType,
		HoursAhead: hoursAhead,
	})
	if err != nil {
		zap.L().Debug("engine: zone forecast failed", zap.Int64("zone", int64(zf.Zone)), zap.Error(err))
		zf.PredictionError = err.Error()
		return
	}
	zf.Forecasts = fs
}

func (e *Engine) resolveCenter(ctx context.Context, q LocationQuery) (Center, error) {
	if q.HasCoordinate {
		if q.Lat < -90 || q.Lat > 90 || q.Lon < -180 || q.Lon > 180 {
			return Center{}, eris.Wrapf(model.ErrInvalidArgument, "engine: coordinate %v,%v out of range", q.Lat, q.Lon)
		}
		return Center{Lat: q.Lat, Lon: q.Lon}, nil
	}

	address := strings.TrimSpace(q.Address)
	if address == "" {
		return Center{}, eris.Wrap(model.ErrInvalidArgument, "engine: an address or a lat/lon pair is required")
	}
	res, err := e.Geocode(ctx, address)
	if err != nil {
		return Center{}, eris.Wrapf(err, "engine: geocode %q", address)
	}
	if !res.Matched {
		return Center{}, eris.Wrapf(ErrAddressNotFound, "engine: %q", address)
	}
	return Center{Lat: res.Latitude, Lon: res.Longitude, DisplayName: res.DisplayName}, nil
}

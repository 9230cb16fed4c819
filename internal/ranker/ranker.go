// Package ranker suggests alternative zones near an origin zone, ordered by
// their best forecast availability and then by distance.
package ranker

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/model"
)

// Forecaster is the part of forecast.Resolver the ranker needs.
type Forecaster interface {
	Forecast(ctx context.Context, snap *dataset.Snapshot, req forecast.Request) ([]model.Forecast, error)
}

// Options sets ranking defaults; Query values override them when positive.
type Options struct {
	RadiusM     float64
	MaxResults  int
	Concurrency int
}

// Query asks for suggestions around Origin.
type Query struct {
	Origin     model.ZoneID
	Hour       int
	DayType    model.DayType
	Weekday    model.DayOfWeek
	HoursAhead int
	RadiusM    float64
	MaxResults int
}

// RankedZone is one suggestion. A candidate whose forecast failed keeps its
// place in the list with a zero best availability and Error set.
type RankedZone struct {
	Zone                      model.ZoneID     `json:"zone_number" yaml:"zone_number"`
	ZoneName                  string           `json:"zone_name" yaml:"zone_name"`
	DistanceM                 float64          `json:"distance_m" yaml:"distance_m"`
	BestHour                  int              `json:"best_hour" yaml:"best_hour"`
	BestPredictedAvailability float64          `json:"best_predicted_availability" yaml:"best_predicted_availability"`
	Forecasts                 []model.Forecast `json:"forecasts" yaml:"forecasts"`
	Error                     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ranker ranks nearby zones.
type Ranker struct {
	forecaster Forecaster
	opts       Options
}

// New creates a Ranker.
func New(f Forecaster, opts Options) *Ranker {
	if opts.RadiusM <= 0 {
		opts.RadiusM = 800
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Ranker{forecaster: f, opts: opts}
}

type candidate struct {
	zone     model.ZoneID
	distance float64
}

// RankNearby returns up to MaxResults zones within RadiusM of the origin
// zone's centroid, excluding the origin. An origin without a centroid yields
// an empty list. Only the 2*MaxResults nearest candidates are forecast.
func (r *Ranker) RankNearby(ctx context.Context, snap *dataset.Snapshot, q Query) ([]RankedZone, error) {
	if !q.Origin.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "ranker: origin %d", q.Origin)
	}
	radius := r.opts.RadiusM
	if q.RadiusM > 0 {
		radius = q.RadiusM
	}
	maxResults := r.opts.MaxResults
	if q.MaxResults > 0 {
		maxResults = q.MaxResults
	}

	centroids := Centroids(snap)
	origin, ok := centroids[q.Origin]
	if !ok {
		return []RankedZone{}, nil
	}

	var candidates []candidate
	for zone, c := range centroids {
		if zone == q.Origin {
			continue
		}
		d := HaversineMeters(origin.Lat, origin.Lon, c.Lat, c.Lon)
		if d <= radius {
			candidates = append(candidates, candidate{zone: zone, distance: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].zone < candidates[j].zone
	})
	if limit := 2 * maxResults; len(candidates) > limit {
		candidates = candidates[:limit]
	}
	metrics.RankerCandidates.Observe(float64(len(candidates)))

	ranked := make([]RankedZone, len(candidates))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			ranked[i] = r.evaluate(ctx, snap, c, q)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.BestPredictedAvailability != b.BestPredictedAvailability {
			return a.BestPredictedAvailability > b.BestPredictedAvailability
		}
		return a.DistanceM < b.DistanceM
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked, nil
}

func (r *Ranker) evaluate(ctx context.Context, snap *dataset.Snapshot, c candidate, q Query) RankedZone {
	rz := RankedZone{
		Zone:      c.zone,
		ZoneName:  snap.ZoneName(c.zone),
		DistanceM: c.distance,
		BestHour:  q.Hour,
		Forecasts: []model.Forecast{},
	}

	fs, err := r.forecaster.Forecast(ctx, snap, forecast.Request{
		Zone:       c.zone,
		Hour:       q.Hour,
		DayType:    q.DayType,
		Weekday:    q.Weekday,
		HoursAhead: q.HoursAhead,
	})
	if err != nil || len(fs) == 0 {
		if err == nil {
			err = model.ErrForecastUnavailable
		}
		zap.L().Debug("ranker: candidate forecast failed", zap.Int64("zone", int64(c.zone)), zap.Error(err))
		rz.Error = err.Error()
		return rz
	}

	rates := make([]float64, len(fs))
	for i, f := range fs {
		rates[i] = f.PredictedAvailability
	}
	best := floats.MaxIdx(rates)
	rz.Forecasts = fs
	rz.BestHour = fs[best].Hour
	rz.BestPredictedAvailability = fs[best].PredictedAvailability
	return rz
}

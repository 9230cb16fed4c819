// Package forecast resolves zone availability through a three-tier cascade:
// the live model scorer, then historical sensor aggregation, then the cached
// baseline file. Each requested hour runs the cascade independently.
package forecast

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/model"
	"github.com/findmyspot/findmyspot/internal/resilience"
)

// MaxHoursAhead bounds multi-hour requests.
const MaxHoursAhead = 3

// Request selects what to forecast.
type Request struct {
	Zone       model.ZoneID
	Hour       int
	DayType    model.DayType
	// Weekday, when set, pins the anchor to that calendar day. DayType
	// still selects the bucket.
	Weekday    model.DayOfWeek
	HoursAhead int
}

// Options configures a Resolver. A nil Scorer disables the model tier; a nil
// Baseline means hours that reach the last tier are unavailable.
type Options struct {
	Scorer        Scorer
	Breaker       *resilience.CircuitBreaker
	Baseline      *Baseline
	ModelTimeout  time.Duration
	MaxHoursAhead int
	Location      *time.Location
	Now           func() time.Time
}

// Resolver runs the cascade. It holds no per-request state.
type Resolver struct {
	opts Options
}

// NewResolver creates a Resolver, filling unset options.
func NewResolver(opts Options) *Resolver {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 1500 * time.Millisecond
	}
	if opts.MaxHoursAhead <= 0 || opts.MaxHoursAhead > MaxHoursAhead {
		opts.MaxHoursAhead = MaxHoursAhead
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{opts: opts}
}

// HasBaseline reports whether the last tier is loaded.
func (r *Resolver) HasBaseline() bool { return r.opts.Baseline != nil }

// HasScorer reports whether the model tier is configured.
func (r *Resolver) HasScorer() bool { return r.opts.Scorer != nil }

// ScorerState reports the model breaker state, or "disabled".
func (r *Resolver) ScorerState() string {
	switch {
	case r.opts.Scorer == nil:
		return "disabled"
	case r.opts.Breaker == nil:
		return resilience.CircuitClosed.String()
	default:
		return r.opts.Breaker.State().String()
	}
}

// hourResult is the tagged outcome of one hour's cascade.
type hourResult struct {
	at       time.Time
	rate     float64
	tier     model.SourceTier
	resolved bool
}

// Forecast resolves req.HoursAhead consecutive hours starting at the next
// occurrence of req.DayType (or req.Weekday) at req.Hour:00 local time. It fails with
// ErrForecastUnavailable only when some hour falls through every tier.
//
// When ctx expires, model and historical work still pending is abandoned and
// the affected hours take the baseline.
func (r *Resolver) Forecast(ctx context.Context, snap *dataset.Snapshot, req Request) ([]model.Forecast, error) {
	if !req.Zone.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidZone, "forecast: zone %d", req.Zone)
	}
	if req.Hour < 0 || req.Hour > 23 {
		return nil, eris.Wrapf(model.ErrInvalidArgument, "forecast: hour %d out of range", req.Hour)
	}
	if req.DayType == "" {
		req.DayType = model.Weekday
	}

	n := ClampHoursAhead(req.HoursAhead, r.opts.MaxHoursAhead)
	now := r.opts.Now().In(r.opts.Location)
	anchor := TargetTime(now, req.Hour, req.DayType)
	if req.Weekday.Set {
		anchor = TargetTimeOn(now, req.Hour, req.Weekday.Day)
	}
	stamps := Timestamps(anchor, n)

	results := make([]hourResult, n)
	var g errgroup.Group
	for i, at := range stamps {
		g.Go(func() error {
			results[i] = r.resolveHour(ctx, snap, req.Zone, at)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Forecast, 0, n)
	for _, res := range results {
		if !res.resolved {
			metrics.ForecastUnavailable.Inc()
			return nil, eris.Wrapf(model.ErrForecastUnavailable, "forecast: zone %d at %s", req.Zone, res.at.Format(time.RFC3339))
		}
		metrics.ForecastTier.WithLabelValues(string(res.tier)).Inc()
		out = append(out, model.NewForecast(req.Zone, res.at, res.rate, res.tier))
	}
	return out, nil
}

func (r *Resolver) resolveHour(ctx context.Context, snap *dataset.Snapshot, zone model.ZoneID, at time.Time) hourResult {
	res := hourResult{at: at}
	log := zap.L().With(zap.Int64("zone", int64(zone)), zap.Time("at", at))

	if r.opts.Scorer != nil && ctx.Err() == nil {
		rate, err := r.score(ctx, zone, at)
		if err == nil {
			res.rate, res.tier, res.resolved = rate, model.TierModel, true
			return res
		}
		log.Debug("forecast: model tier failed", zap.Error(err))
	}

	if ctx.Err() == nil && snap != nil {
		local := at.In(snap.Location)
		if rate, ok := HistoricalRate(snap, zone, local.Hour(), model.DayTypeOf(local)); ok {
			res.rate, res.tier, res.resolved = rate, model.TierHistorical, true
			return res
		}
		log.Debug("forecast: no historical readings")
	}

	if rate, ok := r.opts.Baseline.Lookup(zone, at.Hour(), model.DayTypeOf(at)); ok {
		res.rate, res.tier, res.resolved = rate, model.TierBaseline, true
	}
	return res
}

type scored struct {
	rate float64
	err  error
}

// score calls the scorer under the model timeout and breaker. The call is
// abandoned, not awaited, when the timeout fires first.
func (r *Resolver) score(ctx context.Context, zone model.ZoneID, at time.Time) (float64, error) {
	mctx, cancel := context.WithTimeout(ctx, r.opts.ModelTimeout)
	defer cancel()

	call := func(ctx context.Context) (float64, error) {
		start := time.Now()
		ch := make(chan scored, 1)
		go func() {
			v, err := r.opts.Scorer.Score(ctx, zone, at)
			ch <- scored{rate: v, err: err}
		}()

		select {
		case s := <-ch:
			metrics.ScorerLatency.Observe(time.Since(start).Seconds())
			if s.err != nil {
				return 0, s.err
			}
			if math.IsNaN(s.rate) || math.IsInf(s.rate, 0) {
				return 0, eris.New("forecast: scorer returned a non-finite value")
			}
			return model.ClampUnit(s.rate), nil
		case <-ctx.Done():
			return 0, eris.Wrap(ctx.Err(), "forecast: scorer timed out")
		}
	}

	if r.opts.Breaker == nil {
		return call(mctx)
	}
	return resilience.ExecuteVal(mctx, r.opts.Breaker, call)
}

// ShouldTripScorer counts scorer failures toward the breaker, except
// cancellation of the caller's request.
func ShouldTripScorer(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Package engine composes the locator, forecast resolver, ranker and
// geocoder into the query operations served by the CLI and the HTTP API.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/ranker"
	"github.com/findmyspot/findmyspot/pkg/geocode"
)

// Engine errors that are not part of the model taxonomy.
var (
	ErrAddressNotFound  = eris.New("address not found")
	ErrGeocoderDisabled = eris.New("geocoding is not configured")
)

const (
	defaultLocatorRadius = 200.0
	defaultConcurrency   = 4
)

// SnapshotSource yields the current dataset snapshot.
type SnapshotSource interface {
	Current() (*dataset.Snapshot, error)
}

// Options configures an Engine.
type Options struct {
	// LocatorRadiusM is the default search radius for FindByLocation.
	LocatorRadiusM float64
	// Concurrency bounds the per-zone forecasts of FindByLocation.
	Concurrency int
	Now         func() time.Time
}

// Engine answers parking queries against the current snapshot. It is safe
// for concurrent use.
type Engine struct {
	snapshots SnapshotSource
	resolver  *forecast.Resolver
	ranker    *ranker.Ranker
	geocoder  geocode.Client
	opts      Options
}

// New creates an Engine. geocoder may be nil, in which case address queries
// fail with ErrGeocoderDisabled.
func New(snaps SnapshotSource, resolver *forecast.Resolver, rk *ranker.Ranker, geocoder geocode.Client, opts Options) *Engine {
	if opts.LocatorRadiusM <= 0 {
		opts.LocatorRadiusM = defaultLocatorRadius
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		snapshots: snaps,
		resolver:  resolver,
		ranker:    rk,
		geocoder:  geocoder,
		opts:      opts,
	}
}

// Geocode resolves an address. An unmatched address is a Result with
// Matched=false.
func (e *Engine) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	if e.geocoder == nil {
		return nil, ErrGeocoderDisabled
	}
	return e.geocoder.Geocode(ctx, query)
}

// Autocomplete returns address suggestions.
func (e *Engine) Autocomplete(ctx context.Context, query string, limit int) ([]geocode.Suggestion, error) {
	if e.geocoder == nil {
		return nil, ErrGeocoderDisabled
	}
	return e.geocoder.Autocomplete(ctx, query, limit)
}

func (e *Engine) snapshot() (*dataset.Snapshot, error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return nil, eris.Wrap(err, "engine: snapshot")
	}
	return snap, nil
}

// localNow is the current time in the snapshot's timezone.
func (e *Engine) localNow(snap *dataset.Snapshot) time.Time {
	now := e.opts.Now()
	if snap.Location != nil {
		now = now.In(snap.Location)
	}
	return now
}

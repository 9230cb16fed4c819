package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/dataset"
	"github.com/findmyspot/findmyspot/internal/engine"
	"github.com/findmyspot/findmyspot/internal/fetcher"
	"github.com/findmyspot/findmyspot/internal/forecast"
	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/ranker"
	"github.com/findmyspot/findmyspot/internal/resilience"
	"github.com/findmyspot/findmyspot/pkg/geocode"
	"github.com/findmyspot/findmyspot/pkg/inference"
)

// engineEnv holds the loaded snapshot holder, the composed engine and the
// optional dataset syncer used by serve and the query commands.
type engineEnv struct {
	Holder *dataset.Holder
	Engine *engine.Engine
	Syncer *dataset.Syncer     // nil when no sources are configured
	Files  *dataset.FileSource // nil for the postgres driver

	closers []func()
}

// Close releases the database pool and geocode cache.
func (env *engineEnv) Close() {
	for i := len(env.closers) - 1; i >= 0; i-- {
		env.closers[i]()
	}
}

// initEngine validates cfg for mode, loads the first snapshot and wires the
// forecast cascade, ranker and geocoder. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Datasets.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "load timezone %q", cfg.Datasets.Timezone)
	}

	env := &engineEnv{}

	loader, err := initLoader(ctx, env, loc)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Holder = dataset.NewHolder(loader)
	if err := env.Holder.Refresh(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load datasets")
	}

	resolver := forecast.NewResolver(forecast.Options{
		Scorer:        initScorer(),
		Breaker:       initScorerBreaker(),
		Baseline:      initBaseline(),
		ModelTimeout:  cfg.Forecast.ModelTimeout(),
		MaxHoursAhead: cfg.Forecast.MaxHoursAhead,
		Location:      loc,
	})

	rk := ranker.New(resolver, ranker.Options{
		RadiusM:     cfg.Ranker.RadiusM,
		MaxResults:  cfg.Ranker.MaxResults,
		Concurrency: cfg.Ranker.Concurrency,
	})

	var gc geocode.Client
	if cfg.Geocode.APIKey != "" {
		gc, err = initGeocoder(ctx, env)
		if err != nil {
			env.Close()
			return nil, err
		}
	} else {
		zap.L().Debug("FINDMYSPOT_GEOCODE_API_KEY not set, address lookups disabled")
	}

	env.Engine = engine.New(env.Holder, resolver, rk, gc, engine.Options{
		LocatorRadiusM: cfg.Locator.RadiusM,
		Concurrency:    cfg.Ranker.Concurrency,
	})
	env.Syncer = initSyncer()
	return env, nil
}

func initLoader(ctx context.Context, env *engineEnv, loc *time.Location) (dataset.Loader, error) {
	switch cfg.Datasets.Driver {
	case "postgres":
		src, err := dataset.NewPostgresSource(ctx, cfg.Datasets.DatabaseURL, loc)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, src.Close)
		zap.L().Info("datasets: using postgres source")
		return src, nil
	default:
		env.Files = dataset.NewFileSource(dataset.FileConfig{
			BaysPath:          cfg.Datasets.BaysPath,
			SensorsPath:       cfg.Datasets.SensorsPath,
			ZoneLinksPath:     cfg.Datasets.ZoneLinksPath,
			SignPlatesPath:    cfg.Datasets.SignPlatesPath,
			ZoneLocationsPath: cfg.Datasets.ZoneLocationsPath,
			Location:          loc,
		})
		return env.Files, nil
	}
}

// initScorer returns nil when no model url is configured, which disables the
// live tier.
func initScorer() forecast.Scorer {
	if cfg.Forecast.ModelURL == "" {
		zap.L().Info("forecast: no model_url, live model tier disabled")
		return nil
	}
	return inference.NewClient(cfg.Forecast.ModelURL,
		inference.WithRetry(resilience.RetryAttempts(cfg.Forecast.RetryAttempts)),
	)
}

func initScorerBreaker() *resilience.CircuitBreaker {
	if cfg.Forecast.ModelURL == "" {
		return nil
	}
	bc := resilience.FromCircuitConfig("model", cfg.Forecast.CircuitFailureThreshold, cfg.Forecast.CircuitResetSecs)
	bc.ShouldTrip = forecast.ShouldTripScorer
	bc.OnStateChange = metrics.ObserveCircuit
	return resilience.NewCircuitBreaker(bc)
}

// initBaseline loads the baseline cache. A missing file is logged; hours that
// reach the last tier then fail as unavailable.
func initBaseline() *forecast.Baseline {
	if cfg.Forecast.BaselinePath == "" {
		return nil
	}
	b, err := forecast.LoadBaseline(cfg.Forecast.BaselinePath)
	if err != nil {
		zap.L().Warn("forecast: baseline not loaded", zap.String("path", cfg.Forecast.BaselinePath), zap.Error(err))
		return nil
	}
	zap.L().Info("forecast: baseline loaded", zap.String("path", b.Path), zap.Int("rows", b.Rows()))
	return b
}

func initGeocoder(ctx context.Context, env *engineEnv) (geocode.Client, error) {
	opts := []geocode.Option{
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithCountryCodes(cfg.Geocode.CountryCodes),
		geocode.WithViewbox(cfg.Geocode.Viewbox),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	}
	if cfg.Geocode.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second}))
	}

	bc := resilience.DefaultCircuitBreakerConfig()
	bc.Name = "locationiq"
	bc.OnStateChange = metrics.ObserveCircuit
	opts = append(opts, geocode.WithBreaker(resilience.NewCircuitBreaker(bc)))

	cache, err := geocode.OpenCache(ctx, cfg.Geocode.Cache.Driver, cfg.Geocode.Cache.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open geocode cache")
	}
	if cache != nil {
		env.closers = append(env.closers, func() { _ = cache.Close() })
		opts = append(opts, geocode.WithCache(cache, time.Duration(cfg.Geocode.Cache.TTLHours)*time.Hour))
		zap.L().Info("geocode cache enabled", zap.String("driver", cfg.Geocode.Cache.Driver))
	}

	return geocode.NewClient(cfg.Geocode.APIKey, opts...), nil
}

// initSyncer returns nil when no remote sources are configured.
func initSyncer() *dataset.Syncer {
	if len(cfg.Datasets.Sources) == 0 {
		return nil
	}
	return dataset.NewSyncer(
		cfg.Datasets.Sources,
		cfg.Datasets.DownloadDir,
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
	)
}

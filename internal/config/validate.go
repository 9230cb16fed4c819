package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings required by the given command mode.
// Modes: "serve", "query", "geocode", "sync".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Datasets.Driver {
	case "files":
		if mode == "serve" || mode == "query" {
			if c.Datasets.BaysPath == "" {
				problems = append(problems, "datasets.bays_path is required")
			}
			if c.Datasets.SensorsPath == "" {
				problems = append(problems, "datasets.sensors_path is required")
			}
		}
	case "postgres":
		if c.Datasets.DatabaseURL == "" {
			problems = append(problems, "datasets.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "datasets.driver must be files or postgres")
	}

	if c.Forecast.MaxHoursAhead < 1 || c.Forecast.MaxHoursAhead > 3 {
		problems = append(problems, "forecast.max_hours_ahead must be between 1 and 3")
	}
	if c.Ranker.MaxResults <= 0 {
		problems = append(problems, "ranker.max_results must be positive")
	}
	if c.Ranker.Concurrency <= 0 {
		problems = append(problems, "ranker.concurrency must be positive")
	}

	switch c.Geocode.Cache.Driver {
	case "", "none":
	case "sqlite", "redis":
		if c.Geocode.Cache.DSN == "" {
			problems = append(problems, "geocode.cache.dsn is required for the "+c.Geocode.Cache.Driver+" cache")
		}
	default:
		problems = append(problems, "geocode.cache.driver must be none, sqlite or redis")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "geocode":
		if c.Geocode.APIKey == "" {
			problems = append(problems, "geocode.api_key is required")
		}
	case "sync":
		if len(c.Datasets.Sources) == 0 {
			problems = append(problems, "datasets.sources must list at least one url")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

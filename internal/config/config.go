package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Forecast ForecastConfig `yaml:"forecast" mapstructure:"forecast"`
	Ranker   RankerConfig   `yaml:"ranker" mapstructure:"ranker"`
	Locator  LocatorConfig  `yaml:"locator" mapstructure:"locator"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatasetsConfig configures where reference tables are loaded from.
type DatasetsConfig struct {
	Driver              string            `yaml:"driver" mapstructure:"driver"`
	Dir                 string            `yaml:"dir" mapstructure:"dir"`
	BaysPath            string            `yaml:"bays_path" mapstructure:"bays_path"`
	SensorsPath         string            `yaml:"sensors_path" mapstructure:"sensors_path"`
	ZoneLinksPath       string            `yaml:"zone_links_path" mapstructure:"zone_links_path"`
	SignPlatesPath      string            `yaml:"sign_plates_path" mapstructure:"sign_plates_path"`
	ZoneLocationsPath   string            `yaml:"zone_locations_path" mapstructure:"zone_locations_path"`
	DatabaseURL         string            `yaml:"database_url" mapstructure:"database_url"`
	Timezone            string            `yaml:"timezone" mapstructure:"timezone"`
	RefreshIntervalMins int               `yaml:"refresh_interval_mins" mapstructure:"refresh_interval_mins"`
	Sources             map[string]string `yaml:"sources" mapstructure:"sources"`
	DownloadDir         string            `yaml:"download_dir" mapstructure:"download_dir"`
}

// ForecastConfig configures the forecast cascade.
type ForecastConfig struct {
	BaselinePath            string `yaml:"baseline_path" mapstructure:"baseline_path"`
	ModelURL                string `yaml:"model_url" mapstructure:"model_url"`
	ModelTimeoutMs          int    `yaml:"model_timeout_ms" mapstructure:"model_timeout_ms"`
	MaxHoursAhead           int    `yaml:"max_hours_ahead" mapstructure:"max_hours_ahead"`
	RetryAttempts           int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	CircuitFailureThreshold int    `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// ModelTimeout returns the per-call scorer timeout.
func (c ForecastConfig) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutMs) * time.Millisecond
}

// RankerConfig configures nearby zone suggestions.
type RankerConfig struct {
	RadiusM     float64 `yaml:"radius_m" mapstructure:"radius_m"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// LocatorConfig configures the bay search around a point.
type LocatorConfig struct {
	RadiusM float64 `yaml:"radius_m" mapstructure:"radius_m"`
}

// GeocodeConfig holds LocationIQ settings.
type GeocodeConfig struct {
	APIKey       string      `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string      `yaml:"base_url" mapstructure:"base_url"`
	CountryCodes string      `yaml:"country_codes" mapstructure:"country_codes"`
	Viewbox      string      `yaml:"viewbox" mapstructure:"viewbox"`
	RateLimit    float64     `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Cache        CacheConfig `yaml:"cache" mapstructure:"cache"`
}

// CacheConfig selects the geocode result cache backend.
type CacheConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINDMYSPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datasets.driver", "files")
	v.SetDefault("datasets.dir", "data")
	v.SetDefault("datasets.bays_path", "data/on-street-parking-bays.xlsx")
	v.SetDefault("datasets.sensors_path", "data/on-street-parking-bay-sensors.csv")
	v.SetDefault("datasets.zone_links_path", "data/parking-zones-linked-to-street-segments.csv")
	v.SetDefault("datasets.sign_plates_path", "data/sign-plates-located-in-each-parking-zone.csv")
	v.SetDefault("datasets.zone_locations_path", "data/zone_locations.json")
	v.SetDefault("datasets.timezone", "Australia/Melbourne")
	v.SetDefault("datasets.refresh_interval_mins", 60)
	v.SetDefault("datasets.download_dir", "data")
	v.SetDefault("forecast.baseline_path", "data/findmyspot_results.json")
	v.SetDefault("forecast.model_timeout_ms", 1500)
	v.SetDefault("forecast.max_hours_ahead", 3)
	v.SetDefault("forecast.retry_attempts", 2)
	v.SetDefault("forecast.circuit_failure_threshold", 5)
	v.SetDefault("forecast.circuit_reset_secs", 30)
	v.SetDefault("ranker.radius_m", 800)
	v.SetDefault("ranker.max_results", 5)
	v.SetDefault("ranker.concurrency", 4)
	v.SetDefault("locator.radius_m", 200)
	v.SetDefault("datasets.database_url", "")
	v.SetDefault("forecast.model_url", "")
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.cache.dsn", "")
	v.SetDefault("geocode.base_url", "https://us1.locationiq.com/v1")
	v.SetDefault("geocode.country_codes", "au")
	v.SetDefault("geocode.viewbox", "144.90,-37.85,145.00,-37.77")
	v.SetDefault("geocode.rate_limit", 2)
	v.SetDefault("geocode.timeout_secs", 8)
	v.SetDefault("geocode.cache.driver", "none")
	v.SetDefault("geocode.cache.ttl_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

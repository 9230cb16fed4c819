// Package geocode resolves free-text addresses to coordinates through the
// LocationIQ search and autocomplete APIs.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

// DefaultBaseURL is the LocationIQ US region endpoint.
const DefaultBaseURL = "https://us1.locationiq.com/v1"

// Client geocodes addresses. An address that does not resolve is a Result
// with Matched=false and a nil error; errors are reserved for failures to
// reach or use the provider.
type Client interface {
	// Geocode resolves a single address.
	Geocode(ctx context.Context, query string) (*Result, error)

	// Autocomplete returns up to limit suggestions for a partial address.
	Autocomplete(ctx context.Context, query string, limit int) ([]Suggestion, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type,omitempty"`
	Matched     bool    `json:"matched"`
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Type        string  `json:"type,omitempty"`
}

// ErrTransport marks provider failures, as opposed to an unmatched address.
var ErrTransport = eris.New("geocode: transport failure")

// TransportError carries the provider failure detail for one operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("geocode: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// IsTransport reports whether err is a provider transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the LocationIQ endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. LocationIQ's free tier
// allows 2 per second.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithCountryCodes restricts results to the given ISO country codes ("au").
func WithCountryCodes(codes string) Option {
	return func(g *geocoder) {
		g.countryCodes = codes
	}
}

// WithViewbox biases results toward "minLon,minLat,maxLon,maxLat".
func WithViewbox(box string) Option {
	return func(g *geocoder) {
		g.viewbox = box
	}
}

// WithRetry sets the retry policy for transient provider failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

// WithBreaker routes provider calls through a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *geocoder) {
		g.breaker = cb
	}
}

// WithCache caches Geocode results (matches and non-matches) for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

type geocoder struct {
	apiKey       string
	baseURL      string
	countryCodes string
	viewbox      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
	cache        Cache
	cacheTTL     time.Duration
}

// NewClient creates a LocationIQ Client with the given options.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 8 * time.Second},
		limiter:    rate.NewLimiter(2, 2),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retry.OnRetry = resilience.RetryLogger("locationiq", "geocode")
	return g
}

package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/resilience"
)

// liqPlace is one element of a LocationIQ search or autocomplete response.
// Coordinates arrive as strings.
type liqPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

func (p liqPlace) coords() (float64, float64, bool) {
	lat, latErr := strconv.ParseFloat(p.Lat, 64)
	lon, lonErr := strconv.ParseFloat(p.Lon, 64)
	return lat, lon, latErr == nil && lonErr == nil
}

// Geocode implements Client. Results, including non-matches, are served from
// the cache when one is configured.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{Matched: false}, nil
	}

	key := cacheKey(query, g.countryCodes, g.viewbox)
	if g.cache != nil {
		cached, ok, err := g.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.GeocodeCache.WithLabelValues("error").Inc()
			zap.L().Warn("geocode: cache read failed", zap.Error(err))
		case ok:
			metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.GeocodeCache.WithLabelValues("miss").Inc()
		}
	}

	params := g.baseParams(query)
	params.Set("limit", "1")
	if g.viewbox != "" {
		params.Set("viewbox", g.viewbox)
	}

	places, err := g.call(ctx, "search", params)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("geocode", "error").Inc()
		return nil, err
	}

	result := &Result{Matched: false}
	for _, p := range places {
		if lat, lon, ok := p.coords(); ok {
			result = &Result{Latitude: lat, Longitude: lon, DisplayName: p.DisplayName, Type: p.Type, Matched: true}
			break
		}
	}
	if result.Matched {
		metrics.GeocodeRequests.WithLabelValues("geocode", "matched").Inc()
	} else {
		metrics.GeocodeRequests.WithLabelValues("geocode", "not_found").Inc()
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, result, g.cacheTTL); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// Autocomplete implements Client.
func (g *geocoder) Autocomplete(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	params := g.baseParams(query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("dedupe", "1")

	places, err := g.call(ctx, "autocomplete", params)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("autocomplete", "error").Inc()
		return nil, err
	}
	metrics.GeocodeRequests.WithLabelValues("autocomplete", "ok").Inc()

	out := make([]Suggestion, 0, len(places))
	for _, p := range places {
		lat, lon, ok := p.coords()
		if !ok {
			continue
		}
		out = append(out, Suggestion{DisplayName: p.DisplayName, Latitude: lat, Longitude: lon, Type: p.Type})
	}
	return out, nil
}

func (g *geocoder) baseParams(query string) url.Values {
	params := url.Values{
		"key":              {g.apiKey},
		"q":                {query},
		"format":           {"json"},
		"normalizeaddress": {"1"},
	}
	if g.countryCodes != "" {
		params.Set("countrycodes", g.countryCodes)
	}
	return params
}

// call performs one LocationIQ request with rate limiting, retry and the
// optional breaker. A 404 means no match and yields an empty slice.
func (g *geocoder) call(ctx context.Context, endpoint string, params url.Values) ([]liqPlace, error) {
	reqURL := strings.TrimRight(g.baseURL, "/") + "/" + endpoint + "?" + params.Encode()

	attempt := func(ctx context.Context) ([]liqPlace, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]liqPlace, error) {
			return g.do(ctx, reqURL)
		})
	}

	var places []liqPlace
	var err error
	if g.breaker != nil {
		places, err = resilience.ExecuteVal(ctx, g.breaker, attempt)
	} else {
		places, err = attempt(ctx)
	}
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: err}
	}
	return places, nil
}

func (g *geocoder) do(ctx context.Context, reqURL string) ([]liqPlace, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []liqPlace{}, nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("locationiq returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("locationiq returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	var places []liqPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "parse response")
	}
	return places, nil
}

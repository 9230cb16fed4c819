// Package inference calls the trained availability model over HTTP. The
// client satisfies the forecast scorer capability.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/findmyspot/findmyspot/internal/model"
	"github.com/findmyspot/findmyspot/internal/resilience"
)

// PredictRequest is the body posted to the model service.
type PredictRequest struct {
	ZoneNumber int    `json:"zone_number"`
	Timestamp  string `json:"timestamp"`
	Hour       int    `json:"hour"`
	DayOfWeek  int    `json:"day_of_week"`
	DayType    string `json:"day_type"`
}

// PredictResponse is the model service reply. Services that return a
// predictions list are accepted too; the first entry is used.
type PredictResponse struct {
	PredictedAvailability *float64 `json:"predicted_availability"`
	Predictions           []struct {
		PredictedAvailability *float64 `json:"predicted_availability"`
	} `json:"predictions"`
}

func (r PredictResponse) value() (float64, bool) {
	if r.PredictedAvailability != nil {
		return *r.PredictedAvailability, true
	}
	if len(r.Predictions) > 0 && r.Predictions[0].PredictedAvailability != nil {
		return *r.Predictions[0].PredictedAvailability, true
	}
	return 0, false
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// Client posts scoring requests to {baseURL}/predict.
type Client struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a model service client. Timeouts come from the caller's
// context; the http client carries only a generous safety limit.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryAttempts(2),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("inference", "predict")
	return c
}

// Score returns the model's predicted availability for zone at the given
// local timestamp.
func (c *Client) Score(ctx context.Context, zone model.ZoneID, at time.Time) (float64, error) {
	body, err := json.Marshal(PredictRequest{
		ZoneNumber: int(zone),
		Timestamp:  at.Format(time.RFC3339),
		Hour:       at.Hour(),
		DayOfWeek:  int(at.Weekday()),
		DayType:    string(model.DayTypeOf(at)),
	})
	if err != nil {
		return 0, eris.Wrap(err, "inference: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (float64, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, eris.Wrap(err, "inference: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "inference: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "inference: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return 0, resilience.NewTransientError(eris.Errorf("inference: status %d: %s", resp.StatusCode, string(raw)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("inference: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var out PredictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, eris.Wrap(err, "inference: parse response")
	}
	v, ok := out.value()
	if !ok {
		return 0, eris.New("inference: response has no predicted_availability")
	}
	return v, nil
}

package geocode

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newTestClient builds a geocoder against a test server with fast retries.
func newTestClient(baseURL string, opts ...Option) *geocoder {
	all := append([]Option{
		WithBaseURL(baseURL),
		WithCountryCodes("au"),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	}, opts...)
	g := NewClient("test-key", all...).(*geocoder)
	g.limiter = newTestLimiter()
	return g
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if !strings.HasPrefix(origURL, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

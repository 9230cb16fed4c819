package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/findmyspot/findmyspot/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	RateLimit rate.Limit
	Retry     resilience.RetryConfig
}

// HTTPFetcher downloads over HTTP(S) with rate limiting and retry on
// transient failures (429, 5xx, network errors).
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "findmyspot/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	opts.Retry.OnRetry = resilience.RetryLogger("http", "download")
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, 1),
	}
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL, etag string) (*http.Response, error) {
	return resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "http request")
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.do(ctx, rawURL, "")
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return WriteFile(path, body)
}

// DownloadIfChanged fetches the URL only if its ETag differs from etag.
// Returns (body, newETag, changed, error); body is nil when unchanged.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	resp, err := f.do(ctx, rawURL, etag)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "download if changed")
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		_ = resp.Body.Close()
		zap.L().Debug("http: not modified", zap.String("url", rawURL))
		return nil, etag, false, nil
	case http.StatusOK:
		return resp.Body, resp.Header.Get("ETag"), true, nil
	default:
		_ = resp.Body.Close()
		return nil, "", false, eris.Errorf("download if changed: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
}

// WriteFile copies r into a newly created file at path.
func WriteFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}

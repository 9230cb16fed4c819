// Package fetcher downloads dataset exports over HTTP or FTP and reads the
// CSV, XLSX, JSON and ZIP payloads they arrive in.
package fetcher

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

// Downloader writes a remote resource to a local file.
type Downloader interface {
	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error)
}

// ForURL returns the downloader that handles the URL's scheme.
func ForURL(rawURL string, httpF *HTTPFetcher, ftpF *FTPFetcher) (Downloader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		if httpF == nil {
			return nil, eris.New("fetcher: no http fetcher configured")
		}
		return httpF, nil
	case "ftp":
		if ftpF == nil {
			return nil, eris.New("fetcher: no ftp fetcher configured")
		}
		return ftpF, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

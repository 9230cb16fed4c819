package dataset

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findmyspot/findmyspot/internal/fetcher"
)

const etagStateFile = ".etags.json"

// SyncResult describes one downloaded dataset.
type SyncResult struct {
	Name      string   `json:"name" yaml:"name"`
	URL       string   `json:"url" yaml:"url"`
	Path      string   `json:"path" yaml:"path"`
	Bytes     int64    `json:"bytes" yaml:"bytes"`
	Changed   bool     `json:"changed" yaml:"changed"`
	Extracted []string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	// Local is the file a loader should read for this dataset: the
	// download itself, or the shapefile or single table of an archive.
	Local string `json:"local,omitempty" yaml:"local,omitempty"`
}

// Syncer downloads remote dataset exports into a local directory.
type Syncer struct {
	sources map[string]string
	dir     string
	http    *fetcher.HTTPFetcher
	ftp     *fetcher.FTPFetcher

	mu    sync.Mutex
	etags map[string]string
}

// NewSyncer creates a Syncer for sources (dataset name to URL) writing into dir.
func NewSyncer(sources map[string]string, dir string, httpF *fetcher.HTTPFetcher, ftpF *fetcher.FTPFetcher) *Syncer {
	return &Syncer{sources: sources, dir: dir, http: httpF, ftp: ftpF}
}

// Sync downloads every source. HTTP sources are skipped when the server
// reports the ETag unchanged. Zip payloads are extracted next to the archive.
func (s *Syncer) Sync(ctx context.Context) ([]SyncResult, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "dataset: create download dir")
	}
	s.etags = s.readETags()

	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]SyncResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, name := range names {
		g.Go(func() error {
			res, err := s.syncOne(gctx, name, s.sources[name])
			if err != nil {
				return eris.Wrapf(err, "dataset: sync %s", name)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.writeETags(); err != nil {
		zap.L().Warn("dataset: could not persist etags", zap.Error(err))
	}
	return results, nil
}

func (s *Syncer) syncOne(ctx context.Context, name, rawURL string) (SyncResult, error) {
	res := SyncResult{Name: name, URL: rawURL}

	dest, err := s.destination(name, rawURL)
	if err != nil {
		return res, err
	}
	res.Path = dest

	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		if s.http == nil {
			return res, eris.New("dataset: no http fetcher configured")
		}
		s.mu.Lock()
		prev := s.etags[rawURL]
		s.mu.Unlock()
		if _, statErr := os.Stat(dest); statErr != nil {
			prev = ""
		}

		body, etag, changed, err := s.http.DownloadIfChanged(ctx, rawURL, prev)
		if err != nil {
			return res, err
		}
		if !changed {
			zap.L().Info("dataset: source unchanged", zap.String("source", name))
			if !strings.EqualFold(filepath.Ext(dest), ".zip") {
				res.Local = dest
			}
			return res, nil
		}
		defer body.Close() //nolint:errcheck

		if res.Bytes, err = fetcher.WriteFile(dest, body); err != nil {
			return res, err
		}
		if etag != "" {
			s.mu.Lock()
			s.etags[rawURL] = etag
			s.mu.Unlock()
		}
	} else {
		dl, err := fetcher.ForURL(rawURL, s.http, s.ftp)
		if err != nil {
			return res, err
		}
		if res.Bytes, err = dl.DownloadToFile(ctx, rawURL, dest); err != nil {
			return res, err
		}
	}
	res.Changed = true

	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		bundle, err := fetcher.ExtractBundle(dest, s.dir)
		if err != nil {
			return res, err
		}
		res.Extracted = bundle.Files
		res.Local = bundle.Primary()
	} else {
		res.Local = dest
	}

	zap.L().Info("dataset: source downloaded",
		zap.String("source", name),
		zap.String("path", dest),
		zap.Int64("bytes", res.Bytes),
		zap.Int("extracted", len(res.Extracted)),
	)
	return res, nil
}

// destination names the local file after the URL's last path element,
// falling back to the dataset name.
func (s *Syncer) destination(name, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: parse url %q", rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = name
	}
	return filepath.Join(s.dir, base), nil
}

func (s *Syncer) readETags() map[string]string {
	tags, err := fetcher.ReadJSONFile[map[string]string](filepath.Join(s.dir, etagStateFile))
	if err != nil || *tags == nil {
		return map[string]string{}
	}
	return *tags
}

func (s *Syncer) writeETags() error {
	data, err := json.MarshalIndent(s.etags, "", "  ")
	if err != nil {
		return eris.Wrap(err, "dataset: marshal etags")
	}
	return eris.Wrap(os.WriteFile(filepath.Join(s.dir, etagStateFile), data, 0o644), "dataset: write etags")
}

package dataset

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findmyspot/findmyspot/internal/fetcher"
	"github.com/findmyspot/findmyspot/internal/model"
)

// FileConfig locates the exported tables on disk. Bays may be .xlsx, .csv or
// a point shapefile (.shp); the other tables are .csv or .xlsx. Empty link,
// rule and zone-name paths load as empty tables.
type FileConfig struct {
	BaysPath          string
	SensorsPath       string
	ZoneLinksPath     string
	SignPlatesPath    string
	ZoneLocationsPath string
	Location          *time.Location
}

// FileSource loads a snapshot from local files.
type FileSource struct {
	mu  sync.RWMutex
	cfg FileConfig
	now func() time.Time
}

// NewFileSource creates a FileSource.
func NewFileSource(cfg FileConfig) *FileSource {
	return &FileSource{cfg: cfg, now: time.Now}
}

// Load reads every table concurrently. Any unreadable table fails the whole
// load with a DataUnavailableError naming it.
func (s *FileSource) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	var t Tables
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		header, rows, err := readTable(gctx, cfg.BaysPath, true)
		if err != nil {
			return model.NewDataUnavailable(TableBays, err)
		}
		if header == nil {
			t.Bays = rowsAsBays(rows)
			return nil
		}
		if t.Bays, err = parseBays(header, rows); err != nil {
			return model.NewDataUnavailable(TableBays, err)
		}
		return nil
	})
	g.Go(func() error {
		header, rows, err := readTable(gctx, cfg.SensorsPath, false)
		if err != nil {
			return model.NewDataUnavailable(TableSensorReadings, err)
		}
		if t.Readings, err = parseReadings(header, rows); err != nil {
			return model.NewDataUnavailable(TableSensorReadings, err)
		}
		return nil
	})
	g.Go(func() error {
		if cfg.ZoneLinksPath == "" {
			return nil
		}
		header, rows, err := readTable(gctx, cfg.ZoneLinksPath, false)
		if err != nil {
			return model.NewDataUnavailable(TableZoneLinks, err)
		}
		if t.Links, err = parseLinks(header, rows); err != nil {
			return model.NewDataUnavailable(TableZoneLinks, err)
		}
		return nil
	})
	g.Go(func() error {
		if cfg.SignPlatesPath == "" {
			return nil
		}
		header, rows, err := readTable(gctx, cfg.SignPlatesPath, false)
		if err != nil {
			return model.NewDataUnavailable(TableSignPlates, err)
		}
		if t.Rules, err = parseRules(header, rows); err != nil {
			return model.NewDataUnavailable(TableSignPlates, err)
		}
		return nil
	})
	g.Go(func() error {
		t.ZoneNames = loadZoneNames(cfg.ZoneLocationsPath)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewSnapshot(t, cfg.Location, s.now()), nil
}

// Follow points each table at the local file of a matching sync result, so
// the next Load reads freshly downloaded data. Results are matched by source
// name ("bays", "sensors" or "sensor_readings", "zone_links", "sign_plates",
// "zone_locations"). It returns the tables that moved.
func (s *FileSource) Follow(results []SyncResult) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved []string
	for _, r := range results {
		if r.Local == "" {
			continue
		}
		var field *string
		table := strings.ToLower(r.Name)
		switch table {
		case TableBays:
			field = &s.cfg.BaysPath
		case "sensors", TableSensorReadings:
			field, table = &s.cfg.SensorsPath, TableSensorReadings
		case TableZoneLinks:
			field = &s.cfg.ZoneLinksPath
		case TableSignPlates:
			field = &s.cfg.SignPlatesPath
		case TableZoneLocations:
			field = &s.cfg.ZoneLocationsPath
		default:
			continue
		}
		if *field == r.Local {
			continue
		}
		zap.L().Info("dataset: following synced file",
			zap.String("source", table),
			zap.String("from", *field),
			zap.String("to", r.Local),
		)
		*field = r.Local
		moved = append(moved, table)
	}
	sort.Strings(moved)
	return moved
}

// readTable dispatches on file extension. For shapefiles it returns a nil
// header and rows already laid out as bay records.
func readTable(ctx context.Context, path string, allowShapefile bool) ([]string, [][]string, error) {
	if path == "" {
		return nil, nil, eris.New("dataset: no path configured")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	case ".shp":
		if !allowShapefile {
			return nil, nil, eris.Errorf("dataset: shapefile not supported for %s", path)
		}
		rows, err := readBayShapefile(path)
		return nil, rows, err
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "dataset: open")
		}
		defer f.Close() //nolint:errcheck
		return fetcher.ReadCSV(ctx, f)
	}
}

func loadZoneNames(path string) map[model.ZoneID]string {
	if path == "" {
		return nil
	}
	raw, err := fetcher.ReadJSONFile[map[string]string](path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("dataset: zone locations unreadable, names omitted", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return parseZoneNames(*raw)
}

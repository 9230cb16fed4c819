package dataset

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresSource.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Every column is read as text so rows flow through the same header-alias
// parsing as the file exports.
const (
	queryBays = `SELECT kerbside_id::text, latitude::text, longitude::text,
		COALESCE(road_segment_id::text, ''), COALESCE(road_segment_description, '')
		FROM parking.bays`
	queryReadings = `SELECT kerbside_id::text, COALESCE(zone_number::text, ''),
		COALESCE(status_description, ''), COALESCE(status_timestamp::text, '')
		FROM parking.sensor_readings`
	queryLinks = `SELECT segment_id::text, parking_zone::text, COALESCE(on_street, '')
		FROM parking.zone_links`
	queryRules = `SELECT parking_zone::text, COALESCE(days, ''), COALESCE(start_time, ''),
		COALESCE(end_time, ''), COALESCE(duration, ''), COALESCE(permit, '')
		FROM parking.sign_plates`
	queryZoneNames = `SELECT zone_number::text, location_name FROM parking.zone_locations`
)

// PostgresSource loads a snapshot from the parking schema.
type PostgresSource struct {
	pool    Pool
	loc     *time.Location
	now     func() time.Time
	closeFn func()
}

// NewPostgresSource connects a pool to connString.
func NewPostgresSource(ctx context.Context, connString string, loc *time.Location) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "dataset: postgres ping")
	}
	s := NewPostgresSourceFromPool(pool, loc)
	s.closeFn = pool.Close
	return s, nil
}

// NewPostgresSourceFromPool wraps an existing pool.
func NewPostgresSourceFromPool(pool Pool, loc *time.Location) *PostgresSource {
	return &PostgresSource{pool: pool, loc: loc, now: time.Now}
}

// Close releases the pool when this source opened it.
func (s *PostgresSource) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Load reads the tables in sequence. Zone names are optional.
func (s *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	var t Tables

	header, rows, err := s.queryTable(ctx, queryBays)
	if err == nil {
		t.Bays, err = parseBays(header, rows)
	}
	if err != nil {
		return nil, model.NewDataUnavailable(TableBays, err)
	}

	header, rows, err = s.queryTable(ctx, queryReadings)
	if err == nil {
		t.Readings, err = parseReadings(header, rows)
	}
	if err != nil {
		return nil, model.NewDataUnavailable(TableSensorReadings, err)
	}

	header, rows, err = s.queryTable(ctx, queryLinks)
	if err == nil {
		t.Links, err = parseLinks(header, rows)
	}
	if err != nil {
		return nil, model.NewDataUnavailable(TableZoneLinks, err)
	}

	header, rows, err = s.queryTable(ctx, queryRules)
	if err == nil {
		t.Rules, err = parseRules(header, rows)
	}
	if err != nil {
		return nil, model.NewDataUnavailable(TableSignPlates, err)
	}

	if _, rows, err = s.queryTable(ctx, queryZoneNames); err != nil {
		zap.L().Warn("dataset: zone locations unavailable, names omitted", zap.Error(err))
	} else {
		raw := make(map[string]string, len(rows))
		for _, r := range rows {
			if len(r) >= 2 {
				raw[r[0]] = r[1]
			}
		}
		t.ZoneNames = parseZoneNames(raw)
	}

	return NewSnapshot(t, s.loc, s.now()), nil
}

func (s *PostgresSource) queryTable(ctx context.Context, sql string) ([]string, [][]string, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, nil, eris.Wrap(err, "dataset: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	var out [][]string
	for rows.Next() {
		vals := make([]string, len(fields))
		dest := make([]any, len(fields))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, eris.Wrap(err, "dataset: scan row")
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "dataset: iterate rows")
	}
	return header, out, nil
}

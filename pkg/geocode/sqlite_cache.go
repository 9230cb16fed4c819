package geocode

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteCache persists geocode results in a local SQLite file.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache opens or creates the database at path and ensures the schema.
func NewSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open sqlite cache")
	}
	schema := `CREATE TABLE IF NOT EXISTS geocode_cache (
		query_hash   TEXT PRIMARY KEY,
		latitude     REAL NOT NULL,
		longitude    REAL NOT NULL,
		display_name TEXT NOT NULL,
		place_type   TEXT NOT NULL,
		matched      INTEGER NOT NULL,
		expires_at   INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "geocode: create sqlite cache schema")
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

// Get implements Cache. Expired rows are misses.
func (c *SQLiteCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	var r Result
	var matched int
	err := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, display_name, place_type, matched
		FROM geocode_cache WHERE query_hash = ? AND expires_at > ?`,
		key, c.now().Unix(),
	).Scan(&r.Latitude, &r.Longitude, &r.DisplayName, &r.Type, &matched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: sqlite cache get")
	}
	r.Matched = matched == 1

	zap.L().Debug("geocode cache hit", zap.String("key", key[:min(12, len(key))]), zap.Bool("matched", r.Matched))
	return &r, true, nil
}

// Set implements Cache. A zero ttl stores without expiry.
func (c *SQLiteCache) Set(ctx context.Context, key string, r *Result, ttl time.Duration) error {
	expires := c.now().Add(ttl).Unix()
	if ttl <= 0 {
		expires = math.MaxInt64
	}
	matched := 0
	if r.Matched {
		matched = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (query_hash, latitude, longitude, display_name, place_type, matched, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			display_name = excluded.display_name,
			place_type = excluded.place_type,
			matched = excluded.matched,
			expires_at = excluded.expires_at`,
		key, r.Latitude, r.Longitude, r.DisplayName, r.Type, matched, expires,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: sqlite cache set")
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error { return c.db.Close() }

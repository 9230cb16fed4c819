package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Cache stores geocode results by key. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, r *Result, ttl time.Duration) error
	Close() error
}

// OpenCache opens the cache backend named by driver ("sqlite" or "redis").
// "none" and "" return a nil Cache.
func OpenCache(ctx context.Context, driver, dsn string) (Cache, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		c, err := NewSQLiteCache(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "redis":
		c, err := NewRedisCache(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, eris.Errorf("geocode: unknown cache driver %q", driver)
	}
}

// cacheKey returns SHA-256 hex of the normalized query and the search
// restrictions that shape its answer.
func cacheKey(query, countryCodes, viewbox string) string {
	normalized := fmt.Sprintf("%s|%s|%s",
		strings.Join(strings.Fields(strings.ToLower(query)), " "),
		strings.ToLower(strings.TrimSpace(countryCodes)),
		strings.TrimSpace(viewbox),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

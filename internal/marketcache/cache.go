// Package marketcache provides persistent TTL caching for market data and
// recommendations. Payloads are stored as JSON blobs with expiration
// timestamps; every kind carries its own time-to-live.
package marketcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies a cached data category. Each kind maps to its own table
// and TTL.
type Kind string

const (
	KindQuote          Kind = "quote"
	KindDetails        Kind = "details"
	KindHistorical     Kind = "historical"
	KindSearch         Kind = "search"
	KindRecommendation Kind = "recommendation"
)

// AllKinds lists every cache kind, used by cleanup operations.
var AllKinds = []Kind{
	KindQuote,
	KindDetails,
	KindHistorical,
	KindSearch,
	KindRecommendation,
}

// DefaultTTLs holds the per-kind time-to-live used when no override is given.
var DefaultTTLs = map[Kind]time.Duration{
	KindQuote:          time.Minute,        // Real-time data needs frequent refresh
	KindDetails:        5 * time.Minute,    // Fundamentals change less often
	KindHistorical:     time.Hour,          // Historical series are near-static
	KindSearch:         10 * time.Minute,   // Search results are relatively stable
	KindRecommendation: 15 * time.Minute,   // AI analysis freshness window
}

// kindTables maps kinds to table names. Indirection prevents SQL injection
// through table names; only listed kinds are queryable.
var kindTables = map[Kind]string{
	KindQuote:          "quote_cache",
	KindDetails:        "details_cache",
	KindHistorical:     "historical_cache",
	KindSearch:         "search_cache",
	KindRecommendation: "recommendation_cache",
}

// Config holds cache construction options.
type Config struct {
	TTLs map[Kind]time.Duration // Optional per-kind overrides
	Now  func() time.Time       // Clock source, defaults to time.Now
}

// Cache is a persistent, per-kind expiring cache. A single *sql.DB keeps
// Get/Set/GetStale atomic with respect to each other.
type Cache struct {
	db   *sql.DB
	ttls map[Kind]time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

// New creates a cache over the given cache database connection.
func New(db *sql.DB, cfg Config, log zerolog.Logger) *Cache {
	ttls := make(map[Kind]time.Duration, len(DefaultTTLs))
	for kind, ttl := range DefaultTTLs {
		ttls[kind] = ttl
	}
	for kind, ttl := range cfg.TTLs {
		ttls[kind] = ttl
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		db:   db,
		ttls: ttls,
		now:  now,
		log:  log.With().Str("component", "marketcache").Logger(),
	}
}

// TTL returns the time-to-live configured for a kind.
func (c *Cache) TTL(kind Kind) time.Duration {
	return c.ttls[kind]
}

func tableFor(kind Kind) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown cache kind: %s", kind)
	}
	return table, nil
}

// Set serializes the payload and upserts it with expires_at = now + ttl[kind].
func (c *Cache) Set(kind Kind, key string, payload interface{}) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	expiresAt := c.now().Add(c.ttls[kind]).Unix()

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (key, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := c.db.Exec(query, key, string(data), expiresAt); err != nil {
		return fmt.Errorf("failed to store %s cache entry: %w", kind, err)
	}

	return nil
}

// Get returns the payload only while now < expires_at. An expired row is
// deleted on read and reported as a miss. Returns nil, nil on miss.
func (c *Cache) Get(kind Kind, key string) (json.RawMessage, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var data string
	var expiresAt int64
	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE key = ?", table)
	err = c.db.QueryRow(query, key).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s cache entry: %w", kind, err)
	}

	if c.now().Unix() >= expiresAt {
		// Lazy eviction
		del := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
		if _, err := c.db.Exec(del, key); err != nil {
			c.log.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("Failed to evict expired cache entry")
		}
		return nil, nil
	}

	return json.RawMessage(data), nil
}

// GetStale returns the payload regardless of expiration. Used as the
// degraded-mode fallback when the upstream provider is unreachable; stale
// data is better than no data. Returns nil, nil when the key is absent.
func (c *Cache) GetStale(kind Kind, key string) (json.RawMessage, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ?", table)
	err = c.db.QueryRow(query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s cache entry: %w", kind, err)
	}

	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (c *Cache) Delete(kind Kind, key string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
	if _, err := c.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete %s cache entry: %w", kind, err)
	}

	return nil
}

// DeleteExpired removes all rows of a kind whose expires_at has passed.
// Returns the number of rows deleted.
func (c *Cache) DeleteExpired(kind Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := c.db.Exec(query, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired %s entries: %w", kind, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", kind, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes expired entries from every kind.
// Returns a map of kind to number of rows deleted.
func (c *Cache) DeleteAllExpired() (map[Kind]int64, error) {
	results := make(map[Kind]int64)

	for _, kind := range AllKinds {
		deleted, err := c.DeleteExpired(kind)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired %s entries: %w", kind, err)
		}
		results[kind] = deleted
	}

	return results, nil
}

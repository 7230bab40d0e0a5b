package marketcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarques/stockfolio/internal/database"
)

type cacheFixture struct {
	cache *Cache
	now   time.Time
}

func (f *cacheFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupCache(t *testing.T, ttls map[Kind]time.Duration) *cacheFixture {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	f := &cacheFixture{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	log := zerolog.New(nil).Level(zerolog.Disabled)
	f.cache = New(db.Conn(), Config{TTLs: ttls, Now: func() time.Time { return f.now }}, log)

	return f
}

type payload struct {
	Price string `json:"price"`
}

func TestGet_TTLBoundary(t *testing.T) {
	f := setupCache(t, nil)

	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "150.00"}))

	// One second before expiry: hit.
	f.advance(59 * time.Second)
	raw, err := f.cache.Get(KindQuote, "AAPL")
	require.NoError(t, err)
	assert.NotNil(t, raw)

	// At expiry: miss, and the row is evicted.
	f.advance(1 * time.Second)
	raw, err = f.cache.Get(KindQuote, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGetStale_SurvivesExpiry(t *testing.T) {
	f := setupCache(t, nil)

	require.NoError(t, f.cache.Set(KindDetails, "AAPL", payload{Price: "150.00"}))
	f.advance(24 * time.Hour)

	raw, err := f.cache.GetStale(KindDetails, "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"150.00"}`, string(raw))

	// But a fresh Get has evicted nothing yet; GetStale must not be
	// affected by the lazy eviction path either until Get runs.
	fresh, err := f.cache.Get(KindDetails, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	raw, err = f.cache.GetStale(KindDetails, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, raw, "Get's eviction removes the stale copy too")
}

func TestSet_ResetsTTL(t *testing.T) {
	f := setupCache(t, nil)

	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "150.00"}))
	f.advance(50 * time.Second)
	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "151.00"}))

	// 50s after the rewrite the original TTL would have lapsed.
	f.advance(50 * time.Second)
	raw, err := f.cache.Get(KindQuote, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.JSONEq(t, `{"price":"151.00"}`, string(raw))
}

func TestTTL_Overrides(t *testing.T) {
	f := setupCache(t, map[Kind]time.Duration{KindQuote: 5 * time.Second})

	assert.Equal(t, 5*time.Second, f.cache.TTL(KindQuote))
	assert.Equal(t, 5*time.Minute, f.cache.TTL(KindDetails), "unoverridden kinds keep defaults")

	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "1"}))
	f.advance(6 * time.Second)
	raw, err := f.cache.Get(KindQuote, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestKindsAreIsolated(t *testing.T) {
	f := setupCache(t, nil)

	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "1"}))
	require.NoError(t, f.cache.Set(KindDetails, "AAPL", payload{Price: "2"}))

	require.NoError(t, f.cache.Delete(KindQuote, "AAPL"))

	raw, err := f.cache.Get(KindDetails, "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"2"}`, string(raw))
}

func TestDeleteAllExpired(t *testing.T) {
	f := setupCache(t, nil)

	require.NoError(t, f.cache.Set(KindQuote, "AAPL", payload{Price: "1"}))      // 1m TTL
	require.NoError(t, f.cache.Set(KindQuote, "MSFT", payload{Price: "2"}))      // 1m TTL
	require.NoError(t, f.cache.Set(KindHistorical, "AAPL:1mo", payload{}))       // 1h TTL
	require.NoError(t, f.cache.Set(KindRecommendation, "AAPL", payload{}))       // 15m TTL

	f.advance(20 * time.Minute)
	deleted, err := f.cache.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(2), deleted[KindQuote])
	assert.Equal(t, int64(1), deleted[KindRecommendation])
	assert.Equal(t, int64(0), deleted[KindHistorical])

	raw, err := f.cache.GetStale(KindHistorical, "AAPL:1mo")
	require.NoError(t, err)
	assert.NotNil(t, raw, "unexpired entries survive cleanup")
}

func TestUnknownKindRejected(t *testing.T) {
	f := setupCache(t, nil)

	err := f.cache.Set(Kind("bogus"), "k", payload{})
	assert.Error(t, err)

	_, err = f.cache.Get(Kind("bogus"), "k")
	assert.Error(t, err)
}

package recommendations

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarques/stockfolio/internal/clients/gemini"
	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/marketcache"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
)

type mockMarket struct {
	detailsFn func(symbol string) (*marketdata.Details, error)
	historyFn func(symbol, period string) (*marketdata.History, error)
}

func (m *mockMarket) Details(_ context.Context, symbol string) (*marketdata.Details, error) {
	return m.detailsFn(symbol)
}

func (m *mockMarket) History(_ context.Context, symbol, period string) (*marketdata.History, error) {
	if m.historyFn == nil {
		return nil, domain.E(domain.KindNoHistoricalData, "no history")
	}
	return m.historyFn(symbol, period)
}

type mockAnalyzer struct {
	calls   int
	prompts []string
	fn      func(prompt string) (*gemini.StockAnalysis, error)
}

func (m *mockAnalyzer) Analyze(_ context.Context, prompt string) (*gemini.StockAnalysis, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.fn(prompt)
}

// memStore is an in-memory Store with no clock of its own; tests control
// staleness through the payloads they seed and by marking entries expired.
type memStore struct {
	entries map[string][]byte
	expired map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[string][]byte),
		expired: make(map[string]bool),
	}
}

func (s *memStore) key(kind marketcache.Kind, key string) string {
	return string(kind) + ":" + key
}

// expire hides an entry from Get while keeping it visible to GetStale,
// matching the real cache past an entry's TTL.
func (s *memStore) expire(kind marketcache.Kind, key string) {
	s.expired[s.key(kind, key)] = true
}

func (s *memStore) Get(kind marketcache.Kind, key string) (json.RawMessage, error) {
	k := s.key(kind, key)
	if s.expired[k] {
		return nil, nil
	}
	return s.entries[k], nil
}

func (s *memStore) GetStale(kind marketcache.Kind, key string) (json.RawMessage, error) {
	return s.entries[s.key(kind, key)], nil
}

func (s *memStore) Set(kind marketcache.Kind, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.entries[s.key(kind, key)] = data
	return nil
}

func (s *memStore) TTL(marketcache.Kind) time.Duration {
	return 15 * time.Minute
}

func goodDetails() *marketdata.Details {
	return &marketdata.Details{
		Symbol:        "AAPL",
		Name:          "Apple Inc",
		Price:         decimal.RequireFromString("150.00"),
		PreviousClose: decimal.RequireFromString("148.00"),
		Change:        decimal.RequireFromString("2.00"),
		ChangePercent: decimal.RequireFromString("1.35"),
		Volume:        1000000,
	}
}

func goodAnalysis(score int) *gemini.StockAnalysis {
	return &gemini.StockAnalysis{
		Score:     score,
		Reasoning: "momentum looks strong",
		Factors: []gemini.Factor{
			{Name: "trend", Impact: "positive", Description: "price above moving average"},
		},
	}
}

type engineFixture struct {
	service  *Service
	market   *mockMarket
	analyzer *mockAnalyzer
	store    *memStore
	now      time.Time
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		market:   &mockMarket{},
		analyzer: &mockAnalyzer{},
		store:    newMemStore(),
		now:      time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
	}
	f.market.detailsFn = func(string) (*marketdata.Details, error) { return goodDetails(), nil }
	f.analyzer.fn = func(string) (*gemini.StockAnalysis, error) { return goodAnalysis(80), nil }

	log := zerolog.New(nil).Level(zerolog.Disabled)
	f.service = NewService(f.market, f.analyzer, f.store, log)
	f.service.now = func() time.Time { return f.now }

	return f
}

func TestRecommend_FreshPath(t *testing.T) {
	f := setupEngine(t)

	rec, err := f.service.Recommend(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, ActionBuy, rec.Recommendation)
	assert.Equal(t, 80, rec.Score)
	assert.False(t, rec.IsStale)
	assert.Equal(t, f.now, rec.CalculatedAt)

	// The prompt carries the market snapshot.
	require.Len(t, f.analyzer.prompts, 1)
	assert.Contains(t, f.analyzer.prompts[0], "Current price: 150.00")
	assert.Contains(t, f.analyzer.prompts[0], "Previous close: 148.00")
}

func TestRecommend_CachedWithinWindow(t *testing.T) {
	f := setupEngine(t)

	first, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	second, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, f.analyzer.calls, "cached result must not re-run analysis")
	assert.Equal(t, first.Score, second.Score)
	assert.False(t, second.IsStale)
}

// TestRecommend_StalenessRecomputedOnRead seeds a cached entry whose stored
// flag says fresh; past the freshness window the read must override it.
func TestRecommend_StalenessRecomputedOnRead(t *testing.T) {
	f := setupEngine(t)

	seeded := &Recommendation{
		Symbol:         "AAPL",
		Recommendation: ActionHold,
		Score:          50,
		Reasoning:      "sideways",
		Factors:        []gemini.Factor{{Name: "range", Impact: "neutral", Description: "flat"}},
		CalculatedAt:   f.now.Add(-16 * time.Minute),
		IsStale:        false,
	}
	require.NoError(t, f.store.Set(marketcache.KindRecommendation, "AAPL", seeded))

	rec, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, rec.IsStale)
	assert.Equal(t, 50, rec.Score)
	assert.Equal(t, 0, f.analyzer.calls)
}

// TestRecommend_ProviderDownServesLastRecommendation covers the primary
// degraded path: an expired cached recommendation is served as-is, flagged
// stale, with no analysis call, even when no stale details exist.
func TestRecommend_ProviderDownServesLastRecommendation(t *testing.T) {
	f := setupEngine(t)

	seeded := &Recommendation{
		Symbol:         "AAPL",
		Recommendation: ActionHold,
		Score:          55,
		Reasoning:      "range-bound",
		Factors:        []gemini.Factor{{Name: "range", Impact: "neutral", Description: "flat"}},
		CalculatedAt:   f.now.Add(-2 * time.Hour),
		IsStale:        false,
	}
	require.NoError(t, f.store.Set(marketcache.KindRecommendation, "AAPL", seeded))
	f.store.expire(marketcache.KindRecommendation, "AAPL")
	f.market.detailsFn = func(string) (*marketdata.Details, error) {
		return nil, domain.E(domain.KindProviderUnavailable, "upstream down")
	}

	rec, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, rec.IsStale)
	assert.Equal(t, 55, rec.Score)
	assert.Equal(t, ActionHold, rec.Recommendation)
	assert.Equal(t, seeded.CalculatedAt, rec.CalculatedAt)
	assert.Equal(t, 0, f.analyzer.calls, "cached recommendation must not re-run analysis")
}

// TestRecommend_StaleRecommendationBeatsStaleDetails pins the precedence:
// with both caches populated, the old recommendation wins over a fresh
// analysis of old details.
func TestRecommend_StaleRecommendationBeatsStaleDetails(t *testing.T) {
	f := setupEngine(t)

	seeded := &Recommendation{
		Symbol:         "AAPL",
		Recommendation: ActionSell,
		Score:          20,
		Reasoning:      "deteriorating",
		Factors:        []gemini.Factor{{Name: "trend", Impact: "negative", Description: "lower lows"}},
		CalculatedAt:   f.now.Add(-time.Hour),
	}
	require.NoError(t, f.store.Set(marketcache.KindRecommendation, "AAPL", seeded))
	f.store.expire(marketcache.KindRecommendation, "AAPL")
	require.NoError(t, f.store.Set(marketcache.KindDetails, "AAPL", goodDetails()))
	f.market.detailsFn = func(string) (*marketdata.Details, error) {
		return nil, domain.E(domain.KindProviderUnavailable, "upstream down")
	}

	rec, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Score)
	assert.True(t, rec.IsStale)
	assert.Equal(t, 0, f.analyzer.calls)
}

// TestRecommend_StaleDetailsFallback covers the secondary degraded path:
// no prior recommendation exists, so yesterday's details feed one analysis.
func TestRecommend_StaleDetailsFallback(t *testing.T) {
	f := setupEngine(t)

	require.NoError(t, f.store.Set(marketcache.KindDetails, "AAPL", goodDetails()))
	f.market.detailsFn = func(string) (*marketdata.Details, error) {
		return nil, domain.E(domain.KindProviderUnavailable, "upstream down")
	}

	rec, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, rec.IsStale, "result from stale market data must be flagged")
	assert.Equal(t, 1, f.analyzer.calls)
}

func TestRecommend_NoDataAnywhere(t *testing.T) {
	f := setupEngine(t)
	f.market.detailsFn = func(string) (*marketdata.Details, error) {
		return nil, domain.E(domain.KindProviderUnavailable, "upstream down")
	}

	_, err := f.service.Recommend(context.Background(), "AAPL")
	assert.True(t, domain.Is(err, domain.KindMarketDataUnavailable))
	assert.Equal(t, 0, f.analyzer.calls)
}

func TestRecommend_UnknownSymbolPropagates(t *testing.T) {
	f := setupEngine(t)
	f.market.detailsFn = func(string) (*marketdata.Details, error) {
		return nil, domain.E(domain.KindSymbolNotFound, "no such symbol")
	}
	// Even with stale details present, an unknown symbol is not served.
	require.NoError(t, f.store.Set(marketcache.KindDetails, "FAKE", goodDetails()))

	_, err := f.service.Recommend(context.Background(), "FAKE")
	assert.True(t, domain.Is(err, domain.KindSymbolNotFound))
}

func TestRecommend_AnalyzerFailure(t *testing.T) {
	f := setupEngine(t)
	f.analyzer.fn = func(string) (*gemini.StockAnalysis, error) {
		return nil, domain.E(domain.KindRecommendationUnavailable, "model returned garbage")
	}

	_, err := f.service.Recommend(context.Background(), "AAPL")
	assert.True(t, domain.Is(err, domain.KindRecommendationUnavailable))
}

func TestRecommend_ScoreBands(t *testing.T) {
	testCases := []struct {
		score  int
		action Action
	}{
		{0, ActionSell},
		{33, ActionSell},
		{34, ActionHold},
		{66, ActionHold},
		{67, ActionBuy},
		{100, ActionBuy},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.action, actionFor(tc.score), "score %d", tc.score)
	}
}

func TestRecommend_IndicatorsEnrichPrompt(t *testing.T) {
	f := setupEngine(t)
	f.market.historyFn = func(_, period string) (*marketdata.History, error) {
		assert.Equal(t, "3mo", period)
		points := make([]marketdata.PricePoint, 30)
		base := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
		for i := range points {
			points[i] = marketdata.PricePoint{
				Time:  base.AddDate(0, 0, i),
				Close: decimal.NewFromFloat(100 + float64(i)),
			}
		}
		return &marketdata.History{Symbol: "AAPL", Period: period, Points: points}, nil
	}

	_, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Len(t, f.analyzer.prompts, 1)
	assert.Contains(t, f.analyzer.prompts[0], "20-day SMA:")
	assert.Contains(t, f.analyzer.prompts[0], "14-day RSI:")
	assert.Contains(t, f.analyzer.prompts[0], "Annualized volatility:")
}

func TestRecommend_HistoryFailureDoesNotBlock(t *testing.T) {
	f := setupEngine(t)
	// Default mockMarket history returns an error; the recommendation must
	// still come through, just without the indicator block.
	rec, err := f.service.Recommend(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 80, rec.Score)
	assert.NotContains(t, f.analyzer.prompts[0], "Technical indicators:")
}

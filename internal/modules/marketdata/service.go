// Package marketdata fronts the upstream market-data provider with the
// persistent TTL cache. Every read is cache-first; the provider is only
// hit on a miss, and results are cached strictly after the remote call
// returns.
package marketdata

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/clients/alphavantage"
	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/marketcache"
	"github.com/dmarques/stockfolio/internal/modules/marketclock"
)

// Provider is the upstream market-data API surface the gateway needs.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*alphavantage.GlobalQuote, error)
	CompanyOverview(ctx context.Context, symbol string) (*alphavantage.Overview, error)
	Search(ctx context.Context, query string) ([]alphavantage.SearchMatch, error)
	DailySeries(ctx context.Context, symbol string, full bool) ([]alphavantage.Candle, error)
	IntradaySeries(ctx context.Context, symbol string) ([]alphavantage.Candle, error)
}

// Quote is the real-time price snapshot served to clients.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// Details combines the quote with fundamentals and the market session.
// Pointer fields are nil when the provider reports no value.
type Details struct {
	Symbol        string                   `json:"symbol"`
	Name          string                   `json:"name"`
	Price         decimal.Decimal          `json:"price"`
	PreviousClose decimal.Decimal          `json:"previous_close"`
	Change        decimal.Decimal          `json:"change"`
	ChangePercent decimal.Decimal          `json:"change_percent"`
	Volume        int64                    `json:"volume"`
	DayHigh       decimal.Decimal          `json:"day_high"`
	DayLow        decimal.Decimal          `json:"day_low"`
	MarketCap     *decimal.Decimal         `json:"market_cap"`
	PERatio       *decimal.Decimal         `json:"pe_ratio"`
	DividendYield *decimal.Decimal         `json:"dividend_yield"`
	MarketSession marketclock.SessionState `json:"market_session"`
	ObservedAt    time.Time                `json:"observed_at"`
}

// SearchResult is one symbol-search hit, in provider relevance order.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Region string `json:"region"`
}

// PricePoint is one OHLCV observation in a history series.
type PricePoint struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// History is an ascending price series for one symbol over one period.
type History struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Points []PricePoint `json:"points"`
}

// periodWindows maps a request period to the trailing window applied to
// the daily series. 1d is absent: it is served from the intraday series.
var periodWindows = map[string]time.Duration{
	"5d":  10 * 24 * time.Hour,
	"1mo": 30 * 24 * time.Hour,
	"3mo": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
	"5y":  1825 * 24 * time.Hour,
}

// fullSeriesPeriods need the provider's full output size; the compact
// response only covers roughly the last hundred trading days.
var fullSeriesPeriods = map[string]bool{
	"1y": true,
	"5y": true,
}

// Service is the market-data gateway.
type Service struct {
	provider Provider
	cache    *marketcache.Cache
	clock    *marketclock.Service
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates the gateway over a provider, the TTL cache, and the
// market clock.
func NewService(provider Provider, cache *marketcache.Cache, clock *marketclock.Service, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		clock:    clock,
		now:      time.Now,
		log:      log.With().Str("service", "marketdata").Logger(),
	}
}

// Quote returns the current quote for a symbol, cache-first.
func (s *Service) Quote(ctx context.Context, symbol string) (*Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var cached Quote
	if hit, err := s.cached(marketcache.KindQuote, symbol, &cached); err == nil && hit {
		return &cached, nil
	}

	raw, err := s.provider.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Symbol:        raw.Symbol,
		Price:         raw.Price,
		Change:        raw.Change,
		ChangePercent: raw.ChangePercent,
		ObservedAt:    s.now().UTC(),
	}
	s.store(marketcache.KindQuote, symbol, quote)

	return quote, nil
}

// Details returns the quote plus fundamentals and the market session.
func (s *Service) Details(ctx context.Context, symbol string) (*Details, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var cached Details
	if hit, err := s.cached(marketcache.KindDetails, symbol, &cached); err == nil && hit {
		// Session status is a function of the clock, not of the cached
		// payload.
		cached.MarketSession = s.clock.Status(s.now())
		return &cached, nil
	}

	quote, err := s.provider.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	overview, err := s.provider.CompanyOverview(ctx, symbol)
	if err != nil {
		// Fundamentals are additive; a quote without them is still useful.
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Company overview unavailable, serving quote only")
		overview = &alphavantage.Overview{}
	}

	details := &Details{
		Symbol:        quote.Symbol,
		Name:          overview.Name,
		Price:         quote.Price,
		PreviousClose: quote.PreviousClose,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		DayHigh:       quote.DayHigh,
		DayLow:        quote.DayLow,
		MarketCap:     overview.MarketCap,
		PERatio:       overview.PERatio,
		DividendYield: overview.DividendYield,
		ObservedAt:    s.now().UTC(),
	}
	s.store(marketcache.KindDetails, symbol, details)

	details.MarketSession = s.clock.Status(s.now())
	return details, nil
}

// Search returns symbol matches for a free-text query, truncated to limit
// after the cache read so one cached result set serves any limit.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.E(domain.KindInvalidRequest, "search query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	key := strings.ToLower(query)

	var results []SearchResult
	hit, err := s.cached(marketcache.KindSearch, key, &results)
	if err != nil || !hit {
		matches, err := s.provider.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		results = make([]SearchResult, 0, len(matches))
		for _, m := range matches {
			results = append(results, SearchResult{
				Symbol: m.Symbol,
				Name:   m.Name,
				Type:   m.Type,
				Region: m.Region,
			})
		}
		s.store(marketcache.KindSearch, key, results)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// History returns an ascending OHLCV series for one of the supported
// periods: 1d, 5d, 1mo, 3mo, 1y, 5y.
func (s *Service) History(ctx context.Context, symbol, period string) (*History, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "1mo"
	}
	if period != "1d" {
		if _, ok := periodWindows[period]; !ok {
			return nil, domain.E(domain.KindInvalidRequest, "unsupported period: %s", period)
		}
	}

	key := symbol + ":" + period

	var cached History
	if hit, err := s.cached(marketcache.KindHistorical, key, &cached); err == nil && hit {
		cached.Points = s.windowed(cached.Points, period)
		if len(cached.Points) > 0 {
			return &cached, nil
		}
		// The whole cached series aged out of the window; refetch.
	}

	var candles []alphavantage.Candle
	if period == "1d" {
		candles, err = s.provider.IntradaySeries(ctx, symbol)
	} else {
		candles, err = s.provider.DailySeries(ctx, symbol, fullSeriesPeriods[period])
	}
	if err != nil {
		return nil, err
	}

	points := make([]PricePoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, PricePoint{
			Time:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	points = s.windowed(points, period)
	if len(points) == 0 {
		return nil, domain.E(domain.KindNoHistoricalData, "no historical data for %s over %s", symbol, period)
	}

	history := &History{Symbol: symbol, Period: period, Points: points}
	s.store(marketcache.KindHistorical, key, history)

	return history, nil
}

// windowed keeps the points inside the trailing window for a period.
// Input is ascending and stays ascending.
func (s *Service) windowed(points []PricePoint, period string) []PricePoint {
	window, ok := periodWindows[period]
	if !ok {
		window = 24 * time.Hour // 1d
	}
	cutoff := s.now().Add(-window)

	for i, p := range points {
		if !p.Time.Before(cutoff) {
			return points[i:]
		}
	}
	return nil
}

// cached reads and unmarshals a cache entry. A decode failure is treated
// as a miss; the entry will be overwritten by the next store.
func (s *Service) cached(kind marketcache.Kind, key string, out interface{}) (bool, error) {
	raw, err := s.cache.Get(kind, key)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("Cache read failed")
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("Discarding undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// store writes a cache entry. Failures are logged, never propagated; the
// response the user is waiting on is already in hand.
func (s *Service) store(kind marketcache.Kind, key string, payload interface{}) {
	if err := s.cache.Set(kind, key, payload); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("Cache write failed")
	}
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", domain.E(domain.KindInvalidRequest, "symbol is required")
	}
	return symbol, nil
}

// Package recommendations produces AI stock recommendations from current
// market data, with cached results and a stale-data degraded mode.
package recommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/dmarques/stockfolio/internal/clients/gemini"
	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/marketcache"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
)

// Action is the trading stance derived from the analysis score.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionHold Action = "hold"
	ActionSell Action = "sell"
)

// Recommendation is a scored stance on one symbol. IsStale marks results
// computed from expired market data or aged past the freshness window.
type Recommendation struct {
	Symbol         string          `json:"symbol"`
	Recommendation Action          `json:"recommendation"`
	Score          int             `json:"score"`
	Reasoning      string          `json:"reasoning"`
	Factors        []gemini.Factor `json:"factors"`
	CalculatedAt   time.Time       `json:"calculated_at"`
	IsStale        bool            `json:"is_stale"`
}

// MarketData is the slice of the market-data gateway the engine consumes.
type MarketData interface {
	Details(ctx context.Context, symbol string) (*marketdata.Details, error)
	History(ctx context.Context, symbol, period string) (*marketdata.History, error)
}

// Analyzer produces a structured analysis from a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (*gemini.StockAnalysis, error)
}

// Store is the cache surface the engine needs, including the stale read
// used in degraded mode.
type Store interface {
	Get(kind marketcache.Kind, key string) (json.RawMessage, error)
	GetStale(kind marketcache.Kind, key string) (json.RawMessage, error)
	Set(kind marketcache.Kind, key string, payload interface{}) error
	TTL(kind marketcache.Kind) time.Duration
}

// Service is the recommendation engine.
type Service struct {
	market   MarketData
	analyzer Analyzer
	cache    Store
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates the recommendation engine.
func NewService(market MarketData, analyzer Analyzer, cache Store, log zerolog.Logger) *Service {
	return &Service{
		market:   market,
		analyzer: analyzer,
		cache:    cache,
		now:      time.Now,
		log:      log.With().Str("service", "recommendations").Logger(),
	}
}

// Recommend returns the recommendation for a symbol, computing a fresh one
// when the cached copy is missing or expired.
func (s *Service) Recommend(ctx context.Context, symbol string) (*Recommendation, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, domain.E(domain.KindInvalidRequest, "symbol is required")
	}

	if cached := s.fromCache(symbol); cached != nil {
		return cached, nil
	}

	details, err := s.market.Details(ctx, symbol)
	if err != nil {
		if domain.Is(err, domain.KindSymbolNotFound) || domain.Is(err, domain.KindInvalidRequest) {
			return nil, err
		}
		return s.degraded(ctx, symbol, err)
	}

	return s.compute(ctx, symbol, details, false)
}

// compute runs the analysis over the given market snapshot and caches the
// result. stale marks results built from expired market data.
func (s *Service) compute(ctx context.Context, symbol string, details *marketdata.Details, stale bool) (*Recommendation, error) {
	prompt := s.buildPrompt(ctx, symbol, details)

	analysis, err := s.analyzer.Analyze(ctx, prompt)
	if err != nil {
		return nil, domain.Wrap(domain.KindRecommendationUnavailable, err, "analysis failed for %s", symbol)
	}

	rec := &Recommendation{
		Symbol:         symbol,
		Recommendation: actionFor(analysis.Score),
		Score:          analysis.Score,
		Reasoning:      analysis.Reasoning,
		Factors:        analysis.Factors,
		CalculatedAt:   s.now().UTC(),
		IsStale:        stale,
	}

	if err := s.cache.Set(marketcache.KindRecommendation, symbol, rec); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache recommendation")
	}

	s.log.Info().Str("symbol", symbol).Int("score", rec.Score).
		Str("action", string(rec.Recommendation)).Bool("stale", rec.IsStale).
		Msg("Recommendation computed")

	return rec, nil
}

// fromCache returns a cached recommendation with its staleness recomputed
// against the freshness window. The stored flag is never trusted: an entry
// written fresh fifteen minutes ago is stale now.
func (s *Service) fromCache(symbol string) *Recommendation {
	raw, err := s.cache.Get(marketcache.KindRecommendation, symbol)
	if err != nil || raw == nil {
		return nil
	}

	var rec Recommendation
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Discarding undecodable cached recommendation")
		return nil
	}

	if s.now().UTC().Sub(rec.CalculatedAt) > s.cache.TTL(marketcache.KindRecommendation) {
		rec.IsStale = true
	}
	return &rec
}

// degraded handles a provider failure. The last cached recommendation is
// served first, flagged stale; only when none exists is a fresh analysis
// attempted over stale cached details. cause is the provider error.
func (s *Service) degraded(ctx context.Context, symbol string, cause error) (*Recommendation, error) {
	s.log.Warn().Err(cause).Str("symbol", symbol).Msg("Market data unavailable, serving from stale cache")

	if rec := s.staleRecommendation(symbol); rec != nil {
		return rec, nil
	}

	raw, err := s.cache.GetStale(marketcache.KindDetails, symbol)
	if err != nil || raw == nil {
		return nil, domain.Wrap(domain.KindMarketDataUnavailable, cause,
			"no market data available for %s", symbol)
	}

	var stale marketdata.Details
	if err := json.Unmarshal(raw, &stale); err != nil {
		return nil, domain.Wrap(domain.KindMarketDataUnavailable, err,
			"no market data available for %s", symbol)
	}

	return s.compute(ctx, symbol, &stale, true)
}

// staleRecommendation reads the cached recommendation regardless of expiry.
func (s *Service) staleRecommendation(symbol string) *Recommendation {
	raw, err := s.cache.GetStale(marketcache.KindRecommendation, symbol)
	if err != nil || raw == nil {
		return nil
	}

	var rec Recommendation
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Discarding undecodable cached recommendation")
		return nil
	}

	rec.IsStale = true
	return &rec
}

// buildPrompt renders the market snapshot the model is asked to judge. The
// indicator block is best-effort: a history failure drops it without
// failing the recommendation.
func (s *Service) buildPrompt(ctx context.Context, symbol string, details *marketdata.Details) string {
	var b strings.Builder

	name := details.Name
	if name == "" {
		name = symbol
	}

	fmt.Fprintf(&b, "Analyze the stock %s (%s).\n\n", symbol, name)
	fmt.Fprintf(&b, "Current price: %s\n", details.Price.StringFixed(2))
	fmt.Fprintf(&b, "Previous close: %s\n", details.PreviousClose.StringFixed(2))
	fmt.Fprintf(&b, "Change: %s (%s%%)\n", details.Change.StringFixed(2), details.ChangePercent.StringFixed(2))
	fmt.Fprintf(&b, "Volume: %d\n", details.Volume)
	if details.MarketCap != nil {
		fmt.Fprintf(&b, "Market cap: %s\n", details.MarketCap.String())
	}
	if details.PERatio != nil {
		fmt.Fprintf(&b, "P/E ratio: %s\n", details.PERatio.String())
	}

	if block := s.indicatorBlock(ctx, symbol); block != "" {
		b.WriteString("\nTechnical indicators:\n")
		b.WriteString(block)
	}

	b.WriteString("\nProvide a score from 0 to 100 with reasoning and the key factors.")
	return b.String()
}

// indicatorBlock computes SMA-20, RSI-14, and annualized volatility from
// the recent daily series. Returns "" when history is short or unavailable.
func (s *Service) indicatorBlock(ctx context.Context, symbol string) string {
	history, err := s.market.History(ctx, symbol, "3mo")
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("History unavailable, skipping indicators")
		return ""
	}

	closes := make([]float64, len(history.Points))
	for i, p := range history.Points {
		closes[i], _ = p.Close.Float64()
	}

	var b strings.Builder
	if len(closes) >= 20 {
		sma := talib.Sma(closes, 20)
		fmt.Fprintf(&b, "20-day SMA: %.2f\n", sma[len(sma)-1])
	}
	if len(closes) >= 15 {
		rsi := talib.Rsi(closes, 14)
		fmt.Fprintf(&b, "14-day RSI: %.2f\n", rsi[len(rsi)-1])
	}
	if vol, ok := annualizedVolatility(closes); ok {
		fmt.Fprintf(&b, "Annualized volatility: %.1f%%\n", vol*100)
	}

	return b.String()
}

// annualizedVolatility is the sample standard deviation of daily log
// returns scaled by sqrt(252 trading days).
func annualizedVolatility(closes []float64) (float64, bool) {
	if len(closes) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0, false
	}

	return stat.StdDev(returns, nil) * math.Sqrt(252), true
}

func actionFor(score int) Action {
	switch {
	case score <= 33:
		return ActionSell
	case score <= 66:
		return ActionHold
	default:
		return ActionBuy
	}
}

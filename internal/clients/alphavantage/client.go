// Package alphavantage provides a client for the Alpha Vantage market data API.
package alphavantage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/domain"
)

// requestsPerDay is the free-tier daily request budget. The client refuses
// requests past the budget so the upstream never sees them; the counter is
// reset by a daily cron job.
const requestsPerDay = 25

// GlobalQuote holds the real-time quote fields returned by GLOBAL_QUOTE.
type GlobalQuote struct {
	Symbol        string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	DayHigh       decimal.Decimal
	DayLow        decimal.Decimal
}

// Overview holds company fundamentals returned by OVERVIEW. Optional fields
// are nil when the provider reports no value.
type Overview struct {
	Name          string
	MarketCap     *decimal.Decimal
	PERatio       *decimal.Decimal
	DividendYield *decimal.Decimal
}

// SearchMatch is a single SYMBOL_SEARCH result.
type SearchMatch struct {
	Symbol string
	Name   string
	Type   string
	Region string
}

// Candle is one OHLCV point of a time series.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Client for the Alpha Vantage API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger

	mu           sync.Mutex
	requestCount int
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// GetRemainingRequests returns the requests left in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return requestsPerDay - c.requestCount
}

// ResetDailyCounter resets the daily request counter. Scheduled via cron at
// midnight UTC.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.log.Info().Msg("Daily request counter reset")
}

func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestCount >= requestsPerDay {
		return domain.E(domain.KindRateLimited, "daily request budget of %d exhausted", requestsPerDay)
	}
	c.requestCount++
	return nil
}

// doRequest performs a GET against the API with the given query params.
func (c *Client) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("apikey", c.apiKey)

	reqURL := c.baseURL + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to build provider request")
	}

	c.log.Debug().Str("function", params["function"]).Msg("Fetching from provider")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.E(domain.KindProviderUnavailable, "provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to read provider response")
	}

	return body, nil
}

// Quote fetches the real-time quote for a symbol via GLOBAL_QUOTE.
func (c *Client) Quote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	body, err := c.doRequest(ctx, map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to parse quote response")
	}

	if len(payload.GlobalQuote) == 0 {
		return nil, domain.E(domain.KindSymbolNotFound, "stock symbol '%s' not found", symbol)
	}

	q := payload.GlobalQuote
	quote := &GlobalQuote{
		Symbol:        strings.ToUpper(symbol),
		Price:         parseDecimal(q["05. price"]),
		PreviousClose: parseDecimal(q["08. previous close"]),
		Change:        parseDecimal(q["09. change"]),
		ChangePercent: parseDecimal(strings.TrimSuffix(q["10. change percent"], "%")),
		DayHigh:       parseDecimal(q["03. high"]),
		DayLow:        parseDecimal(q["04. low"]),
	}
	if v, err := strconv.ParseInt(q["06. volume"], 10, 64); err == nil {
		quote.Volume = v
	}

	return quote, nil
}

// CompanyOverview fetches fundamentals for a symbol via OVERVIEW. Missing or
// "None" values are tolerated; the provider omits them for ETFs and small caps.
func (c *Client) CompanyOverview(ctx context.Context, symbol string) (*Overview, error) {
	body, err := c.doRequest(ctx, map[string]string{
		"function": "OVERVIEW",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Name          string `json:"Name"`
		MarketCap     string `json:"MarketCapitalization"`
		PERatio       string `json:"PERatio"`
		DividendYield string `json:"DividendYield"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to parse overview response")
	}

	return &Overview{
		Name:          payload.Name,
		MarketCap:     parseOptionalDecimal(payload.MarketCap),
		PERatio:       parseOptionalDecimal(payload.PERatio),
		DividendYield: parseOptionalDecimal(payload.DividendYield),
	}, nil
}

// Search looks up symbols by keyword via SYMBOL_SEARCH.
func (c *Client) Search(ctx context.Context, query string) ([]SearchMatch, error) {
	body, err := c.doRequest(ctx, map[string]string{
		"function": "SYMBOL_SEARCH",
		"keywords": query,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		BestMatches []map[string]string `json:"bestMatches"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to parse search response")
	}

	matches := make([]SearchMatch, 0, len(payload.BestMatches))
	for _, m := range payload.BestMatches {
		matches = append(matches, SearchMatch{
			Symbol: m["1. symbol"],
			Name:   m["2. name"],
			Type:   m["3. type"],
			Region: m["4. region"],
		})
	}

	return matches, nil
}

// DailySeries fetches the daily OHLCV series via TIME_SERIES_DAILY, sorted
// chronologically ascending. full requests the complete 20y history instead
// of the compact 100-point window.
func (c *Client) DailySeries(ctx context.Context, symbol string, full bool) ([]Candle, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}

	body, err := c.doRequest(ctx, map[string]string{
		"function":   "TIME_SERIES_DAILY",
		"symbol":     symbol,
		"outputsize": outputSize,
	})
	if err != nil {
		return nil, err
	}

	return parseSeries(body, "Time Series (Daily)", "2006-01-02")
}

// IntradaySeries fetches the 60-minute intraday series via
// TIME_SERIES_INTRADAY, sorted chronologically ascending.
func (c *Client) IntradaySeries(ctx context.Context, symbol string) ([]Candle, error) {
	body, err := c.doRequest(ctx, map[string]string{
		"function": "TIME_SERIES_INTRADAY",
		"symbol":   symbol,
		"interval": "60min",
	})
	if err != nil {
		return nil, err
	}

	return parseSeries(body, "Time Series (60min)", "2006-01-02 15:04:05")
}

// parseSeries extracts and sorts an OHLCV time series keyed by timestamp.
func parseSeries(body []byte, seriesKey, timeLayout string) ([]Candle, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to parse series response")
	}

	raw, ok := payload[seriesKey]
	if !ok {
		return nil, domain.E(domain.KindNoHistoricalData, "no historical data in provider response")
	}

	var series map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	}
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, domain.Wrap(domain.KindProviderUnavailable, err, "failed to parse time series")
	}

	if len(series) == 0 {
		return nil, domain.E(domain.KindNoHistoricalData, "provider returned empty series")
	}

	candles := make([]Candle, 0, len(series))
	for ts, v := range series {
		t, err := time.ParseInLocation(timeLayout, ts, time.UTC)
		if err != nil {
			continue
		}
		candle := Candle{
			Time:  t,
			Open:  parseDecimal(v.Open),
			High:  parseDecimal(v.High),
			Low:   parseDecimal(v.Low),
			Close: parseDecimal(v.Close),
		}
		if vol, err := strconv.ParseInt(v.Volume, 10, 64); err == nil {
			candle.Volume = vol
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	return candles, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseOptionalDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

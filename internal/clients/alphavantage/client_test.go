package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarques/stockfolio/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", 5*time.Second, zerolog.New(nil).Level(zerolog.Disabled))
	client.baseURL = server.URL
	return client
}

func TestQuote_ParsesProviderFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Write([]byte(`{
			"Global Quote": {
				"01. symbol": "AAPL",
				"03. high": "151.00",
				"04. low": "147.50",
				"05. price": "150.25",
				"06. volume": "52389000",
				"08. previous close": "148.50",
				"09. change": "1.75",
				"10. change percent": "1.1784%"
			}
		}`))
	})

	quote, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("150.25")))
	assert.True(t, quote.PreviousClose.Equal(decimal.RequireFromString("148.50")))
	assert.True(t, quote.ChangePercent.Equal(decimal.RequireFromString("1.1784")), "percent suffix must be stripped")
	assert.Equal(t, int64(52389000), quote.Volume)
	assert.True(t, quote.DayHigh.Equal(decimal.RequireFromString("151.00")))
}

func TestQuote_EmptyPayloadIsSymbolNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := client.Quote(context.Background(), "FAKE")
	assert.True(t, domain.Is(err, domain.KindSymbolNotFound))
}

func TestQuote_ServerErrorIsProviderUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Quote(context.Background(), "AAPL")
	assert.True(t, domain.Is(err, domain.KindProviderUnavailable))
}

func TestCompanyOverview_ToleratesMissingFundamentals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"Name": "Vanguard S&P 500 ETF",
			"MarketCapitalization": "None",
			"PERatio": "-",
			"DividendYield": "0.0132"
		}`))
	})

	overview, err := client.CompanyOverview(context.Background(), "VOO")
	require.NoError(t, err)
	assert.Equal(t, "Vanguard S&P 500 ETF", overview.Name)
	assert.Nil(t, overview.MarketCap)
	assert.Nil(t, overview.PERatio)
	require.NotNil(t, overview.DividendYield)
	assert.True(t, overview.DividendYield.Equal(decimal.RequireFromString("0.0132")))
}

func TestSearch_ParsesMatches(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "apple", r.URL.Query().Get("keywords"))

		w.Write([]byte(`{
			"bestMatches": [
				{"1. symbol": "AAPL", "2. name": "Apple Inc", "3. type": "Equity", "4. region": "United States"},
				{"1. symbol": "APLE", "2. name": "Apple Hospitality REIT", "3. type": "Equity", "4. region": "United States"}
			]
		}`))
	})

	matches, err := client.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "AAPL", matches[0].Symbol)
	assert.Equal(t, "Apple Inc", matches[0].Name)
}

func TestDailySeries_SortsAscending(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "compact", r.URL.Query().Get("outputsize"))

		w.Write([]byte(`{
			"Time Series (Daily)": {
				"2025-05-30": {"1. open": "150", "2. high": "152", "3. low": "149", "4. close": "151", "5. volume": "1000"},
				"2025-05-28": {"1. open": "148", "2. high": "149", "3. low": "147", "4. close": "148", "5. volume": "900"},
				"2025-05-29": {"1. open": "148", "2. high": "151", "3. low": "148", "4. close": "150", "5. volume": "950"}
			}
		}`))
	})

	candles, err := client.DailySeries(context.Background(), "AAPL", false)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC), candles[0].Time)
	assert.Equal(t, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), candles[2].Time)
	assert.True(t, candles[2].Close.Equal(decimal.RequireFromString("151")))
}

func TestDailySeries_FullOutputSize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("outputsize"))
		w.Write([]byte(`{"Time Series (Daily)": {"2025-05-30": {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "1", "5. volume": "1"}}}`))
	})

	_, err := client.DailySeries(context.Background(), "AAPL", true)
	require.NoError(t, err)
}

func TestDailySeries_MissingSeriesIsNoHistoricalData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Alpha Vantage reports throttling as a 200 with an Information key.
		w.Write([]byte(`{"Information": "API call frequency exceeded"}`))
	})

	_, err := client.DailySeries(context.Background(), "AAPL", false)
	assert.True(t, domain.Is(err, domain.KindNoHistoricalData))
}

func TestIntradaySeries_ParsesTimestamps(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60min", r.URL.Query().Get("interval"))
		w.Write([]byte(`{
			"Time Series (60min)": {
				"2025-06-02 15:00:00": {"1. open": "150", "2. high": "151", "3. low": "150", "4. close": "150.5", "5. volume": "5000"}
			}
		}`))
	})

	candles, err := client.IntradaySeries(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC), candles[0].Time)
}

func TestRateLimit_BudgetExhaustionAndReset(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"Global Quote": {"05. price": "1"}}`))
	})

	for i := 0; i < requestsPerDay; i++ {
		_, err := client.Quote(context.Background(), "AAPL")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, client.GetRemainingRequests())

	_, err := client.Quote(context.Background(), "AAPL")
	assert.True(t, domain.Is(err, domain.KindRateLimited))
	assert.Equal(t, requestsPerDay, calls, "over-budget request must not reach the provider")

	client.ResetDailyCounter()
	assert.Equal(t, requestsPerDay, client.GetRemainingRequests())
	_, err = client.Quote(context.Background(), "AAPL")
	assert.NoError(t, err)
}

func TestQuote_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Quote(ctx, "AAPL")
	assert.True(t, domain.Is(err, domain.KindProviderUnavailable))
}

// Package portfolio aggregates a user's holdings against live prices into
// portfolio-level metrics.
package portfolio

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/modules/ledger"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
)

// Quoter is the price source for valuation.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// LedgerView is the read-only slice of the ledger the valuator needs.
type LedgerView interface {
	Holdings(userID string) ([]ledger.Holding, error)
}

// AccountSource resolves the user's cash balance.
type AccountSource interface {
	Get(userID string) (*ledger.Account, error)
}

// HoldingMetrics is one valued position. PriceSource is "market" when the
// quote came through, "average_cost" when that symbol's fetch failed and
// the position is valued at cost.
type HoldingMetrics struct {
	Symbol              string          `json:"symbol"`
	CompanyName         string          `json:"company_name"`
	Shares              decimal.Decimal `json:"shares"`
	AverageCost         decimal.Decimal `json:"average_cost"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	CurrentValue        decimal.Decimal `json:"current_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent"`
	PriceSource         string          `json:"price_source"`
}

// Summary is the valued portfolio.
type Summary struct {
	CashBalance       decimal.Decimal  `json:"cash_balance"`
	TotalValue        decimal.Decimal  `json:"total_value"`
	TotalInvested     decimal.Decimal  `json:"total_invested"`
	ProfitLoss        decimal.Decimal  `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal  `json:"profit_loss_percent"`
	Holdings          []HoldingMetrics `json:"holdings"`
}

// Service is the portfolio valuator.
type Service struct {
	ledger   LedgerView
	accounts AccountSource
	quoter   Quoter
	log      zerolog.Logger
}

// NewService creates the valuator.
func NewService(ledgerView LedgerView, accounts AccountSource, quoter Quoter, log zerolog.Logger) *Service {
	return &Service{
		ledger:   ledgerView,
		accounts: accounts,
		quoter:   quoter,
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// Valuate prices every holding concurrently and sums the portfolio. A
// failed quote only degrades its own symbol to average-cost valuation.
func (s *Service) Valuate(ctx context.Context, userID string) (*Summary, error) {
	account, err := s.accounts.Get(userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.ledger.Holdings(userID)
	if err != nil {
		return nil, err
	}

	metrics := make([]HoldingMetrics, len(holdings))
	var wg sync.WaitGroup
	for i, holding := range holdings {
		wg.Add(1)
		go func(i int, holding ledger.Holding) {
			defer wg.Done()
			metrics[i] = s.value(ctx, holding)
		}(i, holding)
	}
	wg.Wait()

	summary := &Summary{
		CashBalance:       account.Balance,
		TotalValue:        decimal.Zero,
		TotalInvested:     decimal.Zero,
		ProfitLoss:        decimal.Zero,
		ProfitLossPercent: decimal.Zero,
		Holdings:          metrics,
	}
	for _, m := range metrics {
		summary.TotalValue = summary.TotalValue.Add(m.CurrentValue)
		summary.TotalInvested = summary.TotalInvested.Add(m.AverageCost.Mul(m.Shares))
	}
	summary.TotalValue = summary.TotalValue.Round(2)
	summary.TotalInvested = summary.TotalInvested.Round(2)
	summary.ProfitLoss = summary.TotalValue.Sub(summary.TotalInvested)
	if !summary.TotalInvested.IsZero() {
		summary.ProfitLossPercent = summary.ProfitLoss.
			Div(summary.TotalInvested).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return summary, nil
}

// value prices one holding, falling back to average cost when the quote
// fails.
func (s *Service) value(ctx context.Context, holding ledger.Holding) HoldingMetrics {
	price := holding.AverageCost
	source := "average_cost"

	quote, err := s.quoter.Quote(ctx, holding.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", holding.Symbol).Msg("Quote failed, valuing at average cost")
	} else {
		price = quote.Price
		source = "market"
	}

	invested := holding.AverageCost.Mul(holding.Shares)
	currentValue := price.Mul(holding.Shares).Round(2)
	unrealized := price.Sub(holding.AverageCost).Mul(holding.Shares).Round(2)

	percent := decimal.Zero
	if !invested.IsZero() {
		percent = unrealized.Div(invested).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return HoldingMetrics{
		Symbol:              holding.Symbol,
		CompanyName:         holding.CompanyName,
		Shares:              holding.Shares,
		AverageCost:         holding.AverageCost,
		CurrentPrice:        price,
		CurrentValue:        currentValue,
		UnrealizedPL:        unrealized,
		UnrealizedPLPercent: percent,
		PriceSource:         source,
	}
}

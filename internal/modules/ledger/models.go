// Package ledger is the consistency-critical core of the system: it is the
// only component permitted to mutate account balances and holdings and to
// append transaction records, and it guarantees those effects land together
// or not at all.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/domain"
)

// TransactionType is the side of a trade.
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// Account holds a user's cash balance. Balance is mutated only by the
// ledger and never goes negative.
type Account struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holding is a user's position in one symbol. Shares are tracked at 4
// decimal places, average cost at 2. A holding with zero shares must not
// exist; selling down to exactly zero deletes the row.
type Holding struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Shares      decimal.Decimal `json:"shares"`
	AverageCost decimal.Decimal `json:"average_cost"`
	PurchasedAt time.Time       `json:"purchased_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Transaction is an immutable, append-only trade record. Rows are never
// updated or deleted; they are the audit trail of record.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      TransactionType `json:"type"`
	Symbol    string          `json:"symbol"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExecuteRequest describes a trade to apply.
type ExecuteRequest struct {
	UserID      string
	Type        TransactionType
	Symbol      string
	Shares      decimal.Decimal
	Price       decimal.Decimal
	CompanyName string
}

// ExecuteResult is the state the caller reads back after a successful trade.
// UpdatedHolding is nil when the trade sold a position down to zero.
type ExecuteResult struct {
	Transaction    Transaction     `json:"transaction"`
	UpdatedBalance decimal.Decimal `json:"updated_balance"`
	UpdatedHolding *Holding        `json:"updated_holding"`
}

// Validate checks an execute request before any state is touched.
func (r *ExecuteRequest) Validate() error {
	if r.UserID == "" {
		return domain.E(domain.KindInvalidRequest, "user id is required")
	}
	if r.Type != Buy && r.Type != Sell {
		return domain.E(domain.KindInvalidTransactionType, "invalid transaction type: %s", r.Type)
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return domain.E(domain.KindInvalidRequest, "symbol is required")
	}
	if !r.Shares.IsPositive() {
		return domain.E(domain.KindInvalidRequest, "shares must be positive")
	}
	if r.Shares.Exponent() < -4 {
		return domain.E(domain.KindInvalidRequest, "shares precision is limited to 4 decimal places")
	}
	if !r.Price.IsPositive() {
		return domain.E(domain.KindInvalidRequest, "price must be positive")
	}
	if r.Price.Exponent() < -2 {
		return domain.E(domain.KindInvalidRequest, "price precision is limited to 2 decimal places")
	}
	return nil
}

package ledger

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/database"
	"github.com/dmarques/stockfolio/internal/domain"
)

// Service coordinates trade execution. All writes for a given user are
// serialized through a per-user lock, and the three effects of a trade
// (balance change, holding change, transaction record) are committed in a
// single database transaction.
type Service struct {
	db           *sql.DB
	accounts     *AccountRepository
	holdings     *HoldingRepository
	transactions *TransactionRepository
	locks        *userLocks
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates the ledger service.
func NewService(db *sql.DB, accounts *AccountRepository, holdings *HoldingRepository, transactions *TransactionRepository, log zerolog.Logger) *Service {
	return &Service{
		db:           db,
		accounts:     accounts,
		holdings:     holdings,
		transactions: transactions,
		locks:        newUserLocks(),
		now:          time.Now,
		log:          log.With().Str("service", "ledger").Logger(),
	}
}

// Execute validates and applies a trade. On any error, no state changes.
func (s *Service) Execute(req ExecuteRequest) (*ExecuteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	// Serialize per user so validation reads stay true until commit.
	lock := s.locks.get(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	account, err := s.accounts.Get(req.UserID)
	if err != nil {
		return nil, err
	}

	totalCost := req.Shares.Mul(req.Price).Round(2)
	now := s.now().UTC()

	var (
		newBalance decimal.Decimal
		newHolding *Holding
		oldHolding *Holding
	)

	switch req.Type {
	case Buy:
		if account.Balance.LessThan(totalCost) {
			return nil, domain.E(domain.KindInsufficientBalance,
				"insufficient balance: have %s, need %s", account.Balance.StringFixed(2), totalCost.StringFixed(2))
		}
		newBalance = account.Balance.Sub(totalCost)

		oldHolding, err = s.holdings.GetBySymbol(req.UserID, symbol)
		switch {
		case err == nil:
			newShares := oldHolding.Shares.Add(req.Shares)
			oldValue := oldHolding.Shares.Mul(oldHolding.AverageCost)
			newAvg := oldValue.Add(req.Shares.Mul(req.Price)).Div(newShares).Round(2)
			updated := *oldHolding
			updated.Shares = newShares
			updated.AverageCost = newAvg
			if req.CompanyName != "" {
				updated.CompanyName = req.CompanyName
			}
			updated.UpdatedAt = now
			newHolding = &updated
		case domain.Is(err, domain.KindHoldingNotFound):
			newHolding = &Holding{
				ID:          uuid.New().String(),
				UserID:      req.UserID,
				Symbol:      symbol,
				CompanyName: req.CompanyName,
				Shares:      req.Shares,
				AverageCost: req.Price.Round(2),
				PurchasedAt: now,
				UpdatedAt:   now,
			}
			oldHolding = nil
		default:
			return nil, err
		}

	case Sell:
		oldHolding, err = s.holdings.GetBySymbol(req.UserID, symbol)
		if err != nil {
			return nil, err
		}
		if oldHolding.Shares.LessThan(req.Shares) {
			return nil, domain.E(domain.KindInsufficientShares,
				"insufficient shares: have %s, selling %s", oldHolding.Shares.String(), req.Shares.String())
		}
		newBalance = account.Balance.Add(totalCost)

		remaining := oldHolding.Shares.Sub(req.Shares)
		if remaining.IsZero() {
			newHolding = nil
		} else {
			updated := *oldHolding
			updated.Shares = remaining
			updated.UpdatedAt = now
			newHolding = &updated
		}
	}

	txn := Transaction{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Type:      req.Type,
		Symbol:    symbol,
		Shares:    req.Shares,
		Price:     req.Price,
		TotalCost: totalCost,
		Timestamp: now,
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.accounts.UpdateBalanceTx(tx, req.UserID, newBalance); err != nil {
			return err
		}
		switch {
		case newHolding != nil && oldHolding == nil:
			if err := s.holdings.InsertTx(tx, newHolding); err != nil {
				return err
			}
		case newHolding != nil:
			if err := s.holdings.UpdateTx(tx, newHolding); err != nil {
				return err
			}
		case oldHolding != nil:
			if err := s.holdings.DeleteTx(tx, oldHolding.ID); err != nil {
				return err
			}
		}
		return s.transactions.InsertTx(tx, &txn)
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to commit %s of %s %s", req.Type, req.Shares, symbol)
	}

	s.log.Info().
		Str("user_id", req.UserID).
		Str("type", string(req.Type)).
		Str("symbol", symbol).
		Str("shares", req.Shares.String()).
		Str("price", req.Price.String()).
		Str("balance", newBalance.StringFixed(2)).
		Msg("Trade executed")

	return &ExecuteResult{
		Transaction:    txn,
		UpdatedBalance: newBalance,
		UpdatedHolding: newHolding,
	}, nil
}

// Transactions returns a page of the user's trade history, newest first.
func (s *Service) Transactions(userID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.transactions.ListByUser(userID, limit, offset)
}

// Transaction returns one trade record owned by userID.
func (s *Service) Transaction(userID, transactionID string) (*Transaction, error) {
	return s.transactions.Get(userID, transactionID)
}

// Holdings returns all of the user's positions.
func (s *Service) Holdings(userID string) ([]Holding, error) {
	return s.holdings.ListByUser(userID)
}

// HoldingBySymbol returns the user's position in one symbol.
func (s *Service) HoldingBySymbol(userID, symbol string) (*Holding, error) {
	return s.holdings.GetBySymbol(userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

// userLocks hands out one mutex per user id. Entries are never evicted;
// the set of active users is small and each entry is a single mutex.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

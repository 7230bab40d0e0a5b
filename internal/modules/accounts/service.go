// Package accounts manages account creation and lookup. Balances are owned
// by the ledger; this package only ever writes the starting balance of a
// brand new account.
package accounts

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/modules/ledger"
)

// Service creates and reads accounts.
type Service struct {
	repo            *ledger.AccountRepository
	startingBalance decimal.Decimal
	log             zerolog.Logger
}

// NewService creates the accounts service. startingBalance is the cash
// every new account opens with.
func NewService(repo *ledger.AccountRepository, startingBalance decimal.Decimal, log zerolog.Logger) *Service {
	return &Service{
		repo:            repo,
		startingBalance: startingBalance,
		log:             log.With().Str("service", "accounts").Logger(),
	}
}

// Create opens a new account funded with the starting balance.
func (s *Service) Create(email, username string) (*ledger.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)

	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.E(domain.KindInvalidRequest, "a valid email is required")
	}
	if username == "" {
		return nil, domain.E(domain.KindInvalidRequest, "username is required")
	}

	account, err := s.repo.Create(email, username, s.startingBalance)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.E(domain.KindInvalidRequest, "email already registered: %s", email)
		}
		return nil, err
	}

	s.log.Info().Str("user_id", account.ID).Str("email", email).Msg("Account created")
	return account, nil
}

// isUniqueViolation reports whether err carries the driver's unique
// constraint code.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Get returns an account by id.
func (s *Service) Get(userID string) (*ledger.Account, error) {
	return s.repo.Get(userID)
}

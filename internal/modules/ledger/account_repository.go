package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repository methods can
// run standalone or inside the ledger's unit of work.
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// AccountRepository persists accounts in the ledger database.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account with the given starting balance.
func (r *AccountRepository) Create(email, username string, startingBalance decimal.Decimal) (*Account, error) {
	account := &Account{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		Balance:   startingBalance,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO accounts (id, email, username, balance, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.Username,
		account.Balance.String(), account.CreatedAt.Unix())
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to create account")
	}

	return account, nil
}

// Get returns the account for userID, or ErrAccountNotFound.
func (r *AccountRepository) Get(userID string) (*Account, error) {
	return scanAccount(r.db, userID)
}

// GetTx is Get inside an open transaction.
func (r *AccountRepository) GetTx(tx *sql.Tx, userID string) (*Account, error) {
	return scanAccount(tx, userID)
}

// UpdateBalanceTx writes a new balance inside an open transaction.
func (r *AccountRepository) UpdateBalanceTx(tx *sql.Tx, userID string, balance decimal.Decimal) error {
	result, err := tx.Exec(`UPDATE accounts SET balance = ? WHERE id = ?`,
		balance.String(), userID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindAccountNotFound, "account not found: %s", userID)
	}
	return nil
}

func scanAccount(q dbtx, userID string) (*Account, error) {
	var (
		account   Account
		balance   string
		createdAt int64
	)
	err := q.QueryRow(`
		SELECT id, email, username, balance, created_at
		FROM accounts WHERE id = ?`, userID).
		Scan(&account.ID, &account.Email, &account.Username, &balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindAccountNotFound, "account not found: %s", userID)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to load account")
	}

	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse account balance")
	}
	account.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &account, nil
}

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/domain"
)

// TransactionRepository persists the append-only trade history. There are
// deliberately no update or delete methods.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertTx appends a transaction record inside an open transaction.
func (r *TransactionRepository) InsertTx(tx *sql.Tx, txn *Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (id, user_id, type, symbol, shares, price, total_cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, string(txn.Type), txn.Symbol,
		txn.Shares.String(), txn.Price.String(), txn.TotalCost.String(),
		txn.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListByUser returns a user's transactions, most recent first.
func (r *TransactionRepository) ListByUser(userID string, limit, offset int) ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, type, symbol, shares, price, total_cost, timestamp
		FROM transactions WHERE user_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to list transactions")
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to list transactions")
	}

	return txns, nil
}

// Get returns a single transaction owned by userID, or
// ErrTransactionNotFound.
func (r *TransactionRepository) Get(userID, transactionID string) (*Transaction, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, type, symbol, shares, price, total_cost, timestamp
		FROM transactions WHERE id = ? AND user_id = ?`, transactionID, userID)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindTransactionNotFound, "transaction not found: %s", transactionID)
	}
	return txn, err
}

// CountByUser returns the number of transactions a user has recorded.
func (r *TransactionRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, domain.Wrap(domain.KindPersistence, err, "failed to count transactions")
	}
	return count, nil
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		txn       Transaction
		txnType   string
		shares    string
		price     string
		totalCost string
		timestamp int64
	)
	err := row.Scan(&txn.ID, &txn.UserID, &txnType, &txn.Symbol,
		&shares, &price, &totalCost, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to load transaction")
	}

	txn.Type = TransactionType(txnType)
	txn.Shares, err = decimal.NewFromString(shares)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse transaction shares")
	}
	txn.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse transaction price")
	}
	txn.TotalCost, err = decimal.NewFromString(totalCost)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse transaction total cost")
	}
	txn.Timestamp = time.Unix(timestamp, 0).UTC()

	return &txn, nil
}

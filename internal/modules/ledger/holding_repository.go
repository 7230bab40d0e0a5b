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

// HoldingRepository persists per-symbol positions in the ledger database.
type HoldingRepository struct {
	db *sql.DB
}

// NewHoldingRepository creates a new holding repository.
func NewHoldingRepository(db *sql.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// ListByUser returns all holdings for a user, ordered by symbol.
func (r *HoldingRepository) ListByUser(userID string) ([]Holding, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, symbol, company_name, shares, average_cost, purchased_at, updated_at
		FROM holdings WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to list holdings")
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		holding, err := scanHoldingRow(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *holding)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to list holdings")
	}

	return holdings, nil
}

// GetBySymbol returns a user's position in one symbol, or ErrHoldingNotFound.
func (r *HoldingRepository) GetBySymbol(userID, symbol string) (*Holding, error) {
	return scanHolding(r.db, userID, symbol)
}

// GetTx is GetBySymbol inside an open transaction.
func (r *HoldingRepository) GetTx(tx *sql.Tx, userID, symbol string) (*Holding, error) {
	return scanHolding(tx, userID, symbol)
}

// InsertTx creates a new position inside an open transaction.
func (r *HoldingRepository) InsertTx(tx *sql.Tx, holding *Holding) error {
	if holding.ID == "" {
		holding.ID = uuid.New().String()
	}
	_, err := tx.Exec(`
		INSERT INTO holdings (id, user_id, symbol, company_name, shares, average_cost, purchased_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		holding.ID, holding.UserID, holding.Symbol, holding.CompanyName,
		holding.Shares.String(), holding.AverageCost.String(),
		holding.PurchasedAt.Unix(), holding.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

// UpdateTx rewrites the mutable columns of a position inside an open
// transaction.
func (r *HoldingRepository) UpdateTx(tx *sql.Tx, holding *Holding) error {
	result, err := tx.Exec(`
		UPDATE holdings SET shares = ?, average_cost = ?, company_name = ?, updated_at = ?
		WHERE id = ?`,
		holding.Shares.String(), holding.AverageCost.String(),
		holding.CompanyName, holding.UpdatedAt.Unix(), holding.ID)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindHoldingNotFound, "holding not found: %s", holding.ID)
	}
	return nil
}

// DeleteTx removes a position inside an open transaction. Used when a sell
// brings the share count to exactly zero.
func (r *HoldingRepository) DeleteTx(tx *sql.Tx, holdingID string) error {
	if _, err := tx.Exec(`DELETE FROM holdings WHERE id = ?`, holdingID); err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

func scanHolding(q dbtx, userID, symbol string) (*Holding, error) {
	row := q.QueryRow(`
		SELECT id, user_id, symbol, company_name, shares, average_cost, purchased_at, updated_at
		FROM holdings WHERE user_id = ? AND symbol = ?`, userID, symbol)
	holding, err := scanHoldingRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindHoldingNotFound, "no holding for symbol %s", symbol)
	}
	return holding, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHoldingRow(row rowScanner) (*Holding, error) {
	var (
		holding     Holding
		shares      string
		averageCost string
		purchasedAt int64
		updatedAt   int64
	)
	err := row.Scan(&holding.ID, &holding.UserID, &holding.Symbol, &holding.CompanyName,
		&shares, &averageCost, &purchasedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to load holding")
	}

	holding.Shares, err = decimal.NewFromString(shares)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse holding shares")
	}
	holding.AverageCost, err = decimal.NewFromString(averageCost)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "failed to parse holding average cost")
	}
	holding.PurchasedAt = time.Unix(purchasedAt, 0).UTC()
	holding.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &holding, nil
}

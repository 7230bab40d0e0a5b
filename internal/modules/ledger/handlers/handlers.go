// Package handlers provides HTTP handlers for trade execution and history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/ledger"
)

// LedgerHandlers contains HTTP handlers for the transactions API.
type LedgerHandlers struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewLedgerHandlers creates a new ledger handlers instance.
func NewLedgerHandlers(service *ledger.Service, log zerolog.Logger) *LedgerHandlers {
	return &LedgerHandlers{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type executeRequest struct {
	Type        string          `json:"type"`
	Symbol      string          `json:"symbol"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	CompanyName string          `json:"company_name"`
}

// HandleExecute processes POST /api/transactions.
func (h *LedgerHandlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.log)
	if !ok {
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, h.log, domain.Wrap(domain.KindInvalidRequest, err, "invalid request body"))
		return
	}

	result, err := h.service.Execute(ledger.ExecuteRequest{
		UserID:      userID,
		Type:        ledger.TransactionType(req.Type),
		Symbol:      req.Symbol,
		Shares:      req.Shares,
		Price:       req.Price,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, result)
}

// HandleListTransactions processes GET /api/transactions.
func (h *LedgerHandlers) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.log)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	txns, err := h.service.Transactions(userID, limit, offset)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}

	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"limit":        limit,
		"offset":       offset,
	})
}

// HandleGetTransaction processes GET /api/transactions/{id}.
func (h *LedgerHandlers) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.log)
	if !ok {
		return
	}

	txn, err := h.service.Transaction(userID, pathParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	httpx.JSON(w, http.StatusOK, txn)
}

// requireUser extracts the acting user from the X-User-ID header. There is
// no authentication layer; the header is trusted as-is.
func requireUser(w http.ResponseWriter, r *http.Request, log zerolog.Logger) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httpx.Error(w, log, domain.E(domain.KindInvalidRequest, "X-User-ID header is required"))
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

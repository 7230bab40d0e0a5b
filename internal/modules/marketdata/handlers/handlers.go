// Package handlers provides HTTP handlers for stock quotes, details,
// search, and price history.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
)

// StockHandlers contains HTTP handlers for the stocks API.
type StockHandlers struct {
	service *marketdata.Service
	log     zerolog.Logger
}

// NewStockHandlers creates a new stock handlers instance.
func NewStockHandlers(service *marketdata.Service, log zerolog.Logger) *StockHandlers {
	return &StockHandlers{
		service: service,
		log:     log.With().Str("handler", "stocks").Logger(),
	}
}

// RegisterRoutes registers all stock routes.
func (h *StockHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/{symbol}", h.HandleDetails)
		r.Get("/{symbol}/quote", h.HandleQuote)
		r.Get("/{symbol}/history", h.HandleHistory)
	})
}

// HandleQuote processes GET /api/stocks/{symbol}/quote.
func (h *StockHandlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// HandleDetails processes GET /api/stocks/{symbol}.
func (h *StockHandlers) HandleDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.Details(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

// HandleSearch processes GET /api/stocks/search?q=…&limit=….
func (h *StockHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if results == nil {
		results = []marketdata.SearchResult{}
	}

	httpx.JSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// HandleHistory processes GET /api/stocks/{symbol}/history?period=….
func (h *StockHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "symbol"), r.URL.Query().Get("period"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

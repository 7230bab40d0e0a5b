// Package handlers provides HTTP handlers for portfolio valuation.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/portfolio"
)

// PortfolioHandlers contains HTTP handlers for the portfolio API.
type PortfolioHandlers struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewPortfolioHandlers creates a new portfolio handlers instance.
func NewPortfolioHandlers(service *portfolio.Service, log zerolog.Logger) *PortfolioHandlers {
	return &PortfolioHandlers{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes.
func (h *PortfolioHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleSummary)
		r.Get("/holdings", h.HandleHoldings)
	})
}

// HandleSummary processes GET /api/portfolio.
func (h *PortfolioHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httpx.Error(w, h.log, domain.E(domain.KindInvalidRequest, "X-User-ID header is required"))
		return
	}

	summary, err := h.service.Valuate(r.Context(), userID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	httpx.JSON(w, http.StatusOK, summary)
}

// HandleHoldings processes GET /api/portfolio/holdings.
func (h *PortfolioHandlers) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httpx.Error(w, h.log, domain.E(domain.KindInvalidRequest, "X-User-ID header is required"))
		return
	}

	summary, err := h.service.Valuate(r.Context(), userID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if summary.Holdings == nil {
		summary.Holdings = []portfolio.HoldingMetrics{}
	}

	httpx.JSON(w, http.StatusOK, map[string]interface{}{"holdings": summary.Holdings})
}

// Package handlers provides the market session status endpoint.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/marketclock"
)

// MarketHandlers contains HTTP handlers for the market status API.
type MarketHandlers struct {
	service *marketclock.Service
	log     zerolog.Logger
}

// NewMarketHandlers creates a new market handlers instance.
func NewMarketHandlers(service *marketclock.Service, log zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers all market routes.
func (h *MarketHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/market/status", h.HandleStatus)
}

// HandleStatus processes GET /api/market/status.
func (h *MarketHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Status(time.Now()))
}

// Package handlers provides HTTP handlers for AI recommendations.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/recommendations"
)

// RecommendationHandlers contains HTTP handlers for the recommendations API.
type RecommendationHandlers struct {
	service *recommendations.Service
	log     zerolog.Logger
}

// NewRecommendationHandlers creates a new recommendation handlers instance.
func NewRecommendationHandlers(service *recommendations.Service, log zerolog.Logger) *RecommendationHandlers {
	return &RecommendationHandlers{
		service: service,
		log:     log.With().Str("handler", "recommendations").Logger(),
	}
}

// RegisterRoutes registers all recommendation routes.
func (h *RecommendationHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/recommendations/{symbol}", h.HandleRecommend)
}

// HandleRecommend processes GET /api/recommendations/{symbol}.
func (h *RecommendationHandlers) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Recommend(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// Package handlers provides HTTP handlers for account management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/domain"
	"github.com/dmarques/stockfolio/internal/httpx"
	"github.com/dmarques/stockfolio/internal/modules/accounts"
)

// AccountHandlers contains HTTP handlers for the accounts API.
type AccountHandlers struct {
	service *accounts.Service
	log     zerolog.Logger
}

// NewAccountHandlers creates a new account handlers instance.
func NewAccountHandlers(service *accounts.Service, log zerolog.Logger) *AccountHandlers {
	return &AccountHandlers{
		service: service,
		log:     log.With().Str("handler", "accounts").Logger(),
	}
}

// RegisterRoutes registers all account routes.
func (h *AccountHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
	})
}

type createRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// HandleCreate processes POST /api/accounts.
func (h *AccountHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, h.log, domain.Wrap(domain.KindInvalidRequest, err, "invalid request body"))
		return
	}

	account, err := h.service.Create(req.Email, req.Username)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, account)
}

// HandleGet processes GET /api/accounts/{id}.
func (h *AccountHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	httpx.JSON(w, http.StatusOK, account)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all transaction routes.
func (h *LedgerHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.HandleExecute)
		r.Get("/", h.HandleListTransactions)
		r.Get("/{id}", h.HandleGetTransaction)
	})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

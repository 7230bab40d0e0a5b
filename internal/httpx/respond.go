// Package httpx holds the JSON response helpers shared by all module
// handlers, including the single place where error kinds map to HTTP
// status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // headers already committed
}

// Error writes an error response. Domain errors map to a status by kind;
// anything untagged becomes a generic 500 so internals never leak to
// clients.
func Error(w http.ResponseWriter, log zerolog.Logger, err error) {
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		log.Error().Err(err).Msg("Unhandled error")
		JSON(w, http.StatusInternalServerError, errorBody{
			Error: errorDetail{Code: "internal_error", Message: "internal server error"},
		})
		return
	}

	status := statusFor(domErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", string(domErr.Kind)).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("code", string(domErr.Kind)).Msg("Request rejected")
	}

	JSON(w, status, errorBody{
		Error: errorDetail{Code: string(domErr.Kind), Message: domErr.Error()},
	})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest,
		domain.KindInvalidTransactionType,
		domain.KindInsufficientBalance,
		domain.KindInsufficientShares:
		return http.StatusBadRequest
	case domain.KindAccountNotFound,
		domain.KindHoldingNotFound,
		domain.KindTransactionNotFound,
		domain.KindSymbolNotFound,
		domain.KindNoHistoricalData:
		return http.StatusNotFound
	case domain.KindProviderUnavailable:
		return http.StatusBadGateway
	case domain.KindRateLimited,
		domain.KindMarketDataUnavailable,
		domain.KindRecommendationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Package domain holds the core types shared across modules.
package domain

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable error category. Handlers map kinds to
// HTTP statuses; callers match kinds with errors.Is instead of inspecting
// error text.
type Kind string

const (
	KindInvalidRequest            Kind = "invalid_request"
	KindInvalidTransactionType    Kind = "invalid_transaction_type"
	KindInsufficientBalance       Kind = "insufficient_balance"
	KindInsufficientShares        Kind = "insufficient_shares"
	KindHoldingNotFound           Kind = "holding_not_found"
	KindAccountNotFound           Kind = "account_not_found"
	KindTransactionNotFound       Kind = "transaction_not_found"
	KindPersistence               Kind = "persistence_failure"
	KindSymbolNotFound            Kind = "symbol_not_found"
	KindProviderUnavailable       Kind = "provider_unavailable"
	KindNoHistoricalData          Kind = "no_historical_data"
	KindRateLimited               Kind = "rate_limited"
	KindMarketDataUnavailable     Kind = "market_data_unavailable"
	KindRecommendationUnavailable Kind = "recommendation_unavailable"
)

// Error is a tagged application error. Two Errors match under errors.Is
// when their kinds are equal, so sentinels below can be used as targets.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, ignoring message and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E creates a tagged error with a formatted message.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err carries the given kind, at any wrap depth.
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// Sentinel targets for errors.Is checks.
var (
	ErrInvalidRequest            = &Error{Kind: KindInvalidRequest}
	ErrInvalidTransactionType    = &Error{Kind: KindInvalidTransactionType}
	ErrInsufficientBalance       = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientShares        = &Error{Kind: KindInsufficientShares}
	ErrHoldingNotFound           = &Error{Kind: KindHoldingNotFound}
	ErrAccountNotFound           = &Error{Kind: KindAccountNotFound}
	ErrTransactionNotFound       = &Error{Kind: KindTransactionNotFound}
	ErrPersistence               = &Error{Kind: KindPersistence}
	ErrSymbolNotFound            = &Error{Kind: KindSymbolNotFound}
	ErrProviderUnavailable       = &Error{Kind: KindProviderUnavailable}
	ErrNoHistoricalData          = &Error{Kind: KindNoHistoricalData}
	ErrRateLimited               = &Error{Kind: KindRateLimited}
	ErrMarketDataUnavailable     = &Error{Kind: KindMarketDataUnavailable}
	ErrRecommendationUnavailable = &Error{Kind: KindRecommendationUnavailable}
)

// Package errors defines the service error taxonomy shared by the ledger,
// the games and the transports.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure independently of its message.
type Code string

const (
	CodeNotAuthenticated     Code = "NOT_AUTHENTICATED"
	CodeInvalidKey           Code = "INVALID_KEY"
	CodeInsufficientFunds    Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientQuantity Code = "INSUFFICIENT_QUANTITY"
	CodeNoPosition           Code = "NO_POSITION"
	CodeQuoteUnavailable     Code = "QUOTE_UNAVAILABLE"
	CodeStorageFailure       Code = "STORAGE_FAILURE"
	CodePromptTimeout        Code = "PROMPT_TIMEOUT"
	CodePromptCancelled      Code = "PROMPT_CANCELLED"
	CodePromptPending        Code = "PROMPT_PENDING"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeAlreadySignedIn      Code = "ALREADY_SIGNED_IN"
	CodeAlreadyDrawn         Code = "ALREADY_DRAWN"
	CodeNoDeposits           Code = "NO_DEPOSITS"
	CodeKeyInUse             Code = "KEY_IN_USE"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeInternal             Code = "INTERNAL"
)

// ServiceError is the error type returned across service boundaries.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches any ServiceError carrying the same code, so sentinels such as
// ErrInsufficientFunds work with errors.Is regardless of message or details.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

func newError(code Code, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrNotAuthenticated     = newError(CodeNotAuthenticated, http.StatusUnauthorized, "not authenticated", nil)
	ErrInvalidKey           = newError(CodeInvalidKey, http.StatusNotFound, "invalid key", nil)
	ErrInsufficientFunds    = newError(CodeInsufficientFunds, http.StatusConflict, "insufficient funds", nil)
	ErrInsufficientQuantity = newError(CodeInsufficientQuantity, http.StatusConflict, "insufficient quantity", nil)
	ErrNoPosition           = newError(CodeNoPosition, http.StatusNotFound, "no position", nil)
	ErrQuoteUnavailable     = newError(CodeQuoteUnavailable, http.StatusBadGateway, "quote unavailable", nil)
	ErrStorageFailure       = newError(CodeStorageFailure, http.StatusInternalServerError, "storage failure", nil)
	ErrPromptTimeout        = newError(CodePromptTimeout, http.StatusRequestTimeout, "prompt timed out", nil)
	ErrPromptCancelled      = newError(CodePromptCancelled, http.StatusRequestTimeout, "prompt cancelled", nil)
	ErrPromptPending        = newError(CodePromptPending, http.StatusConflict, "prompt already pending", nil)
	ErrInvalidInput         = newError(CodeInvalidInput, http.StatusBadRequest, "invalid input", nil)
	ErrAlreadySignedIn      = newError(CodeAlreadySignedIn, http.StatusConflict, "already signed in today", nil)
	ErrAlreadyDrawn         = newError(CodeAlreadyDrawn, http.StatusConflict, "already drew a card today", nil)
	ErrNoDeposits           = newError(CodeNoDeposits, http.StatusNotFound, "no deposits", nil)
	ErrKeyInUse             = newError(CodeKeyInUse, http.StatusConflict, "key still in use", nil)
	ErrRateLimited          = newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil)
)

func NotAuthenticated(identity string) *ServiceError {
	return newError(CodeNotAuthenticated, http.StatusUnauthorized, "no key bound to this identity", nil).
		WithDetails("identity", identity)
}

func InvalidKey(key string) *ServiceError {
	return newError(CodeInvalidKey, http.StatusNotFound, "key is not registered", nil).WithDetails("key", key)
}

func InsufficientFunds(available, required fmt.Stringer) *ServiceError {
	return newError(CodeInsufficientFunds, http.StatusConflict,
		fmt.Sprintf("insufficient balance: available %s, required %s", available, required), nil).
		WithDetails("available", available.String()).
		WithDetails("required", required.String())
}

func InsufficientQuantity(symbol string, held, requested fmt.Stringer) *ServiceError {
	return newError(CodeInsufficientQuantity, http.StatusConflict,
		fmt.Sprintf("insufficient %s: held %s, requested %s", symbol, held, requested), nil).
		WithDetails("symbol", symbol)
}

func NoPosition(symbol string) *ServiceError {
	return newError(CodeNoPosition, http.StatusNotFound, fmt.Sprintf("no %s position", symbol), nil).
		WithDetails("symbol", symbol)
}

func QuoteUnavailable(symbol string, cause error) *ServiceError {
	return newError(CodeQuoteUnavailable, http.StatusBadGateway, fmt.Sprintf("quote for %s unavailable", symbol), cause).
		WithDetails("symbol", symbol)
}

func StorageFailure(op string, cause error) *ServiceError {
	return newError(CodeStorageFailure, http.StatusInternalServerError, op, cause)
}

func PromptTimeout() *ServiceError { return newError(CodePromptTimeout, http.StatusRequestTimeout, "no answer in time", nil) }

func PromptCancelled(cause error) *ServiceError {
	return newError(CodePromptCancelled, http.StatusRequestTimeout, "prompt cancelled", cause)
}

func PromptPending(key string) *ServiceError {
	return newError(CodePromptPending, http.StatusConflict, "another prompt is waiting for this key", nil).
		WithDetails("key", key)
}

func InvalidInput(field, reason string) *ServiceError {
	return newError(CodeInvalidInput, http.StatusBadRequest, fmt.Sprintf("%s: %s", field, reason), nil).
		WithDetails("field", field)
}

func AlreadySignedIn() *ServiceError { return ErrAlreadySignedIn.WithDetails("retry", "tomorrow") }

func AlreadyDrawn() *ServiceError { return ErrAlreadyDrawn.WithDetails("retry", "tomorrow") }

func NoDeposits() *ServiceError { return ErrNoDeposits.WithDetails("deposits", 0) }

func KeyInUse(key string) *ServiceError {
	return newError(CodeKeyInUse, http.StatusConflict, "identity is the last holder of a non-empty key", nil).
		WithDetails("key", key)
}

func RateLimited(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit of %d per %s exceeded", limit, window), nil)
}

func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError extracts a ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// CodeOf returns the code of the first ServiceError in the chain, or
// CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.Code
	}
	return CodeInternal
}

// AsStorage wraps a non-service error as a storage failure and passes
// service errors through untouched.
func AsStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if GetServiceError(err) != nil {
		return err
	}
	return StorageFailure(op, err)
}

package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType uint

const (
	// Error types
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidRequest
	ErrorTypeInvalidQuote
	ErrorTypeNotFound
	ErrorTypeVendorUnavailable
	ErrorTypeOrderRejected
	ErrorTypeToleranceExceeded
	ErrorTypeStorage
	ErrorTypeInconsistency
	ErrorTypeUnauthorized
	ErrorTypeRateLimit
)

// Error represents a custom error with additional context
type Error struct {
	Type       ErrorType
	Message    string
	Details    map[string]interface{}
	Err        error
	StatusCode int
	ErrorCode  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error comparison by type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewError creates a new custom error
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		Err:        err,
		StatusCode: errorTypeToStatusCode(errType),
		ErrorCode:  errorTypeToCode(errType),
		Details:    make(map[string]interface{}),
	}
}

// WithDetails adds context details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Sentinels for errors.Is comparisons; carry no message of their own.
var (
	ErrVendorUnavailable = &Error{Type: ErrorTypeVendorUnavailable}
	ErrOrderRejected     = &Error{Type: ErrorTypeOrderRejected}
	ErrToleranceExceeded = &Error{Type: ErrorTypeToleranceExceeded}
	ErrInvalidRequest    = &Error{Type: ErrorTypeInvalidRequest}
	ErrInvalidQuote      = &Error{Type: ErrorTypeInvalidQuote}
	ErrStorage           = &Error{Type: ErrorTypeStorage}
	ErrInconsistency     = &Error{Type: ErrorTypeInconsistency}
	ErrNotFound          = &Error{Type: ErrorTypeNotFound}
)

// Common error constructors
func NewInvalidRequestError(message string, validationErrors map[string]string) *Error {
	e := NewError(ErrorTypeInvalidRequest, message, nil)
	if len(validationErrors) > 0 {
		e.Details["validation_errors"] = validationErrors
	}
	return e
}

func NewInvalidQuoteError(symbol string, price float64) *Error {
	return NewError(
		ErrorTypeInvalidQuote,
		fmt.Sprintf("Invalid quote for %s", symbol),
		nil,
	).WithDetails(map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

func NewNotFoundError(message string) *Error {
	return NewError(ErrorTypeNotFound, message, nil)
}

func NewUnauthorizedError(message string) *Error {
	return NewError(ErrorTypeUnauthorized, message, nil)
}

// Domain-specific error constructors
func NewVendorUnavailableError(operation string, err error) *Error {
	return NewError(
		ErrorTypeVendorUnavailable,
		fmt.Sprintf("Vendor unavailable for %s", operation),
		err,
	).WithDetails(map[string]interface{}{
		"operation": operation,
	})
}

func NewOrderRejectedError(symbol string, statusCode int, err error) *Error {
	return NewError(
		ErrorTypeOrderRejected,
		fmt.Sprintf("Vendor rejected order for %s", symbol),
		err,
	).WithDetails(map[string]interface{}{
		"symbol":        symbol,
		"vendor_status": statusCode,
	})
}

func NewToleranceExceededError(symbol string, quoted, execution, tolerance float64) *Error {
	return NewError(
		ErrorTypeToleranceExceeded,
		fmt.Sprintf("Price for %s moved beyond tolerance", symbol),
		nil,
	).WithDetails(map[string]interface{}{
		"symbol":          symbol,
		"quoted_price":    quoted,
		"execution_price": execution,
		"tolerance_pct":   tolerance,
	})
}

func NewStorageError(operation string, err error) *Error {
	return NewError(
		ErrorTypeStorage,
		fmt.Sprintf("Storage operation failed: %s", operation),
		err,
	).WithDetails(map[string]interface{}{
		"operation": operation,
	})
}

// NewInconsistencyError marks a vendor-confirmed fill that could not be
// recorded internally. Real money moved without a matching record; callers
// must surface this distinctly from ordinary failures.
func NewInconsistencyError(userID, symbol, orderID string, err error) *Error {
	return NewError(
		ErrorTypeInconsistency,
		fmt.Sprintf("Fill for %s confirmed by vendor but not recorded", symbol),
		err,
	).WithDetails(map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"order_id": orderID,
	})
}

// Helper functions
func errorTypeToStatusCode(errType ErrorType) int {
	switch errType {
	case ErrorTypeInvalidRequest, ErrorTypeInvalidQuote:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeToleranceExceeded:
		return http.StatusConflict
	case ErrorTypeOrderRejected:
		return http.StatusUnprocessableEntity
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeVendorUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeStorage, ErrorTypeInconsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func errorTypeToCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeInvalidRequest:
		return "INVALID_REQUEST"
	case ErrorTypeInvalidQuote:
		return "INVALID_QUOTE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeVendorUnavailable:
		return "VENDOR_UNAVAILABLE"
	case ErrorTypeOrderRejected:
		return "ORDER_REJECTED"
	case ErrorTypeToleranceExceeded:
		return "PRICE_TOLERANCE_EXCEEDED"
	case ErrorTypeStorage:
		return "STORAGE_ERROR"
	case ErrorTypeInconsistency:
		return "INCONSISTENCY_DETECTED"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeRateLimit:
		return "RATE_LIMIT_EXCEEDED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Error Response structure for API responses
type ErrorResponse struct {
	Status    string                 `json:"status"`
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// NewErrorResponse creates an error response from an Error
func NewErrorResponse(err *Error, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Status:    "error",
		ErrorCode: err.ErrorCode,
		Message:   err.Message,
		Details:   err.Details,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

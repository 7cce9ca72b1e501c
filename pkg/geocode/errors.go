package geocode

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure.
type ErrorKind int

const (
	// ErrorKindUnknown is any failure not covered below.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindRateLimited is a 429 from the provider.
	ErrorKindRateLimited
	// ErrorKindQuota is a refused or exhausted key (403, OVER_QUERY_LIMIT).
	ErrorKindQuota
	// ErrorKindInvalidRequest is a 400 or REQUEST_DENIED style answer.
	ErrorKindInvalidRequest
	// ErrorKindUnavailable is a 5xx or gateway failure.
	ErrorKindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindRateLimited:
		return "rate_limited"
	case ErrorKindQuota:
		return "quota"
	case ErrorKindInvalidRequest:
		return "invalid_request"
	case ErrorKindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocode: %s %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("geocode: %s %s: %s", e.Provider, e.Kind, e.Message)
}

// classifyStatus maps a non-200 HTTP status to an *Error.
func classifyStatus(provider string, statusCode int) *Error {
	e := &Error{Provider: provider, StatusCode: statusCode, Message: http.StatusText(statusCode)}
	switch statusCode {
	case http.StatusTooManyRequests:
		e.Kind = ErrorKindRateLimited
	case http.StatusForbidden, http.StatusUnauthorized:
		e.Kind = ErrorKindQuota
	case http.StatusBadRequest:
		e.Kind = ErrorKindInvalidRequest
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e.Kind = ErrorKindUnavailable
	default:
		e.Kind = ErrorKindUnknown
	}
	return e
}

// KindOf returns the classification of err, or ErrorKindUnknown when err
// carries no *Error.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrorKindUnknown
}

// IsRateLimited reports whether err is a provider rate-limit or quota refusal.
func IsRateLimited(err error) bool {
	k := KindOf(err)
	return k == ErrorKindRateLimited || k == ErrorKindQuota
}

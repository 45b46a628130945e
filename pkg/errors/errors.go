// Package errors defines unified error types for gateway operations.
// All provider-specific failures are mapped to these standard error types.
package errors

import (
	"fmt"
	"net/http"
)

// GatewayError represents a standardized error raised while serving a request.
// It carries everything needed for handling, logging, and the client response.
type GatewayError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Retryable  bool   `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] %s (provider=%s, model=%s, code=%d)",
		e.Type, e.Message, e.Provider, e.Model, e.StatusCode)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Error type constants.
const (
	TypeTransport          = "transport_error"
	TypeUpstream           = "upstream_error"
	TypeSafetyBlocked      = "safety_blocked"
	TypeAuthentication     = "authentication_error"
	TypeQuotaExceeded      = "quota_exceeded"
	TypeMalformedResponse  = "malformed_response"
	TypeRateLimit          = "rate_limit_error"
	TypeInvalidRequest     = "invalid_request_error"
	TypeNotFound           = "not_found_error"
	TypeTimeout            = "timeout_error"
	TypeServiceUnavailable = "service_unavailable_error"
	TypeInternalError      = "internal_error"
)

// NewTransportError wraps a network-level failure (502).
func NewTransportError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadGateway,
		Message:    message,
		Type:       TypeTransport,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewUpstreamError wraps a non-2xx upstream status.
func NewUpstreamError(provider, model string, statusCode int, message string) *GatewayError {
	return &GatewayError{
		StatusCode: statusCode,
		Message:    message,
		Type:       TypeUpstream,
		Provider:   provider,
		Model:      model,
		Retryable:  statusCode == http.StatusTooManyRequests || statusCode >= 500,
	}
}

// NewSafetyBlockedError reports a provider safety refusal (400, not retryable).
func NewSafetyBlockedError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeSafetyBlocked,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Type:       TypeAuthentication,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewQuotaExceededError creates a quota exhaustion error (429, not retryable
// within the same source).
func NewQuotaExceededError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeQuotaExceeded,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewMalformedResponseError reports an unparseable upstream body (502).
func NewMalformedResponseError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadGateway,
		Message:    message,
		Type:       TypeMalformedResponse,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimit,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewInvalidRequestError creates an invalid request error (400).
func NewInvalidRequestError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeInvalidRequest,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusNotFound,
		Message:    message,
		Type:       TypeNotFound,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewTimeoutError creates a timeout error (408).
func NewTimeoutError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusRequestTimeout,
		Message:    message,
		Type:       TypeTimeout,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewServiceUnavailableError creates a service unavailable error (503).
func NewServiceUnavailableError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    message,
		Type:       TypeServiceUnavailable,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(provider, model, message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Type:       TypeInternalError,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// IsAuthFailure reports whether err is a 401-class authentication failure.
// The selection walk uses this to decide when a lateral credits retry applies.
func IsAuthFailure(err error) bool {
	ge, ok := err.(*GatewayError)
	if !ok {
		return false
	}
	return ge.Type == TypeAuthentication || ge.StatusCode == http.StatusUnauthorized
}

// IsQuotaExceeded reports whether err is a quota exhaustion failure.
func IsQuotaExceeded(err error) bool {
	ge, ok := err.(*GatewayError)
	return ok && ge.Type == TypeQuotaExceeded
}

// AsGatewayError coerces any error into a *GatewayError, wrapping unknown
// errors as internal.
func AsGatewayError(err error) *GatewayError {
	if ge, ok := err.(*GatewayError); ok {
		return ge
	}
	return NewInternalError("", "", err.Error())
}

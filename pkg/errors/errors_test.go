package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactoryStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		err       *GatewayError
		status    int
		errType   string
		retryable bool
	}{
		{"transport", NewTransportError("openai", "gpt-4o", "connection reset"), http.StatusBadGateway, TypeTransport, true},
		{"safety", NewSafetyBlockedError("gemini", "gemini-2.0-flash", "SAFETY"), http.StatusBadRequest, TypeSafetyBlocked, false},
		{"auth", NewAuthenticationError("anthropic", "claude-sonnet-4", "bad key"), http.StatusUnauthorized, TypeAuthentication, false},
		{"quota", NewQuotaExceededError("openai", "gpt-4o", "monthly limit"), http.StatusTooManyRequests, TypeQuotaExceeded, false},
		{"malformed", NewMalformedResponseError("groq", "llama-3.1-70b", "bad json"), http.StatusBadGateway, TypeMalformedResponse, false},
		{"rate limit", NewRateLimitError("openai", "gpt-4o", "slow down"), http.StatusTooManyRequests, TypeRateLimit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatusCode())
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestUpstreamRetryability(t *testing.T) {
	assert.True(t, NewUpstreamError("openai", "m", 503, "x").Retryable)
	assert.True(t, NewUpstreamError("openai", "m", 429, "x").Retryable)
	assert.False(t, NewUpstreamError("openai", "m", 400, "x").Retryable)
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(NewAuthenticationError("p", "m", "x")))
	assert.True(t, IsAuthFailure(NewUpstreamError("p", "m", 401, "x")))
	assert.False(t, IsAuthFailure(NewUpstreamError("p", "m", 500, "x")))
	assert.False(t, IsAuthFailure(errors.New("plain")))
}

func TestAsGatewayError(t *testing.T) {
	ge := NewRateLimitError("p", "m", "x")
	assert.Same(t, ge, AsGatewayError(ge))

	wrapped := AsGatewayError(errors.New("boom"))
	assert.Equal(t, TypeInternalError, wrapped.Type)
	assert.Equal(t, "boom", wrapped.Message)
}

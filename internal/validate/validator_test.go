package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

func TestValidateOpenAIClean(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","choices":[{"message":{"content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
	require.NoError(t, res.Err)
	assert.Empty(t, res.Warnings)
}

func TestValidateAnthropicErrorBody(t *testing.T) {
	body := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	res := Validate(body, registry.FamilyAnthropic, "anthropic", "claude-sonnet-4")
	require.Error(t, res.Err)
	ge := gwerrors.AsGatewayError(res.Err)
	assert.Contains(t, ge.Message, "Overloaded")
}

func TestValidateGoogleSafetyBlock(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"prompt feedback", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"candidate finish reason", `{"candidates":[{"finishReason":"SAFETY","content":{"parts":[]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate([]byte(tt.body), registry.FamilyGoogle, "gemini", "gemini-2.5-pro")
			require.Error(t, res.Err)
			assert.Equal(t, gwerrors.TypeSafetyBlocked, gwerrors.AsGatewayError(res.Err).Type)
		})
	}
}

func TestValidateOpenAIContentFilter(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`)
	res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
	require.Error(t, res.Err)
	assert.Equal(t, gwerrors.TypeSafetyBlocked, gwerrors.AsGatewayError(res.Err).Type)
}

func TestValidateNotJSON(t *testing.T) {
	res := Validate([]byte("<html>bad gateway</html>"), registry.FamilyOpenAI, "openai", "gpt-4o")
	require.Error(t, res.Err)
	assert.Equal(t, gwerrors.TypeMalformedResponse, gwerrors.AsGatewayError(res.Err).Type)
}

func TestValidateWarnings(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		body := []byte(`{"choices":[{"message":{"content":"  "},"finish_reason":"stop"}]}`)
		res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
		require.NoError(t, res.Err)
		assert.Contains(t, strings.Join(res.Warnings, "; "), "empty")
	})

	t.Run("oversized content", func(t *testing.T) {
		big := strings.Repeat("a", maxReasonableContentLen+1)
		body := []byte(`{"choices":[{"message":{"content":"` + big + `"},"finish_reason":"stop"}]}`)
		res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
		require.NoError(t, res.Err)
		assert.Contains(t, strings.Join(res.Warnings, "; "), "unusually large")
	})

	t.Run("truncation marker", func(t *testing.T) {
		body := []byte(`{"choices":[{"message":{"content":"partial output [truncated]"},"finish_reason":"stop"}]}`)
		res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
		require.NoError(t, res.Err)
		assert.Contains(t, strings.Join(res.Warnings, "; "), "truncated")
	})

	t.Run("implausible usage", func(t *testing.T) {
		body := []byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5000000,"completion_tokens":1,"total_tokens":5000001}}`)
		res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
		require.NoError(t, res.Err)
		assert.Contains(t, strings.Join(res.Warnings, "; "), "implausibly large")
	})

	t.Run("model mismatch", func(t *testing.T) {
		body := []byte(`{"model":"grok-3","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`)
		res := Validate(body, registry.FamilyOpenAI, "openai", "gpt-4o")
		require.NoError(t, res.Err)
		assert.Contains(t, strings.Join(res.Warnings, "; "), "differs from requested")
	})
}

func TestModelMatches(t *testing.T) {
	tests := []struct {
		requested, got string
		want           bool
	}{
		{"gpt-4o", "gpt-4o", true},
		{"claude-sonnet-4", "claude-sonnet-4-20250514", true},
		{"gemini-2.5-pro", "gemini-2.5-pro-0605", true},
		{"gpt-4o", "gpt-4o-2024-08-06", true},
		{"gpt-4o", "grok-3", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModelMatches(tt.requested, tt.got), "%s vs %s", tt.requested, tt.got)
	}
}

func TestKeyExhaustion(t *testing.T) {
	tests := []struct {
		msg                  string
		exhausted, permanent bool
	}{
		{"You exceeded your current quota, please check your plan and billing details.", true, true},
		{"insufficient_quota", true, true},
		{"Your credit balance is too low to access the API.", true, true},
		{"Rate limit reached for requests", true, false},
		{"Too many requests, please try again later", true, false},
		{"invalid request body", false, false},
	}
	for _, tt := range tests {
		ex, perm := KeyExhaustion(tt.msg)
		assert.Equal(t, tt.exhausted, ex, tt.msg)
		assert.Equal(t, tt.permanent, perm, tt.msg)
	}
}

func TestSanitize(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","metadata":{"api_key":"sk-secret","nested":{"Authorization":"Bearer x","keep":"yes"}},"items":[{"access_token":"abc","id":1}]}`)
	out := Sanitize(body)
	s := string(out)
	assert.NotContains(t, s, "sk-secret")
	assert.NotContains(t, s, "Bearer x")
	assert.NotContains(t, s, "access_token")
	assert.Contains(t, s, `"keep":"yes"`)
	assert.Contains(t, s, `"id":1`)
}

func TestSanitizePassthroughOnNonJSON(t *testing.T) {
	in := []byte("plain text")
	assert.Equal(t, in, Sanitize(in))
}

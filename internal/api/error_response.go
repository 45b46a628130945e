package api //nolint:revive // package name is intentional

import gwerrors "github.com/polydev-ai/polygate/pkg/errors"

// ErrorResponse is the envelope every failed request returns. The shape
// follows the OpenAI error object so existing SDKs can parse it; provider
// and model name the upstream leg that failed, when one is known.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// errorEnvelope shapes a classified gateway error for the wire.
func errorEnvelope(ge *gwerrors.GatewayError) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{
		Message:  ge.Message,
		Type:     ge.Type,
		Provider: ge.Provider,
		Model:    ge.Model,
	}}
}

// Package validate inspects upstream response bodies before they reach
// clients: provider-signaled errors become typed failures, suspicious shapes
// become warnings, and credential material is stripped from anything echoed
// back.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

const (
	maxReasonableContentLen = 100000
	maxPlausibleTokenCount  = 1000000
)

// Result carries the outcome of validating one response body.
type Result struct {
	// Err is non-nil when the body embeds a provider error or safety block.
	Err error

	// Warnings flag suspicious but servable responses.
	Warnings []string
}

// Valid reports whether the response can be served.
func (r Result) Valid() bool { return r.Err == nil }

// datedVariantSuffix strips release-date suffixes when comparing model names.
var datedVariantSuffix = regexp.MustCompile(`-\d{4,}(-\d{2})?(-\d{2})?$`)

// truncationMarkers appearing at the end of content suggest a cut-off reply.
var truncationMarkers = []string{"[truncated]", "[continued]", "[output truncated]", "..."}

// Validate inspects a raw response body for the given wire family.
func Validate(body []byte, family registry.WireFamily, provider, requestedModel string) Result {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{Err: gwerrors.NewMalformedResponseError(provider, requestedModel, "response is not a JSON object")}
	}

	if err := providerError(payload, family, provider, requestedModel); err != nil {
		return Result{Err: err}
	}

	res := Result{}
	content, hasContent := extractContent(payload, family)
	if !hasContent {
		res.Warnings = append(res.Warnings, "response is missing expected content fields")
	} else if strings.TrimSpace(content) == "" {
		res.Warnings = append(res.Warnings, "response content is empty")
	} else if len(content) > maxReasonableContentLen {
		res.Warnings = append(res.Warnings, fmt.Sprintf("response content is unusually large (%d chars)", len(content)))
	}

	trimmed := strings.TrimSpace(content)
	for _, marker := range truncationMarkers {
		if strings.HasSuffix(trimmed, marker) {
			res.Warnings = append(res.Warnings, "response content appears truncated")
			break
		}
	}

	res.Warnings = append(res.Warnings, usageWarnings(payload, family)...)

	if got := responseModel(payload); got != "" && requestedModel != "" && !ModelMatches(requestedModel, got) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("response model %q differs from requested %q", got, requestedModel))
	}

	return res
}

// providerError detects error shapes embedded in 200-status bodies.
func providerError(payload map[string]json.RawMessage, family registry.WireFamily, provider, model string) error {
	switch family {
	case registry.FamilyAnthropic:
		var typ string
		if raw, ok := payload["type"]; ok {
			_ = json.Unmarshal(raw, &typ)
		}
		if typ == "error" {
			msg := "provider returned an error"
			if raw, ok := payload["error"]; ok {
				var e struct {
					Message string `json:"message"`
				}
				if json.Unmarshal(raw, &e) == nil && e.Message != "" {
					msg = e.Message
				}
			}
			return gwerrors.NewUpstreamError(provider, model, 502, msg)
		}

	case registry.FamilyGoogle:
		if raw, ok := payload["promptFeedback"]; ok {
			var fb struct {
				BlockReason string `json:"blockReason"`
			}
			if json.Unmarshal(raw, &fb) == nil && fb.BlockReason != "" {
				return gwerrors.NewSafetyBlockedError(provider, model, "prompt blocked: "+fb.BlockReason)
			}
		}
		if cand, ok := googleFirstCandidate(payload); ok && cand.FinishReason == "SAFETY" {
			return gwerrors.NewSafetyBlockedError(provider, model, "candidate blocked: SAFETY")
		}

	default:
		if raw, ok := payload["error"]; ok && string(raw) != "null" {
			var e struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}
			if json.Unmarshal(raw, &e) == nil && (e.Message != "" || e.Type != "") {
				if e.Type == "invalid_organization" {
					return gwerrors.NewAuthenticationError(provider, model, e.Message)
				}
				return gwerrors.NewUpstreamError(provider, model, 502, e.Message)
			}
		}
		if fr := openaiFinishReason(payload); fr == "content_filter" {
			return gwerrors.NewSafetyBlockedError(provider, model, "completion stopped by content filter")
		}
	}
	return nil
}

type googleCandidate struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

func googleFirstCandidate(payload map[string]json.RawMessage) (*googleCandidate, bool) {
	raw, ok := payload["candidates"]
	if !ok {
		return nil, false
	}
	var list []googleCandidate
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return &list[0], true
	}
	var single googleCandidate
	if err := json.Unmarshal(raw, &single); err == nil {
		return &single, true
	}
	return nil, false
}

func openaiFinishReason(payload map[string]json.RawMessage) string {
	raw, ok := payload["choices"]
	if !ok {
		return ""
	}
	var choices []struct {
		FinishReason string `json:"finish_reason"`
	}
	if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
		return ""
	}
	return choices[0].FinishReason
}

func responseModel(payload map[string]json.RawMessage) string {
	raw, ok := payload["model"]
	if !ok {
		return ""
	}
	var model string
	_ = json.Unmarshal(raw, &model)
	return model
}

// ModelMatches tolerates dated variants and prefix relationships between the
// requested model and the one the provider reports.
func ModelMatches(requested, got string) bool {
	if requested == got {
		return true
	}
	if strings.Contains(got, requested) || strings.Contains(requested, got) {
		return true
	}
	return datedVariantSuffix.ReplaceAllString(requested, "") == datedVariantSuffix.ReplaceAllString(got, "")
}

// usageWarnings checks reported token counts for impossible values.
func usageWarnings(payload map[string]json.RawMessage, family registry.WireFamily) []string {
	counts := map[string]float64{}

	switch family {
	case registry.FamilyGoogle:
		if raw, ok := payload["usageMetadata"]; ok {
			var u struct {
				PromptTokenCount     *float64 `json:"promptTokenCount"`
				CandidatesTokenCount *float64 `json:"candidatesTokenCount"`
				TotalTokenCount      *float64 `json:"totalTokenCount"`
			}
			if json.Unmarshal(raw, &u) == nil {
				if u.PromptTokenCount != nil {
					counts["promptTokenCount"] = *u.PromptTokenCount
				}
				if u.CandidatesTokenCount != nil {
					counts["candidatesTokenCount"] = *u.CandidatesTokenCount
				}
				if u.TotalTokenCount != nil {
					counts["totalTokenCount"] = *u.TotalTokenCount
				}
			}
		}
	case registry.FamilyAnthropic:
		if raw, ok := payload["usage"]; ok {
			var u struct {
				InputTokens  *float64 `json:"input_tokens"`
				OutputTokens *float64 `json:"output_tokens"`
			}
			if json.Unmarshal(raw, &u) == nil {
				if u.InputTokens != nil {
					counts["input_tokens"] = *u.InputTokens
				}
				if u.OutputTokens != nil {
					counts["output_tokens"] = *u.OutputTokens
				}
			}
		}
	default:
		if raw, ok := payload["usage"]; ok {
			var u struct {
				PromptTokens     *float64 `json:"prompt_tokens"`
				CompletionTokens *float64 `json:"completion_tokens"`
				TotalTokens      *float64 `json:"total_tokens"`
			}
			if json.Unmarshal(raw, &u) == nil {
				if u.PromptTokens != nil {
					counts["prompt_tokens"] = *u.PromptTokens
				}
				if u.CompletionTokens != nil {
					counts["completion_tokens"] = *u.CompletionTokens
				}
				if u.TotalTokens != nil {
					counts["total_tokens"] = *u.TotalTokens
				}
			}
		}
	}

	var warns []string
	for field, v := range counts {
		switch {
		case v < 0:
			warns = append(warns, fmt.Sprintf("usage field %s is negative", field))
		case v != float64(int64(v)):
			warns = append(warns, fmt.Sprintf("usage field %s is not an integer", field))
		case v > maxPlausibleTokenCount:
			warns = append(warns, fmt.Sprintf("usage field %s is implausibly large", field))
		}
	}
	return warns
}

// extractContent pulls the primary text by family-specific paths.
func extractContent(payload map[string]json.RawMessage, family registry.WireFamily) (string, bool) {
	switch family {
	case registry.FamilyAnthropic:
		raw, ok := payload["content"]
		if !ok {
			return "", false
		}
		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return "", false
		}
		var out string
		for _, b := range blocks {
			if b.Type == "text" || b.Type == "" {
				out += b.Text
			}
		}
		return out, true

	case registry.FamilyGoogle:
		cand, ok := googleFirstCandidate(payload)
		if !ok {
			return "", false
		}
		var out string
		for _, p := range cand.Content.Parts {
			out += p.Text
		}
		return out, true

	default:
		raw, ok := payload["choices"]
		if !ok {
			return "", false
		}
		var choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
			return "", false
		}
		if choices[0].Message.Content != "" {
			return choices[0].Message.Content, true
		}
		return choices[0].Text, true
	}
}

// ExtractContent is the exported convenience over a raw body.
func ExtractContent(body []byte, family registry.WireFamily) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	content, _ := extractContent(payload, family)
	return content
}

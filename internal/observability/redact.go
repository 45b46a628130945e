package observability

import "regexp"

// Redactor masks provider credentials before they reach a log sink. The
// rule set covers every key shape the gateway routes: OpenAI sk-/sk-proj-,
// Anthropic sk-ant-, OpenRouter sk-or-, Groq gsk_, xAI xai-, Google AIza,
// Vault hvs. tokens, and bearer values.
type Redactor struct {
	rules []maskRule
}

type maskRule struct {
	re   *regexp.Regexp
	mask string
}

// Ordered most-specific first so sk-ant- never matches as a bare sk- key.
var credentialRules = []maskRule{
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{16,}`), "[masked:anthropic-key]"},
	{regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{16,}`), "[masked:openai-project-key]"},
	{regexp.MustCompile(`sk-or-[A-Za-z0-9_-]{16,}`), "[masked:openrouter-key]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`), "[masked:openai-key]"},
	{regexp.MustCompile(`gsk_[A-Za-z0-9]{16,}`), "[masked:groq-key]"},
	{regexp.MustCompile(`xai-[A-Za-z0-9_-]{16,}`), "[masked:xai-key]"},
	{regexp.MustCompile(`AIza[A-Za-z0-9_-]{35}`), "[masked:google-key]"},
	{regexp.MustCompile(`hvs\.[A-Za-z0-9_-]{16,}`), "[masked:vault-token]"},
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/-]+=*`), "Bearer [masked]"},
}

// NewRedactor returns a redactor carrying the gateway's credential rules.
func NewRedactor() *Redactor {
	return &Redactor{rules: credentialRules}
}

// Redact masks every credential found in s.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.mask)
	}
	return s
}

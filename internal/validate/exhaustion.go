package validate

import "strings"

// permanentExhaustionPatterns indicate a key with no remaining quota or a
// billing problem; retrying with the same key will not help.
var permanentExhaustionPatterns = []string{
	"insufficient_quota",
	"insufficient quota",
	"exceeded your current quota",
	"billing",
	"payment required",
	"account is not active",
	"credit balance is too low",
	"quota exceeded",
	"monthly limit",
}

// temporaryExhaustionPatterns indicate per-minute throttling that clears on
// its own.
var temporaryExhaustionPatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"requests per minute",
	"tokens per minute",
	"overloaded",
	"try again",
}

// KeyExhaustion classifies an upstream error message. exhausted reports
// whether the credential hit a limit at all; permanent distinguishes spent
// quota from transient throttling.
func KeyExhaustion(message string) (exhausted, permanent bool) {
	m := strings.ToLower(message)
	for _, p := range permanentExhaustionPatterns {
		if strings.Contains(m, p) {
			return true, true
		}
	}
	for _, p := range temporaryExhaustionPatterns {
		if strings.Contains(m, p) {
			return true, false
		}
	}
	return false, false
}

package registry

import "github.com/polydev-ai/polygate/internal/ratelimit"

// Builtin provider descriptors. Base URLs and auth headers follow each
// provider's published API surface; per-minute limits reflect the most
// common entry tier and stay advisory.
func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:           "anthropic",
			DisplayName:  "Anthropic",
			BaseURL:      "https://api.anthropic.com",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyAnthropic,
			APIKeyHeader: "x-api-key",
			ExtraHeaders: map[string]string{"anthropic-version": "2023-06-01"},
			DefaultModel: "claude-sonnet-4-20250514",
			ModelPrefixes: []string{
				"claude",
			},
			Limits:       ratelimit.Limits{RequestsPerMinute: 1000, TokensPerMinute: 80000},
			RetryProfile: RetryRateLimit,
		},
		{
			ID:           "openai",
			DisplayName:  "OpenAI",
			BaseURL:      "https://api.openai.com/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "gpt-4o",
			ModelPrefixes: []string{
				"gpt", "o1", "o3", "o4", "chatgpt",
			},
			Limits:       ratelimit.Limits{RequestsPerMinute: 3500, TokensPerMinute: 350000},
			RetryProfile: RetryNetwork,
		},
		{
			ID:           "gemini",
			DisplayName:  "Google Gemini",
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyGoogle,
			APIKeyHeader: "x-goog-api-key",
			DefaultModel: "gemini-2.0-flash-exp",
			ModelPrefixes: []string{
				"gemini",
			},
			Limits:       ratelimit.Limits{RequestsPerMinute: 300, TokensPerMinute: 32000},
			RetryProfile: RetryRateLimit,
		},
		{
			ID:           "vertex",
			DisplayName:  "Google Vertex AI",
			BaseURL:      "https://us-central1-aiplatform.googleapis.com/v1",
			AuthType:     AuthOAuth,
			WireFamily:   FamilyGoogle,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "gemini-2.0-flash-exp",
		},
		{
			ID:           "xai",
			DisplayName:  "xAI",
			BaseURL:      "https://api.x.ai/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "grok-3",
			ModelPrefixes: []string{
				"grok",
			},
		},
		{
			ID:           "deepseek",
			DisplayName:  "DeepSeek",
			BaseURL:      "https://api.deepseek.com",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "deepseek-chat",
			ModelPrefixes: []string{
				"deepseek",
			},
		},
		{
			ID:           "mistral",
			DisplayName:  "Mistral AI",
			BaseURL:      "https://api.mistral.ai/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "mistral-large-latest",
			ModelPrefixes: []string{
				"mistral", "mixtral", "codestral",
			},
		},
		{
			ID:           "groq",
			DisplayName:  "Groq",
			BaseURL:      "https://api.groq.com/openai/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "llama-3.1-70b-versatile",
			Limits:       ratelimit.Limits{RequestsPerMinute: 30, TokensPerMinute: 14400},
			RetryProfile: RetryRateLimit,
		},
		{
			ID:           "openrouter",
			DisplayName:  "OpenRouter",
			BaseURL:      "https://openrouter.ai/api/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": "https://polydev.ai",
				"X-Title":      "Polydev",
			},
			DefaultModel: "meta-llama/llama-3.2-90b-vision-instruct",
		},
		{
			ID:           "bedrock",
			DisplayName:  "Amazon Bedrock",
			BaseURL:      "https://bedrock-runtime.us-east-1.amazonaws.com",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyAnthropic,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "anthropic.claude-sonnet-4-20250514-v1:0",
		},
		{
			ID:           "fireworks",
			DisplayName:  "Fireworks AI",
			BaseURL:      "https://api.fireworks.ai/inference/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "accounts/fireworks/models/llama-v3p1-70b-instruct",
		},
		{
			ID:           "together",
			DisplayName:  "Together AI",
			BaseURL:      "https://api.together.xyz/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "meta-llama/Llama-3.1-70B-Instruct-Turbo",
		},
		{
			ID:           "sambanova",
			DisplayName:  "SambaNova",
			BaseURL:      "https://api.sambanova.ai/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "Meta-Llama-3.1-70B-Instruct",
		},
		{
			ID:           "cerebras",
			DisplayName:  "Cerebras",
			BaseURL:      "https://api.cerebras.ai/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "llama-3.3-70b",
			ModelPrefixes: []string{
				"qwen",
			},
		},
		{
			ID:           "perplexity",
			DisplayName:  "Perplexity",
			BaseURL:      "https://api.perplexity.ai",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "llama-3.1-sonar-large-128k-online",
			ModelPrefixes: []string{
				"sonar",
			},
		},
		{
			ID:           "ollama",
			DisplayName:  "Ollama",
			BaseURL:      "http://localhost:11434",
			AuthType:     AuthNone,
			WireFamily:   FamilyOpenAI,
			DefaultModel: "llama3.1",
		},
		{
			ID:           "lmstudio",
			DisplayName:  "LM Studio",
			BaseURL:      "http://localhost:1234/v1",
			AuthType:     AuthNone,
			WireFamily:   FamilyOpenAI,
			DefaultModel: "local-model",
		},
		{
			ID:           "huggingface",
			DisplayName:  "Hugging Face",
			BaseURL:      "https://api-inference.huggingface.co/v1",
			AuthType:     AuthAPIKey,
			WireFamily:   FamilyOpenAI,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			DefaultModel: "meta-llama/Llama-3.1-70B-Instruct",
		},
		{
			ID:           "claude-code",
			DisplayName:  "Claude Code",
			BaseURL:      "cli://claude",
			AuthType:     AuthCLI,
			WireFamily:   FamilyAnthropic,
			DefaultModel: "claude-sonnet-4-20250514",
		},
		{
			ID:           "codex-cli",
			DisplayName:  "Codex CLI",
			BaseURL:      "cli://codex",
			AuthType:     AuthCLI,
			WireFamily:   FamilyOpenAI,
			DefaultModel: "gpt-4o",
		},
		{
			ID:           "gemini-cli",
			DisplayName:  "Gemini CLI",
			BaseURL:      "cli://gemini",
			AuthType:     AuthCLI,
			WireFamily:   FamilyGoogle,
			DefaultModel: "gemini-2.5-pro",
		},
	}
}

package config

import (
	"os"
)

// applyAnthropicEnv overrides the Anthropic section from the environment.
func applyAnthropicEnv(p *ProviderConfig) {
	if keys := getAnthropicAPIKeysFromEnv(); len(keys) > 0 {
		p.APIKeys = keys
	}
	if baseURL := os.Getenv("ANTHROPIC_BASE_URL"); baseURL != "" {
		p.APIBase = baseURL
	}
}

// getAnthropicAPIKeysFromEnv gets the Anthropic API keys from environment variables.
func getAnthropicAPIKeysFromEnv() []string {
	if keys := splitKeys(os.Getenv("ANTHROPIC_API_KEYS")); len(keys) > 0 {
		return keys
	}
	return splitKeys(os.Getenv("ANTHROPIC_API_KEY"))
}

package config

import (
	"os"
	"strings"

	"github.com/samber/lo"
)

// applyOpenAIEnv overrides the OpenAI section from the environment.
func applyOpenAIEnv(p *ProviderConfig) {
	if keys := getOpenAIAPIKeysFromEnv(); len(keys) > 0 {
		p.APIKeys = keys
	}
	if baseURL := getOpenAIBaseURLFromEnv(); baseURL != "" {
		p.APIBase = baseURL
	}
	if org := getOpenAIOrgFromEnv(); org != "" {
		p.Organization = org
	}
}

// getOpenAIAPIKeysFromEnv gets the OpenAI API keys from environment variables.
// OPENAI_API_KEYS holds a comma separated list and wins over OPENAI_API_KEY.
func getOpenAIAPIKeysFromEnv() []string {
	if keys := splitKeys(os.Getenv("OPENAI_API_KEYS")); len(keys) > 0 {
		return keys
	}
	return splitKeys(os.Getenv("OPENAI_API_KEY"))
}

// getOpenAIBaseURLFromEnv gets the OpenAI base URL from environment variable.
// The lower-case api_base variable is honored for older deployments.
func getOpenAIBaseURLFromEnv() string {
	if base := os.Getenv("api_base"); base != "" {
		return base
	}
	return os.Getenv("OPENAI_BASE_URL")
}

// getOpenAIOrgFromEnv gets the OpenAI organization ID from environment variable.
func getOpenAIOrgFromEnv() string {
	return os.Getenv("OPENAI_ORG_ID")
}

// getProxyFromEnv returns the first proxy variable that is set.
func getProxyFromEnv() string {
	for _, name := range []string{"http_proxy", "HTTPS_PROXY", "HTTP_PROXY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func splitKeys(value string) []string {
	return lo.Uniq(lo.Compact(lo.Map(strings.Split(value, ","), func(k string, _ int) string {
		return strings.TrimSpace(k)
	})))
}

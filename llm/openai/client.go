package openai

import (
	"errors"
	"fmt"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	openai "github.com/sashabaranov/go-openai"
)

// ClientConfig holds the settings shared by every client in a pool.
type ClientConfig struct {
	llm.TransportConfig
	Organization string // Optional organization ID
}

// NewClientFactory returns a keypool.Factory that builds go-openai clients
// bound to a key.
func NewClientFactory(cfg ClientConfig) (keypool.Factory[*openai.Client], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return func(apiKey string) (*openai.Client, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("api key is required")
		}

		config := openai.DefaultConfig(apiKey)

		// Set custom base URL if provided
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}

		// Set organization if provided
		if cfg.Organization != "" {
			config.OrgID = cfg.Organization
		}

		config.HTTPClient = cfg.NewHTTPClient()
		return openai.NewClientWithConfig(config), nil
	}, nil
}

// IsAPIError reports whether err was produced by the OpenAI API itself, as
// opposed to the network or the local process. Only API errors are handed
// to the credential pool for classification.
func IsAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

// StatusCode returns the HTTP status of an OpenAI API error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// ClassifyError checks the structured error code first and falls back to
// the provider-neutral text heuristics.
func ClassifyError(err error) llm.Classification {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		switch {
		case code == "insufficient_quota", code == "account_deactivated", apiErr.Type == "insufficient_quota":
			return llm.ClassKeyExhausted
		case code == "context_length_exceeded":
			return llm.ClassContextTooLong
		}
	}
	return llm.ClassifyError(err)
}

package llm

import (
	"errors"
	"fmt"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	StatusCode  int   // HTTP status of the provider response, 0 when there was none
	Attempts    int   // Number of invocation attempts made, set for retries-exhausted errors
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeKeyExhausted         ErrorType = "key_exhausted"
	ErrorTypeContextTooLong       ErrorType = "context_too_long"
	ErrorTypeProvider             ErrorType = "provider"
	ErrorTypeRetriesExhausted     ErrorType = "retries_exhausted"
	ErrorTypeNoKeysAvailable      ErrorType = "no_keys_available"
	ErrorTypeInvalidConfiguration ErrorType = "invalid_configuration"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

func hasType(err error, t ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == t
	}
	return false
}

// IsKeyExhaustedError checks if an error reports an exhausted or deactivated credential.
func IsKeyExhaustedError(err error) bool {
	return hasType(err, ErrorTypeKeyExhausted)
}

// IsContextTooLongError checks if an error reports a request over the model's context limit.
func IsContextTooLongError(err error) bool {
	return hasType(err, ErrorTypeContextTooLong)
}

// IsRetriesExhaustedError checks if an error is the terminal error of a call that used up every attempt.
func IsRetriesExhaustedError(err error) bool {
	return hasType(err, ErrorTypeRetriesExhausted)
}

// IsNoKeysAvailableError checks if an error reports an empty credential pool.
func IsNoKeysAvailableError(err error) bool {
	return hasType(err, ErrorTypeNoKeysAvailable)
}

// IsInvalidConfigurationError checks if an error is a construction-time validation failure.
func IsInvalidConfigurationError(err error) bool {
	return hasType(err, ErrorTypeInvalidConfiguration)
}

// ExtractStatusCode returns the provider HTTP status carried by an error, or 0.
func ExtractStatusCode(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return 0
}

// NewKeyExhaustedError creates a new key exhausted error.
func NewKeyExhaustedError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeKeyExhausted,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewContextTooLongError creates a new context too long error.
func NewContextTooLongError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeContextTooLong,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewRetriesExhaustedError creates the terminal error for a call that failed on every attempt.
// lastErr is the error from the final attempt.
func NewRetriesExhaustedError(attempts int, lastErr error) *Error {
	return &Error{
		Type:        ErrorTypeRetriesExhausted,
		Message:     fmt.Sprintf("still failing after %d attempts", attempts),
		Attempts:    attempts,
		ProviderErr: lastErr,
	}
}

// NewNoKeysAvailableError creates the fatal error raised once every API key has been removed.
func NewNoKeysAvailableError(providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeNoKeysAvailable,
		Message:     "no usable API keys remain, update the configuration",
		ProviderErr: providerErr,
	}
}

// NewInvalidConfigurationError creates a construction-time validation error.
func NewInvalidConfigurationError(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeInvalidConfiguration,
		Message: "invalid configuration: " + fmt.Sprintf(format, args...),
	}
}

package llm

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// Classification is the verdict of a Classifier for a failed call.
type Classification string

const (
	// ClassKeyExhausted means the credential is out of quota or deactivated.
	// The caller should drop the key, rotate and retry.
	ClassKeyExhausted Classification = "key-exhausted"
	// ClassContextTooLong means the request exceeds the model's context window.
	ClassContextTooLong Classification = "context-too-long"
	// ClassUnclassified means no special handling applies.
	ClassUnclassified Classification = "unclassified"
)

// Classifier decides how a failed call should be treated.
// Implementations must be pure and safe for concurrent use.
type Classifier func(err error) Classification

var (
	keyExhaustedMarkers = []string{
		"quota",
		"insufficient_quota",
		"deactivated",
		"credit balance is too low",
		"organization has been disabled",
	}
	contextTooLongMarkers = []string{
		"context length",
		"context_length_exceeded",
		"maximum context length",
		"prompt is too long",
	}
)

// ClassifyError is the default Classifier.
//
// Typed *Error values keep their type. Everything else is matched on the
// lower-cased error text, which is best-effort: provider error messages are
// not a stable contract and may change between SDK versions.
func ClassifyError(err error) Classification {
	if err == nil {
		return ClassUnclassified
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		switch llmErr.Type {
		case ErrorTypeKeyExhausted:
			return ClassKeyExhausted
		case ErrorTypeContextTooLong:
			return ClassContextTooLong
		}
	}

	return ClassifyText(err.Error())
}

// ClassifyText applies the substring heuristics to raw error text.
func ClassifyText(text string) Classification {
	lower := strings.ToLower(text)
	contains := func(marker string) bool {
		return strings.Contains(lower, marker)
	}
	switch {
	case lo.SomeBy(contextTooLongMarkers, contains):
		return ClassContextTooLong
	case lo.SomeBy(keyExhaustedMarkers, contains):
		return ClassKeyExhausted
	default:
		return ClassUnclassified
	}
}

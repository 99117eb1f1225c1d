package llm

import (
	"context"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
// This is provider-neutral and can represent user, assistant, or system messages.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewTextMessage creates a new message with text content.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role:    role,
		Content: text,
	}
}

// Modality is one of the supported request kinds.
type Modality string

const (
	ModalityCompletion Modality = "completion"
	ModalityChat       Modality = "chat"
	ModalityEmbedding  Modality = "embedding"
)

// Usage represents token usage information from an LLM response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the canonical output shared by every modality.
// Text modalities fill Content; the embedding modality fills Embedding and
// leaves all token counts at zero.
type Result struct {
	Content     string    `json:"content,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	SendTokens  int       `json:"send_tokens"`
	RecvTokens  int       `json:"recv_tokens"`
	TotalTokens int       `json:"total_tokens"`
}

// NewTextResult builds a Result from generated text and reported usage.
// A missing total is derived from the prompt and completion counts.
func NewTextResult(content string, usage Usage) Result {
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	return Result{
		Content:     content,
		SendTokens:  usage.PromptTokens,
		RecvTokens:  usage.CompletionTokens,
		TotalTokens: total,
	}
}

// NewEmbeddingResult builds a Result carrying a single embedding vector.
func NewEmbeddingResult(vec []float32) Result {
	return Result{Embedding: vec}
}

// Model is implemented by every modality adapter.
type Model interface {
	// Generate performs one orchestrated call for a single input.
	Generate(ctx context.Context, prompt string) (Result, error)

	// Modality reports which request kind the model serves.
	Modality() Modality
}

// BatchModel is implemented by models that can fan a batch of inputs out
// into independent concurrent calls.
type BatchModel interface {
	Model

	// GenerateBatch returns one Result per input, in input order.
	GenerateBatch(ctx context.Context, inputs []string) ([]Result, error)
}

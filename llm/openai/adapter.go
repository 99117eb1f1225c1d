package openai

import (
	"math"
	"strings"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// reasoningModelPrefixes lists model families that reject max_tokens in
// favour of max_completion_tokens.
var reasoningModelPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// ToOpenAIMessages converts llm.Messages to OpenAI chat message format.
func ToOpenAIMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	return lo.Map(msgs, func(msg llm.Message, _ int) openai.ChatCompletionMessage {
		return ToOpenAIMessage(msg)
	})
}

// ToOpenAIMessage converts a single llm.Message to OpenAI format.
func ToOpenAIMessage(msg llm.Message) openai.ChatCompletionMessage {
	var role string
	switch msg.Role {
	case llm.RoleUser:
		role = openai.ChatMessageRoleUser
	case llm.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		role = openai.ChatMessageRoleSystem
	default:
		role = openai.ChatMessageRoleUser // Default fallback
	}
	return openai.ChatCompletionMessage{
		Role:    role,
		Content: msg.Content,
	}
}

// PromptMessages wraps a bare prompt as a single user message.
func PromptMessages(prompt string) []llm.Message {
	return []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)}
}

// ToChatCompletionRequest builds the request for a conversation.
// BestOf is a completion-era option and is never sent.
func ToChatCompletionRequest(opts llm.Options, msgs []llm.Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:            opts.Model,
		Messages:         ToOpenAIMessages(msgs),
		Temperature:      wireFloat(opts.Temperature),
		TopP:             wireFloat(opts.TopP),
		N:                opts.N,
		Stop:             opts.Stop,
		PresencePenalty:  opts.PresencePenalty,
		FrequencyPenalty: opts.FrequencyPenalty,
	}
	if isReasoningModel(opts.Model) {
		req.MaxCompletionTokens = opts.MaxTokens
	} else {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

// ToEmbeddingRequest builds the request for embedding a single input.
func ToEmbeddingRequest(opts llm.Options, input string) openai.EmbeddingRequest {
	return openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(opts.Model),
	}
}

// wireFloat keeps an explicit zero on the wire. go-openai omits zero
// sampling parameters, which the API reads as its default of 1.
func wireFloat(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

func isReasoningModel(model string) bool {
	return lo.SomeBy(reasoningModelPrefixes, func(prefix string) bool {
		return strings.HasPrefix(model, prefix)
	})
}

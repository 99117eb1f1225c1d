package anthropic

import (
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/llmshim/llm"
)

// maxTemperature is the upper bound the Messages API accepts.
const maxTemperature = 1

// resolveOptions merges overrides onto the chat defaults with the Anthropic
// default model, then rejects options the Messages API cannot express.
func resolveOptions(overrides llm.Overrides) (llm.Options, error) {
	base := llm.DefaultOptions(llm.ModalityChat)
	base.Model = DefaultModel

	opts, err := llm.MergeOptions(base, overrides)
	if err != nil {
		return llm.Options{}, llm.NewInvalidConfigurationError("%v", err)
	}
	if err := opts.Validate(llm.ModalityChat); err != nil {
		return llm.Options{}, err
	}
	if opts.Temperature > maxTemperature {
		return llm.Options{}, llm.NewInvalidConfigurationError("anthropic temperature must be within [0, %v], got %v", maxTemperature, opts.Temperature)
	}
	if opts.N != 1 {
		return llm.Options{}, llm.NewInvalidConfigurationError("anthropic returns a single candidate, n must be 1")
	}
	if opts.PresencePenalty != 0 || opts.FrequencyPenalty != 0 {
		return llm.Options{}, llm.NewInvalidConfigurationError("anthropic does not support presence or frequency penalties")
	}
	return opts, nil
}

// ToMessageNewParams builds the request for a conversation. System messages
// are lifted into the system prompt. top_p is only sent when narrowed below
// 1, since recent models reject requests that set both temperature and top_p.
// Parameters are always sent explicitly, so a zero temperature reaches the API.
func ToMessageNewParams(opts llm.Options, msgs []llm.Message) anthropic.MessageNewParams {
	var system []string
	messages := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(opts.Model),
		MaxTokens:   int64(opts.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(float64(opts.Temperature)),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if opts.TopP < 1 {
		params.TopP = anthropic.Float(float64(opts.TopP))
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}
	return params
}

// Normalize maps a Messages API response to a Result, joining its text blocks.
func Normalize(message *anthropic.Message) (llm.Result, error) {
	if message == nil {
		return llm.Result{}, fmt.Errorf("empty response")
	}
	var text strings.Builder
	found := false
	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		found = true
		text.WriteString(block.Text)
	}
	if !found {
		return llm.Result{}, fmt.Errorf("no text content in response")
	}
	return llm.NewTextResult(text.String(), llm.Usage{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}), nil
}

package openai

import (
	"context"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/retry"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// Chat serves the chat modality through the chat completions endpoint.
type Chat struct {
	*model
}

// Completion serves the completion modality. Prompts are sent to the chat
// completions endpoint as a single user message.
type Completion struct {
	*model
}

// NewChat creates a chat model with options merged over the chat defaults.
func NewChat(spec llm.ModelSpec, opts ...retry.Option[*openai.Client]) (*Chat, error) {
	m, err := newModel(spec, llm.ModalityChat, opts...)
	if err != nil {
		return nil, err
	}
	return &Chat{model: m}, nil
}

// NewCompletion creates a completion model. The legacy text-davinci-003
// model name is rewritten to the current default chat model.
func NewCompletion(spec llm.ModelSpec, opts ...retry.Option[*openai.Client]) (*Completion, error) {
	m, err := newModel(spec, llm.ModalityCompletion, opts...)
	if err != nil {
		return nil, err
	}
	return &Completion{model: m}, nil
}

// Generate implements llm.Model.
func (m *model) Generate(ctx context.Context, prompt string) (llm.Result, error) {
	return m.GenerateMessages(ctx, PromptMessages(prompt))
}

// GenerateMessages sends a caller-built conversation and returns the first choice.
func (m *model) GenerateMessages(ctx context.Context, msgs []llm.Message) (llm.Result, error) {
	resp, err := retry.Do(ctx, m.orch, m.chatInvoke(msgs))
	if err != nil {
		return llm.Result{}, err
	}
	return NormalizeChat(resp)
}

// GenerateAsync starts a call for prompt and resolves to the text of every
// candidate choice.
func (m *model) GenerateAsync(ctx context.Context, prompt string) *retry.Future[[]string] {
	f := retry.Go(ctx, m.orch, m.chatInvoke(PromptMessages(prompt)))
	return retry.Then(f, ChoiceTexts)
}

// GenerateBatch implements llm.BatchModel with one concurrent call per prompt.
func (m *model) GenerateBatch(ctx context.Context, prompts []string) ([]llm.Result, error) {
	return m.GenerateConversations(ctx, lo.Map(prompts, func(p string, _ int) []llm.Message {
		return PromptMessages(p)
	}))
}

// GenerateConversations fans out one call per conversation and joins them,
// preserving input order. Each call retries independently.
func (m *model) GenerateConversations(ctx context.Context, conversations [][]llm.Message) ([]llm.Result, error) {
	futures := lo.Map(conversations, func(msgs []llm.Message, _ int) *retry.Future[llm.Result] {
		return retry.Then(retry.Go(ctx, m.orch, m.chatInvoke(msgs)), NormalizeChat)
	})
	return retry.Gather(ctx, futures)
}

func (m *model) chatInvoke(msgs []llm.Message) retry.Invoke[*openai.Client, openai.ChatCompletionResponse] {
	req := ToChatCompletionRequest(m.opts, msgs)
	return func(ctx context.Context, client *openai.Client) (openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, req)
	}
}

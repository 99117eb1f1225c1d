package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	"github.com/aschepis/backscratcher/llmshim/llm/retry"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// NewClientFactory returns a keypool.Factory that builds Anthropic clients
// bound to a key. The SDK's own retries are disabled so that the
// orchestrator alone decides when to retry.
func NewClientFactory(cfg llm.TransportConfig) (keypool.Factory[*anthropic.Client], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return func(apiKey string) (*anthropic.Client, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("api key is required")
		}
		opts := []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
			option.WithHTTPClient(cfg.NewHTTPClient()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.NewClient(opts...)
		return &client, nil
	}, nil
}

// IsAPIError reports whether err was returned by the Anthropic API.
func IsAPIError(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr)
}

// StatusCode returns the HTTP status of an Anthropic API error, or 0.
func StatusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Chat serves the chat modality through the Anthropic Messages API.
type Chat struct {
	opts   llm.Options
	orch   *retry.Orchestrator[*anthropic.Client]
	logger zerolog.Logger
}

// NewChat creates an Anthropic chat model sharing the key rotation and retry
// policy of every other provider.
func NewChat(spec llm.ModelSpec, opts ...retry.Option[*anthropic.Client]) (*Chat, error) {
	resolved, err := resolveOptions(spec.Options)
	if err != nil {
		return nil, err
	}

	factory, err := NewClientFactory(llm.TransportConfig{
		BaseURL:  spec.BaseURL,
		ProxyURL: spec.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	logger := spec.Logger.With().Str("provider", llm.ProviderAnthropic).Str("model", resolved.Model).Logger()

	pool, err := keypool.New(spec.APIKeys, factory,
		keypool.WithLogger[*anthropic.Client](logger),
		keypool.WithStatusCode[*anthropic.Client](StatusCode),
		keypool.WithObserver[*anthropic.Client](spec.Metrics.ForPool(llm.ProviderAnthropic, resolved.Model)),
	)
	if err != nil {
		return nil, err
	}

	maxRetry := spec.MaxRetry
	if maxRetry == 0 {
		maxRetry = retry.DefaultMaxRetry
	}
	opts = append([]retry.Option[*anthropic.Client]{retry.WithObserver[*anthropic.Client](spec.Metrics)}, opts...)
	orch, err := retry.New(pool, retry.Policy{
		MaxRetry:    maxRetry,
		BackoffUnit: spec.BackoffUnit,
		MaxBackoff:  spec.MaxBackoff,
		IsAPIError:  IsAPIError,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &Chat{opts: resolved, orch: orch, logger: logger}, nil
}

// Modality implements llm.Model.
func (c *Chat) Modality() llm.Modality {
	return llm.ModalityChat
}

// Options returns the resolved generation options.
func (c *Chat) Options() llm.Options {
	return c.opts
}

// Pool exposes the credential pool.
func (c *Chat) Pool() *keypool.Pool[*anthropic.Client] {
	return c.orch.Pool()
}

// Generate implements llm.Model.
func (c *Chat) Generate(ctx context.Context, prompt string) (llm.Result, error) {
	return c.GenerateMessages(ctx, promptMessages(prompt))
}

// GenerateMessages sends a caller-built conversation.
func (c *Chat) GenerateMessages(ctx context.Context, msgs []llm.Message) (llm.Result, error) {
	message, err := retry.Do(ctx, c.orch, c.invoke(msgs))
	if err != nil {
		return llm.Result{}, err
	}
	return Normalize(message)
}

// GenerateAsync starts a call for prompt and resolves to its text. The
// Messages API returns a single candidate, so the slice has one element.
func (c *Chat) GenerateAsync(ctx context.Context, prompt string) *retry.Future[[]string] {
	f := retry.Go(ctx, c.orch, c.invoke(promptMessages(prompt)))
	return retry.Then(f, func(message *anthropic.Message) ([]string, error) {
		result, err := Normalize(message)
		if err != nil {
			return nil, err
		}
		return []string{result.Content}, nil
	})
}

// GenerateBatch implements llm.BatchModel with one concurrent call per prompt.
func (c *Chat) GenerateBatch(ctx context.Context, prompts []string) ([]llm.Result, error) {
	return c.GenerateConversations(ctx, lo.Map(prompts, func(p string, _ int) []llm.Message {
		return promptMessages(p)
	}))
}

// GenerateConversations fans out one call per conversation, preserving input order.
func (c *Chat) GenerateConversations(ctx context.Context, conversations [][]llm.Message) ([]llm.Result, error) {
	futures := lo.Map(conversations, func(msgs []llm.Message, _ int) *retry.Future[llm.Result] {
		return retry.Then(retry.Go(ctx, c.orch, c.invoke(msgs)), Normalize)
	})
	return retry.Gather(ctx, futures)
}

func (c *Chat) invoke(msgs []llm.Message) retry.Invoke[*anthropic.Client, *anthropic.Message] {
	params := ToMessageNewParams(c.opts, msgs)
	return func(ctx context.Context, client *anthropic.Client) (*anthropic.Message, error) {
		return client.Messages.New(ctx, params)
	}
}

func promptMessages(prompt string) []llm.Message {
	return []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)}
}

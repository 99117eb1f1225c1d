package openai

import (
	"context"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	"github.com/aschepis/backscratcher/llmshim/llm/retry"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// Embedding serves the embedding modality.
type Embedding struct {
	m *model
}

// NewEmbedding creates an embedding model. Only Options.Model is used.
func NewEmbedding(spec llm.ModelSpec, opts ...retry.Option[*openai.Client]) (*Embedding, error) {
	m, err := newModel(spec, llm.ModalityEmbedding, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedding{m: m}, nil
}

// Modality implements llm.Model.
func (e *Embedding) Modality() llm.Modality {
	return llm.ModalityEmbedding
}

// Options returns the resolved options.
func (e *Embedding) Options() llm.Options {
	return e.m.opts
}

// Pool exposes the credential pool.
func (e *Embedding) Pool() *keypool.Pool[*openai.Client] {
	return e.m.Pool()
}

// Generate implements llm.Model, embedding a single input.
func (e *Embedding) Generate(ctx context.Context, input string) (llm.Result, error) {
	resp, err := retry.Do(ctx, e.m.orch, e.embedInvoke(input))
	if err != nil {
		return llm.Result{}, err
	}
	return firstEmbedding(resp)
}

// GenerateAsync starts embedding a single input.
func (e *Embedding) GenerateAsync(ctx context.Context, input string) *retry.Future[llm.Result] {
	return retry.Then(retry.Go(ctx, e.m.orch, e.embedInvoke(input)), firstEmbedding)
}

// GenerateBatch implements llm.BatchModel. Every input is embedded by its own
// concurrent call; all calls are joined before returning, in input order.
func (e *Embedding) GenerateBatch(ctx context.Context, inputs []string) ([]llm.Result, error) {
	futures := lo.Map(inputs, func(input string, _ int) *retry.Future[llm.Result] {
		return e.GenerateAsync(ctx, input)
	})
	return retry.Gather(ctx, futures)
}

func (e *Embedding) embedInvoke(input string) retry.Invoke[*openai.Client, openai.EmbeddingResponse] {
	req := ToEmbeddingRequest(e.m.opts, input)
	return func(ctx context.Context, client *openai.Client) (openai.EmbeddingResponse, error) {
		return client.CreateEmbeddings(ctx, req)
	}
}

func firstEmbedding(resp openai.EmbeddingResponse) (llm.Result, error) {
	results, err := NormalizeEmbedding(resp, 1)
	if err != nil {
		return llm.Result{}, err
	}
	return results[0], nil
}

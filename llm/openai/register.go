package openai

import (
	"github.com/aschepis/backscratcher/llmshim/llm"
)

// Model names served by this package.
var (
	completionModels = []string{llm.DefaultChatModel, llm.LegacyCompletionModel}
	chatModels       = []string{"gpt-4", "gpt-3.5-turbo", "gpt-3.5-turbo-16k-0613"}
)

// EmbeddingModelName is the registry name of the embedding model.
const EmbeddingModelName = "embedding"

// Register adds the OpenAI models to reg.
func Register(reg *llm.ModelRegistry) {
	for _, name := range completionModels {
		name := name
		reg.Register(name, llm.ProviderOpenAI, func(spec llm.ModelSpec) (llm.Model, error) {
			spec.Options.Model = defaultModel(spec.Options.Model, name)
			m, err := NewCompletion(spec)
			if err != nil {
				return nil, err
			}
			return m, nil
		})
	}
	for _, name := range chatModels {
		name := name
		reg.Register(name, llm.ProviderOpenAI, func(spec llm.ModelSpec) (llm.Model, error) {
			spec.Options.Model = defaultModel(spec.Options.Model, name)
			m, err := NewChat(spec)
			if err != nil {
				return nil, err
			}
			return m, nil
		})
	}
	reg.Register(EmbeddingModelName, llm.ProviderOpenAI, func(spec llm.ModelSpec) (llm.Model, error) {
		m, err := NewEmbedding(spec)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func defaultModel(configured, name string) string {
	if configured != "" {
		return configured
	}
	return name
}

var (
	_ llm.BatchModel = (*Chat)(nil)
	_ llm.BatchModel = (*Completion)(nil)
	_ llm.BatchModel = (*Embedding)(nil)
)

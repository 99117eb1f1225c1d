package anthropic

import (
	"github.com/aschepis/backscratcher/llmshim/llm"
)

var chatModels = []string{"claude-haiku-4-5", "claude-sonnet-4-5"}

// Register adds the Anthropic chat models to reg.
func Register(reg *llm.ModelRegistry) {
	for _, name := range chatModels {
		name := name
		reg.Register(name, llm.ProviderAnthropic, func(spec llm.ModelSpec) (llm.Model, error) {
			if spec.Options.Model == "" {
				spec.Options.Model = name
			}
			m, err := NewChat(spec)
			if err != nil {
				return nil, err
			}
			return m, nil
		})
	}
}

var _ llm.BatchModel = (*Chat)(nil)

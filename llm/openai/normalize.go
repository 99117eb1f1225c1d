package openai

import (
	"fmt"
	"sort"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// NormalizeChat maps a chat completion to a Result using the first choice.
func NormalizeChat(resp openai.ChatCompletionResponse) (llm.Result, error) {
	if len(resp.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("no choices in response")
	}
	return llm.NewTextResult(resp.Choices[0].Message.Content, llm.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}), nil
}

// ChoiceTexts returns the text of every candidate, in choice order.
func ChoiceTexts(resp openai.ChatCompletionResponse) ([]string, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	choices := append([]openai.ChatCompletionChoice(nil), resp.Choices...)
	sort.SliceStable(choices, func(i, j int) bool { return choices[i].Index < choices[j].Index })
	return lo.Map(choices, func(c openai.ChatCompletionChoice, _ int) string {
		return c.Message.Content
	}), nil
}

// NormalizeEmbedding maps an embedding response to one Result per vector,
// ordered by input index. Token counts are always zero for embeddings.
func NormalizeEmbedding(resp openai.EmbeddingResponse, inputs int) ([]llm.Result, error) {
	if len(resp.Data) != inputs {
		return nil, fmt.Errorf("expected %d embeddings in response, got %d", inputs, len(resp.Data))
	}
	data := append([]openai.Embedding(nil), resp.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	return lo.Map(data, func(e openai.Embedding, _ int) llm.Result {
		return llm.NewEmbeddingResult(e.Embedding)
	}), nil
}

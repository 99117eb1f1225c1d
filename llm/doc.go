// Package llm provides the provider-neutral layer shared by every model
// adapter: messages, generation options, normalized results, the error
// taxonomy and the classifier that sorts provider failures.
//
// # Core Concepts
//
//  1. Options: DefaultOptions supplies per-modality defaults and
//     ResolveOptions merges caller Overrides on top of them before
//     validating the result. A non-nil override wins even when it is zero.
//
//  2. Results: every modality returns a Result. Text modalities fill Content
//     and token usage; embeddings fill Embedding and report zero tokens.
//
//  3. Errors: the Error type carries an ErrorType so callers can branch with
//     IsKeyExhaustedError, IsContextTooLongError, IsRetriesExhaustedError and
//     friends.
//
//  4. Classification: ClassifyError maps a failure to key-exhausted,
//     context-too-long or unclassified. The keypool package uses the verdict
//     to decide whether to drop a key and retry.
//
//  5. Registry: ModelRegistry maps model names to factories. Provider
//     packages add their models with their own Register function.
//
// Usage Example
//
//	reg := llm.NewModelRegistry()
//	openai.Register(reg)
//
//	model, err := reg.Build(llm.ModelSpec{
//	    Name:    "gpt-4",
//	    APIKeys: []string{"sk-a", "sk-b"},
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := model.Generate(ctx, "Hello!")
package llm

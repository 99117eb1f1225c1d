package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubModel struct {
	name string
}

func (s *stubModel) Generate(ctx context.Context, prompt string) (Result, error) {
	return NewTextResult(s.name+": "+prompt, Usage{}), nil
}

func (s *stubModel) Modality() Modality {
	return ModalityChat
}

func TestModelRegistry_Register(t *testing.T) {
	reg := NewModelRegistry()
	reg.Register("stub", ProviderOpenAI, func(spec ModelSpec) (Model, error) {
		return &stubModel{name: spec.Name}, nil
	})

	if !reg.IsRegistered("stub") {
		t.Error("stub should be registered")
	}
	if reg.IsRegistered("other") {
		t.Error("other should not be registered")
	}

	provider, ok := reg.Provider("stub")
	if !ok || provider != ProviderOpenAI {
		t.Errorf("Expected provider %q, got %q", ProviderOpenAI, provider)
	}
}

func TestModelRegistry_Build(t *testing.T) {
	reg := NewModelRegistry()
	reg.Register("stub", ProviderOpenAI, func(spec ModelSpec) (Model, error) {
		return &stubModel{name: spec.Name}, nil
	})

	model, err := reg.Build(ModelSpec{Name: "stub"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	result, err := model.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Content != "stub: hi" {
		t.Errorf("Unexpected content %q", result.Content)
	}
}

func TestModelRegistry_BuildUnknown(t *testing.T) {
	reg := NewModelRegistry()
	reg.Register("gpt-4", ProviderOpenAI, func(spec ModelSpec) (Model, error) {
		return &stubModel{}, nil
	})

	_, err := reg.Build(ModelSpec{Name: "gpt-5-turbo"})
	if err == nil {
		t.Fatal("Expected error for unknown model")
	}
	if !strings.Contains(err.Error(), "gpt-4") {
		t.Errorf("Expected error to list known models, got %q", err.Error())
	}
}

func TestModelRegistry_BuildFactoryError(t *testing.T) {
	reg := NewModelRegistry()
	reg.Register("broken", ProviderAnthropic, func(spec ModelSpec) (Model, error) {
		return nil, NewInvalidConfigurationError("at least one API key is required")
	})

	_, err := reg.Build(ModelSpec{Name: "broken"})
	if !IsInvalidConfigurationError(err) {
		t.Errorf("Expected wrapped invalid configuration error, got %v", err)
	}
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Error("Expected errors.As to find *Error")
	}
}

func TestModelRegistry_Names(t *testing.T) {
	reg := NewModelRegistry()
	for _, name := range []string{"gpt-4", "embedding", "claude-haiku-4-5"} {
		reg.Register(name, ProviderOpenAI, func(spec ModelSpec) (Model, error) { return &stubModel{}, nil })
	}

	names := reg.Names()
	want := []string{"claude-haiku-4-5", "embedding", "gpt-4"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

package openai

import (
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	"github.com/aschepis/backscratcher/llmshim/llm/retry"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// model holds what every OpenAI modality shares: resolved options, the
// credential pool and the orchestrator wrapping it.
type model struct {
	modality llm.Modality
	opts     llm.Options
	orch     *retry.Orchestrator[*openai.Client]
	logger   zerolog.Logger
}

func newModel(spec llm.ModelSpec, modality llm.Modality, opts ...retry.Option[*openai.Client]) (*model, error) {
	resolved, err := llm.ResolveOptions(modality, spec.Options)
	if err != nil {
		return nil, err
	}

	factory, err := NewClientFactory(ClientConfig{
		TransportConfig: llm.TransportConfig{
			BaseURL:  spec.BaseURL,
			ProxyURL: spec.ProxyURL,
		},
		Organization: spec.Organization,
	})
	if err != nil {
		return nil, err
	}

	logger := spec.Logger.With().Str("provider", llm.ProviderOpenAI).Str("model", resolved.Model).Logger()

	pool, err := keypool.New(spec.APIKeys, factory,
		keypool.WithClassifier[*openai.Client](ClassifyError),
		keypool.WithStatusCode[*openai.Client](StatusCode),
		keypool.WithLogger[*openai.Client](logger),
		keypool.WithObserver[*openai.Client](spec.Metrics.ForPool(llm.ProviderOpenAI, resolved.Model)),
	)
	if err != nil {
		return nil, err
	}

	maxRetry := spec.MaxRetry
	if maxRetry == 0 {
		maxRetry = retry.DefaultMaxRetry
	}
	opts = append([]retry.Option[*openai.Client]{retry.WithObserver[*openai.Client](spec.Metrics)}, opts...)
	orch, err := retry.New(pool, retry.Policy{
		MaxRetry:    maxRetry,
		BackoffUnit: spec.BackoffUnit,
		MaxBackoff:  spec.MaxBackoff,
		IsAPIError:  IsAPIError,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &model{
		modality: modality,
		opts:     resolved,
		orch:     orch,
		logger:   logger,
	}, nil
}

// Modality implements llm.Model.
func (m *model) Modality() llm.Modality {
	return m.modality
}

// Options returns the resolved generation options.
func (m *model) Options() llm.Options {
	return m.opts
}

// Pool exposes the credential pool for inspection and explicit key removal.
func (m *model) Pool() *keypool.Pool[*openai.Client] {
	return m.orch.Pool()
}

package llm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aschepis/backscratcher/llmshim/metrics"
	"github.com/rs/zerolog"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ModelSpec carries everything a provider needs to build a model instance.
// This avoids import cycles by not importing the config package.
type ModelSpec struct {
	Name         string
	APIKeys      []string
	MaxRetry     int
	BackoffUnit  time.Duration
	MaxBackoff   time.Duration
	BaseURL      string // Alternate API endpoint, empty for the provider default
	ProxyURL     string // Outbound proxy, empty for a direct connection
	Organization string // For OpenAI
	Options      Overrides
	Logger       zerolog.Logger
	Metrics      *metrics.Collector // Optional
}

// ModelFactory builds a model instance from a spec.
type ModelFactory func(spec ModelSpec) (Model, error)

type registryEntry struct {
	provider string
	factory  ModelFactory
}

// ModelRegistry maps model names to the factories that build them.
type ModelRegistry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

// NewModelRegistry creates an empty ModelRegistry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		entries: make(map[string]registryEntry),
	}
}

// Register binds a model name to a factory. Registering a name twice replaces the earlier entry.
func (r *ModelRegistry) Register(name, provider string, factory ModelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registryEntry{provider: provider, factory: factory}
}

// IsRegistered checks if a model name has a factory.
func (r *ModelRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Provider returns the provider a model name was registered for.
func (r *ModelRegistry) Provider(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry.provider, ok
}

// Build creates the model registered under spec.Name.
func (r *ModelRegistry) Build(spec ModelSpec) (Model, error) {
	r.mu.RLock()
	entry, ok := r.entries[spec.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model %q is not registered (known: %v)", spec.Name, r.Names())
	}
	model, err := entry.factory(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build model %q: %w", spec.Name, err)
	}
	return model, nil
}

// Names returns the registered model names, sorted.
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

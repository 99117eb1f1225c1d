// Package keypool manages a rotating set of API keys and the client handle
// bound to the active one.
package keypool

import (
	"fmt"
	"sync"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Factory builds a provider client bound to a single API key.
type Factory[C any] func(apiKey string) (C, error)

// Observer receives pool mutation events. *metrics.PoolCollector implements it.
type Observer interface {
	ObserveRotation()
	ObserveKeyRemoved(remaining int)
	ObservePoolSize(size int)
}

// Lease is a client handle together with the key it was built from.
type Lease[C any] struct {
	Key    string
	Client C
}

// Pool owns the API keys, the active key index and the live client handle.
// All methods are safe for concurrent use.
type Pool[C any] struct {
	mu       sync.Mutex
	keys     []string
	active   int
	client   C
	built    bool
	factory  Factory[C]
	classify llm.Classifier
	status   func(error) int
	observer Observer
	logger   zerolog.Logger
}

// Option configures a Pool.
type Option[C any] func(*Pool[C])

// WithClassifier replaces the default llm.ClassifyError heuristic.
func WithClassifier[C any](classify llm.Classifier) Option[C] {
	return func(p *Pool[C]) {
		if classify != nil {
			p.classify = classify
		}
	}
}

// WithStatusCode sets how the HTTP status is read from a provider error.
// It is recorded on the terminal errors returned by HandleError.
func WithStatusCode[C any](status func(error) int) Option[C] {
	return func(p *Pool[C]) {
		if status != nil {
			p.status = status
		}
	}
}

// WithObserver registers an observer for rotations and removals.
func WithObserver[C any](observer Observer) Option[C] {
	return func(p *Pool[C]) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger[C any](logger zerolog.Logger) Option[C] {
	return func(p *Pool[C]) {
		p.logger = logger.With().Str("component", "keyPool").Logger()
	}
}

// New creates a Pool over keys. Blank and duplicate keys are dropped; an
// empty result is an invalid configuration. No client is built until first use.
func New[C any](keys []string, factory Factory[C], opts ...Option[C]) (*Pool[C], error) {
	cleaned := lo.Uniq(lo.Compact(keys))
	if len(cleaned) == 0 {
		return nil, llm.NewInvalidConfigurationError("at least one API key is required")
	}
	if factory == nil {
		return nil, llm.NewInvalidConfigurationError("client factory is required")
	}

	p := &Pool[C]{
		keys:     cleaned,
		factory:  factory,
		classify: llm.ClassifyError,
		status:   llm.ExtractStatusCode,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.observer != nil {
		p.observer.ObservePoolSize(len(p.keys))
	}
	return p, nil
}

// EnsureClient returns the client for the active key, building it if needed.
// Repeated calls return the same client until the active key changes.
func (p *Pool[C]) EnsureClient() (C, error) {
	lease, err := p.Acquire()
	return lease.Client, err
}

// Acquire is EnsureClient that also reports which key the client acts with.
func (p *Pool[C]) Acquire() (Lease[C], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLocked(); err != nil {
		return Lease[C]{}, err
	}
	return Lease[C]{Key: p.keys[p.active], Client: p.client}, nil
}

// RotateKey advances to the next key, wrapping around, and rebuilds the client.
func (p *Pool[C]) RotateKey() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return llm.NewNoKeysAvailableError(nil)
	}
	p.active = (p.active + 1) % len(p.keys)
	p.invalidateLocked()
	if p.observer != nil {
		p.observer.ObserveRotation()
	}
	return p.ensureLocked()
}

// RemoveKey drops key from the pool. Removing an absent key is a no-op.
// It reports whether the key was present. The pool may become empty, after
// which every Acquire fails with a no-keys-available error.
func (p *Pool[C]) RemoveKey(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(key)
}

// HandleError decides whether a failed call made with usedKey may be retried.
//
// Key-exhausted errors remove usedKey and report retryable, unless no keys
// remain, in which case the returned error is fatal. Any other classification
// leaves the pool untouched and returns the terminal error to surface.
// Terminal errors carry the provider's HTTP status.
func (p *Pool[C]) HandleError(usedKey string, err error) (bool, error) {
	status := p.status(err)
	withStatus := func(e *llm.Error) *llm.Error {
		e.StatusCode = status
		return e
	}

	switch p.classify(err) {
	case llm.ClassKeyExhausted:
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.removeLocked(usedKey) {
			p.logger.Warn().Str("key", MaskKey(usedKey)).Int("remaining", len(p.keys)).Err(err).Msg("API key exhausted or deactivated, removed from pool")
		}
		if len(p.keys) == 0 {
			p.logger.Error().Int("status", status).Msg("All API keys have been removed from the pool")
			exhausted := withStatus(llm.NewKeyExhaustedError("API key "+MaskKey(usedKey)+" exhausted", err))
			return false, withStatus(llm.NewNoKeysAvailableError(exhausted))
		}
		return true, nil

	case llm.ClassContextTooLong:
		p.logger.Warn().Err(err).Int("status", status).Msg("Request exceeds the model context length, consider shortening the prompt")
		return false, withStatus(llm.NewContextTooLongError("request exceeds model context length", err))

	default:
		return false, withStatus(llm.NewProviderError("non-retryable API error", err))
	}
}

// Keys returns a copy of the keys currently in the pool, in rotation order.
func (p *Pool[C]) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// ActiveKey returns the key the next call will use.
func (p *Pool[C]) ActiveKey() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", false
	}
	return p.keys[p.active], true
}

// ActiveIndex returns the position of the active key.
func (p *Pool[C]) ActiveIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Len returns the number of keys in the pool.
func (p *Pool[C]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// ensureLocked must be called with p.mu held.
func (p *Pool[C]) ensureLocked() error {
	if len(p.keys) == 0 {
		return llm.NewNoKeysAvailableError(nil)
	}
	if p.built {
		return nil
	}

	client, err := p.factory(p.keys[p.active])
	if err != nil {
		return fmt.Errorf("failed to build client for key %s: %w", MaskKey(p.keys[p.active]), err)
	}
	p.client = client
	p.built = true
	p.logger.Debug().Str("key", MaskKey(p.keys[p.active])).Msg("Built client for active key")
	return nil
}

func (p *Pool[C]) invalidateLocked() {
	var zero C
	p.client = zero
	p.built = false
}

// removeLocked must be called with p.mu held. When the active key is removed
// the key that slides into its slot becomes active.
func (p *Pool[C]) removeLocked(key string) bool {
	idx := lo.IndexOf(p.keys, key)
	if idx < 0 {
		return false
	}

	p.keys = append(p.keys[:idx], p.keys[idx+1:]...)
	switch {
	case len(p.keys) == 0:
		p.active = 0
		p.invalidateLocked()
	case idx < p.active:
		p.active--
	case idx == p.active:
		p.active %= len(p.keys)
		p.invalidateLocked()
		if p.observer != nil {
			p.observer.ObserveRotation()
		}
	}

	if p.observer != nil {
		p.observer.ObserveKeyRemoved(len(p.keys))
	}
	return true
}

// MaskKey hides all but the last four characters of a key for logging.
func MaskKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return "****"
	}
	return "****" + key[len(key)-visible:]
}

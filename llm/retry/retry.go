// Package retry wraps single logical LLM calls with the credential-rotating
// retry policy. Do blocks the caller; Go runs the same policy on its own
// goroutine and hands back a Future.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	"github.com/aschepis/backscratcher/llmshim/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetry is the default number of invocation attempts per call
	DefaultMaxRetry = 3
	// DefaultBackoffUnit is the delay after the first transient failure
	DefaultBackoffUnit = 1 * time.Second
	// DefaultMaxBackoff caps a single backoff delay
	DefaultMaxBackoff = 1 * time.Minute
	// BackoffMultiplier doubles the delay on every attempt
	BackoffMultiplier = 2.0
)

// Invoke performs exactly one network call with the leased client.
type Invoke[C, R any] func(ctx context.Context, client C) (R, error)

// Observer receives per-attempt events. *metrics.Collector implements it.
type Observer interface {
	ObserveAttempt(outcome string)
	ObserveBackoff(delay time.Duration)
	ObserveRetriesExhausted()
}

// Policy configures the retry loop.
type Policy struct {
	// MaxRetry bounds the number of invocation attempts for one call.
	MaxRetry int
	// BackoffUnit is the delay after a transient failure on attempt 0;
	// attempt n waits BackoffUnit * 2^n.
	BackoffUnit time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	// Jitter is the backoff randomization factor, 0 for exact delays.
	Jitter float64
	// IsAPIError reports whether err belongs to the provider's API error
	// classes. Those are handed to the pool; everything else is treated as
	// transient and backed off.
	IsAPIError func(err error) bool
}

// DefaultPolicy returns the default policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetry:    DefaultMaxRetry,
		BackoffUnit: DefaultBackoffUnit,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Orchestrator runs invocations against a pool under a Policy.
type Orchestrator[C any] struct {
	pool     *keypool.Pool[C]
	policy   Policy
	observer Observer
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option[C any] func(*Orchestrator[C])

// WithObserver registers an attempt observer.
func WithObserver[C any](observer Observer) Option[C] {
	return func(o *Orchestrator[C]) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep[C any](sleep func(ctx context.Context, d time.Duration) error) Option[C] {
	return func(o *Orchestrator[C]) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New creates an Orchestrator. Zero durations in policy fall back to defaults;
// a non-positive MaxRetry is an invalid configuration.
func New[C any](pool *keypool.Pool[C], policy Policy, logger zerolog.Logger, opts ...Option[C]) (*Orchestrator[C], error) {
	if pool == nil {
		return nil, llm.NewInvalidConfigurationError("credential pool is required")
	}
	if policy.MaxRetry <= 0 {
		return nil, llm.NewInvalidConfigurationError("max_retry must be positive, got %d", policy.MaxRetry)
	}
	if policy.BackoffUnit <= 0 {
		policy.BackoffUnit = DefaultBackoffUnit
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = DefaultMaxBackoff
	}
	if policy.Jitter < 0 || policy.Jitter >= 1 {
		return nil, llm.NewInvalidConfigurationError("backoff jitter must be within [0, 1), got %v", policy.Jitter)
	}
	if policy.IsAPIError == nil {
		policy.IsAPIError = isLLMError
	}

	o := &Orchestrator[C]{
		pool:     pool,
		policy:   policy,
		observer: (*metrics.Collector)(nil),
		logger:   logger.With().Str("component", "callOrchestrator").Logger(),
		sleep:    waitForRetry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Pool returns the credential pool the orchestrator draws clients from.
func (o *Orchestrator[C]) Pool() *keypool.Pool[C] {
	return o.pool
}

// Policy returns the effective policy.
func (o *Orchestrator[C]) Policy() Policy {
	return o.policy
}

// Do runs invoke under the retry policy on the caller's goroutine.
func Do[C, R any](ctx context.Context, o *Orchestrator[C], invoke Invoke[C, R]) (R, error) {
	return run(ctx, o, invoke)
}

// Go runs invoke under the retry policy on a new goroutine.
// Cancelling ctx interrupts the pending network call or backoff wait.
func Go[C, R any](ctx context.Context, o *Orchestrator[C], invoke Invoke[C, R]) *Future[R] {
	f := newFuture[R]()
	go func() {
		f.resolve(run(ctx, o, invoke))
	}()
	return f
}

// run is the single retry routine shared by Do and Go.
func run[C, R any](ctx context.Context, o *Orchestrator[C], invoke Invoke[C, R]) (R, error) {
	var zero R
	logger := o.logger.With().Str("call_id", uuid.NewString()).Logger()
	schedule := o.newBackOff()

	var lastErr error
	for attempt := 0; attempt < o.policy.MaxRetry; attempt++ {
		// Advanced every attempt so attempt n always maps to unit * 2^n.
		delay := schedule.NextBackOff()

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		lease, err := o.pool.Acquire()
		if err != nil {
			return zero, err
		}

		resp, err := invoke(ctx, lease.Client)
		if err == nil {
			o.observer.ObserveAttempt(metrics.OutcomeSuccess)
			return resp, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			o.observer.ObserveAttempt(metrics.OutcomeCanceled)
			return zero, fmt.Errorf("call canceled on attempt %d: %w", attempt+1, errors.Join(ctxErr, err))
		}

		if o.policy.IsAPIError(err) {
			retryable, terminal := o.pool.HandleError(lease.Key, err)
			if retryable {
				o.observer.ObserveAttempt(metrics.OutcomeKeyExhausted)
				logger.Info().Int("attempt", attempt+1).Int("max_retry", o.policy.MaxRetry).Msg("Rotated away from exhausted API key, retrying immediately")
				continue
			}
			o.observer.ObserveAttempt(metrics.OutcomeNonRetryable)
			logger.Error().Err(err).Int("attempt", attempt+1).Int("status", llm.ExtractStatusCode(terminal)).Msg("LLM call failed with a non-retryable error")
			return zero, terminal
		}

		o.observer.ObserveAttempt(metrics.OutcomeTransient)
		o.observer.ObserveBackoff(delay)
		logger.Error().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retry", o.policy.MaxRetry).
			Dur("next_delay", delay).
			Msg("LLM call failed, backing off")

		if waitErr := o.sleep(ctx, delay); waitErr != nil {
			return zero, fmt.Errorf("context cancelled while waiting for retry: %w", waitErr)
		}
	}

	o.observer.ObserveRetriesExhausted()
	logger.Error().Err(lastErr).Int("attempts", o.policy.MaxRetry).Msg("LLM call failed on every attempt")
	return zero, llm.NewRetriesExhaustedError(o.policy.MaxRetry, lastErr)
}

// newBackOff creates the per-call delay schedule.
func (o *Orchestrator[C]) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.policy.BackoffUnit
	eb.Multiplier = BackoffMultiplier
	eb.RandomizationFactor = o.policy.Jitter
	eb.MaxInterval = o.policy.MaxBackoff
	// Attempts are bounded by MaxRetry, not by elapsed time.
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// BackoffDelay returns the un-jittered delay applied after a transient failure on attempt.
func (p Policy) BackoffDelay(attempt int) time.Duration {
	d := p.BackoffUnit
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// waitForRetry waits for the specified delay, respecting context cancellation
func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isLLMError is the fallback API error predicate for providers that
// translate their failures into *llm.Error.
func isLLMError(err error) bool {
	var llmErr *llm.Error
	return errors.As(err, &llmErr)
}

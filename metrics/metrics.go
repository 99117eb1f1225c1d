// Package metrics exposes Prometheus instrumentation for the credential pool
// and the call orchestrator.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes recorded by ObserveAttempt.
const (
	OutcomeSuccess      = "success"
	OutcomeKeyExhausted = "key_exhausted"
	OutcomeNonRetryable = "non_retryable"
	OutcomeTransient    = "transient"
	OutcomeCanceled     = "canceled"
)

// Collector provides Prometheus metrics for the resilience layer.
// It is safe for concurrent use. A nil *Collector is valid and records nothing.
type Collector struct {
	attemptsTotal         *prometheus.CounterVec
	backoffSeconds        prometheus.Histogram
	retriesExhaustedTotal prometheus.Counter
	keyRotationsTotal     prometheus.Counter
	keysRemovedTotal      prometheus.Counter
	poolKeys              *prometheus.GaugeVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	return &Collector{
		attemptsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmshim_attempts_total",
				Help: "Total number of invocation attempts by outcome",
			},
			[]string{"outcome"},
		),
		backoffSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "llmshim_backoff_seconds",
				Help:    "Backoff delays applied after transient failures",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
		),
		retriesExhaustedTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "llmshim_retries_exhausted_total",
				Help: "Total number of calls that failed on every attempt",
			},
		),
		keyRotationsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "llmshim_key_rotations_total",
				Help: "Total number of active key changes",
			},
		),
		keysRemovedTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "llmshim_keys_removed_total",
				Help: "Total number of keys dropped from the pool",
			},
		),
		poolKeys: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llmshim_pool_keys",
				Help: "Number of keys currently held by the pools of a provider and model",
			},
			[]string{"provider", "model"},
		),
	}
}

// ObserveAttempt records the outcome of one invocation attempt.
func (c *Collector) ObserveAttempt(outcome string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBackoff records a backoff delay.
func (c *Collector) ObserveBackoff(delay time.Duration) {
	if c == nil {
		return
	}
	c.backoffSeconds.Observe(delay.Seconds())
}

// ObserveRetriesExhausted records a call that used up every attempt.
func (c *Collector) ObserveRetriesExhausted() {
	if c == nil {
		return
	}
	c.retriesExhaustedTotal.Inc()
}

// ForPool returns the observer for one credential pool. Pools sharing a
// provider and model add up in the llmshim_pool_keys gauge.
func (c *Collector) ForPool(provider, model string) *PoolCollector {
	if c == nil {
		return nil
	}
	return &PoolCollector{
		collector: c,
		keys:      c.poolKeys.WithLabelValues(provider, model),
	}
}

// PoolCollector records the events of a single credential pool.
// A nil *PoolCollector is valid and records nothing.
type PoolCollector struct {
	collector *Collector
	keys      prometheus.Gauge

	mu   sync.Mutex
	size int
}

// ObserveRotation records a change of the active key.
func (p *PoolCollector) ObserveRotation() {
	if p == nil {
		return
	}
	p.collector.keyRotationsTotal.Inc()
}

// ObserveKeyRemoved records a key removal and the resulting pool size.
func (p *PoolCollector) ObserveKeyRemoved(remaining int) {
	if p == nil {
		return
	}
	p.collector.keysRemovedTotal.Inc()
	p.setSize(remaining)
}

// ObservePoolSize records the current pool size.
func (p *PoolCollector) ObservePoolSize(size int) {
	if p == nil {
		return
	}
	p.setSize(size)
}

// setSize moves the shared gauge by this pool's change in size.
func (p *PoolCollector) setSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys.Add(float64(size - p.size))
	p.size = size
}

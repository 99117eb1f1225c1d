package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewCollectorWithRegistry() returned nil")
	}
	if collector.attemptsTotal == nil {
		t.Error("attemptsTotal metric not initialized")
	}
	if collector.backoffSeconds == nil {
		t.Error("backoffSeconds metric not initialized")
	}
	if collector.retriesExhaustedTotal == nil {
		t.Error("retriesExhaustedTotal metric not initialized")
	}
	if collector.keyRotationsTotal == nil {
		t.Error("keyRotationsTotal metric not initialized")
	}
	if collector.keysRemovedTotal == nil {
		t.Error("keysRemovedTotal metric not initialized")
	}
	if collector.poolKeys == nil {
		t.Error("poolKeys metric not initialized")
	}
}

func TestCollectorRecords(t *testing.T) {
	collector := NewCollectorWithRegistry(prometheus.NewRegistry())

	collector.ObserveAttempt(OutcomeTransient)
	collector.ObserveAttempt(OutcomeTransient)
	collector.ObserveAttempt(OutcomeSuccess)
	collector.ObserveBackoff(2 * time.Second)
	collector.ObserveRetriesExhausted()
	pool := collector.ForPool("openai", "gpt-4")
	pool.ObservePoolSize(3)
	pool.ObserveRotation()
	pool.ObserveKeyRemoved(2)

	if got := testutil.ToFloat64(collector.attemptsTotal.WithLabelValues(OutcomeTransient)); got != 2 {
		t.Errorf("expected 2 transient attempts, got %v", got)
	}
	if got := testutil.ToFloat64(collector.attemptsTotal.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Errorf("expected 1 successful attempt, got %v", got)
	}
	if got := testutil.ToFloat64(collector.retriesExhaustedTotal); got != 1 {
		t.Errorf("expected 1 exhausted call, got %v", got)
	}
	if got := testutil.ToFloat64(collector.keyRotationsTotal); got != 1 {
		t.Errorf("expected 1 rotation, got %v", got)
	}
	if got := testutil.ToFloat64(collector.keysRemovedTotal); got != 1 {
		t.Errorf("expected 1 removal, got %v", got)
	}
	if got := testutil.ToFloat64(collector.poolKeys.WithLabelValues("openai", "gpt-4")); got != 2 {
		t.Errorf("expected pool size 2, got %v", got)
	}
	if got := testutil.CollectAndCount(collector.backoffSeconds); got != 1 {
		t.Errorf("expected 1 backoff series, got %d", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var collector *Collector

	collector.ObserveAttempt(OutcomeSuccess)
	collector.ObserveBackoff(time.Second)
	collector.ObserveRetriesExhausted()

	pool := collector.ForPool("openai", "gpt-4")
	if pool != nil {
		t.Fatal("expected a nil pool collector from a nil collector")
	}
	pool.ObserveRotation()
	pool.ObserveKeyRemoved(0)
	pool.ObservePoolSize(0)
}

func TestPoolKeysPerProviderAndModel(t *testing.T) {
	collector := NewCollectorWithRegistry(prometheus.NewRegistry())

	first := collector.ForPool("openai", "gpt-4")
	second := collector.ForPool("openai", "gpt-4")
	other := collector.ForPool("anthropic", "claude-haiku-4-5")

	first.ObservePoolSize(3)
	second.ObservePoolSize(2)
	other.ObservePoolSize(1)
	first.ObserveKeyRemoved(2)
	other.ObserveKeyRemoved(0)

	if got := testutil.ToFloat64(collector.poolKeys.WithLabelValues("openai", "gpt-4")); got != 4 {
		t.Errorf("expected 4 keys across the gpt-4 pools, got %v", got)
	}
	if got := testutil.ToFloat64(collector.poolKeys.WithLabelValues("anthropic", "claude-haiku-4-5")); got != 0 {
		t.Errorf("expected the emptied anthropic pool to report 0, got %v", got)
	}
	if got := testutil.ToFloat64(collector.keysRemovedTotal); got != 2 {
		t.Errorf("expected 2 removals, got %v", got)
	}
}

func TestCollectorsDoNotShareRegistries(t *testing.T) {
	// Two collectors on separate registries must not panic with duplicate registration.
	NewCollectorWithRegistry(prometheus.NewRegistry())
	NewCollectorWithRegistry(prometheus.NewRegistry())
}

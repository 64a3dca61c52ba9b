package flockgate

import "sync/atomic"

// MetricID indexes one gate counter.
type MetricID uint16

const (
	// MetricSignInSuccess counts completed password sign-ins.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts failed password sign-ins.
	MetricSignInFailure
	// MetricSignInRateLimited counts attempts stopped by the local throttle.
	MetricSignInRateLimited
	// MetricSignInRejectedBusy counts attempts rejected while one was in flight.
	MetricSignInRejectedBusy
	// MetricFederatedSuccess counts completed federated sign-ins.
	MetricFederatedSuccess
	// MetricFederatedCancelled counts federated flows the user abandoned.
	MetricFederatedCancelled
	// MetricSignOut counts sign-outs, including idempotent repeats.
	MetricSignOut
	// MetricSessionRestored counts sessions rebuilt from a continuity token.
	MetricSessionRestored
	// MetricSessionExpired counts lazy expiry demotions.
	MetricSessionExpired
	// MetricStaleOutcomeDiscarded counts late sign-in outcomes dropped by the
	// attempt guard.
	MetricStaleOutcomeDiscarded
	// MetricNavigationAllowed counts permitted navigation decisions.
	MetricNavigationAllowed
	// MetricNavigationDenied counts redirected navigation decisions.
	MetricNavigationDenied
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the gate's lock-free counters.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. Disabled or nil metrics are a no-op.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Safe to call concurrently with Inc.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}

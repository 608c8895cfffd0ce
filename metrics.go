package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter in the in-process metrics
// system.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricSessionCreated
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricReplayDetected
	MetricVerifySuccess
	MetricVerifyFailure
	MetricLogout
	MetricSessionRevoked
	MetricVerifyLatency

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:     "login_success",
	MetricLoginFailure:     "login_failure",
	MetricLoginRateLimited: "login_rate_limited",
	MetricSessionCreated:   "session_created",
	MetricRefreshSuccess:   "refresh_success",
	MetricRefreshFailure:   "refresh_failure",
	MetricReplayDetected:   "replay_detected",
	MetricVerifySuccess:    "verify_success",
	MetricVerifyFailure:    "verify_failure",
	MetricLogout:           "logout",
	MetricSessionRevoked:   "session_revoked",
	MetricVerifyLatency:    "verify_latency",
}

// String returns the stable snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// verifyLatencyBounds are the histogram bucket upper bounds for
// MetricVerifyLatency. The final bucket is unbounded.
var verifyLatencyBounds = [histBucketCount - 1]time.Duration{
	50 * time.Microsecond,
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
}

// VerifyLatencyBounds returns the histogram bucket upper bounds; the
// implicit final bucket is +Inf.
func VerifyLatencyBounds() []time.Duration {
	return verifyLatencyBounds[:]
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

// Metrics holds atomic counters and an optional verify-latency
// histogram. All operations are lock-free; a disabled instance is a
// no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	verifyLatency latencyHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
	// VerifyLatencyBuckets holds per-bucket observation counts aligned
	// with [VerifyLatencyBounds] plus a final overflow bucket. Nil when
	// latency histograms are disabled.
	VerifyLatencyBuckets []uint64
	// VerifyLatencySum is the total observed verify latency.
	VerifyLatencySum time.Duration
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether the instance records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether verify latency is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one verify-latency sample.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}
	if d < 0 {
		d = 0
	}

	atomic.AddUint64(&m.verifyLatency.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.verifyLatency.sumNanos, uint64(d.Nanoseconds()))
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a consistent-enough deep copy for export. Counters
// are read individually, so a snapshot taken under load is not a single
// atomic cut; exporters do not need one.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		s.VerifyLatencyBuckets = make([]uint64, histBucketCount)
		for i := range s.VerifyLatencyBuckets {
			s.VerifyLatencyBuckets[i] = atomic.LoadUint64(&m.verifyLatency.buckets[i])
		}
		s.VerifyLatencySum = time.Duration(atomic.LoadUint64(&m.verifyLatency.sumNanos))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range verifyLatencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}

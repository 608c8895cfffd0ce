// Package promexport exposes an [authcore.Engine]'s internal counters
// as a Prometheus collector. Registration is opt-in; the engine itself
// never imports the Prometheus client.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veyralabs/authcore"
)

// Collector adapts engine metrics snapshots to the Prometheus scrape
// model. Register it once per engine:
//
//	prometheus.MustRegister(promexport.NewCollector(engine))
type Collector struct {
	engine *authcore.Engine

	events        *prometheus.Desc
	verifyLatency *prometheus.Desc
	auditDropped  *prometheus.Desc
	sessions      *prometheus.Desc
}

// NewCollector creates a Collector for the given engine.
func NewCollector(engine *authcore.Engine) *Collector {
	return &Collector{
		engine: engine,
		events: prometheus.NewDesc(
			"authcore_events_total",
			"Authentication events processed, by event type.",
			[]string{"event"}, nil,
		),
		verifyLatency: prometheus.NewDesc(
			"authcore_verify_latency_seconds",
			"Latency of successful access token verifications.",
			nil, nil,
		),
		auditDropped: prometheus.NewDesc(
			"authcore_audit_events_dropped_total",
			"Audit events shed because the dispatcher buffer was full.",
			nil, nil,
		),
		sessions: prometheus.NewDesc(
			"authcore_sessions",
			"Resident session records, including expired ones not yet swept.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.events
	ch <- c.verifyLatency
	ch <- c.auditDropped
	ch <- c.sessions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.engine.Metrics().Snapshot()

	for id, value := range snap.Counters {
		if id == authcore.MetricVerifyLatency {
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			c.events, prometheus.CounterValue, float64(value), id.String(),
		)
	}

	if snap.VerifyLatencyBuckets != nil {
		bounds := authcore.VerifyLatencyBounds()
		buckets := make(map[float64]uint64, len(bounds))
		var count uint64
		for i, bucketCount := range snap.VerifyLatencyBuckets {
			count += bucketCount
			if i < len(bounds) {
				buckets[bounds[i].Seconds()] = count
			}
		}
		ch <- prometheus.MustNewConstHistogram(
			c.verifyLatency, count, snap.VerifyLatencySum.Seconds(), buckets,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.auditDropped, prometheus.CounterValue, float64(c.engine.AuditDropped()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.sessions, prometheus.GaugeValue, float64(c.engine.SessionCount()),
	)
}

// Package metrics provides optional Prometheus instrumentation for
// discovery's timing breakdown (spec.md §3 "timing breakdown for
// observability"), grounded on marmos91-dittofs's GSSMetrics: nil-safe
// receiver methods so a nil *DiscoveryMetrics is a zero-overhead no-op
// when the caller doesn't want metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DiscoveryMetrics tracks Prometheus metrics for the discovery pipeline's
// stages (cache probe, multicast collection, metadata fetch) and outcome.
type DiscoveryMetrics struct {
	// StageDuration tracks how long each discovery stage took.
	// Labels: stage=[cache_probe, multicast, metadata_fetch, total]
	StageDuration *prometheus.HistogramVec

	// Outcomes counts discovery attempts by how they concluded.
	// Labels: outcome=[cache_hit, probe_success, needs_user_input, error]
	Outcomes *prometheus.CounterVec
}

var discoveryMetricsOnce sync.Once
var discoveryMetricsInstance *DiscoveryMetrics

// NewDiscoveryMetrics creates and registers discovery Prometheus metrics.
// If registerer is nil, prometheus.DefaultRegisterer is used. Idempotent
// via sync.Once, matching the dittofs GSSMetrics pattern.
func NewDiscoveryMetrics(registerer prometheus.Registerer) *DiscoveryMetrics {
	discoveryMetricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		m := &DiscoveryMetrics{
			StageDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "n3dsmb_discovery_stage_duration_seconds",
					Help:    "Discovery stage duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"stage"},
			),
			Outcomes: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "n3dsmb_discovery_outcomes_total",
					Help: "Total discovery attempts by outcome",
				},
				[]string{"outcome"},
			),
		}
		registerer.MustRegister(m.StageDuration, m.Outcomes)
		discoveryMetricsInstance = m
	})
	return discoveryMetricsInstance
}

// RecordStage records the duration of one discovery stage.
func (m *DiscoveryMetrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOutcome records how a discovery attempt concluded.
func (m *DiscoveryMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// Package metrics holds the Prometheus instruments for the unlock flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all unlock-flow Prometheus metrics.
type Metrics struct {
	Unlocks          *prometheus.CounterVec
	Denials          *prometheus.CounterVec
	SnapshotsReused  prometheus.Counter
	SnapshotsCreated prometheus.Counter
	ProviderFetches  *prometheus.CounterVec
	RetentionGated   prometheus.Counter
	Duration         prometheus.Histogram
}

// New creates and registers all unlock metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Unlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unlock_granted_total",
			Help: "Unlocks granted, by source and whether the call was a dedupe hit.",
		}, []string{"source", "already_unlocked"}),
		Denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unlock_denied_total",
			Help: "Unlock denials by error code.",
		}, []string{"code"}),
		SnapshotsReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spec_snapshot_reuse_total",
			Help: "Unlocks served from an existing snapshot without a provider fetch.",
		}),
		SnapshotsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spec_snapshot_created_total",
			Help: "New snapshot generations created.",
		}),
		ProviderFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spec_provider_fetch_total",
			Help: "Spec provider fetches by reported status code.",
		}, []string{"status"}),
		RetentionGated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unlock_retention_gated_total",
			Help: "Unlock attempts refused by the retention gate.",
		}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unlock_duration_seconds",
			Help:    "End-to-end unlock call duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

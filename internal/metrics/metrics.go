package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the synchronization protocol.
var (
	SyncPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_push_total",
			Help: "Status pushes to the order-of-record service by result",
		},
		[]string{"result"},
	)

	SyncPushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_push_duration_seconds",
			Help:    "Duration of status pushes to the order-of-record service",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchTriggerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_trigger_total",
			Help: "Dispatch trigger invocations by outcome",
		},
		[]string{"outcome"},
	)

	PromotionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_total",
			Help: "Registration promotions by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_attempts_total",
			Help: "Re-push attempts made by the reconciliation worker by result",
		},
		[]string{"result"},
	)

	UpstreamAdoptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_adoptions_total",
			Help: "Local orders overwritten by a newer order-of-record status",
		},
	)

	TransitionRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transition_rejections_total",
			Help: "Status change requests rejected by the transition validator",
		},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SyncPushTotal)
		prometheus.MustRegister(SyncPushDuration)
		prometheus.MustRegister(DispatchTriggerTotal)
		prometheus.MustRegister(PromotionTotal)
		prometheus.MustRegister(ReconcileAttemptsTotal)
		prometheus.MustRegister(TransitionRejectionsTotal)
		prometheus.MustRegister(UpstreamAdoptionsTotal)
	})
}

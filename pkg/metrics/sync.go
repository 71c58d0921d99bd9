package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of replay drains and payment callbacks.
type SyncMetrics struct {
	drainDuration *prometheus.HistogramVec
	synced        *prometheus.CounterVec
	failed        *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	drainDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_drain_duration_seconds",
		Help:    "Duration of queue drain passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	synced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_actions_synced",
		Help: "Queued actions replayed successfully.",
	}, []string{"action_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_actions_failed",
		Help: "Queued actions that failed to replay.",
	}, []string{"action_type"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks",
		Help: "Payment callbacks received, by verification outcome.",
	}, []string{"outcome"})
	reg.MustRegister(drainDuration, synced, failed, callbacks)
	return &SyncMetrics{
		drainDuration: drainDuration,
		synced:        synced,
		failed:        failed,
		callbacks:     callbacks,
	}
}

// ObserveDrain records the duration of a drain pass for the named trigger.
func (s *SyncMetrics) ObserveDrain(trigger string, duration time.Duration) {
	if s == nil || s.drainDuration == nil {
		return
	}
	s.drainDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncSynced increments the replayed counter for the action type.
func (s *SyncMetrics) IncSynced(actionType string) {
	if s == nil || s.synced == nil {
		return
	}
	s.synced.WithLabelValues(normalizeLabel(actionType)).Inc()
}

// IncFailed increments the failure counter for the action type.
func (s *SyncMetrics) IncFailed(actionType string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(actionType)).Inc()
}

// IncCallback increments the callback counter for the named outcome.
func (s *SyncMetrics) IncCallback(outcome string) {
	if s == nil || s.callbacks == nil {
		return
	}
	s.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

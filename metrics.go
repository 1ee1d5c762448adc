package authcore

import "sync/atomic"

// MetricID indexes the engine's lock-free counters.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginLockedOut
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricRefreshLockedOut
	MetricRevokedTokenReuse
	MetricTokenRevoked
	MetricLogout
	MetricLogoutAll
	MetricPasswordResetRequest
	MetricPasswordResetConfirm
	MetricVerificationRequest
	MetricVerificationConfirm
	MetricOAuthLoginSuccess
	MetricOAuthLoginFailure

	metricCount
)

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters [metricCount]uint64
}

type metricsRecorder struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

func newMetricsRecorder(cfg MetricsConfig) *metricsRecorder {
	return &metricsRecorder{enabled: cfg.Enabled}
}

func (m *metricsRecorder) inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *metricsRecorder) snapshot() MetricsSnapshot {
	var out MetricsSnapshot
	if m == nil {
		return out
	}
	for i := range m.counters {
		out.Counters[i] = m.counters[i].Load()
	}
	return out
}

// MetricsSnapshot returns a consistent-enough copy of the engine counters
// for export; individual counters are read atomically.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.snapshot()
}

// AuditDropped returns the number of audit events dropped by the
// dispatcher under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e.audit == nil {
		return 0
	}
	return e.audit.droppedCount()
}

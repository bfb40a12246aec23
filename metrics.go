package tenantauth

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginMFARequired
	MetricMFASuccess
	MetricMFAFailure
	MetricMFARateLimited
	MetricRefreshSuccess
	MetricRefreshReuse
	MetricTokenRejected
	MetricPermissionAllowed
	MetricPermissionDenied
	MetricSwitchSuccess
	MetricResendRateLimited
	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:      "login_success_total",
	MetricLoginFailure:      "login_failure_total",
	MetricLoginMFARequired:  "login_mfa_required_total",
	MetricMFASuccess:        "mfa_success_total",
	MetricMFAFailure:        "mfa_failure_total",
	MetricMFARateLimited:    "mfa_rate_limited_total",
	MetricRefreshSuccess:    "refresh_success_total",
	MetricRefreshReuse:      "refresh_reuse_total",
	MetricTokenRejected:     "token_rejected_total",
	MetricPermissionAllowed: "permission_allowed_total",
	MetricPermissionDenied:  "permission_denied_total",
	MetricSwitchSuccess:     "switch_success_total",
	MetricResendRateLimited: "resend_rate_limited_total",
}

// MetricName returns the stable exposition name of a counter.
func MetricName(id MetricID) string {
	if id < 0 || id >= metricCount {
		return ""
	}
	return metricNames[id]
}

// MetricIDs lists every counter, in exposition order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[string]uint64
}

// Metrics holds lock-free in-process counters. Disabled metrics make Inc
// a no-op so hot paths stay allocation-free.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

// NewMetrics creates the counter set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: !cfg.Disabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies every counter value.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[string]uint64, metricCount)}
	if m == nil {
		return out
	}
	for i := range m.counters {
		out.Counters[metricNames[i]] = m.counters[i].Load()
	}
	return out
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil {
		e.metrics.Inc(id)
	}
}

// MetricsSnapshot exposes the engine's counters to exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

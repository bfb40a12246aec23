package tenantauth

import (
	"context"
	"sync"
	"testing"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReuse)
	m.Inc(MetricID(-1))
	m.Inc(metricCount)

	snap := m.Snapshot()
	if snap.Counters["login_success_total"] != 2 {
		t.Fatalf("login_success_total = %d", snap.Counters["login_success_total"])
	}
	if snap.Counters["refresh_reuse_total"] != 1 {
		t.Fatalf("refresh_reuse_total = %d", snap.Counters["refresh_reuse_total"])
	}
	if snap.Counters["mfa_failure_total"] != 0 {
		t.Fatalf("expected zeroed counter present, got %d", snap.Counters["mfa_failure_total"])
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Disabled: true})
	m.Inc(MetricLoginSuccess)

	if got := m.Snapshot().Counters["login_success_total"]; got != 0 {
		t.Fatalf("expected no-op Inc when disabled, got %d", got)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(MetricPermissionAllowed)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters["permission_allowed_total"]; got != 800 {
		t.Fatalf("permission_allowed_total = %d", got)
	}
}

func TestMetricNames(t *testing.T) {
	for _, id := range MetricIDs() {
		if MetricName(id) == "" {
			t.Fatalf("metric %d has no name", id)
		}
	}
	if MetricName(MetricID(-1)) != "" || MetricName(metricCount) != "" {
		t.Fatal("expected empty name for out-of-range ids")
	}
}

func TestEngineCountsLoginOutcomes(t *testing.T) {
	h := newTestEngine(t, nil)

	if _, err := h.engine.Login(context.Background(), "alice@example.com", alicePassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := h.engine.Login(context.Background(), "alice@example.com", "wrong-password"); err == nil {
		t.Fatal("expected failure")
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters["login_success_total"] != 1 {
		t.Fatalf("login_success_total = %d", snap.Counters["login_success_total"])
	}
	if snap.Counters["login_failure_total"] != 1 {
		t.Fatalf("login_failure_total = %d", snap.Counters["login_failure_total"])
	}
}

func TestEngineCountsRefreshReuse(t *testing.T) {
	h := newTestEngine(t, nil)
	pair := loginTokens(t, h)

	if _, err := h.engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := h.engine.Refresh(context.Background(), pair.RefreshToken); err == nil {
		t.Fatal("expected reuse rejection")
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters["refresh_success_total"] != 1 || snap.Counters["refresh_reuse_total"] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
}

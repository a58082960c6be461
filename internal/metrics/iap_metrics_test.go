package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"iapBack/internal/models"
)

func TestIAPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIAPMetrics(reg)

	m.ObserveVerification("ios", models.StatusActive, 120*time.Millisecond)
	m.ObserveVerification("ios", models.StatusActive, 80*time.Millisecond)
	m.ObserveVerification("xbox", models.StatusError, time.Millisecond)
	m.ObserveNotification(models.PlatformAndroid, models.BucketExpired)

	if got := testutil.ToFloat64(m.verifications.WithLabelValues("ios", "active")); got != 2 {
		t.Errorf("ios/active = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.verifications.WithLabelValues("xbox", "error")); got != 1 {
		t.Errorf("xbox/error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("android", "expired")); got != 1 {
		t.Errorf("android/expired = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

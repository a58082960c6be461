package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"iapBack/internal/models"
)

// IAPMetrics records verification outcomes and webhook traffic.
type IAPMetrics struct {
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

func NewIAPMetrics(registry *prometheus.Registry) *IAPMetrics {
	return &IAPMetrics{
		verifications: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "iap_verifications_total",
				Help: "Purchase verifications by platform and resulting status",
			},
			[]string{"platform", "status"},
		),
		duration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iap_verification_duration_seconds",
				Help:    "Time spent verifying a purchase with the store",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"platform"},
		),
		notifications: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "iap_webhook_notifications_total",
				Help: "Store notifications received by platform and bucket",
			},
			[]string{"platform", "bucket"},
		),
	}
}

func (m *IAPMetrics) ObserveVerification(platform string, status models.Status, elapsed time.Duration) {
	m.verifications.WithLabelValues(platform, string(status)).Inc()
	m.duration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

func (m *IAPMetrics) ObserveNotification(platform models.Platform, bucket models.NotificationBucket) {
	m.notifications.WithLabelValues(string(platform), string(bucket)).Inc()
}

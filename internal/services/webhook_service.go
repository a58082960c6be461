package services

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"iapBack/internal/models"
)

// Google RTDN subscription notification types.
const (
	googleSubscriptionRecovered = 1
	googleSubscriptionRenewed   = 2
	googleSubscriptionCanceled  = 3
	googleSubscriptionPurchased = 4
	googleSubscriptionExpired   = 12
)

// NotificationObserver counts classified notifications.
type NotificationObserver interface {
	ObserveNotification(platform models.Platform, bucket models.NotificationBucket)
}

// WebhookOutcome is what the HTTP layer acknowledges back to the store.
type WebhookOutcome struct {
	Bucket  models.NotificationBucket
	Type    string
	Message string
}

// WebhookService classifies store notifications. Every bucket is currently
// acknowledged and logged only; the subscription table is not touched because
// notifications are not yet mapped back to a stored transaction.
type WebhookService struct {
	observer NotificationObserver
	logger   zerolog.Logger
}

func NewWebhookService(observer NotificationObserver, logger zerolog.Logger) *WebhookService {
	return &WebhookService{
		observer: observer,
		logger:   logger.With().Str("component", "webhooks").Logger(),
	}
}

// ClassifyAppleNotification maps an App Store notification_type.
func ClassifyAppleNotification(notificationType string) models.NotificationBucket {
	switch notificationType {
	case "INITIAL_BUY", "DID_RENEW", "DID_RECOVER":
		return models.BucketActivated
	case "DID_FAIL_TO_RENEW", "DID_CANCEL":
		return models.BucketCancelled
	case "EXPIRED":
		return models.BucketExpired
	default:
		return models.BucketIgnored
	}
}

// ClassifyGoogleNotification maps an RTDN subscription notificationType.
func ClassifyGoogleNotification(notificationType int64) models.NotificationBucket {
	switch notificationType {
	case googleSubscriptionRecovered, googleSubscriptionRenewed, googleSubscriptionPurchased:
		return models.BucketActivated
	case googleSubscriptionCanceled:
		return models.BucketCancelled
	case googleSubscriptionExpired:
		return models.BucketExpired
	default:
		return models.BucketIgnored
	}
}

// HandleApple processes an App Store Server Notification body.
func (s *WebhookService) HandleApple(notification map[string]any) WebhookOutcome {
	notificationType, _ := stringField(notification, "notification_type")
	s.logger.Info().
		Str("notification_type", notificationType).
		Interface("data", notification).
		Msg("apple webhook received")

	bucket := ClassifyAppleNotification(notificationType)
	return s.finish(models.PlatformIOS, notificationType, bucket, notification)
}

// HandleGoogle processes a Pub/Sub push body. The subscription notification
// may be inline under message.subscriptionNotification or base64 encoded in
// message.data.
func (s *WebhookService) HandleGoogle(notification map[string]any) WebhookOutcome {
	s.logger.Info().Interface("data", notification).Msg("google webhook received")

	sub := googleSubscriptionNotification(mapField(notification, "message"))
	if sub == nil {
		out := s.finish(models.PlatformAndroid, "", models.BucketIgnored, notification)
		out.Message = "No subscription notification found"
		return out
	}

	var (
		typeLabel string
		bucket    = models.BucketIgnored
	)
	if code, ok := int64Field(sub, "notificationType"); ok {
		typeLabel, _ = stringField(sub, "notificationType")
		bucket = ClassifyGoogleNotification(code)
	}
	return s.finish(models.PlatformAndroid, typeLabel, bucket, notification)
}

func (s *WebhookService) finish(platform models.Platform, notificationType string, bucket models.NotificationBucket, notification map[string]any) WebhookOutcome {
	if s.observer != nil {
		s.observer.ObserveNotification(platform, bucket)
	}

	out := WebhookOutcome{Bucket: bucket, Type: notificationType}
	switch bucket {
	case models.BucketActivated:
		out.Message = "Subscription activated"
	case models.BucketCancelled:
		out.Message = "Subscription cancelled"
	case models.BucketExpired:
		out.Message = "Subscription expired"
	default:
		out.Message = "Notification received but not processed"
		return out
	}

	s.logger.Info().
		Str("platform", string(platform)).
		Str("bucket", string(bucket)).
		Str("notification_type", notificationType).
		Interface("notification", notification).
		Msgf("%s subscription notification for %s", bucket, platform)
	return out
}

func googleSubscriptionNotification(message map[string]any) map[string]any {
	if message == nil {
		return nil
	}
	if sub := mapField(message, "subscriptionNotification"); sub != nil {
		return sub
	}
	data, _ := message["data"].(string)
	if strings.TrimSpace(data) == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return mapField(decoded, "subscriptionNotification")
}

package services

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"iapBack/internal/models"
)

type bucketCounter struct {
	seen map[models.Platform][]models.NotificationBucket
}

func (c *bucketCounter) ObserveNotification(platform models.Platform, bucket models.NotificationBucket) {
	if c.seen == nil {
		c.seen = map[models.Platform][]models.NotificationBucket{}
	}
	c.seen[platform] = append(c.seen[platform], bucket)
}

func TestClassifyAppleNotification(t *testing.T) {
	tests := map[string]models.NotificationBucket{
		"INITIAL_BUY":       models.BucketActivated,
		"DID_RENEW":         models.BucketActivated,
		"DID_RECOVER":       models.BucketActivated,
		"DID_FAIL_TO_RENEW": models.BucketCancelled,
		"DID_CANCEL":        models.BucketCancelled,
		"EXPIRED":           models.BucketExpired,
		"PRICE_INCREASE":    models.BucketIgnored,
		"":                  models.BucketIgnored,
	}
	for in, want := range tests {
		if got := ClassifyAppleNotification(in); got != want {
			t.Errorf("%q: got %q, want %q", in, got, want)
		}
	}
}

func TestClassifyGoogleNotification(t *testing.T) {
	tests := map[int64]models.NotificationBucket{
		1:  models.BucketActivated,
		2:  models.BucketActivated,
		4:  models.BucketActivated,
		3:  models.BucketCancelled,
		12: models.BucketExpired,
		5:  models.BucketIgnored,
		13: models.BucketIgnored,
	}
	for in, want := range tests {
		if got := ClassifyGoogleNotification(in); got != want {
			t.Errorf("%d: got %q, want %q", in, got, want)
		}
	}
}

func TestWebhookService_HandleApple(t *testing.T) {
	counter := &bucketCounter{}
	svc := NewWebhookService(counter, zerolog.Nop())

	out := svc.HandleApple(map[string]any{"notification_type": "DID_RENEW"})
	if out.Bucket != models.BucketActivated || out.Message != "Subscription activated" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	out = svc.HandleApple(map[string]any{"notification_type": "CONSUMPTION_REQUEST"})
	if out.Bucket != models.BucketIgnored || out.Message != "Notification received but not processed" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := counter.seen[models.PlatformIOS]; len(got) != 2 {
		t.Errorf("observer saw %v", got)
	}
}

func TestWebhookService_HandleGoogle(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"subscriptionNotification":{"notificationType":12}}`))

	tests := []struct {
		name    string
		body    string
		bucket  models.NotificationBucket
		message string
	}{
		{"numeric type", `{"message":{"subscriptionNotification":{"notificationType":4}}}`, models.BucketActivated, "Subscription activated"},
		{"string type", `{"message":{"subscriptionNotification":{"notificationType":"3"}}}`, models.BucketCancelled, "Subscription cancelled"},
		{"encoded data", `{"message":{"data":"` + encoded + `"}}`, models.BucketExpired, "Subscription expired"},
		{"unknown type", `{"message":{"subscriptionNotification":{"notificationType":20}}}`, models.BucketIgnored, "Notification received but not processed"},
		{"no notification", `{"message":{}}`, models.BucketIgnored, "No subscription notification found"},
		{"no message", `{}`, models.BucketIgnored, "No subscription notification found"},
		{"garbage data", `{"message":{"data":"!!!"}}`, models.BucketIgnored, "No subscription notification found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			if err := json.Unmarshal([]byte(tt.body), &body); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			out := NewWebhookService(nil, zerolog.Nop()).HandleGoogle(body)
			if out.Bucket != tt.bucket || out.Message != tt.message {
				t.Errorf("got %+v, want %q/%q", out, tt.bucket, tt.message)
			}
		})
	}
}

func TestWebhookService_HandleGoogleCountsMissingNotification(t *testing.T) {
	counter := &bucketCounter{}
	svc := NewWebhookService(counter, zerolog.Nop())

	out := svc.HandleGoogle(map[string]any{"message": map[string]any{}})
	if out.Bucket != models.BucketIgnored || out.Message != "No subscription notification found" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	got := counter.seen[models.PlatformAndroid]
	if len(got) != 1 || got[0] != models.BucketIgnored {
		t.Errorf("observer saw %v", got)
	}
}

package models

import (
	"strings"
	"time"
)

// Platform is the canonical store tag carried by every result and row.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

var platformAliases = map[string]Platform{
	"ios":     PlatformIOS,
	"apple":   PlatformIOS,
	"android": PlatformAndroid,
	"google":  PlatformAndroid,
}

// ParsePlatform resolves a client supplied platform name (case-insensitive)
// to its canonical tag.
func ParsePlatform(name string) (Platform, bool) {
	p, ok := platformAliases[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Status is the normalized lifecycle state of a purchase.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusInvalid   Status = "invalid"
	StatusError     Status = "error"
)

// VerificationResult is the normalized outcome of one verification attempt.
// Values are passed by copy; nothing mutates a result after it is built.
type VerificationResult struct {
	Valid                 bool           `json:"valid"`
	Status                Status         `json:"status"`
	ExpiresAt             *time.Time     `json:"expires_at"`
	Platform              Platform       `json:"platform"`
	ProductID             string         `json:"product_id"`
	OriginalTransactionID string         `json:"original_transaction_id"`
	RawData               map[string]any `json:"raw_data"`
}

// FailedResult builds a result for a purchase that could not be confirmed.
func FailedResult(platform Platform, status Status, productID string, raw map[string]any) VerificationResult {
	if raw == nil {
		raw = map[string]any{}
	}
	return VerificationResult{
		Valid:     false,
		Status:    status,
		Platform:  platform,
		ProductID: productID,
		RawData:   raw,
	}
}

// ErrorRaw is the audit payload attached to failed results.
func ErrorRaw(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// IsActive reports whether the result grants an entitlement at now.
func (r VerificationResult) IsActive(now time.Time) bool {
	if !r.Valid {
		return false
	}
	if r.ExpiresAt == nil {
		return r.Status == StatusActive
	}
	return r.Status == StatusActive && r.ExpiresAt.After(now)
}

// IsExpired reports whether a valid, expiring purchase is past its expiry.
func (r VerificationResult) IsExpired(now time.Time) bool {
	if !r.Valid || r.ExpiresAt == nil {
		return false
	}
	return r.ExpiresAt.Before(now)
}

// ToMap renders the result in the response shape used by the HTTP layer.
func (r VerificationResult) ToMap() map[string]any {
	var expires any
	if r.ExpiresAt != nil {
		expires = r.ExpiresAt.UTC().Format(time.RFC3339)
	}
	raw := r.RawData
	if raw == nil {
		raw = map[string]any{}
	}
	return map[string]any{
		"valid":                   r.Valid,
		"status":                  string(r.Status),
		"expires_at":              expires,
		"platform":                string(r.Platform),
		"product_id":              r.ProductID,
		"original_transaction_id": r.OriginalTransactionID,
		"raw_data":                raw,
	}
}

// VerifyRequest is the body of POST /iap/verify.
type VerifyRequest struct {
	Platform string         `json:"platform" validate:"required,oneof=ios apple android google"`
	UserID   int64          `json:"user_id" validate:"required,gt=0"`
	Payload  map[string]any `json:"payload" validate:"required"`
}

// NotificationBucket is the coarse class a store notification falls into.
type NotificationBucket string

const (
	BucketActivated NotificationBucket = "activated"
	BucketCancelled NotificationBucket = "cancelled"
	BucketExpired   NotificationBucket = "expired"
	BucketIgnored   NotificationBucket = "ignored"
)

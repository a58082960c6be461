package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"iapBack/internal/config"
	"iapBack/internal/models"
)

const googleMissingFields = "Missing required fields: package_name, product_id, or purchase_token"

// Product purchase states reported by products.get.
const googlePurchaseStatePurchased int64 = 0

// GoogleVerifier validates Play purchase tokens through the Play Developer API.
type GoogleVerifier struct {
	packageName string
	gateway     GooglePlayGateway
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGoogleVerifier wraps an existing gateway. A nil gateway yields a verifier
// whose calls all fail with ErrGooglePlayUnavailable.
func NewGoogleVerifier(cfg config.GoogleConfig, gateway GooglePlayGateway, logger zerolog.Logger) *GoogleVerifier {
	if gateway == nil {
		gateway = unavailableGateway{}
	}
	return &GoogleVerifier{
		packageName: strings.TrimSpace(cfg.PackageName),
		gateway:     gateway,
		logger:      logger.With().Str("component", "google_verifier").Logger(),
		now:         time.Now,
	}
}

// NewGoogleVerifierFromConfig builds the Play client from the configured
// service account. A missing or unreadable key file is logged and leaves the
// verifier without a backend.
func NewGoogleVerifierFromConfig(ctx context.Context, cfg config.GoogleConfig, logger zerolog.Logger) *GoogleVerifier {
	gateway, err := NewAndroidPublisherGateway(ctx, cfg.ServiceAccountPath, cfg.Timeout)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.ServiceAccountPath).Msg("google play client unavailable")
		return NewGoogleVerifier(cfg, unavailableGateway{cause: err}, logger)
	}
	return NewGoogleVerifier(cfg, gateway, logger)
}

func (v *GoogleVerifier) Platform() models.Platform { return models.PlatformAndroid }

// Verify expects payload keys package_name (optional), product_id,
// purchase_token and is_subscription (defaults to true).
func (v *GoogleVerifier) Verify(ctx context.Context, payload map[string]any) models.VerificationResult {
	packageName := v.packageName
	if p, ok := stringField(payload, "package_name"); ok {
		packageName = strings.TrimSpace(p)
	}
	productID, _ := stringField(payload, "product_id")
	token, _ := stringField(payload, "purchase_token")
	productID = strings.TrimSpace(productID)
	token = strings.TrimSpace(token)

	if packageName == "" || productID == "" || token == "" {
		return models.FailedResult(models.PlatformAndroid, models.StatusInvalid, productID, models.ErrorRaw(googleMissingFields))
	}

	if boolField(payload, "is_subscription", true) {
		return v.verifySubscription(ctx, packageName, productID, token)
	}
	return v.verifyProduct(ctx, packageName, productID, token)
}

func (v *GoogleVerifier) verifySubscription(ctx context.Context, packageName, productID, token string) models.VerificationResult {
	sub, err := v.gateway.GetSubscription(ctx, packageName, productID, token)
	if err != nil {
		return v.failure(productID, "google subscription verification failed", err)
	}

	var expiresAt *time.Time
	var expiry any
	if sub.ExpiryTimeMillis > 0 {
		t := time.UnixMilli(sub.ExpiryTimeMillis).UTC()
		expiresAt = &t
		expiry = sub.ExpiryTimeMillis
	}

	now := v.now()
	expired := expiresAt != nil && expiresAt.Before(now)
	status := models.StatusActive
	if expired {
		status = models.StatusExpired
	}
	if !sub.AutoRenewing && expired {
		status = models.StatusCancelled
	}

	orderID := sub.OrderId
	if orderID == "" {
		orderID = token
	}

	var paymentState any
	if sub.PaymentState != nil {
		paymentState = *sub.PaymentState
	}

	return models.VerificationResult{
		Valid:                 true,
		Status:                status,
		ExpiresAt:             expiresAt,
		Platform:              models.PlatformAndroid,
		ProductID:             productID,
		OriginalTransactionID: orderID,
		RawData: map[string]any{
			"kind":                sub.Kind,
			"start_time_millis":   sub.StartTimeMillis,
			"expiry_time_millis":  expiry,
			"auto_renewing":       sub.AutoRenewing,
			"price_currency_code": sub.PriceCurrencyCode,
			"price_amount_micros": sub.PriceAmountMicros,
			"country_code":        sub.CountryCode,
			"payment_state":       paymentState,
			"order_id":            orderID,
		},
	}
}

func (v *GoogleVerifier) verifyProduct(ctx context.Context, packageName, productID, token string) models.VerificationResult {
	purchase, err := v.gateway.GetProduct(ctx, packageName, productID, token)
	if err != nil {
		return v.failure(productID, "google purchase verification failed", err)
	}

	purchased := purchase.PurchaseState == googlePurchaseStatePurchased
	status := models.StatusCancelled
	if purchased {
		status = models.StatusActive
	}

	orderID := purchase.OrderId
	if orderID == "" {
		orderID = token
	}

	return models.VerificationResult{
		Valid:                 purchased,
		Status:                status,
		Platform:              models.PlatformAndroid,
		ProductID:             productID,
		OriginalTransactionID: orderID,
		RawData: map[string]any{
			"kind":                 purchase.Kind,
			"purchase_state":       purchase.PurchaseState,
			"consumption_state":    purchase.ConsumptionState,
			"order_id":             orderID,
			"purchase_time_millis": purchase.PurchaseTimeMillis,
		},
	}
}

func (v *GoogleVerifier) failure(productID, msg string, err error) models.VerificationResult {
	raw := models.ErrorRaw(err.Error())
	event := v.logger.Error().Err(err).Str("product_id", productID)

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		raw["code"] = apiErr.Code
		event = event.Int("code", apiErr.Code)
	}
	event.Msg(msg)

	return models.FailedResult(models.PlatformAndroid, models.StatusError, productID, raw)
}

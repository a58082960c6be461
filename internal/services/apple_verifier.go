package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"iapBack/internal/config"
	"iapBack/internal/models"
)

// verifyReceipt status meaning "sandbox receipt sent to production".
const appleSandboxReceiptStatus = 21007

const appleDateLayout = "2006-01-02 15:04:05"

// AppleVerifier validates App Store receipts through the verifyReceipt API.
type AppleVerifier struct {
	sharedSecret string
	verifyURL    string
	sandboxURL   string
	gateway      AppleReceiptGateway
	logger       zerolog.Logger
	now          func() time.Time
}

func NewAppleVerifier(cfg config.AppleConfig, gateway AppleReceiptGateway, logger zerolog.Logger) *AppleVerifier {
	verifyURL := strings.TrimSpace(cfg.VerifyReceiptURL)
	if verifyURL == "" {
		verifyURL = config.DefaultAppleVerifyURL
	}
	sandboxURL := strings.TrimSpace(cfg.SandboxURL)
	if sandboxURL == "" {
		sandboxURL = config.DefaultAppleSandboxURL
	}
	if gateway == nil {
		gateway = NewAppleHTTPGateway(cfg.ConnectTimeout, cfg.Timeout)
	}
	return &AppleVerifier{
		sharedSecret: cfg.SharedSecret,
		verifyURL:    verifyURL,
		sandboxURL:   sandboxURL,
		gateway:      gateway,
		logger:       logger.With().Str("component", "apple_verifier").Logger(),
		now:          time.Now,
	}
}

func (v *AppleVerifier) Platform() models.Platform { return models.PlatformIOS }

// Verify expects payload keys receipt_data (required) and password (optional,
// defaults to the configured shared secret).
func (v *AppleVerifier) Verify(ctx context.Context, payload map[string]any) models.VerificationResult {
	receipt, _ := payload["receipt_data"].(string)
	if strings.TrimSpace(receipt) == "" {
		return models.FailedResult(models.PlatformIOS, models.StatusInvalid, "", models.ErrorRaw("Missing receipt_data"))
	}

	password := v.sharedSecret
	if p, ok := stringField(payload, "password"); ok {
		password = p
	}
	req := AppleReceiptRequest{ReceiptData: receipt, Password: password}

	resp, err := v.gateway.PostReceipt(ctx, v.verifyURL, req)
	if err == nil {
		if status, ok := int64Field(resp, "status"); ok && status == appleSandboxReceiptStatus {
			resp, err = v.gateway.PostReceipt(ctx, v.sandboxURL, req)
		}
	}
	if err != nil {
		return v.failure(err)
	}

	result, err := v.parseResponse(resp)
	if err != nil {
		return v.failure(err)
	}
	return result
}

func (v *AppleVerifier) failure(err error) models.VerificationResult {
	v.logger.Error().Err(err).Msg("apple receipt verification failed")
	return models.FailedResult(models.PlatformIOS, models.StatusError, "", models.ErrorRaw(err.Error()))
}

func (v *AppleVerifier) parseResponse(resp map[string]any) (models.VerificationResult, error) {
	if status, ok := int64Field(resp, "status"); !ok || status != 0 {
		return models.FailedResult(models.PlatformIOS, models.StatusInvalid, "", resp), nil
	}

	txn := latestTransaction(objectList(resp, "latest_receipt_info"))
	if txn == nil {
		inApp := objectList(mapField(resp, "receipt"), "in_app")
		if len(inApp) > 0 {
			txn = inApp[len(inApp)-1]
		}
	}
	if txn == nil {
		return models.FailedResult(models.PlatformIOS, models.StatusInvalid, "", resp), nil
	}

	productID, _ := stringField(txn, "product_id")
	originalID, ok := stringField(txn, "original_transaction_id")
	if !ok {
		originalID, _ = stringField(txn, "transaction_id")
	}
	if originalID == "" {
		return models.FailedResult(models.PlatformIOS, models.StatusInvalid, productID, resp), nil
	}

	expiresAt, err := appleExpiry(txn)
	if err != nil {
		return models.VerificationResult{}, err
	}

	now := v.now()
	status := models.StatusActive
	if expiresAt != nil && expiresAt.Before(now) {
		status = models.StatusExpired
	}
	if cancelled(txn) {
		status = models.StatusCancelled
	}
	if autoRenewStatus(objectList(resp, "pending_renewal_info"), productID) == "off" &&
		expiresAt != nil && expiresAt.Before(now) {
		status = models.StatusExpired
	}

	return models.VerificationResult{
		Valid:                 true,
		Status:                status,
		ExpiresAt:             expiresAt,
		Platform:              models.PlatformIOS,
		ProductID:             productID,
		OriginalTransactionID: originalID,
		RawData:               resp,
	}, nil
}

// latestTransaction picks the entry with the greatest expires_date_ms. Missing
// values count as zero and the first of equal entries wins.
func latestTransaction(entries []map[string]any) map[string]any {
	var (
		best    map[string]any
		bestExp int64
	)
	for _, e := range entries {
		exp, _ := int64Field(e, "expires_date_ms")
		if best == nil || exp > bestExp {
			best, bestExp = e, exp
		}
	}
	return best
}

func appleExpiry(txn map[string]any) (*time.Time, error) {
	if present(txn, "expires_date_ms") {
		ms, ok := int64Field(txn, "expires_date_ms")
		if !ok {
			raw, _ := stringField(txn, "expires_date_ms")
			return nil, fmt.Errorf("invalid expires_date_ms %q", raw)
		}
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	if raw, ok := stringField(txn, "expires_date"); ok {
		t, err := parseAppleDate(raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, nil
}

func cancelled(txn map[string]any) bool {
	if !present(txn, "cancellation_date_ms") {
		return false
	}
	s, _ := stringField(txn, "cancellation_date_ms")
	return strings.TrimSpace(s) != ""
}

func autoRenewStatus(pending []map[string]any, productID string) string {
	for _, info := range pending {
		if id, _ := stringField(info, "product_id"); id == productID {
			s, _ := stringField(info, "auto_renew_status")
			return s
		}
	}
	return ""
}

// parseAppleDate accepts RFC 3339 and Apple's "2006-01-02 15:04:05 Etc/GMT"
// style with a trailing zone name.
func parseAppleDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("empty expires_date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if i := strings.LastIndex(s, " "); i > 0 {
		if loc := zoneByName(s[i+1:]); loc != nil {
			if t, err := time.ParseInLocation(appleDateLayout, s[:i], loc); err == nil {
				return t.UTC(), nil
			}
		}
	}
	if t, err := time.ParseInLocation(appleDateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized expires_date %q", raw)
}

func zoneByName(name string) *time.Location {
	switch name {
	case "Etc/GMT", "GMT", "UTC", "Etc/UTC":
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	return loc
}

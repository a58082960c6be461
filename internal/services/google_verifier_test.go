package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"

	"iapBack/internal/config"
	"iapBack/internal/models"
)

type fakePlayGateway struct {
	sub     *androidpublisher.SubscriptionPurchase
	product *androidpublisher.ProductPurchase
	err     error

	subCalls     int
	productCalls int
	lastPackage  string
	lastProduct  string
	lastToken    string
}

func (g *fakePlayGateway) GetSubscription(_ context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error) {
	g.subCalls++
	g.lastPackage, g.lastProduct, g.lastToken = packageName, subscriptionID, token
	if g.err != nil {
		return nil, g.err
	}
	return g.sub, nil
}

func (g *fakePlayGateway) GetProduct(_ context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error) {
	g.productCalls++
	g.lastPackage, g.lastProduct, g.lastToken = packageName, productID, token
	if g.err != nil {
		return nil, g.err
	}
	return g.product, nil
}

func newTestGoogleVerifier(gw GooglePlayGateway) *GoogleVerifier {
	v := NewGoogleVerifier(config.GoogleConfig{PackageName: "com.example.app"}, gw, zerolog.Nop())
	v.now = func() time.Time { return testNow }
	return v
}

func TestGoogleVerify_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		cfgPkg  string
		payload map[string]any
	}{
		{"no token", "com.example.app", map[string]any{"product_id": "premium"}},
		{"no product", "com.example.app", map[string]any{"purchase_token": "tok"}},
		{"no package", "", map[string]any{"product_id": "premium", "purchase_token": "tok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakePlayGateway{}
			v := NewGoogleVerifier(config.GoogleConfig{PackageName: tt.cfgPkg}, gw, zerolog.Nop())

			res := v.Verify(context.Background(), tt.payload)

			if res.Valid || res.Status != models.StatusInvalid {
				t.Fatalf("expected invalid, got %+v", res)
			}
			if res.RawData["error"] != googleMissingFields {
				t.Errorf("unexpected raw: %v", res.RawData)
			}
			if gw.subCalls+gw.productCalls != 0 {
				t.Errorf("expected no api calls")
			}
		})
	}
}

func TestGoogleVerify_Subscription(t *testing.T) {
	future := int64(1893456000000)
	past := int64(1700000000000)
	paid := int64(1)

	tests := []struct {
		name   string
		sub    *androidpublisher.SubscriptionPurchase
		status models.Status
		txn    string
	}{
		{
			name:   "active",
			sub:    &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: future, AutoRenewing: true, OrderId: "GPA.1", PaymentState: &paid},
			status: models.StatusActive,
			txn:    "GPA.1",
		},
		{
			name:   "expired while renewing",
			sub:    &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: past, AutoRenewing: true, OrderId: "GPA.2"},
			status: models.StatusExpired,
			txn:    "GPA.2",
		},
		{
			name:   "cancelled after expiry",
			sub:    &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: past, AutoRenewing: false, OrderId: "GPA.3"},
			status: models.StatusCancelled,
			txn:    "GPA.3",
		},
		{
			name:   "not renewing but still in period",
			sub:    &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: future, AutoRenewing: false, OrderId: "GPA.4"},
			status: models.StatusActive,
			txn:    "GPA.4",
		},
		{
			name:   "order id falls back to token",
			sub:    &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: future, AutoRenewing: true},
			status: models.StatusActive,
			txn:    "tok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakePlayGateway{sub: tt.sub}
			res := newTestGoogleVerifier(gw).Verify(context.Background(), map[string]any{
				"product_id":     "premium_monthly",
				"purchase_token": "tok",
			})

			if gw.subCalls != 1 || gw.productCalls != 0 {
				t.Fatalf("calls: sub=%d product=%d", gw.subCalls, gw.productCalls)
			}
			if gw.lastPackage != "com.example.app" || gw.lastProduct != "premium_monthly" || gw.lastToken != "tok" {
				t.Errorf("unexpected call args: %s %s %s", gw.lastPackage, gw.lastProduct, gw.lastToken)
			}
			if !res.Valid || res.Status != tt.status {
				t.Fatalf("got valid=%v status=%q, want %q", res.Valid, res.Status, tt.status)
			}
			if res.OriginalTransactionID != tt.txn || res.RawData["order_id"] != tt.txn {
				t.Errorf("transaction id = %q raw=%v, want %q", res.OriginalTransactionID, res.RawData["order_id"], tt.txn)
			}
			if res.ExpiresAt == nil || res.ExpiresAt.UnixMilli() != tt.sub.ExpiryTimeMillis {
				t.Errorf("expires_at = %v", res.ExpiresAt)
			}
			if res.Platform != models.PlatformAndroid || res.ProductID != "premium_monthly" {
				t.Errorf("unexpected platform/product: %q %q", res.Platform, res.ProductID)
			}
		})
	}
}

func TestGoogleVerify_PayloadPackageWins(t *testing.T) {
	gw := &fakePlayGateway{sub: &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: 1893456000000, AutoRenewing: true}}
	newTestGoogleVerifier(gw).Verify(context.Background(), map[string]any{
		"package_name":   "com.other.app",
		"product_id":     "premium",
		"purchase_token": "tok",
	})
	if gw.lastPackage != "com.other.app" {
		t.Fatalf("package = %q", gw.lastPackage)
	}
}

func TestGoogleVerify_Product(t *testing.T) {
	tests := []struct {
		name   string
		state  int64
		valid  bool
		status models.Status
	}{
		{"purchased", 0, true, models.StatusActive},
		{"cancelled", 1, false, models.StatusCancelled},
		{"pending", 2, false, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakePlayGateway{product: &androidpublisher.ProductPurchase{PurchaseState: tt.state, OrderId: "GPA.9", PurchaseTimeMillis: 1700000000000}}
			res := newTestGoogleVerifier(gw).Verify(context.Background(), map[string]any{
				"product_id":      "coins_100",
				"purchase_token":  "tok",
				"is_subscription": false,
			})

			if gw.productCalls != 1 || gw.subCalls != 0 {
				t.Fatalf("calls: sub=%d product=%d", gw.subCalls, gw.productCalls)
			}
			if res.Valid != tt.valid || res.Status != tt.status {
				t.Fatalf("got valid=%v status=%q", res.Valid, res.Status)
			}
			if res.ExpiresAt != nil {
				t.Errorf("one-time products carry no expiry, got %v", res.ExpiresAt)
			}
			if res.OriginalTransactionID != "GPA.9" {
				t.Errorf("transaction id = %q", res.OriginalTransactionID)
			}
			if res.RawData["purchase_state"] != tt.state {
				t.Errorf("raw purchase_state = %v", res.RawData["purchase_state"])
			}
		})
	}
}

func TestGoogleVerify_APIError(t *testing.T) {
	gw := &fakePlayGateway{err: fmt.Errorf("google subscriptions.get: %w", &googleapi.Error{Code: 410, Message: "purchase token no longer valid"})}
	res := newTestGoogleVerifier(gw).Verify(context.Background(), map[string]any{
		"product_id":     "premium",
		"purchase_token": "tok",
	})

	if res.Valid || res.Status != models.StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
	if res.RawData["code"] != 410 {
		t.Errorf("code = %v", res.RawData["code"])
	}
	if res.RawData["error"] == "" {
		t.Errorf("missing error message")
	}
}

func TestGoogleVerify_UnavailableClient(t *testing.T) {
	v := NewGoogleVerifier(config.GoogleConfig{PackageName: "com.example.app"}, nil, zerolog.Nop())
	res := v.Verify(context.Background(), map[string]any{"product_id": "premium", "purchase_token": "tok"})

	if res.Valid || res.Status != models.StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
	if _, ok := res.RawData["code"]; ok {
		t.Errorf("no api code expected: %v", res.RawData)
	}
}

func TestNewGoogleVerifierFromConfig_MissingKeyFile(t *testing.T) {
	v := NewGoogleVerifierFromConfig(context.Background(), config.GoogleConfig{
		ServiceAccountPath: t.TempDir() + "/missing.json",
		PackageName:        "com.example.app",
	}, zerolog.Nop())

	res := v.Verify(context.Background(), map[string]any{"product_id": "premium", "purchase_token": "tok"})
	if res.Status != models.StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
	if _, err := v.gateway.GetProduct(context.Background(), "", "", ""); !errors.Is(err, ErrGooglePlayUnavailable) {
		t.Errorf("expected ErrGooglePlayUnavailable, got %v", err)
	}
}

func TestGoogleVerify_Idempotent(t *testing.T) {
	gw := &fakePlayGateway{sub: &androidpublisher.SubscriptionPurchase{ExpiryTimeMillis: 1893456000000, AutoRenewing: true, OrderId: "GPA.1"}}
	v := newTestGoogleVerifier(gw)
	payload := map[string]any{"product_id": "premium_monthly", "purchase_token": "tok"}

	first := v.Verify(context.Background(), payload)
	second := v.Verify(context.Background(), payload)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
	if gw.subCalls != 2 {
		t.Errorf("sub calls = %d", gw.subCalls)
	}
}

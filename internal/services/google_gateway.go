package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// ErrGooglePlayUnavailable is returned when no Play Developer API client
// could be built at startup.
var ErrGooglePlayUnavailable = errors.New("google play client is not initialized")

// GooglePlayGateway covers the two Play Developer API reads used for
// verification.
type GooglePlayGateway interface {
	GetSubscription(ctx context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error)
	GetProduct(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error)
}

type androidPublisherGateway struct {
	svc     *androidpublisher.Service
	timeout time.Duration
}

// NewAndroidPublisherGateway builds a Play Developer API client from a
// service account key file.
func NewAndroidPublisherGateway(ctx context.Context, serviceAccountPath string, timeout time.Duration) (GooglePlayGateway, error) {
	path := strings.TrimSpace(serviceAccountPath)
	if path == "" {
		return nil, errors.New("google service account path is empty")
	}
	creds, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account %s: %w", path, err)
	}
	svc, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("androidpublisher.NewService: %w", err)
	}
	return &androidPublisherGateway{svc: svc, timeout: timeout}, nil
}

func (g *androidPublisherGateway) GetSubscription(ctx context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	resp, err := g.svc.Purchases.Subscriptions.Get(packageName, subscriptionID, token).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google subscriptions.get: %w", err)
	}
	return resp, nil
}

func (g *androidPublisherGateway) GetProduct(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	resp, err := g.svc.Purchases.Products.Get(packageName, productID, token).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google products.get: %w", err)
	}
	return resp, nil
}

func (g *androidPublisherGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// unavailableGateway stands in when the client could not be initialized so
// verification degrades to error results instead of a nil dereference.
type unavailableGateway struct {
	cause error
}

func (g unavailableGateway) err() error {
	if g.cause == nil {
		return ErrGooglePlayUnavailable
	}
	return fmt.Errorf("%w: %v", ErrGooglePlayUnavailable, g.cause)
}

func (g unavailableGateway) GetSubscription(context.Context, string, string, string) (*androidpublisher.SubscriptionPurchase, error) {
	return nil, g.err()
}

func (g unavailableGateway) GetProduct(context.Context, string, string, string) (*androidpublisher.ProductPurchase, error) {
	return nil, g.err()
}

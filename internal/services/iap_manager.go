package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"iapBack/internal/models"
)

const unsupportedPlatformLabel = "unsupported"

// VerificationObserver receives the outcome of every dispatched verification.
type VerificationObserver interface {
	ObserveVerification(platform string, status models.Status, elapsed time.Duration)
}

// IAPManager routes a verification to the verifier of the requested store.
// It holds one verifier per canonical platform and is safe for concurrent use.
type IAPManager struct {
	verifiers map[models.Platform]PlatformVerifier
	observer  VerificationObserver
	logger    zerolog.Logger
}

func NewIAPManager(apple, google PlatformVerifier, observer VerificationObserver, logger zerolog.Logger) *IAPManager {
	verifiers := make(map[models.Platform]PlatformVerifier, 2)
	if apple != nil {
		verifiers[models.PlatformIOS] = apple
	}
	if google != nil {
		verifiers[models.PlatformAndroid] = google
	}
	return &IAPManager{
		verifiers: verifiers,
		observer:  observer,
		logger:    logger.With().Str("component", "iap_manager").Logger(),
	}
}

// Verify never fails: an unknown platform yields an error result that
// carries the lower-cased input as its platform.
func (m *IAPManager) Verify(ctx context.Context, platform string, payload map[string]any) models.VerificationResult {
	started := time.Now()
	name := strings.ToLower(platform)

	verifier, ok := m.Verifier(name)
	if !ok {
		m.logger.Error().Str("platform", name).Msg("unsupported platform for IAP verification")
		result := models.FailedResult(models.Platform(name), models.StatusError, "",
			models.ErrorRaw(fmt.Sprintf("Unsupported platform: %s", name)))
		m.observe(unsupportedPlatformLabel, result, started)
		return result
	}

	if payload == nil {
		payload = map[string]any{}
	}
	result := verifier.Verify(ctx, payload)
	m.observe(string(verifier.Platform()), result, started)
	return result
}

// Verifier looks up the verifier for a platform name or alias.
func (m *IAPManager) Verifier(platform string) (PlatformVerifier, bool) {
	p, ok := models.ParsePlatform(platform)
	if !ok {
		return nil, false
	}
	v, ok := m.verifiers[p]
	return v, ok
}

func (m *IAPManager) observe(platform string, result models.VerificationResult, started time.Time) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveVerification(platform, result.Status, time.Since(started))
}

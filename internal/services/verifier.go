package services

import (
	"context"

	"iapBack/internal/models"
)

// PlatformVerifier checks one store's purchase payload and normalizes the
// answer. Implementations never return an error: every failure is folded
// into a result with Valid == false.
type PlatformVerifier interface {
	Verify(ctx context.Context, payload map[string]any) models.VerificationResult
	Platform() models.Platform
}

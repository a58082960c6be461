package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"iapBack/internal/models"
	"iapBack/internal/repositories"
)

// PurchaseVerifier dispatches a payload to the store named by platform.
type PurchaseVerifier interface {
	Verify(ctx context.Context, platform string, payload map[string]any) models.VerificationResult
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, userID int64, result models.VerificationResult) (models.Subscription, error)
	ListByUser(ctx context.Context, userID int64, filter models.SubscriptionFilter) ([]models.Subscription, error)
}

type UserChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.SubscriptionEvent) error
}

// IAPHandler serves purchase verification and subscription lookups.
type IAPHandler struct {
	Verifier PurchaseVerifier
	Store    SubscriptionStore
	Users    UserChecker
	Events   EventPublisher
	Debug    bool

	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewIAPHandler(verifier PurchaseVerifier, store SubscriptionStore, users UserChecker, events EventPublisher, debug bool, logger zerolog.Logger) *IAPHandler {
	return &IAPHandler{
		Verifier: verifier,
		Store:    store,
		Users:    users,
		Events:   events,
		Debug:    debug,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http").Logger(),
		now:      time.Now,
	}
}

// VerifyPurchase handles POST /iap/verify.
func (h *IAPHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationErrors(w, decodeErrors(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, validationErrors(err))
		return
	}

	ctx := r.Context()
	exists, err := h.Users.Exists(ctx, req.UserID)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if !exists {
		writeValidationErrors(w, map[string][]string{"user_id": {"The selected user id is invalid."}})
		return
	}

	result := h.Verifier.Verify(ctx, req.Platform, req.Payload)
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Message: "Purchase verification failed",
			Data:    result.ToMap(),
		})
		return
	}

	sub, err := h.Store.Upsert(ctx, req.UserID, result)
	switch {
	case errors.Is(err, repositories.ErrTransactionOwnedByAnotherUser):
		h.logger.Warn().
			Int64("user_id", req.UserID).
			Str("transaction_id", result.OriginalTransactionID).
			Msg("transaction already linked to another user")
		writeJSON(w, http.StatusConflict, envelope{
			Success: false,
			Message: "Transaction already belongs to another user",
			Data:    result.ToMap(),
		})
		return
	case errors.Is(err, repositories.ErrUnknownUser):
		writeValidationErrors(w, map[string][]string{"user_id": {"The selected user id is invalid."}})
		return
	case err != nil:
		h.serverError(w, err)
		return
	}

	h.publish(ctx, sub)

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Purchase verified successfully",
		Data: map[string]any{
			"verification": result.ToMap(),
			"subscription": sub,
		},
	})
}

// GetUserSubscriptions handles GET /iap/users/:user_id/subscriptions.
func (h *IAPHandler) GetUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := int64Param(r, "user_id")
	if !ok {
		writeValidationErrors(w, map[string][]string{"user_id": {"The user id must be a positive integer."}})
		return
	}

	var filter models.SubscriptionFilter
	if raw := r.URL.Query().Get("platform"); raw != "" {
		p, ok := models.ParsePlatform(raw)
		if !ok {
			writeValidationErrors(w, map[string][]string{"platform": {"The selected platform is invalid."}})
			return
		}
		filter.Platform = p
	}
	filter.ProductID = r.URL.Query().Get("product_id")

	subs, err := h.Store.ListByUser(r.Context(), userID, filter)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Subscriptions retrieved successfully",
		Data:    subs,
	})
}

func (h *IAPHandler) publish(ctx context.Context, sub models.Subscription) {
	if h.Events == nil {
		return
	}
	event := models.SubscriptionEvent{
		Type:          models.EventSubscriptionVerified,
		UserID:        sub.UserID,
		Platform:      sub.Platform,
		ProductID:     sub.ProductID,
		TransactionID: sub.TransactionID,
		Status:        sub.Status,
		ExpiresAt:     sub.ExpiresAt,
		OccurredAt:    h.now().UTC(),
	}
	if err := h.Events.Publish(ctx, event); err != nil {
		h.logger.Error().Err(err).
			Int64("user_id", sub.UserID).
			Str("transaction_id", sub.TransactionID).
			Msg("publish subscription event")
	}
}

func (h *IAPHandler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("purchase verification error")
	msg := "Internal server error"
	if h.Debug {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, envelope{
		Success: false,
		Message: "An error occurred during verification",
		Error:   msg,
	})
}

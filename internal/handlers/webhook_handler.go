package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"iapBack/internal/services"
)

// WebhookHandler acknowledges App Store and Play notifications.
type WebhookHandler struct {
	Service *services.WebhookService
	logger  zerolog.Logger
}

func NewWebhookHandler(service *services.WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		Service: service,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Apple handles POST /iap/webhook/ios and /iap/webhook/apple.
func (h *WebhookHandler) Apple(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "apple", h.Service.HandleApple)
}

// Google handles POST /iap/webhook/android and /iap/webhook/google.
func (h *WebhookHandler) Google(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "google", h.Service.HandleGoogle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, source string, process func(map[string]any) services.WebhookOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().Str("source", source).Str("error", fmt.Sprint(rec)).Msg("webhook error")
			writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "Error processing webhook"})
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Str("source", source).Msg("webhook error")
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "Error processing webhook"})
		return
	}

	notification := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &notification); err != nil || notification == nil {
			h.logger.Warn().Err(err).Str("source", source).Msg("webhook body is not a JSON object")
			notification = map[string]any{}
		}
	}

	out := process(notification)
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: out.Message})
}

/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * Conekta. It acts as the entry point for all asynchronous notifications from
 * the payment gateway.
 *
 * Key features:
 * - Authenticity: events are verified by re-fetching them from Conekta by id
 *   (done in the dispatcher); forged events are acknowledged with no effect.
 * - Acknowledgment contract: every well-formed event receives a 200, including
 *   unrecognized event types, to prevent upstream retry storms.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/google/uuid: Request identifiers for log correlation.
 * - The service's internal app package for the event dispatcher.
 */
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dinkbit/conekta-cashier/internal/app"
)

// WebhookHandler processes incoming webhooks from Conekta.
type WebhookHandler struct {
	dispatcher *app.WebhookDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(dispatcher *app.WebhookDispatcher, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{dispatcher: dispatcher, logger: logger}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var event app.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Error("error decoding webhook JSON", "request_id", requestID, "error", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	h.logger.Info("received webhook event",
		"request_id", requestID, "event_id", event.ID, "type", event.Type)

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.Error("webhook dispatch failed",
			"request_id", requestID, "event_id", event.ID, "error", err)
		http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
		return
	}

	h.logger.Info("webhook processed",
		"request_id", requestID, "event_id", event.ID, "duration", time.Since(startTime))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook Handled"))
}

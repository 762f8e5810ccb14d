/**
 * @description
 * This file sets up the HTTP router for the cashier using the go-chi/chi router.
 * It defines the API routes, applies middleware for logging, CORS, and
 * authentication, and maps the routes to their corresponding handler functions.
 *
 * The webhook endpoint is deliberately outside the authenticated group: Conekta
 * authenticates by event-id verification, not by bearer token.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the cashier routes.
func NewRouter(h *Handler, webhooks *WebhookHandler, jwksURL string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Cashier service is healthy"))
	})

	// Gateway-facing webhook entry point
	r.Method(http.MethodPost, "/webhooks/conekta", webhooks)

	// Protected routes that require authentication
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwksURL))

		r.Get("/billing/status", h.handleGetStatus)
		r.Post("/billing/subscribe", h.handleSubscribe)
		r.Post("/billing/swap", h.handleSwap)
		r.Post("/billing/resume", h.handleResume)
		r.Post("/billing/cancel", h.handleCancel)
		r.Post("/billing/card", h.handleUpdateCard)
		r.Post("/billing/charge", h.handleCharge)
	})

	return r
}

/**
 * @description
 * This file contains the HTTP handler functions for the cashier. Handlers are
 * responsible for parsing incoming requests, resolving the authenticated
 * billable record, calling the gateway client, and writing the HTTP response.
 *
 * Plan inputs are normalized at this boundary: a plan may arrive as a plain
 * identifier string or as an object with an "id" field, but only the
 * identifier enters the gateway core.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dinkbit/conekta-cashier/internal/app"
	"github.com/dinkbit/conekta-cashier/internal/domain"
	"github.com/dinkbit/conekta-cashier/pkg/conekta"
)

// BillableRepository is the lookup surface the handlers need.
type BillableRepository interface {
	FindByID(ctx context.Context, id string) (*domain.BillableRecord, error)
}

// GatewayFactory builds a gateway client scoped to one billable record and an
// optional target plan.
type GatewayFactory func(billable *domain.BillableRecord, plan string) *app.Gateway

// Handler holds the collaborators the HTTP layer depends on.
type Handler struct {
	repo     BillableRepository
	gateways GatewayFactory
}

// NewHandler creates a new Handler.
func NewHandler(repo BillableRepository, gateways GatewayFactory) *Handler {
	return &Handler{repo: repo, gateways: gateways}
}

// PlanInput accepts either a plain plan identifier or a plan object with an
// "id" field.
type PlanInput string

// UnmarshalJSON implements the string-or-object normalization.
func (p *PlanInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PlanInput(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = PlanInput(obj.ID)
	return nil
}

// handleSubscribe subscribes the billable entity to a plan for the first time.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	var req struct {
		Plan       PlanInput      `json:"plan"`
		Token      string         `json:"token"`
		SkipTrial  bool           `json:"skip_trial"`
		TrialEnd   *time.Time     `json:"trial_end"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	gateway := h.gateways(billable, string(req.Plan))
	if req.SkipTrial {
		gateway.SkipTrial()
	}
	if req.TrialEnd != nil {
		gateway.TrialFor(*req.TrialEnd)
	}

	if err := gateway.Create(r.Context(), req.Token, req.Properties, nil); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, billable)
}

// handleSwap moves the billable entity to a new plan, carrying over any
// remaining trial time unless an explicit trial end is given.
func (h *Handler) handleSwap(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	var req struct {
		Plan     PlanInput  `json:"plan"`
		TrialEnd *time.Time `json:"trial_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	gateway := h.gateways(billable, string(req.Plan))
	if req.TrialEnd != nil {
		gateway.TrialFor(*req.TrialEnd)
	}

	if err := gateway.Swap(r.Context()); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, billable)
}

// handleResume reactivates a cancelled or expired billable entity.
func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	var req struct {
		Plan  PlanInput `json:"plan"`
		Token string    `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.gateways(billable, string(req.Plan)).Resume(r.Context(), req.Token); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, billable)
}

// handleCancel cancels the subscription, at the period end by default.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	req := struct {
		AtPeriodEnd *bool `json:"at_period_end"`
	}{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	atPeriodEnd := req.AtPeriodEnd == nil || *req.AtPeriodEnd

	if err := h.gateways(billable, "").Cancel(r.Context(), atPeriodEnd); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, billable)
}

// handleUpdateCard replaces the card on file from a tokenized card.
func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	card, err := h.gateways(billable, "").UpdateCard(r.Context(), req.Token)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, card)
}

// handleCharge makes a one-off charge on the billable entity.
func (h *Handler) handleCharge(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		Description string `json:"description"`
		Card        string `json:"card"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	charge, err := h.gateways(billable, "").Charge(r.Context(), req.Amount, app.ChargeOptions{
		Currency:    req.Currency,
		Description: req.Description,
		Card:        req.Card,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, charge)
}

// billingStatus is the local billing state snapshot returned by the status
// endpoint. Everything here is computed from the billable record alone.
type billingStatus struct {
	Subscribed         bool       `json:"subscribed"`
	OnTrial            bool       `json:"on_trial"`
	OnGracePeriod      bool       `json:"on_grace_period"`
	Expired            bool       `json:"expired"`
	Cancelled          bool       `json:"cancelled"`
	ReadyForBilling    bool       `json:"ready_for_billing"`
	Plan               *string    `json:"plan,omitempty"`
	CardType           *string    `json:"card_type,omitempty"`
	LastFour           *string    `json:"last_four,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
}

// handleGetStatus returns the billing state of the authenticated entity.
func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	billable, ok := h.billable(w, r)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, billingStatus{
		Subscribed:         billable.Subscribed(),
		OnTrial:            billable.OnTrial(),
		OnGracePeriod:      billable.OnGracePeriod(),
		Expired:            billable.Expired(),
		Cancelled:          billable.Cancelled(),
		ReadyForBilling:    billable.ReadyForBilling(),
		Plan:               billable.ConektaPlan,
		CardType:           billable.CardType,
		LastFour:           billable.LastFour,
		TrialEndsAt:        billable.TrialEndsAt,
		SubscriptionEndsAt: billable.SubscriptionEndsAt,
	})
}

// billable resolves the authenticated billable record, writing the error
// response itself when resolution fails.
func (h *Handler) billable(w http.ResponseWriter, r *http.Request) (*domain.BillableRecord, bool) {
	id, ok := BillableIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	record, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return nil, false
	}
	return record, true
}

// respondWithError maps core errors onto HTTP status codes.
func respondWithError(w http.ResponseWriter, err error) {
	var apiErr *conekta.APIError
	switch {
	case errors.Is(err, domain.ErrBillableNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNoPaymentSource):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrChargeFailed):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.As(err, &apiErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

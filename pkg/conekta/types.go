/**
 * @description
 * This file defines the request and response structures for the Conekta API
 * resources used by the cashier: customers, subscriptions, cards, charges and
 * events. Only the fields the gateway actually consumes are modeled.
 *
 * @notes
 * - Conekta reports subscription timestamps (trial_end, billing_cycle_end) as
 *   Unix seconds in responses, but expects trial_end as an ISO-8601 string in
 *   subscription create/update payloads. The asymmetry is preserved here.
 */
package conekta

// Subscription statuses reported by Conekta.
const (
	SubscriptionStatusInTrial  = "in_trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPaused   = "paused"
)

// Customer is the Conekta customer resource together with its single managed
// subscription and stored cards.
type Customer struct {
	ID            string        `json:"id"`
	Name          string        `json:"name,omitempty"`
	Email         string        `json:"email,omitempty"`
	DefaultCardID string        `json:"default_card_id,omitempty"`
	Cards         []Card        `json:"cards,omitempty"`
	Subscription  *Subscription `json:"subscription,omitempty"`
}

// Subscription is the customer's subscription resource.
type Subscription struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	PlanID          string `json:"plan_id"`
	CardID          string `json:"card_id,omitempty"`
	TrialEnd        *int64 `json:"trial_end,omitempty"`
	BillingCycleEnd int64  `json:"billing_cycle_end,omitempty"`
}

// Card is a stored payment card.
type Card struct {
	ID    string `json:"id"`
	Last4 string `json:"last4"`
	Brand string `json:"brand"`
}

// Charge is a one-off charge resource.
type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// Event is a webhook event as stored on the Conekta side. The dispatcher
// re-fetches events by id to confirm authenticity.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CustomerParams is the payload for customer creation. Extra holds
// application-defined properties that are merged into the request body.
type CustomerParams struct {
	Token string
	Extra map[string]any
}

// CustomerUpdateParams is the payload for customer updates.
type CustomerUpdateParams struct {
	DefaultCardID string `json:"default_card_id,omitempty"`
}

// SubscriptionParams is the payload for a subscription create or update.
// TrialEnd must already be formatted as ISO-8601.
type SubscriptionParams struct {
	Plan     string `json:"plan,omitempty"`
	TrialEnd string `json:"trial_end,omitempty"`
	Card     string `json:"card,omitempty"`
}

// ChargeParams is the payload for a one-off charge.
type ChargeParams struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Card        string `json:"card,omitempty"`
}

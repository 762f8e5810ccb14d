/**
 * @description
 * This file defines the core domain model for the cashier: the billable record.
 * It mirrors the gateway-facing billing columns of a host application's user or
 * account row, together with the subscription status predicates computed from
 * those columns.
 *
 * The billing state of a record at any instant is exactly one of: actively
 * subscribed, on trial, on grace period, or expired. Only the active flag is
 * stored; everything else is derived from the two end dates and the clock.
 */
package domain

import "time"

// BillableRecord represents one payable entity (a user or account) whose
// billing state is mirrored from Conekta.
type BillableRecord struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	ConektaID           *string    `json:"conekta_id,omitempty"`
	ConektaSubscription *string    `json:"conekta_subscription,omitempty"`
	ConektaPlan         *string    `json:"conekta_plan,omitempty"`
	LastFour            *string    `json:"last_four,omitempty"`
	CardType            *string    `json:"card_type,omitempty"`
	ConektaActive       bool       `json:"conekta_active"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt  *time.Time `json:"subscription_ends_at,omitempty"`

	// CardUpFront reports whether the entity had to provide a card before
	// subscribing. Entities that did not are considered subscribed for the
	// whole trial window even without a gateway record.
	CardUpFront bool `json:"card_up_front"`
}

// BillableName returns the name shown on the entity's invoices.
func (b *BillableRecord) BillableName() string {
	return b.Email
}

// OnTrial reports whether the entity is within its trial window.
func (b *BillableRecord) OnTrial() bool {
	return b.TrialEndsAt != nil && time.Now().Before(*b.TrialEndsAt)
}

// OnGracePeriod reports whether the entity is inside the post-cancellation
// grace window.
func (b *BillableRecord) OnGracePeriod() bool {
	return b.SubscriptionEndsAt != nil && time.Now().Before(*b.SubscriptionEndsAt)
}

// Subscribed reports whether the entity currently counts as subscribed.
// Entities that never had to give a card up front are subscribed purely by
// virtue of being inside a trial window.
func (b *BillableRecord) Subscribed() bool {
	if b.RequiresCardUpFront() {
		return b.ConektaActive || b.OnGracePeriod()
	}
	return b.ConektaActive || b.OnTrial() || b.OnGracePeriod()
}

// Expired reports whether the entity has no remaining billing entitlement.
func (b *BillableRecord) Expired() bool {
	return !b.Subscribed()
}

// Cancelled reports whether the entity has a Conekta id but is no longer
// active. Never true for an entity that was never a gateway customer.
func (b *BillableRecord) Cancelled() bool {
	return b.ReadyForBilling() && !b.ConektaActive
}

// EverSubscribed reports whether the entity has ever been subscribed.
func (b *BillableRecord) EverSubscribed() bool {
	return b.ReadyForBilling()
}

// RequiresCardUpFront reports whether billing requires a credit card up front.
func (b *BillableRecord) RequiresCardUpFront() bool {
	return b.CardUpFront
}

// ReadyForBilling reports whether the entity is a known Conekta customer.
func (b *BillableRecord) ReadyForBilling() bool {
	return b.HasConektaID()
}

// HasConektaID reports whether a Conekta customer id is present.
func (b *BillableRecord) HasConektaID() bool {
	return b.ConektaID != nil && *b.ConektaID != ""
}

// GetConektaID returns the Conekta customer id, or the empty string.
func (b *BillableRecord) GetConektaID() string {
	if b.ConektaID == nil {
		return ""
	}
	return *b.ConektaID
}

// Deactivate clears the active flag and the subscription id. Used on an
// immediate cancellation, after the remote side has confirmed.
func (b *BillableRecord) Deactivate() {
	b.ConektaActive = false
	b.ConektaSubscription = nil
}

// StringPtr is a small helper for building records with optional fields.
func StringPtr(s string) *string { return &s }

// TimePtr is a small helper for building records with optional dates.
func TimePtr(t time.Time) *time.Time { return &t }

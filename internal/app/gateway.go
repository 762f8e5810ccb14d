/**
 * @description
 * This file contains the core business logic for the cashier: the Conekta
 * gateway client. A Gateway performs one subscription-changing operation
 * against the remote API and writes the authoritative result back onto the
 * billable record.
 *
 * Key invariant: local state is mutated and persisted only after the remote
 * call has been confirmed successful, so local state never says "active" for
 * an operation the gateway rejected.
 *
 * Operations are not safe to run concurrently against the same billable
 * record; the host must serialize them (per-entity lock or single-writer
 * queue).
 */
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dinkbit/conekta-cashier/internal/domain"
	"github.com/dinkbit/conekta-cashier/pkg/conekta"
)

// ConektaAPI defines the remote gateway operations the cashier needs. It is
// implemented by pkg/conekta.Client and by test doubles.
type ConektaAPI interface {
	CreateCustomer(ctx context.Context, params conekta.CustomerParams) (*conekta.Customer, error)
	GetCustomer(ctx context.Context, id string) (*conekta.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params conekta.CustomerUpdateParams) error
	UpdateSubscription(ctx context.Context, customerID string, params conekta.SubscriptionParams) (*conekta.Subscription, error)
	CancelSubscription(ctx context.Context, customerID string, atPeriodEnd bool) error
	CreateCard(ctx context.Context, customerID, token string) (*conekta.Card, error)
	CreateCharge(ctx context.Context, params conekta.ChargeParams) (*conekta.Charge, error)
}

// BillableStore persists billable records after a successful remote call.
type BillableStore interface {
	Save(ctx context.Context, record *domain.BillableRecord) error
}

// ChargeOptions are the optional parameters of a one-off charge.
type ChargeOptions struct {
	Currency    string
	Description string
	Card        string
}

// Gateway performs subscription lifecycle operations for exactly one billable
// record. It is created per operation and holds the per-operation trial state.
type Gateway struct {
	api      ConektaAPI
	store    BillableStore
	billable *domain.BillableRecord

	plan      string
	trialEnd  *time.Time
	skipTrial bool

	now func() time.Time
}

// NewGateway creates a gateway client for the given billable record and target
// plan. The plan may be empty for operations that do not change it.
func NewGateway(api ConektaAPI, store BillableStore, billable *domain.BillableRecord, plan string) *Gateway {
	return &Gateway{
		api:      api,
		store:    store,
		billable: billable,
		plan:     plan,
		now:      time.Now,
	}
}

// Charge makes a "one off" charge on the customer for the given amount in
// cents. The stored Conekta customer is charged when no explicit card is
// given. A gateway rejection is reported as ErrChargeFailed, not propagated.
func (g *Gateway) Charge(ctx context.Context, amount int64, opts ChargeOptions) (*conekta.Charge, error) {
	if opts.Currency == "" {
		opts.Currency = "mxn"
	}
	if opts.Card == "" && g.billable.HasConektaID() {
		opts.Card = g.billable.GetConektaID()
	}
	if opts.Card == "" {
		return nil, domain.ErrNoPaymentSource
	}

	charge, err := g.api.CreateCharge(ctx, conekta.ChargeParams{
		Amount:      amount,
		Currency:    opts.Currency,
		Description: opts.Description,
		Card:        opts.Card,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrChargeFailed, err)
	}
	return charge, nil
}

// Create subscribes the billable entity to the configured plan. When no
// existing customer is given, a fresh Conekta customer is created from the
// token and properties; otherwise a non-empty token updates the card on file
// first.
func (g *Gateway) Create(ctx context.Context, token string, properties map[string]any, customer *conekta.Customer) error {
	freshCustomer := false

	if customer == nil {
		if token == "" {
			return domain.ErrNoPaymentSource
		}
		created, err := g.createConektaCustomer(ctx, token, properties)
		if err != nil {
			return err
		}
		customer = created
		freshCustomer = true
	} else if token != "" {
		if _, err := g.UpdateCard(ctx, token); err != nil {
			return err
		}
	}

	sub, err := g.api.UpdateSubscription(ctx, customer.ID, g.buildPayload())
	if err != nil {
		return err
	}
	g.billable.ConektaSubscription = &sub.ID

	// Remote state may differ from the just-returned object; re-fetch.
	customer, err = g.api.GetCustomer(ctx, customer.ID)
	if err != nil {
		return err
	}

	if freshCustomer {
		if trialEnd := g.trialEndForCustomer(customer); trialEnd != nil {
			g.billable.TrialEndsAt = trialEnd
		}
	}

	return g.UpdateLocalConektaData(ctx, customer, "")
}

// Swap moves the billable entity to a new plan. Unless an explicit trial end
// was requested, the remaining trial time is carried over to the new plan.
func (g *Gateway) Swap(ctx context.Context) error {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return err
	}

	// If no specific trial end date has been set, the default behavior is to
	// maintain the current trial state, running the swap out with the exact
	// number of hours left on the current plan.
	if g.trialEnd == nil {
		if err := g.MaintainTrial(ctx); err != nil {
			return err
		}
	}

	return g.Create(ctx, "", nil, customer)
}

// Resume resubscribes a cancelled or expired entity to the configured plan,
// skipping any trial. The local trial end date is cleared afterwards.
func (g *Gateway) Resume(ctx context.Context, token string) error {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return err
	}

	g.SkipTrial()
	if err := g.Create(ctx, token, nil, customer); err != nil {
		return err
	}

	g.billable.TrialEndsAt = nil
	return g.store.Save(ctx, g.billable)
}

// Cancel cancels the entity's subscription. With atPeriodEnd the entity keeps
// its entitlement until the period (or unexpired trial) ends; otherwise the
// subscription ends immediately.
func (g *Gateway) Cancel(ctx context.Context, atPeriodEnd bool) error {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return err
	}

	if customer.Subscription != nil {
		if atPeriodEnd {
			end := time.Unix(g.subscriptionEndTimestamp(customer), 0)
			g.billable.SubscriptionEndsAt = &end
		}

		if err := g.api.CancelSubscription(ctx, customer.ID, atPeriodEnd); err != nil {
			return err
		}
	}

	if atPeriodEnd {
		g.billable.ConektaActive = false
		return g.store.Save(ctx, g.billable)
	}

	endNow := g.now()
	g.billable.SubscriptionEndsAt = &endNow
	g.billable.Deactivate()
	return g.store.Save(ctx, g.billable)
}

// CancelAtEndOfPeriod cancels the subscription at the end of the period.
func (g *Gateway) CancelAtEndOfPeriod(ctx context.Context) error {
	return g.Cancel(ctx, true)
}

// CancelNow cancels the subscription immediately.
func (g *Gateway) CancelNow(ctx context.Context) error {
	return g.Cancel(ctx, false)
}

// ExtendTrial moves the subscription's trial end to the given datetime. No-op
// when the customer has no subscription.
func (g *Gateway) ExtendTrial(ctx context.Context, trialEnd time.Time) error {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return err
	}
	if customer.Subscription == nil {
		return nil
	}

	_, err = g.api.UpdateSubscription(ctx, customer.ID, conekta.SubscriptionParams{
		TrialEnd: trialEnd.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	g.billable.TrialEndsAt = &trialEnd
	return g.store.Save(ctx, g.billable)
}

// UpdateCard replaces the card on file: a new card is created from the token,
// made the default, and attached to the subscription if one exists. The card
// brand and last four digits are persisted locally.
func (g *Gateway) UpdateCard(ctx context.Context, token string) (*conekta.Card, error) {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return nil, err
	}

	card, err := g.api.CreateCard(ctx, customer.ID, token)
	if err != nil {
		return nil, err
	}

	if err := g.api.UpdateCustomer(ctx, customer.ID, conekta.CustomerUpdateParams{DefaultCardID: card.ID}); err != nil {
		return nil, err
	}

	if customer.Subscription != nil {
		if _, err := g.api.UpdateSubscription(ctx, customer.ID, conekta.SubscriptionParams{Card: card.ID}); err != nil {
			return nil, err
		}
	}

	// Re-fetch so the default-card lookup sees the card just stored.
	customer, err = g.api.GetCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	g.billable.LastFour = optional(lastFourCardDigits(customer))
	g.billable.CardType = optional(cardType(customer))
	if err := g.store.Save(ctx, g.billable); err != nil {
		return nil, err
	}
	return card, nil
}

// PlanID returns the plan identifier of the entity's current subscription, or
// the empty string when there is none.
func (g *Gateway) PlanID(ctx context.Context) (string, error) {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return "", err
	}
	if customer.Subscription == nil {
		return "", nil
	}
	return customer.Subscription.PlanID, nil
}

// OnPlan reports whether the entity is active on the given plan. This checks
// the live remote subscription, not just local state.
func (g *Gateway) OnPlan(ctx context.Context, plan string) (bool, error) {
	if !g.billable.ConektaActive {
		return false, nil
	}
	planID, err := g.PlanID(ctx)
	if err != nil {
		return false, err
	}
	return planID == plan, nil
}

// SubscriptionEndDate returns the current period's end date, with an unexpired
// trial taking precedence over the billing cycle end.
func (g *Gateway) SubscriptionEndDate(ctx context.Context) (time.Time, error) {
	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(g.subscriptionEndTimestamp(customer), 0), nil
}

// UpdateLocalConektaData writes the authoritative remote state back onto the
// billable record and persists it. An explicit plan overrides the gateway's
// configured plan.
func (g *Gateway) UpdateLocalConektaData(ctx context.Context, customer *conekta.Customer, plan string) error {
	if plan == "" {
		plan = g.plan
	}

	g.billable.ConektaID = &customer.ID
	g.billable.ConektaPlan = optional(plan)
	g.billable.LastFour = optional(lastFourCardDigits(customer))
	g.billable.CardType = optional(cardType(customer))
	g.billable.ConektaActive = true
	g.billable.SubscriptionEndsAt = nil

	return g.store.Save(ctx, g.billable)
}

// SkipTrial indicates that no trial should be enforced on the operation.
func (g *Gateway) SkipTrial() *Gateway {
	g.skipTrial = true
	return g
}

// TrialFor specifies the ending date of the trial.
func (g *Gateway) TrialFor(trialEnd time.Time) *Gateway {
	g.trialEnd = &trialEnd
	return g
}

// TrialEndOverride returns the explicit trial end set for this operation.
func (g *Gateway) TrialEndOverride() *time.Time {
	return g.trialEnd
}

// MaintainTrial carries the hours left of the current trial over to the next
// subscription update. If there is no time left on the trial, any trial on
// the new plan is skipped instead, as that is the most expected action. Only
// known gateway customers are consulted.
func (g *Gateway) MaintainTrial(ctx context.Context) error {
	if !g.billable.ReadyForBilling() {
		return nil
	}

	customer, err := g.conektaCustomer(ctx)
	if err != nil {
		return err
	}

	if trialEnd := g.trialEndForCustomer(customer); trialEnd != nil {
		g.calculateRemainingTrialHours(*trialEnd)
	} else {
		g.SkipTrial()
	}
	return nil
}

// calculateRemainingTrialHours re-anchors the remaining trial time against the
// current clock instead of copying the remote timestamp, avoiding clock-skew
// drift between the gateway and this process.
func (g *Gateway) calculateRemainingTrialHours(trialEnd time.Time) {
	diff := int(trialEnd.Sub(g.now()).Hours())
	if diff > 0 {
		g.TrialFor(g.now().Add(time.Duration(diff) * time.Hour))
	} else {
		g.SkipTrial()
	}
}

// buildPayload builds the payload for a subscription create / update. The
// trial_end key is present only when the trial is skipped or overridden;
// absence means the gateway default applies.
func (g *Gateway) buildPayload() conekta.SubscriptionParams {
	payload := conekta.SubscriptionParams{Plan: g.plan}

	if g.skipTrial {
		payload.TrialEnd = g.now().Format(time.RFC3339)
	} else if g.trialEnd != nil {
		payload.TrialEnd = g.trialEnd.Format(time.RFC3339)
	}

	return payload
}

// subscriptionEndTimestamp resolves the effective end of the subscription: an
// unexpired trial end wins over the billing cycle end.
func (g *Gateway) subscriptionEndTimestamp(customer *conekta.Customer) int64 {
	sub := customer.Subscription
	if sub.TrialEnd != nil && *sub.TrialEnd > g.now().Unix() {
		return *sub.TrialEnd
	}
	return sub.BillingCycleEnd
}

// trialEndForCustomer returns the trial end of the customer's subscription,
// only meaningful while the subscription is in trial.
func (g *Gateway) trialEndForCustomer(customer *conekta.Customer) *time.Time {
	sub := customer.Subscription
	if sub != nil && sub.Status == conekta.SubscriptionStatusInTrial && sub.TrialEnd != nil {
		end := time.Unix(*sub.TrialEnd, 0)
		return &end
	}
	return nil
}

// createConektaCustomer creates a fresh remote customer and re-fetches it so
// callers see the canonical resource.
func (g *Gateway) createConektaCustomer(ctx context.Context, token string, properties map[string]any) (*conekta.Customer, error) {
	customer, err := g.api.CreateCustomer(ctx, conekta.CustomerParams{Token: token, Extra: properties})
	if err != nil {
		return nil, err
	}
	return g.api.GetCustomer(ctx, customer.ID)
}

// conektaCustomer retrieves the current remote customer for the billable record.
func (g *Gateway) conektaCustomer(ctx context.Context) (*conekta.Customer, error) {
	if !g.billable.HasConektaID() {
		return nil, fmt.Errorf("billable %s is not a conekta customer", g.billable.ID)
	}
	return g.api.GetCustomer(ctx, g.billable.GetConektaID())
}

// lastFourCardDigits resolves the last four digits of the customer's default
// card. An unmatched default card id resolves to nothing rather than falling
// back to the first card; only a customer without a default id at all uses the
// first card.
func lastFourCardDigits(customer *conekta.Customer) string {
	if card := defaultCard(customer); card != nil {
		return card.Last4
	}
	return ""
}

// cardType resolves the brand of the customer's default card, with the same
// tie-break as lastFourCardDigits.
func cardType(customer *conekta.Customer) string {
	if card := defaultCard(customer); card != nil {
		return card.Brand
	}
	return ""
}

func defaultCard(customer *conekta.Customer) *conekta.Card {
	if len(customer.Cards) == 0 {
		return nil
	}
	if customer.DefaultCardID != "" {
		for i := range customer.Cards {
			if customer.Cards[i].ID == customer.DefaultCardID {
				return &customer.Cards[i]
			}
		}
		return nil
	}
	return &customer.Cards[0]
}

// optional converts an empty string to a nil pointer.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

/**
 * @description
 * This file contains the webhook event dispatcher. It maps inbound Conekta
 * event types to cancellation side effects on the matching billable record.
 *
 * Key features:
 * - Authenticity: before dispatch, the event is re-fetched from Conekta by id;
 *   events the gateway does not recognize are silently ignored, which guards
 *   against forged webhook calls.
 * - Idempotency: successfully processed event ids are remembered and duplicate
 *   deliveries are acknowledged without side effects. Ids are recorded only
 *   after the side effect lands, so a failed delivery stays eligible for the
 *   gateway's retry.
 * - Routing: only subscription cancellations and payment failures past the
 *   retry threshold trigger action; every other event type is a no-op ack.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dinkbit/conekta-cashier/internal/domain"
	"github.com/dinkbit/conekta-cashier/pkg/conekta"
)

// Event types the dispatcher acts on.
const (
	EventSubscriptionCanceled      = "subscription.canceled"
	EventSubscriptionPaymentFailed = "subscription.payment_failed"
)

// paymentRetryThreshold is the number of failed attempts after which a
// subscription is cancelled locally.
const paymentRetryThreshold = 3

// processedEventTTL bounds how long event ids are remembered for duplicate
// suppression.
const processedEventTTL = 24 * time.Hour

// WebhookEvent is the inbound Conekta webhook payload.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string `json:"id"`
			CustomerID   string `json:"customer_id"`
			AttemptCount int    `json:"attempt_count"`
		} `json:"object"`
	} `json:"data"`
}

// EventAPI verifies events against the gateway.
type EventAPI interface {
	GetEvent(ctx context.Context, id string) (*conekta.Event, error)
}

// BillableFinder locates billable records by Conekta customer id.
type BillableFinder interface {
	FindByConektaID(ctx context.Context, conektaID string) (*domain.BillableRecord, error)
}

// EventPublisher publishes internal billing events for other services.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
}

// SubscriptionCancelledEvent is published after a webhook-driven cancellation.
type SubscriptionCancelledEvent struct {
	BillableID string `json:"billable_id"`
	ConektaID  string `json:"conekta_id"`
	EventID    string `json:"event_id"`
	Reason     string `json:"reason"`
}

// GatewayFactory builds a gateway client for one billable record.
type GatewayFactory func(billable *domain.BillableRecord) *Gateway

// WebhookDispatcher routes verified Conekta events to their side effects.
type WebhookDispatcher struct {
	events   EventAPI
	finder   BillableFinder
	gateways GatewayFactory
	producer EventPublisher
	logger   *slog.Logger

	mu        sync.Mutex
	processed map[string]time.Time
}

// NewWebhookDispatcher creates a dispatcher. The producer may be nil, in which
// case no internal events are published.
func NewWebhookDispatcher(events EventAPI, finder BillableFinder, gateways GatewayFactory, producer EventPublisher, logger *slog.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		events:    events,
		finder:    finder,
		gateways:  gateways,
		producer:  producer,
		logger:    logger,
		processed: make(map[string]time.Time),
	}
}

// Dispatch handles one webhook event. It returns an error only for internal
// failures while applying a side effect; ignored and unrecognized events
// return nil so the transport layer can acknowledge them.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event WebhookEvent) error {
	if !d.eventExistsOnConekta(ctx, event.ID) {
		d.logger.Warn("ignoring webhook event not known to conekta", "event_id", event.ID)
		return nil
	}

	if d.alreadyProcessed(event.ID) {
		d.logger.Info("duplicate webhook event ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}

	var err error
	switch event.Type {
	case EventSubscriptionCanceled:
		err = d.cancelBillable(ctx, event, "subscription canceled")
	case EventSubscriptionPaymentFailed:
		if event.Data.Object.AttemptCount <= paymentRetryThreshold {
			d.logger.Info("payment failure below retry threshold",
				"event_id", event.ID, "attempt_count", event.Data.Object.AttemptCount)
			break
		}
		err = d.cancelBillable(ctx, event, "payment failed")
	default:
		d.logger.Info("unhandled webhook event type", "event_id", event.ID, "type", event.Type)
	}
	if err != nil {
		// Leave the id unrecorded so the gateway's retry is not suppressed.
		return err
	}

	d.markProcessed(event.ID)
	return nil
}

// cancelBillable looks up the billable record by the customer id embedded in
// the event and runs the gateway cancel path. The remote side is already
// cancelled, so this deactivates locally. A missing record is not an error.
func (d *WebhookDispatcher) cancelBillable(ctx context.Context, event WebhookEvent, reason string) error {
	billable, err := d.finder.FindByConektaID(ctx, event.Data.Object.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrBillableNotFound) {
			d.logger.Warn("webhook for unknown conekta customer",
				"event_id", event.ID, "customer_id", event.Data.Object.CustomerID)
			return nil
		}
		return err
	}

	if err := d.gateways(billable).Cancel(ctx, true); err != nil {
		return err
	}

	d.logger.Info("billable deactivated by webhook",
		"event_id", event.ID, "billable_id", billable.ID, "reason", reason)

	if d.producer != nil {
		msg := SubscriptionCancelledEvent{
			BillableID: billable.ID,
			ConektaID:  event.Data.Object.CustomerID,
			EventID:    event.ID,
			Reason:     reason,
		}
		if err := d.producer.Publish(ctx, "billing_events", "billing.subscription.cancelled", msg); err != nil {
			// The local cancellation already happened; publishing is best effort.
			d.logger.Error("failed to publish cancellation event", "event_id", event.ID, "error", err)
		}
	}

	return nil
}

// eventExistsOnConekta verifies with Conekta that the event is genuine.
func (d *WebhookDispatcher) eventExistsOnConekta(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	event, err := d.events.GetEvent(ctx, id)
	return err == nil && event != nil
}

// alreadyProcessed reports whether the event id was successfully handled
// recently, purging expired entries as a side effect.
func (d *WebhookDispatcher) alreadyProcessed(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, seen := range d.processed {
		if now.Sub(seen) > processedEventTTL {
			delete(d.processed, key)
		}
	}

	_, seen := d.processed[id]
	return seen
}

// markProcessed remembers the event id for duplicate suppression.
func (d *WebhookDispatcher) markProcessed(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processed[id] = time.Now()
}

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dinkbit/conekta-cashier/internal/app"
	"github.com/dinkbit/conekta-cashier/internal/domain"
	"github.com/dinkbit/conekta-cashier/pkg/conekta"
)

type fakeEventAPI struct {
	known map[string]bool
}

func (f *fakeEventAPI) GetEvent(ctx context.Context, id string) (*conekta.Event, error) {
	if !f.known[id] {
		return nil, conekta.ErrNotFound
	}
	return &conekta.Event{ID: id}, nil
}

type fakeFinder struct{}

func (f *fakeFinder) FindByConektaID(ctx context.Context, conektaID string) (*domain.BillableRecord, error) {
	return nil, domain.ErrBillableNotFound
}

func newTestWebhookHandler(known map[string]bool) *WebhookHandler {
	dispatcher := app.NewWebhookDispatcher(
		&fakeEventAPI{known: known},
		&fakeFinder{},
		func(billable *domain.BillableRecord) *app.Gateway { return nil },
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return NewWebhookHandler(dispatcher, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWebhookHandlerRejectsMalformedJSON(t *testing.T) {
	h := newTestWebhookHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/conekta", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookHandlerAcknowledgesUnverifiableEvents(t *testing.T) {
	h := newTestWebhookHandler(map[string]bool{})

	body := `{"id":"evt_forged","type":"subscription.canceled","data":{"object":{"customer_id":"cus_1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/conekta", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Webhook Handled", rr.Body.String())
}

func TestWebhookHandlerAcknowledgesUnrecognizedTypes(t *testing.T) {
	h := newTestWebhookHandler(map[string]bool{"evt_1": true})

	body := `{"id":"evt_1","type":"charge.paid","data":{"object":{}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/conekta", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookHandlerAcknowledgesUnknownCustomers(t *testing.T) {
	h := newTestWebhookHandler(map[string]bool{"evt_1": true})

	body := `{"id":"evt_1","type":"subscription.canceled","data":{"object":{"customer_id":"cus_missing"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/conekta", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

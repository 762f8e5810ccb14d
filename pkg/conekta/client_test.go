package conekta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, "key_test")
}

func TestClientSetsAuthAndVersionHeaders(t *testing.T) {
	var gotUser, gotAccept string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		gotAccept = r.Header.Get("Accept")
		json.NewEncoder(w).Encode(Customer{ID: "cus_1"})
	})

	if _, err := client.GetCustomer(context.Background(), "cus_1"); err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if gotUser != "key_test" {
		t.Errorf("basic auth user = %q, want the API key", gotUser)
	}
	if gotAccept != "application/vnd.conekta-v0.3.0+json" {
		t.Errorf("Accept header = %q", gotAccept)
	}
}

func TestCreateCustomerMergesTokenAndProperties(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Customer{ID: "cus_1"})
	})

	customer, err := client.CreateCustomer(context.Background(), CustomerParams{
		Token: "tok_test",
		Extra: map[string]any{"email": "john@doe.com"},
	})
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	if customer.ID != "cus_1" {
		t.Errorf("customer id = %q, want %q", customer.ID, "cus_1")
	}

	cards, ok := gotBody["cards"].([]any)
	if !ok || len(cards) != 1 || cards[0] != "tok_test" {
		t.Errorf("cards payload = %v, want the token wrapped in a list", gotBody["cards"])
	}
	if gotBody["email"] != "john@doe.com" {
		t.Errorf("email property = %v, want %q", gotBody["email"], "john@doe.com")
	}
}

func TestUpdateSubscriptionCreatesWhenNoneExists(t *testing.T) {
	var subMethod string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/cus_1":
			json.NewEncoder(w).Encode(Customer{ID: "cus_1"})
		case "/customers/cus_1/subscription":
			subMethod = r.Method
			json.NewEncoder(w).Encode(Subscription{ID: "sub_1", PlanID: "gold"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sub, err := client.UpdateSubscription(context.Background(), "cus_1", SubscriptionParams{Plan: "gold"})
	if err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}
	if subMethod != http.MethodPost {
		t.Errorf("method = %s, want POST for a fresh subscription", subMethod)
	}
	if sub.ID != "sub_1" {
		t.Errorf("subscription id = %q, want %q", sub.ID, "sub_1")
	}
}

func TestUpdateSubscriptionRecreatesCanceled(t *testing.T) {
	var subMethod string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/cus_1":
			json.NewEncoder(w).Encode(Customer{
				ID:           "cus_1",
				Subscription: &Subscription{ID: "sub_1", Status: SubscriptionStatusCanceled},
			})
		case "/customers/cus_1/subscription":
			subMethod = r.Method
			json.NewEncoder(w).Encode(Subscription{ID: "sub_2", PlanID: "gold"})
		}
	})

	if _, err := client.UpdateSubscription(context.Background(), "cus_1", SubscriptionParams{Plan: "gold"}); err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}
	if subMethod != http.MethodPost {
		t.Errorf("method = %s, want POST to recreate a canceled subscription", subMethod)
	}
}

func TestUpdateSubscriptionUpdatesActive(t *testing.T) {
	var subMethod string
	var gotParams SubscriptionParams
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/cus_1":
			json.NewEncoder(w).Encode(Customer{
				ID:           "cus_1",
				Subscription: &Subscription{ID: "sub_1", Status: SubscriptionStatusActive},
			})
		case "/customers/cus_1/subscription":
			subMethod = r.Method
			json.NewDecoder(r.Body).Decode(&gotParams)
			json.NewEncoder(w).Encode(Subscription{ID: "sub_1", PlanID: "silver"})
		}
	})

	if _, err := client.UpdateSubscription(context.Background(), "cus_1", SubscriptionParams{Plan: "silver"}); err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}
	if subMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT for an existing subscription", subMethod)
	}
	if gotParams.Plan != "silver" {
		t.Errorf("plan = %q, want %q", gotParams.Plan, "silver")
	}
}

func TestCancelSubscriptionSendsAtPeriodEnd(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/cus_1/subscription/cancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.CancelSubscription(context.Background(), "cus_1", true); err != nil {
		t.Fatalf("CancelSubscription() error = %v", err)
	}
	if gotBody["at_period_end"] != true {
		t.Errorf("at_period_end = %v, want true", gotBody["at_period_end"])
	}
}

func TestPauseSubscription(t *testing.T) {
	var gotMethod, gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(Subscription{ID: "sub_1", Status: SubscriptionStatusPaused})
	})

	sub, err := client.PauseSubscription(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("PauseSubscription() error = %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/customers/cus_1/subscription/pause" {
		t.Errorf("request = %s %s, want POST /customers/cus_1/subscription/pause", gotMethod, gotPath)
	}
	if sub.Status != SubscriptionStatusPaused {
		t.Errorf("status = %q, want %q", sub.Status, SubscriptionStatusPaused)
	}
}

func TestResumeSubscription(t *testing.T) {
	var gotMethod, gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(Subscription{ID: "sub_1", Status: SubscriptionStatusActive})
	})

	sub, err := client.ResumeSubscription(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("ResumeSubscription() error = %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/customers/cus_1/subscription/resume" {
		t.Errorf("request = %s %s, want POST /customers/cus_1/subscription/resume", gotMethod, gotPath)
	}
	if sub.Status != SubscriptionStatusActive {
		t.Errorf("status = %q, want %q", sub.Status, SubscriptionStatusActive)
	}
}

func TestGetEventNotFound(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetEvent(context.Background(), "evt_forged")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetEvent() error = %v, want ErrNotFound", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "card_declined",
			"message": "The card was declined",
		})
	})

	_, err := client.CreateCharge(context.Background(), ChargeParams{Amount: 5000, Currency: "mxn", Card: "cus_1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateCharge() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired {
		t.Errorf("status code = %d, want 402", apiErr.StatusCode)
	}
	if apiErr.Code != "card_declined" {
		t.Errorf("code = %q, want %q", apiErr.Code, "card_declined")
	}
	if apiErr.Message != "The card was declined" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	})

	_, err := client.GetCustomer(context.Background(), "cus_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetCustomer() error = %v, want *APIError", err)
	}
	if apiErr.Message != "upstream timeout" {
		t.Errorf("message = %q, want the raw body", apiErr.Message)
	}
}

func TestCreateCardSendsToken(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/cus_1/cards" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Card{ID: "card_1", Last4: "4242", Brand: "visa"})
	})

	card, err := client.CreateCard(context.Background(), "cus_1", "tok_test")
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if gotBody["token"] != "tok_test" {
		t.Errorf("token = %v, want %q", gotBody["token"], "tok_test")
	}
	if card.Last4 != "4242" {
		t.Errorf("last4 = %q, want %q", card.Last4, "4242")
	}
}

/**
 * @description
 * This package provides a client for interacting with the Conekta payment API.
 * It encapsulates the logic for making authenticated HTTP requests, handling
 * request/response bodies, and managing errors from the API.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 *
 * @notes
 * - The client is designed to be reusable and is shared by the gateway core and
 *   the webhook dispatcher.
 * - It includes a default HTTP client with a timeout to prevent requests from
 *   hanging indefinitely.
 * - Error handling is designed to provide context: non-2xx responses are decoded
 *   into an APIError carrying the status code and the gateway's message.
 * - Conekta exposes a single managed subscription per customer. UpdateSubscription
 *   therefore creates the subscription when none exists (or the existing one is
 *   canceled) and updates it otherwise, mirroring the gateway's own behavior.
 */
package conekta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Conekta API endpoint.
const DefaultBaseURL = "https://api.conekta.io"

const acceptHeader = "application/vnd.conekta-v0.3.0+json"

// ErrNotFound is returned when Conekta does not recognize a resource id.
var ErrNotFound = errors.New("conekta: resource not found")

// APIError is a rejected request as reported by the Conekta API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("conekta API request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is a client for interacting with the Conekta API.
type Client struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewClient creates a new Conekta API client.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCustomer sends a request to Conekta to create a new customer with the
// given card token and extra properties.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	body := map[string]any{}
	for k, v := range params.Extra {
		body[k] = v
	}
	if params.Token != "" {
		body["cards"] = []string{params.Token}
	}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", body, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomer retrieves a customer by id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+id, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer updates customer attributes such as the default card.
func (c *Client) UpdateCustomer(ctx context.Context, id string, params CustomerUpdateParams) error {
	return c.do(ctx, http.MethodPut, "/customers/"+id, params, nil)
}

// UpdateSubscription creates or updates the customer's subscription. A missing
// or canceled subscription is recreated; otherwise the existing one is updated
// in place.
func (c *Client) UpdateSubscription(ctx context.Context, customerID string, params SubscriptionParams) (*Subscription, error) {
	customer, err := c.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	method := http.MethodPut
	if customer.Subscription == nil || customer.Subscription.Status == SubscriptionStatusCanceled {
		method = http.MethodPost
	}

	var sub Subscription
	if err := c.do(ctx, method, "/customers/"+customerID+"/subscription", params, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription cancels the customer's subscription, either at the end of
// the current period or immediately.
func (c *Client) CancelSubscription(ctx context.Context, customerID string, atPeriodEnd bool) error {
	body := map[string]any{"at_period_end": atPeriodEnd}
	return c.do(ctx, http.MethodPost, "/customers/"+customerID+"/subscription/cancel", body, nil)
}

// PauseSubscription pauses the customer's subscription.
func (c *Client) PauseSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/customers/"+customerID+"/subscription/pause", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ResumeSubscription resumes a paused subscription.
func (c *Client) ResumeSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/customers/"+customerID+"/subscription/resume", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateCard stores a new card on the customer from a tokenized card.
func (c *Client) CreateCard(ctx context.Context, customerID, token string) (*Card, error) {
	body := map[string]any{"token": token}
	var card Card
	if err := c.do(ctx, http.MethodPost, "/customers/"+customerID+"/cards", body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateCharge makes a one-off charge.
func (c *Client) CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/charges", params, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// GetEvent retrieves a webhook event by id. Returns ErrNotFound when the
// gateway does not recognize the id.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var event Event
	if err := c.do(ctx, http.MethodGet, "/events/"+id, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// do performs one authenticated JSON round trip against the Conekta API.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Conekta: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.handleErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode successful response: %w", err)
	}
	return nil
}

// setHeaders adds the necessary authentication and content-type headers to the request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeader)
	req.SetBasicAuth(c.APIKey, "")
}

// handleErrorResponse reads the body of a failed API call and returns an APIError.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}

	apiErr := APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(bodyBytes, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(bodyBytes)
	}
	return &apiErr
}

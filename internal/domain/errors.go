package domain

import "errors"

// Typed errors for the cashier core. These let the HTTP layer map failures to
// status codes without depending on gateway-specific error types.
var (
	// ErrMissingAPIKey indicates the Conekta API key was never configured.
	ErrMissingAPIKey = errors.New("conekta API key is not configured")
	// ErrNoPaymentSource indicates a charge or subscribe was attempted with no
	// resolvable card.
	ErrNoPaymentSource = errors.New("no payment source provided")
	// ErrChargeFailed indicates the gateway rejected a one-off charge. The
	// charge did not complete; callers must check for this sentinel.
	ErrChargeFailed = errors.New("charge not completed")
	// ErrBillableNotFound indicates no billable record matches the lookup.
	ErrBillableNotFound = errors.New("billable record not found")
)

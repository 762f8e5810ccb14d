/**
 * @description
 * This file defines the invoice line item value object. It models only the
 * fields the cashier actually consumes: the amount, the item type, and the
 * billing period bounds.
 */
package domain

import (
	"fmt"
	"strings"
	"time"
)

// LineItem is one line of a Conekta invoice.
type LineItem struct {
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	PeriodStart int64  `json:"period_start,omitempty"`
	PeriodEnd   int64  `json:"period_end,omitempty"`
}

// IsSubscription reports whether the line item is for a subscription.
func (l LineItem) IsSubscription() bool {
	return l.Type == "subscription"
}

// Total returns the line amount formatted as a decimal string, without the
// currency symbol. Amounts are stored in cents.
func (l LineItem) Total() string {
	amount := l.Amount
	negative := amount < 0
	if negative {
		amount = -amount
	}
	formatted := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// TotalWithCurrency returns the line amount with the currency symbol, keeping
// the sign in front of the symbol.
func (l LineItem) TotalWithCurrency() string {
	total := l.Total()
	if strings.HasPrefix(total, "-") {
		return "-$" + strings.TrimPrefix(total, "-")
	}
	return "$" + total
}

// StartDateString returns a human readable period start date. Empty for
// non-subscription items.
func (l LineItem) StartDateString() string {
	if !l.IsSubscription() {
		return ""
	}
	return time.Unix(l.PeriodStart, 0).UTC().Format("Jan 2, 2006")
}

// EndDateString returns a human readable period end date. Empty for
// non-subscription items.
func (l LineItem) EndDateString() string {
	if !l.IsSubscription() {
		return ""
	}
	return time.Unix(l.PeriodEnd, 0).UTC().Format("Jan 2, 2006")
}

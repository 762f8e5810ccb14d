package domain

import (
	"testing"
	"time"
)

func TestLineItemTotal(t *testing.T) {
	testCases := []struct {
		amount       int64
		total        string
		withCurrency string
	}{
		{amount: 0, total: "0.00", withCurrency: "$0.00"},
		{amount: 5, total: "0.05", withCurrency: "$0.05"},
		{amount: 100, total: "1.00", withCurrency: "$1.00"},
		{amount: 12345, total: "123.45", withCurrency: "$123.45"},
		{amount: -12345, total: "-123.45", withCurrency: "-$123.45"},
	}

	for _, tc := range testCases {
		item := LineItem{Amount: tc.amount}
		if got := item.Total(); got != tc.total {
			t.Errorf("Total() for %d = %q, want %q", tc.amount, got, tc.total)
		}
		if got := item.TotalWithCurrency(); got != tc.withCurrency {
			t.Errorf("TotalWithCurrency() for %d = %q, want %q", tc.amount, got, tc.withCurrency)
		}
	}
}

func TestLineItemPeriodDates(t *testing.T) {
	start := time.Date(2015, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)

	item := LineItem{
		Type:        "subscription",
		PeriodStart: start.Unix(),
		PeriodEnd:   end.Unix(),
	}

	if !item.IsSubscription() {
		t.Fatal("expected a subscription line item")
	}
	if got := item.StartDateString(); got != "Feb 1, 2015" {
		t.Errorf("StartDateString() = %q, want %q", got, "Feb 1, 2015")
	}
	if got := item.EndDateString(); got != "Mar 1, 2015" {
		t.Errorf("EndDateString() = %q, want %q", got, "Mar 1, 2015")
	}
}

func TestLineItemNonSubscriptionHasNoPeriod(t *testing.T) {
	item := LineItem{Type: "charge", PeriodStart: time.Now().Unix()}

	if item.IsSubscription() {
		t.Fatal("a charge line item is not a subscription")
	}
	if got := item.StartDateString(); got != "" {
		t.Errorf("StartDateString() = %q, want empty", got)
	}
	if got := item.EndDateString(); got != "" {
		t.Errorf("EndDateString() = %q, want empty", got)
	}
}

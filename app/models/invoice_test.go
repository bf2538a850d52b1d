package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from InvoiceStatus
		to   InvoiceStatus
		ok   bool
	}{
		{InvoiceStatusUnpaid, InvoiceStatusPending, true},
		{InvoiceStatusUnpaid, InvoiceStatusPaid, true},
		{InvoiceStatusUnpaid, InvoiceStatusCanceled, true},
		{InvoiceStatusUnpaid, InvoiceStatusExpired, true},
		{InvoiceStatusUnpaid, InvoiceStatusRefunded, false},
		{InvoiceStatusPending, InvoiceStatusPaid, true},
		{InvoiceStatusPending, InvoiceStatusExpired, true},
		{InvoiceStatusPaid, InvoiceStatusPartiallyRefunded, true},
		{InvoiceStatusPaid, InvoiceStatusRefunded, true},
		{InvoiceStatusPaid, InvoiceStatusUnpaid, false},
		{InvoiceStatusPaid, InvoiceStatusCanceled, false},
		{InvoiceStatusPartiallyRefunded, InvoiceStatusRefunded, true},
		{InvoiceStatusPartiallyRefunded, InvoiceStatusPaid, false},
		{InvoiceStatusRefunded, InvoiceStatusPaid, false},
		{InvoiceStatusCanceled, InvoiceStatusPaid, false},
		{InvoiceStatusExpired, InvoiceStatusPaid, false},
	}
	for _, tc := range cases {
		inv := &Invoice{Status: tc.from}
		assert.Equalf(t, tc.ok, inv.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestInvoiceSelfTransitionRejected(t *testing.T) {
	t.Parallel()
	for _, status := range []InvoiceStatus{
		InvoiceStatusUnpaid, InvoiceStatusPending, InvoiceStatusPaid,
		InvoiceStatusPartiallyRefunded, InvoiceStatusRefunded,
		InvoiceStatusCanceled, InvoiceStatusExpired,
	} {
		inv := &Invoice{Status: status}
		assert.Falsef(t, inv.CanTransitionTo(status), "self transition for %s", status)
	}
}

func TestInvoiceTerminalStates(t *testing.T) {
	t.Parallel()
	assert.False(t, InvoiceStatusUnpaid.IsTerminal())
	assert.False(t, InvoiceStatusPending.IsTerminal())
	assert.True(t, InvoiceStatusPaid.IsTerminal())
	assert.True(t, InvoiceStatusRefunded.IsTerminal())
	assert.True(t, InvoiceStatusCanceled.IsTerminal())
	assert.True(t, InvoiceStatusExpired.IsTerminal())
}

func TestApplyRefundAccounting(t *testing.T) {
	t.Parallel()
	inv := &Invoice{Status: InvoiceStatusPaid, AmountSats: 1000}

	require.True(t, inv.ApplyRefund(400))
	assert.Equal(t, uint64(400), inv.RefundAmount)
	assert.Equal(t, InvoiceStatusPartiallyRefunded, inv.Status)

	// Over-cap refund is rejected and leaves state untouched.
	require.False(t, inv.ApplyRefund(700))
	assert.Equal(t, uint64(400), inv.RefundAmount)
	assert.Equal(t, InvoiceStatusPartiallyRefunded, inv.Status)

	require.True(t, inv.ApplyRefund(600))
	assert.Equal(t, uint64(1000), inv.RefundAmount)
	assert.Equal(t, InvoiceStatusRefunded, inv.Status)

	require.False(t, inv.ApplyRefund(1))
}

func TestApplyRefundRejectsZero(t *testing.T) {
	t.Parallel()
	inv := &Invoice{Status: InvoiceStatusPaid, AmountSats: 1000}
	assert.False(t, inv.ApplyRefund(0))
	assert.Equal(t, uint64(0), inv.RefundAmount)
}

func TestQuoteExpired(t *testing.T) {
	t.Parallel()
	inv := &Invoice{QuoteExpiresAt: 5_000}
	assert.False(t, inv.QuoteExpired(4_999))
	assert.False(t, inv.QuoteExpired(5_000))
	assert.True(t, inv.QuoteExpired(5_001))
}

func TestWebhookSubjectKey(t *testing.T) {
	t.Parallel()
	invoiceID := uint(42)
	subID := uint(7)

	invoiceRow := &WebhookLog{StoreID: 3, InvoiceID: &invoiceID, EventType: WebhookEventInvoicePaid}
	assert.Equal(t, "store:3:invoice:42:invoice.paid", invoiceRow.SubjectKey())

	subRow := &WebhookLog{StoreID: 3, SubscriptionID: &subID, EventType: WebhookEventSubscriptionPaid}
	assert.Equal(t, "store:3:subscription:7:subscription.paid", subRow.SubjectKey())

	// Same subject, different event type must never collide.
	other := &WebhookLog{StoreID: 3, InvoiceID: &invoiceID, EventType: WebhookEventInvoiceRefunded}
	assert.NotEqual(t, invoiceRow.SubjectKey(), other.SubjectKey())
}

func TestSubscriptionCancelIdempotent(t *testing.T) {
	t.Parallel()
	sub := &Subscription{Active: true}
	sub.Cancel()
	require.False(t, sub.Active)
	require.NotNil(t, sub.CanceledAt)

	first := *sub.CanceledAt
	sub.Cancel()
	assert.Equal(t, first, *sub.CanceledAt)
}

package txbuilder

import (
	"testing"

	"github.com/stacksgate/stacksgate/app/models"
)

func TestBuildUnsignedRefund_CapEnforced(t *testing.T) {
	t.Parallel()

	a := NewRefundAssembler(testConfig())

	inv := testInvoice()
	inv.AmountSats = 10000
	inv.Status = models.InvoiceStatusPaid

	// Full refund of a 10,000-sat paid invoice succeeds.
	call, err := a.BuildUnsignedRefund(inv, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.FunctionName != FnRefundInvoice {
		t.Fatalf("function = %q, want %q", call.FunctionName, FnRefundInvoice)
	}

	// After the ledger confirms, the row reflects the refund; even 1 more sat
	// must fail the cap.
	if !inv.ApplyRefund(10000) {
		t.Fatalf("ApplyRefund(10000) should succeed")
	}
	if inv.Status != models.InvoiceStatusRefunded {
		t.Fatalf("status = %q, want refunded", inv.Status)
	}
	if _, err := a.BuildUnsignedRefund(inv, 1); kindOf(t, err) != KindRefundCap {
		t.Fatalf("expected refund-cap after full refund, got %v", err)
	}
}

func TestBuildUnsignedRefund_PartialThenOverCap(t *testing.T) {
	t.Parallel()

	a := NewRefundAssembler(testConfig())

	inv := testInvoice()
	inv.AmountSats = 10000
	inv.Status = models.InvoiceStatusPaid
	if !inv.ApplyRefund(4000) {
		t.Fatalf("ApplyRefund(4000) should succeed")
	}
	if inv.Status != models.InvoiceStatusPartiallyRefunded {
		t.Fatalf("status = %q, want partially_refunded", inv.Status)
	}

	if _, err := a.BuildUnsignedRefund(inv, 6001); kindOf(t, err) != KindRefundCap {
		t.Fatalf("expected refund-cap, got %v", err)
	}
	if _, err := a.BuildUnsignedRefund(inv, 6000); err != nil {
		t.Fatalf("refund up to the cap should assemble: %v", err)
	}
}

func TestBuildUnsignedRefund_RejectsUnpaid(t *testing.T) {
	t.Parallel()

	a := NewRefundAssembler(testConfig())
	inv := testInvoice()

	if _, err := a.BuildUnsignedRefund(inv, 1); kindOf(t, err) != KindInvalidState {
		t.Fatalf("expected invalid-state for unpaid invoice, got %v", err)
	}
	if _, err := a.BuildUnsignedRefund(nil, 1); kindOf(t, err) != KindNotFound {
		t.Fatalf("expected not-found for nil row, got %v", err)
	}
}

package txbuilder

import (
	"errors"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
)

// RefundAssembler gates merchant refund intents. The contract enforces the
// refund cap authoritatively; this gate only avoids wasting a signature.
type RefundAssembler struct {
	config  assets.ConfigService
	builder *CallBuilder
}

// NewRefundAssembler wires the assembler.
func NewRefundAssembler(config assets.ConfigService) *RefundAssembler {
	return &RefundAssembler{config: config, builder: NewCallBuilder(config)}
}

// BuildUnsignedRefund validates the refund against the local row and returns
// an unsigned refund-invoice call for the merchant wallet to sign.
func (a *RefundAssembler) BuildUnsignedRefund(inv *models.Invoice, amountSats uint64) (*UnsignedContractCall, error) {
	if inv == nil {
		return nil, newError(KindNotFound, "invoice not found")
	}
	id, err := invoiceid.Normalize(inv.IDHex)
	if err != nil {
		return nil, newError(KindInvalidID, "invoice id is not a 32-byte hex identifier")
	}
	switch inv.Status {
	case models.InvoiceStatusPaid, models.InvoiceStatusPartiallyRefunded:
	case models.InvoiceStatusRefunded:
		return nil, newError(KindRefundCap, "invoice is already fully refunded")
	default:
		return nil, newError(KindInvalidState, "only paid invoices can be refunded")
	}
	if amountSats == 0 {
		return nil, newError(KindRefundCap, "refund amount must be positive")
	}
	if inv.RefundAmount+amountSats > inv.AmountSats {
		return nil, newError(KindRefundCap, "refund exceeds the remaining refundable amount")
	}

	if _, err := a.config.SettlementAsset(); err != nil {
		if errors.Is(err, assets.ErrTokenNotConfigured) {
			return nil, newError(KindMissingToken, "settlement token is not configured")
		}
		return nil, err
	}

	return a.builder.RefundInvoice(id, inv.MerchantPrincipal, amountSats)
}

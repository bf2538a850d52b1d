package txbuilder

import (
	"context"
	"errors"
	"time"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/chain"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
)

// InvoiceStatusReader is the slice of chain access the assembler needs.
type InvoiceStatusReader interface {
	InvoiceStatus(ctx context.Context, idHex string) (chain.InvoiceOnchainStatus, error)
}

// PayInvoiceAssembler is the payment-intent gate: it validates an invoice
// against the local row, on-chain status and token configuration, then emits
// an unsigned pay-invoice call. It performs no writes and never retries; a
// failed chain read surfaces immediately.
type PayInvoiceAssembler struct {
	chain   InvoiceStatusReader
	config  assets.ConfigService
	builder *CallBuilder
	now     func() time.Time
}

// NewPayInvoiceAssembler wires the assembler. now is replaceable for tests.
func NewPayInvoiceAssembler(statusReader InvoiceStatusReader, config assets.ConfigService) *PayInvoiceAssembler {
	return &PayInvoiceAssembler{
		chain:   statusReader,
		config:  config,
		builder: NewCallBuilder(config),
		now:     time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (a *PayInvoiceAssembler) WithClock(now func() time.Time) *PayInvoiceAssembler {
	a.now = now
	return a
}

// BuildUnsignedPayInvoice validates preconditions in a fixed order (first
// failure wins) and returns the unsigned call. payerPrincipal may be empty for
// dry-run previews, in which case the merchant principal stands in; real
// payment flows always supply the actual payer.
func (a *PayInvoiceAssembler) BuildUnsignedPayInvoice(ctx context.Context, inv *models.Invoice, store *models.Store, payerPrincipal string) (*UnsignedContractCall, error) {
	// 1. Store must be active.
	if store == nil || !store.Active {
		return nil, newError(KindMerchantInactive, "merchant is not active")
	}

	// 2. Well-formed 32-byte id.
	id, err := invoiceid.Normalize(inv.IDHex)
	if err != nil {
		return nil, newError(KindInvalidID, "invoice id is not a 32-byte hex identifier")
	}

	onchain, err := a.chain.InvoiceStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Quote window still open and not expired on-chain.
	nowMs := a.now().UnixMilli()
	if inv.QuoteExpired(nowMs) || onchain == chain.OnchainExpired {
		return nil, newError(KindExpired, "invoice quote has expired")
	}

	// 4. Not already terminal, on-chain or locally.
	if onchain == chain.OnchainPaid || onchain == chain.OnchainCanceled {
		return nil, newError(KindInvalidState, "invoice is already "+string(onchain))
	}
	if !inv.Status.IsPayable() {
		return nil, newError(KindInvalidState, "invoice is "+string(inv.Status))
	}

	// 5. Settlement token must be configured.
	if _, err := a.config.SettlementAsset(); err != nil {
		if errors.Is(err, assets.ErrTokenNotConfigured) {
			return nil, newError(KindMissingToken, "settlement token is not configured")
		}
		return nil, err
	}

	payer := payerPrincipal
	if payer == "" {
		payer = inv.MerchantPrincipal
	}
	return a.builder.PayInvoice(id, payer, inv.AmountSats)
}

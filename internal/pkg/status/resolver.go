package status

import (
	"context"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/chain"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
)

// OnchainReader is the slice of chain access the resolver needs.
type OnchainReader interface {
	InvoiceStatus(ctx context.Context, idHex string) (chain.InvoiceOnchainStatus, error)
}

// Resolver merges on-chain invoice status with the local projection into one
// authoritative display status.
type Resolver struct {
	chain OnchainReader
}

// NewResolver wires the resolver.
func NewResolver(onchain OnchainReader) *Resolver {
	return &Resolver{chain: onchain}
}

// ReadOnchainStatus validates the id and reads the ledger's view of it.
func (r *Resolver) ReadOnchainStatus(ctx context.Context, idHex string) (chain.InvoiceOnchainStatus, error) {
	id, err := invoiceid.Normalize(idHex)
	if err != nil {
		return "", err
	}
	return r.chain.InvoiceStatus(ctx, id)
}

// ComputeDisplayStatus resolves the one authoritative status for display.
//
// Precedence: on-chain paid wins unconditionally, then on-chain canceled, then
// expiry (locally inferred from the quote window or observed on-chain), then
// the locally stored status. On-chain terminal states are authoritative over
// local state, but expiry may be shown optimistically before a mark-expired
// call lands; payment authorization stays pessimistic either way.
func ComputeDisplayStatus(row *models.Invoice, onchain chain.InvoiceOnchainStatus, nowMs int64) models.InvoiceStatus {
	switch onchain {
	case chain.OnchainPaid:
		// Refund progress recorded locally refines "paid" for display.
		switch row.Status {
		case models.InvoiceStatusPartiallyRefunded, models.InvoiceStatusRefunded:
			return row.Status
		}
		return models.InvoiceStatusPaid
	case chain.OnchainCanceled:
		return models.InvoiceStatusCanceled
	case chain.OnchainExpired:
		return models.InvoiceStatusExpired
	case chain.OnchainUnpaid, chain.OnchainNotFound:
		// fall through to local inference
	}

	if row.QuoteExpired(nowMs) {
		return models.InvoiceStatusExpired
	}
	return row.Status
}

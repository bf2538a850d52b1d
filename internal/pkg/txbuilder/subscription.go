package txbuilder

import (
	"context"
	"errors"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
)

// TipHeightReader is the slice of chain access the subscription builder needs.
type TipHeightReader interface {
	TipHeight(ctx context.Context) (uint64, error)
}

// DirectSubscriptionPaymentBuilder gates direct-pay subscription payments.
// Only the subscriber of record may pay, and only once the due height is
// reached. The emitted call always carries the row's current amount so a
// changed subscription never pays a stale figure.
type DirectSubscriptionPaymentBuilder struct {
	chain   TipHeightReader
	config  assets.ConfigService
	builder *CallBuilder
}

// NewDirectSubscriptionPaymentBuilder wires the builder.
func NewDirectSubscriptionPaymentBuilder(tipReader TipHeightReader, config assets.ConfigService) *DirectSubscriptionPaymentBuilder {
	return &DirectSubscriptionPaymentBuilder{
		chain:   tipReader,
		config:  config,
		builder: NewCallBuilder(config),
	}
}

// Assemble validates preconditions fail-fast and returns the unsigned
// pay-subscription call.
func (b *DirectSubscriptionPaymentBuilder) Assemble(ctx context.Context, sub *models.Subscription, payerPrincipal string) (*UnsignedContractCall, error) {
	if sub == nil {
		return nil, newError(KindNotFound, "subscription not found")
	}
	if !sub.Active || sub.Mode != models.SubscriptionModeDirect {
		return nil, newError(KindBadStatus, "subscription is not an active direct-pay subscription")
	}
	if payerPrincipal != sub.Subscriber {
		return nil, newError(KindInvalidPayer, "only the subscriber of record may pay this subscription")
	}

	tip, err := b.chain.TipHeight(ctx)
	if err != nil {
		return nil, err
	}
	if !sub.Due(tip) {
		return nil, newError(KindTooEarly, "subscription is not due yet")
	}

	if _, err := b.config.SettlementAsset(); err != nil {
		if errors.Is(err, assets.ErrTokenNotConfigured) {
			return nil, newError(KindMissingToken, "settlement token is not configured")
		}
		return nil, err
	}

	return b.builder.PaySubscription(sub.IDHex, payerPrincipal, sub.AmountSats)
}

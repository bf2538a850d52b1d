package txbuilder

import (
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
)

// Gateway contract function names. These are the only functions the gateway
// ever asks a wallet to sign.
const (
	FnPayInvoice         = "pay-invoice"
	FnRefundInvoice      = "refund-invoice"
	FnCancelInvoice      = "cancel-invoice"
	FnRegisterMerchant   = "register-merchant"
	FnSetMerchantActive  = "set-merchant-active"
	FnSetSBTCToken       = "set-sbtc-token"
	FnPaySubscription    = "pay-subscription"
	FnCancelSubscription = "cancel-subscription"
)

// UnsignedContractCall is a fully-specified, not-yet-signed ledger state
// transition. It is a derived artifact: never persisted as authoritative
// state and safe to regenerate idempotently from current row + chain state.
type UnsignedContractCall struct {
	ContractAddress   string                          `json:"contractAddress"`
	ContractName      string                          `json:"contractName"`
	FunctionName      string                          `json:"functionName"`
	FunctionArgs      []clarity.Value                 `json:"functionArgs"`
	PostConditionMode clarity.PostConditionMode       `json:"postConditionMode"`
	PostConditions    []clarity.FungiblePostCondition `json:"postConditions,omitempty"`
}

// CallBuilder turns validated domain intents into unsigned contract calls.
// All builders are pure; precondition gating happens in the assemblers.
type CallBuilder struct {
	config assets.ConfigService
}

// NewCallBuilder creates a builder bound to the token/gateway configuration.
func NewCallBuilder(config assets.ConfigService) *CallBuilder {
	return &CallBuilder{config: config}
}

func (b *CallBuilder) base(function string) (*UnsignedContractCall, error) {
	addr, name, err := b.config.GatewayContract()
	if err != nil {
		return nil, err
	}
	return &UnsignedContractCall{
		ContractAddress:   addr,
		ContractName:      name,
		FunctionName:      function,
		PostConditionMode: clarity.PostConditionModeDeny,
	}, nil
}

// PayInvoice builds the pay-invoice call, post-condition bounded to exactly
// amountSats of the settlement token moving from payer.
func (b *CallBuilder) PayInvoice(idHex, payer string, amountSats uint64) (*UnsignedContractCall, error) {
	asset, err := b.config.SettlementAsset()
	if err != nil {
		return nil, err
	}
	call, err := b.base(FnPayInvoice)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Buff(idHex)}
	call.PostConditions = []clarity.FungiblePostCondition{
		clarity.ExactTransfer(payer, amountSats, asset),
	}
	return call, nil
}

// RefundInvoice builds the refund call; the merchant is the debtor here.
func (b *CallBuilder) RefundInvoice(idHex, merchant string, amountSats uint64) (*UnsignedContractCall, error) {
	asset, err := b.config.SettlementAsset()
	if err != nil {
		return nil, err
	}
	call, err := b.base(FnRefundInvoice)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Buff(idHex), clarity.Uint(amountSats)}
	call.PostConditions = []clarity.FungiblePostCondition{
		clarity.ExactTransfer(merchant, amountSats, asset),
	}
	return call, nil
}

// CancelInvoice builds the merchant/admin cancel call. No asset moves.
func (b *CallBuilder) CancelInvoice(idHex string) (*UnsignedContractCall, error) {
	call, err := b.base(FnCancelInvoice)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Buff(idHex)}
	return call, nil
}

// RegisterMerchant builds the one-time merchant registration call.
func (b *CallBuilder) RegisterMerchant(principal string) (*UnsignedContractCall, error) {
	call, err := b.base(FnRegisterMerchant)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Principal(principal)}
	return call, nil
}

// SetMerchantActive builds the activity flag call. The contract-side effect
// is idempotent, so re-issuing it is always safe.
func (b *CallBuilder) SetMerchantActive(principal string, active bool) (*UnsignedContractCall, error) {
	call, err := b.base(FnSetMerchantActive)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Principal(principal), clarity.Bool(active)}
	return call, nil
}

// SetSBTCToken builds the admin call pointing the gateway at the settlement
// token contract.
func (b *CallBuilder) SetSBTCToken(tokenAddress, tokenContract string) (*UnsignedContractCall, error) {
	call, err := b.base(FnSetSBTCToken)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.ContractPrincipal(tokenAddress, tokenContract)}
	return call, nil
}

// PaySubscription builds the direct subscription payment call bounded to the
// current due amount.
func (b *CallBuilder) PaySubscription(idHex, payer string, amountSats uint64) (*UnsignedContractCall, error) {
	asset, err := b.config.SettlementAsset()
	if err != nil {
		return nil, err
	}
	call, err := b.base(FnPaySubscription)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Buff(idHex)}
	call.PostConditions = []clarity.FungiblePostCondition{
		clarity.ExactTransfer(payer, amountSats, asset),
	}
	return call, nil
}

// CancelSubscription builds the subscription cancel call. No asset moves.
func (b *CallBuilder) CancelSubscription(idHex string) (*UnsignedContractCall, error) {
	call, err := b.base(FnCancelSubscription)
	if err != nil {
		return nil, err
	}
	call.FunctionArgs = []clarity.Value{clarity.Buff(idHex)}
	return call, nil
}

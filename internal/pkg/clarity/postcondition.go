package clarity

// PostConditionMode controls how the ledger treats asset movements that are
// not covered by an explicit post-condition. The gateway only ever emits deny.
type PostConditionMode string

const (
	PostConditionModeDeny  PostConditionMode = "deny"
	PostConditionModeAllow PostConditionMode = "allow"
)

// FungibleConditionCode is the comparison applied to the transferred amount.
type FungibleConditionCode string

const (
	ConditionSentEqual   FungibleConditionCode = "sent-equal"
	ConditionSentLessEq  FungibleConditionCode = "sent-less-or-equal"
	ConditionSentGreater FungibleConditionCode = "sent-greater"
)

// FungiblePostCondition bounds exactly which asset and amount a transaction
// may move from a principal. This is the ledger-enforced guard that keeps a
// buggy or malicious wallet payload from moving an unexpected amount.
type FungiblePostCondition struct {
	Principal     string                `json:"principal"`
	ConditionCode FungibleConditionCode `json:"conditionCode"`
	AmountSats    uint64                `json:"amount"`
	Asset         AssetInfo             `json:"asset"`
}

// ExactTransfer builds the standard sent-equal condition for amount from payer.
func ExactTransfer(payer string, amountSats uint64, asset AssetInfo) FungiblePostCondition {
	return FungiblePostCondition{
		Principal:     payer,
		ConditionCode: ConditionSentEqual,
		AmountSats:    amountSats,
		Asset:         asset,
	}
}

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
)

// InvoiceOnchainStatus is the closed set of on-chain invoice observations.
type InvoiceOnchainStatus string

const (
	OnchainNotFound InvoiceOnchainStatus = "not-found"
	OnchainUnpaid   InvoiceOnchainStatus = "unpaid"
	OnchainPaid     InvoiceOnchainStatus = "paid"
	OnchainCanceled InvoiceOnchainStatus = "canceled"
	OnchainExpired  InvoiceOnchainStatus = "expired"
)

// Status codes returned by the gateway contract's get-invoice-status.
const (
	statusCodeUnpaid   = 0
	statusCodePaid     = 1
	statusCodeCanceled = 2
	statusCodeExpired  = 3
)

// SubscriptionView is the on-chain subscription record as read back from the
// gateway contract.
type SubscriptionView struct {
	Active     bool
	Subscriber string
	AmountSats uint64
	NextDue    uint64
	Direct     bool
}

var (
	// ErrNotFound is returned for reads of records the contract does not know.
	ErrNotFound = errors.New("record not found on-chain")
	// ErrUnavailable wraps node transport failures. Callers must treat it as
	// "unknown", never as a terminal observation.
	ErrUnavailable = errors.New("chain node unavailable")
)

// Client is the read-only ledger access contract. State-changing calls never
// happen here; they are assembled as unsigned calls for a wallet to sign.
type Client interface {
	TipHeight(ctx context.Context) (uint64, error)
	InvoiceStatus(ctx context.Context, idHex string) (InvoiceOnchainStatus, error)
	InvoiceRefund(ctx context.Context, idHex string) (uint64, error)
	Subscription(ctx context.Context, idHex string) (*SubscriptionView, error)
	IsMerchantRegistered(ctx context.Context, principal string) (bool, error)
	ConfiguredToken(ctx context.Context) (string, error)
}

// NodeClient talks to a Stacks node's RPC API.
type NodeClient struct {
	baseURL string
	sender  string
	config  assets.ConfigService
	http    *http.Client
}

// NewNodeClient builds a node client from environment configuration.
func NewNodeClient(config assets.ConfigService) *NodeClient {
	return &NodeClient{
		baseURL: env.GetEnv("STACKS_NODE_URL", "http://localhost:20443"),
		sender:  env.GetEnv("STACKS_READ_SENDER", "SP000000000000000000002Q6VF78"),
		config:  config,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type nodeInfoResponse struct {
	StacksTipHeight uint64 `json:"stacks_tip_height"`
}

// TipHeight returns the current chain tip height, the monotonic clock for all
// due-height checks.
func (c *NodeClient) TipHeight(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/info", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: /v2/info returned %d", ErrUnavailable, resp.StatusCode)
	}
	var info nodeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return info.StacksTipHeight, nil
}

// InvoiceStatus reads the authoritative invoice status from the contract.
func (c *NodeClient) InvoiceStatus(ctx context.Context, idHex string) (InvoiceOnchainStatus, error) {
	id, err := invoiceid.Normalize(idHex)
	if err != nil {
		return "", err
	}
	arg, err := clarity.SerializeBuff(id)
	if err != nil {
		return "", err
	}
	result, err := c.callReadOnly(ctx, "get-invoice-status", []string{arg})
	if err != nil {
		return "", err
	}
	if result.IsErr() || result.Unwrap().IsNone() {
		return OnchainNotFound, nil
	}
	switch result.Unwrap().Unwrap().Uint {
	case statusCodeUnpaid:
		return OnchainUnpaid, nil
	case statusCodePaid:
		return OnchainPaid, nil
	case statusCodeCanceled:
		return OnchainCanceled, nil
	case statusCodeExpired:
		return OnchainExpired, nil
	}
	return "", fmt.Errorf("unknown invoice status code %d", result.Unwrap().Unwrap().Uint)
}

// InvoiceRefund reads the cumulative refunded amount for an invoice. The
// contract returns none for unknown invoices and invoices with no refunds,
// both of which read as zero.
func (c *NodeClient) InvoiceRefund(ctx context.Context, idHex string) (uint64, error) {
	id, err := invoiceid.Normalize(idHex)
	if err != nil {
		return 0, err
	}
	arg, err := clarity.SerializeBuff(id)
	if err != nil {
		return 0, err
	}
	result, err := c.callReadOnly(ctx, "get-invoice-refund", []string{arg})
	if err != nil {
		return 0, err
	}
	if result.IsErr() || result.Unwrap().IsNone() {
		return 0, nil
	}
	return result.Unwrap().Unwrap().Uint, nil
}

// Subscription reads the on-chain subscription record.
func (c *NodeClient) Subscription(ctx context.Context, idHex string) (*SubscriptionView, error) {
	id, err := invoiceid.Normalize(idHex)
	if err != nil {
		return nil, err
	}
	arg, err := clarity.SerializeBuff(id)
	if err != nil {
		return nil, err
	}
	result, err := c.callReadOnly(ctx, "get-subscription", []string{arg})
	if err != nil {
		return nil, err
	}
	if result.IsErr() || result.Unwrap().IsNone() {
		return nil, ErrNotFound
	}
	fields := result.Unwrap().Unwrap().Tuple
	if fields == nil {
		return nil, fmt.Errorf("get-subscription: %w", clarity.ErrBadWireValue)
	}
	view := &SubscriptionView{
		Active:     fields["active"].Bool,
		Subscriber: fields["subscriber"].Principal,
		AmountSats: fields["amount"].Uint,
		NextDue:    fields["next-due"].Uint,
		Direct:     fields["direct"].Bool,
	}
	return view, nil
}

// IsMerchantRegistered reports whether the principal is registered on-chain.
func (c *NodeClient) IsMerchantRegistered(ctx context.Context, principal string) (bool, error) {
	arg, err := clarity.SerializePrincipal(principal)
	if err != nil {
		return false, err
	}
	result, err := c.callReadOnly(ctx, "is-merchant-registered", []string{arg})
	if err != nil {
		return false, err
	}
	return result.Unwrap().Bool, nil
}

// ConfiguredToken reads the token contract the gateway contract settles in.
func (c *NodeClient) ConfiguredToken(ctx context.Context) (string, error) {
	result, err := c.callReadOnly(ctx, "get-sbtc-token", nil)
	if err != nil {
		return "", err
	}
	if result.IsErr() || result.Unwrap().IsNone() {
		return "", ErrNotFound
	}
	return result.Unwrap().Unwrap().Principal, nil
}

type callReadRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

type callReadResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

func (c *NodeClient) callReadOnly(ctx context.Context, function string, args []string) (clarity.WireValue, error) {
	addr, name, err := c.config.GatewayContract()
	if err != nil {
		return clarity.WireValue{}, err
	}
	if args == nil {
		args = []string{}
	}
	body, err := json.Marshal(callReadRequest{Sender: c.sender, Arguments: args})
	if err != nil {
		return clarity.WireValue{}, err
	}

	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s", c.baseURL, addr, name, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return clarity.WireValue{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return clarity.WireValue{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return clarity.WireValue{}, fmt.Errorf("%w: call-read %s returned %d", ErrUnavailable, function, resp.StatusCode)
	}

	var decoded callReadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return clarity.WireValue{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !decoded.Okay {
		return clarity.WireValue{}, fmt.Errorf("call-read %s rejected: %s", function, decoded.Cause)
	}
	return clarity.DeserializeHex(decoded.Result)
}

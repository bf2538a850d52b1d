package magiclink

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
)

var testAsset = clarity.AssetInfo{
	ContractAddress: "SP000000000000000000002Q6VF78",
	ContractName:    "sbtc-token",
	AssetName:       "sbtc",
}

func testBundle() Bundle {
	return Bundle{
		StoreID:   7,
		InvoiceID: strings.Repeat("ab", 32),
		UnsignedCall: &txbuilder.UnsignedContractCall{
			ContractAddress:   "SP000000000000000000002Q6VF78",
			ContractName:      "payment-gateway",
			FunctionName:      txbuilder.FnPayInvoice,
			FunctionArgs:      []clarity.Value{clarity.Buff(strings.Repeat("ab", 32))},
			PostConditionMode: clarity.PostConditionModeDeny,
			PostConditions: []clarity.FungiblePostCondition{
				clarity.ExactTransfer("SPPAYER", 25000, testAsset),
			},
		},
		Exp: time.Now().Add(time.Hour).Unix(),
	}
}

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("super-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	in := testBundle()

	blob, err := c.Serialize(in)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	out, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, time.Now().Unix())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if out.StoreID != in.StoreID || out.InvoiceID != in.InvoiceID || out.Exp != in.Exp {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
	if out.UnsignedCall.FunctionName != in.UnsignedCall.FunctionName {
		t.Fatalf("function mismatch: %q", out.UnsignedCall.FunctionName)
	}
	if out.UnsignedCall.PostConditions[0] != in.UnsignedCall.PostConditions[0] {
		t.Fatalf("post condition mismatch")
	}
}

func TestRoundTrip_LargeAmountKeepsPrecision(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	in := testBundle()
	// Above 2^53; a float64 hop would round this and break the signature.
	const amount = uint64(1<<53 + 3)
	in.UnsignedCall.PostConditions[0].AmountSats = amount

	blob, err := c.Serialize(in)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	out, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, time.Now().Unix())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := out.UnsignedCall.PostConditions[0].AmountSats; got != amount {
		t.Fatalf("amount = %d, want %d", got, amount)
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	in := testBundle()

	a, err := c.Serialize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Serialize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("same logical bundle produced different blobs")
	}
}

func TestParse_StageErrors(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	now := time.Now().Unix()

	// base64 failure
	if _, err := c.Parse("!!!not-base64!!!", txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("expected ErrBadEncoding, got %v", err)
	}

	// JSON failure
	junk := base64.RawURLEncoding.EncodeToString([]byte("{nope"))
	if _, err := c.Parse(junk, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrBadJSON) {
		t.Fatalf("expected ErrBadJSON, got %v", err)
	}

	// signature failure: valid blob signed by a different secret
	other, err := NewCodec("different-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blob, err := other.Serialize(testBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	// expiry
	expired := testBundle()
	expired.Exp = now - 10
	blob, err = c.Serialize(expired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// unauthorized function
	wrongFn := testBundle()
	wrongFn.UnsignedCall.FunctionName = txbuilder.FnSetMerchantActive
	blob, err = c.Serialize(wrongFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrUnauthorizedFunction) {
		t.Fatalf("expected ErrUnauthorizedFunction, got %v", err)
	}

	// allow-mode payload
	unsafe := testBundle()
	unsafe.UnsignedCall.PostConditionMode = clarity.PostConditionModeAllow
	blob, err = c.Serialize(unsafe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrUnsafePostConditions) {
		t.Fatalf("expected ErrUnsafePostConditions, got %v", err)
	}

	// missing settlement-token post-condition
	wrongAsset := testBundle()
	wrongAsset.UnsignedCall.PostConditions[0].Asset.AssetName = "other-token"
	blob, err = c.Serialize(wrongAsset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrMissingPostCondition) {
		t.Fatalf("expected ErrMissingPostCondition, got %v", err)
	}

	// structural failure: no subject id
	noSubject := testBundle()
	noSubject.InvoiceID = ""
	blob, err = c.Serialize(noSubject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Parse(blob, txbuilder.FnPayInvoice, testAsset, now); !errors.Is(err, ErrBadStructure) {
		t.Fatalf("expected ErrBadStructure, got %v", err)
	}
}

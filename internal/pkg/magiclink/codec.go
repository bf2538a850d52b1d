package magiclink

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
)

// BundleVersion is the only bundle format version this codec accepts.
const BundleVersion = 1

// Distinct, user-displayable parse failures. No partial bundles are ever
// accepted.
var (
	ErrBadEncoding          = errors.New("magic link is not valid base64url")
	ErrBadJSON              = errors.New("magic link payload is not valid JSON")
	ErrBadStructure         = errors.New("magic link payload is structurally invalid")
	ErrBadSignature         = errors.New("magic link signature is invalid")
	ErrExpired              = errors.New("magic link has expired")
	ErrUnauthorizedFunction = errors.New("magic link calls an unauthorized function")
	ErrUnsafePostConditions = errors.New("magic link does not deny unexpected asset movement")
	ErrMissingPostCondition = errors.New("magic link carries no settlement-token post-condition")
)

// Bundle is a self-contained, expiring, signed carrier for an unsigned call,
// built to travel through email or a QR code without a live session.
type Bundle struct {
	V              int                             `json:"v"`
	StoreID        uint                            `json:"storeId"`
	InvoiceID      string                          `json:"invoiceId,omitempty"`
	SubscriptionID string                          `json:"subscriptionId,omitempty"`
	UnsignedCall   *txbuilder.UnsignedContractCall `json:"unsignedCall"`
	Exp            int64                           `json:"exp"` // unix seconds
}

// Codec signs and verifies bundles with a store-scoped HMAC secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec for the given signing secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("secret is required for magic link signing")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// canonicalize re-marshals v through a generic map so that object keys come
// out sorted. The same logical bundle always produces the same bytes, which
// is what makes the HMAC stable. Numbers are kept as json.Number on the way
// through; decoding into float64 would corrupt sat amounts above 2^53.
func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Serialize canonicalizes, signs and base64url-encodes the bundle.
func (c *Codec) Serialize(b Bundle) (string, error) {
	if b.UnsignedCall == nil {
		return "", ErrBadStructure
	}
	b.V = BundleVersion

	payload, err := canonicalize(b)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", err
	}
	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return "", err
	}
	envelope["sig"] = sigJSON

	blob, err := canonicalize(envelope)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Parse validates a blob stage by stage: decoding, JSON shape, signature,
// structure, expiry, function allow-list, post-condition mode and the
// presence of a settlement-token post-condition. Each stage failure maps to
// its own error.
func (c *Codec) Parse(blob string, expectedFunction string, settlementAsset clarity.AssetInfo, nowUnix int64) (*Bundle, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrBadEncoding
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ErrBadJSON
	}

	sigRaw, ok := envelope["sig"]
	if !ok {
		return nil, ErrBadSignature
	}
	var sigHex string
	if err := json.Unmarshal(sigRaw, &sigHex); err != nil {
		return nil, ErrBadSignature
	}
	delete(envelope, "sig")

	payload, err := canonicalize(envelope)
	if err != nil {
		return nil, ErrBadJSON
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(sigHex)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, ErrBadSignature
	}

	var bundle Bundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, ErrBadStructure
	}
	if bundle.V != BundleVersion || bundle.UnsignedCall == nil || bundle.Exp == 0 {
		return nil, ErrBadStructure
	}
	if bundle.InvoiceID == "" && bundle.SubscriptionID == "" {
		return nil, ErrBadStructure
	}

	if nowUnix > bundle.Exp {
		return nil, ErrExpired
	}

	if bundle.UnsignedCall.FunctionName != expectedFunction {
		return nil, fmt.Errorf("%w: %q", ErrUnauthorizedFunction, bundle.UnsignedCall.FunctionName)
	}

	// Never "allow": an allow-mode payload could move unbounded assets.
	if bundle.UnsignedCall.PostConditionMode != clarity.PostConditionModeDeny {
		return nil, ErrUnsafePostConditions
	}

	found := false
	for _, pc := range bundle.UnsignedCall.PostConditions {
		if pc.Asset == settlementAsset {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrMissingPostCondition
	}

	return &bundle, nil
}

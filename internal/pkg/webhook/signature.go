package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Delivery headers sent with every webhook POST.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"

	// SignatureVersion prefixes the hex digest in the signature header.
	SignatureVersion = "v1"

	// MaxTimestampSkew is the widest clock drift a receiver should accept.
	MaxTimestampSkew = 300 * time.Second
)

var (
	ErrBadTimestamp   = errors.New("webhook: malformed timestamp header")
	ErrStaleTimestamp = errors.New("webhook: timestamp outside accepted skew")
	ErrBadSignature   = errors.New("webhook: signature mismatch")
)

// Sign computes the signature header value for a payload: HMAC-SHA256 over
// "{timestamp}.{rawBody}" keyed with the store's webhook secret.
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature against the raw body. Receivers call this
// with the two delivery headers; skew beyond MaxTimestampSkew is rejected even
// when the signature itself is valid.
func Verify(secret, timestampHeader, signatureHeader string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}

	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > MaxTimestampSkew {
		return ErrStaleTimestamp
	}

	expected := Sign(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return ErrBadSignature
	}
	return nil
}

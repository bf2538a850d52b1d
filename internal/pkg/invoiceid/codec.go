package invoiceid

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// ByteLen is the fixed identifier length shared by on-chain and off-chain records.
const ByteLen = 32

// HexLen is the length of the lowercase-hex form.
const HexLen = ByteLen * 2

var (
	ErrInvalidLength = errors.New("invoice id must be 32 bytes of hex")
	ErrInvalidHex    = errors.New("invoice id is not valid lowercase hex")
)

// Normalize lowercases and validates a 32-byte hex identifier, returning the
// canonical form. The decode/encode round trip rejects ids that merely look
// hex-shaped (odd length, unicode digits, mixed garbage).
func Normalize(idHex string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(idHex))
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	if len(s) != HexLen {
		return "", ErrInvalidLength
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", ErrInvalidHex
	}
	if hex.EncodeToString(raw) != s {
		return "", ErrInvalidHex
	}
	return s, nil
}

// Valid reports whether idHex is already a canonical 32-byte lowercase-hex id.
func Valid(idHex string) bool {
	canonical, err := Normalize(idHex)
	return err == nil && canonical == idHex
}

// New generates a fresh random 32-byte identifier in canonical form.
func New() (string, error) {
	b := make([]byte, ByteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

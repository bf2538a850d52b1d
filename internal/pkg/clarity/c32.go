package clarity

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Crockford-style alphabet used by Stacks c32check addresses.
const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var c32Lookup = func() map[byte]int64 {
	m := make(map[byte]int64, len(c32Alphabet))
	for i := 0; i < len(c32Alphabet); i++ {
		m[c32Alphabet[i]] = int64(i)
	}
	// Normalization aliases per the c32 spec.
	m['O'] = m['0']
	m['L'] = m['1']
	m['I'] = m['1']
	return m
}()

var (
	ErrInvalidAddress  = errors.New("invalid stacks address")
	ErrBadAddressCheck = errors.New("stacks address checksum mismatch")
)

// c32 is big-number base conversion with leading zeros carried through as
// literal '0' characters, not 5-bit chunking.
func c32Decode(s string) ([]byte, error) {
	s = strings.ToUpper(s)
	leading := 0
	for leading < len(s) && s[leading] == '0' {
		leading++
	}

	n := new(big.Int)
	base := big.NewInt(32)
	for i := 0; i < len(s); i++ {
		v, ok := c32Lookup[s[i]]
		if !ok {
			return nil, fmt.Errorf("%w: bad character %q", ErrInvalidAddress, s[i])
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(v))
	}

	out := n.Bytes()
	if leading > 0 {
		out = append(make([]byte, leading), out...)
	}
	return out, nil
}

func c32Encode(data []byte) string {
	leading := 0
	for leading < len(data) && data[leading] == 0 {
		leading++
	}

	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)
	var sb []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		sb = append(sb, c32Alphabet[mod.Int64()])
	}
	for i := 0; i < leading; i++ {
		sb = append(sb, '0')
	}
	// digits were produced least-significant first
	for i, j := 0, len(sb)-1; i < j; i, j = i+1, j-1 {
		sb[i], sb[j] = sb[j], sb[i]
	}
	return string(sb)
}

func c32Checksum(version byte, hash160 []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, hash160...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

// DecodeStacksAddress decodes a c32check standard principal ("SP...", "ST...")
// into its version byte and 20-byte hash160.
func DecodeStacksAddress(addr string) (version byte, hash160 []byte, err error) {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	if len(addr) < 3 || addr[0] != 'S' {
		return 0, nil, ErrInvalidAddress
	}
	v, ok := c32Lookup[addr[1]]
	if !ok {
		return 0, nil, ErrInvalidAddress
	}
	version = byte(v)

	payload, err := c32Decode(addr[2:])
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 5 || len(payload) > 24 {
		return 0, nil, ErrInvalidAddress
	}
	// Left-pad to hash160 + 4-byte checksum; c32 drops leading zero bytes.
	if len(payload) < 24 {
		payload = append(make([]byte, 24-len(payload)), payload...)
	}
	hash160 = payload[:20]
	check := payload[20:]
	if !bytes.Equal(check, c32Checksum(version, hash160)) {
		return 0, nil, ErrBadAddressCheck
	}
	return version, hash160, nil
}

// EncodeStacksAddress renders a version byte and hash160 as a c32check address.
func EncodeStacksAddress(version byte, hash160 []byte) (string, error) {
	if len(hash160) != 20 {
		return "", fmt.Errorf("%w: hash160 must be 20 bytes", ErrInvalidAddress)
	}
	payload := append(append([]byte{}, hash160...), c32Checksum(version, hash160)...)
	return "S" + string(c32Alphabet[version]) + c32Encode(payload), nil
}

// ValidStacksAddress reports whether addr is a well-formed standard principal.
func ValidStacksAddress(addr string) bool {
	_, _, err := DecodeStacksAddress(addr)
	return err == nil
}

package clarity

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Clarity wire type tags, as consumed by the node's call-read API.
const (
	wireInt               = 0x00
	wireUint              = 0x01
	wireBuff              = 0x02
	wireTrue              = 0x03
	wireFalse             = 0x04
	wireStandardPrincipal = 0x05
	wireContractPrincipal = 0x06
	wireResponseOk        = 0x07
	wireResponseErr       = 0x08
	wireNone              = 0x09
	wireSome              = 0x0a
	wireList              = 0x0b
	wireTuple             = 0x0c
	wireStringASCII       = 0x0d
)

var ErrBadWireValue = errors.New("malformed clarity wire value")

// SerializeUint renders a uint as 0x-prefixed hex wire bytes.
func SerializeUint(v uint64) string {
	buf := make([]byte, 17)
	buf[0] = wireUint
	binary.BigEndian.PutUint64(buf[9:], v)
	return "0x" + hex.EncodeToString(buf)
}

// SerializeBuff renders a byte buffer (given as lowercase hex) as wire bytes.
func SerializeBuff(hexStr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadWireValue, err)
	}
	buf := make([]byte, 5, 5+len(raw))
	buf[0] = wireBuff
	binary.BigEndian.PutUint32(buf[1:], uint32(len(raw)))
	buf = append(buf, raw...)
	return "0x" + hex.EncodeToString(buf), nil
}

// SerializeBool renders a boolean as wire bytes.
func SerializeBool(v bool) string {
	if v {
		return "0x03"
	}
	return "0x04"
}

// SerializePrincipal renders a standard principal as wire bytes.
func SerializePrincipal(addr string) (string, error) {
	version, hash160, err := DecodeStacksAddress(addr)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, 22)
	buf = append(buf, wireStandardPrincipal, version)
	buf = append(buf, hash160...)
	return "0x" + hex.EncodeToString(buf), nil
}

// WireValue is a decoded Clarity wire value. Only the shapes the gateway reads
// back from the contract are represented.
type WireValue struct {
	Kind      byte
	Uint      uint64
	Bool      bool
	Buff      []byte
	Principal string
	Str       string
	Inner     *WireValue           // response ok/err, optional some
	Tuple     map[string]WireValue // tuple fields
}

// IsOk reports whether the value is a (ok ...) response.
func (v WireValue) IsOk() bool { return v.Kind == wireResponseOk }

// IsErr reports whether the value is an (err ...) response.
func (v WireValue) IsErr() bool { return v.Kind == wireResponseErr }

// IsNone reports whether the value is an optional none.
func (v WireValue) IsNone() bool { return v.Kind == wireNone }

// Unwrap returns the inner value of a response or optional, or the value itself.
func (v WireValue) Unwrap() WireValue {
	if v.Inner != nil {
		return *v.Inner
	}
	return v
}

// DeserializeHex decodes a 0x-prefixed Clarity wire value.
func DeserializeHex(s string) (WireValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return WireValue{}, fmt.Errorf("%w: %v", ErrBadWireValue, err)
	}
	v, rest, err := deserialize(raw)
	if err != nil {
		return WireValue{}, err
	}
	if len(rest) != 0 {
		return WireValue{}, fmt.Errorf("%w: %d trailing bytes", ErrBadWireValue, len(rest))
	}
	return v, nil
}

func deserialize(raw []byte) (WireValue, []byte, error) {
	if len(raw) == 0 {
		return WireValue{}, nil, fmt.Errorf("%w: empty input", ErrBadWireValue)
	}
	kind := raw[0]
	rest := raw[1:]

	switch kind {
	case wireInt, wireUint:
		if len(rest) < 16 {
			return WireValue{}, nil, fmt.Errorf("%w: truncated integer", ErrBadWireValue)
		}
		n := new(big.Int).SetBytes(rest[:16])
		if !n.IsUint64() {
			return WireValue{}, nil, fmt.Errorf("%w: integer exceeds uint64 range", ErrBadWireValue)
		}
		return WireValue{Kind: kind, Uint: n.Uint64()}, rest[16:], nil

	case wireBuff:
		if len(rest) < 4 {
			return WireValue{}, nil, fmt.Errorf("%w: truncated buff length", ErrBadWireValue)
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return WireValue{}, nil, fmt.Errorf("%w: truncated buff", ErrBadWireValue)
		}
		return WireValue{Kind: kind, Buff: append([]byte{}, rest[:n]...)}, rest[n:], nil

	case wireTrue:
		return WireValue{Kind: kind, Bool: true}, rest, nil
	case wireFalse:
		return WireValue{Kind: kind, Bool: false}, rest, nil

	case wireStandardPrincipal:
		if len(rest) < 21 {
			return WireValue{}, nil, fmt.Errorf("%w: truncated principal", ErrBadWireValue)
		}
		addr, err := EncodeStacksAddress(rest[0], rest[1:21])
		if err != nil {
			return WireValue{}, nil, err
		}
		return WireValue{Kind: kind, Principal: addr}, rest[21:], nil

	case wireResponseOk, wireResponseErr, wireSome:
		inner, remaining, err := deserialize(rest)
		if err != nil {
			return WireValue{}, nil, err
		}
		return WireValue{Kind: kind, Inner: &inner}, remaining, nil

	case wireNone:
		return WireValue{Kind: kind}, rest, nil

	case wireStringASCII:
		if len(rest) < 4 {
			return WireValue{}, nil, fmt.Errorf("%w: truncated string length", ErrBadWireValue)
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return WireValue{}, nil, fmt.Errorf("%w: truncated string", ErrBadWireValue)
		}
		return WireValue{Kind: kind, Str: string(rest[:n])}, rest[n:], nil

	case wireTuple:
		if len(rest) < 4 {
			return WireValue{}, nil, fmt.Errorf("%w: truncated tuple length", ErrBadWireValue)
		}
		count := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		fields := make(map[string]WireValue, count)
		for i := uint32(0); i < count; i++ {
			if len(rest) < 1 {
				return WireValue{}, nil, fmt.Errorf("%w: truncated tuple key", ErrBadWireValue)
			}
			nameLen := int(rest[0])
			rest = rest[1:]
			if len(rest) < nameLen {
				return WireValue{}, nil, fmt.Errorf("%w: truncated tuple key", ErrBadWireValue)
			}
			name := string(rest[:nameLen])
			rest = rest[nameLen:]
			val, remaining, err := deserialize(rest)
			if err != nil {
				return WireValue{}, nil, err
			}
			fields[name] = val
			rest = remaining
		}
		return WireValue{Kind: kind, Tuple: fields}, rest, nil
	}

	return WireValue{}, nil, fmt.Errorf("%w: unsupported type tag 0x%02x", ErrBadWireValue, kind)
}

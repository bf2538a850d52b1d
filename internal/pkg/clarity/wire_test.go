package clarity

import (
	"bytes"
	"strings"
	"testing"
)

func testAddress(t *testing.T, version byte, fill byte) string {
	t.Helper()
	hash := bytes.Repeat([]byte{fill}, 20)
	addr, err := EncodeStacksAddress(version, hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return addr
}

func TestStacksAddressRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		version byte
		fill    byte
	}{
		{version: 22, fill: 0x11}, // mainnet single-sig
		{version: 26, fill: 0xfe}, // testnet single-sig
		{version: 22, fill: 0x00}, // leading zero bytes survive
	} {
		addr := testAddress(t, tt.version, tt.fill)
		version, hash160, err := DecodeStacksAddress(addr)
		if err != nil {
			t.Fatalf("DecodeStacksAddress(%q) error: %v", addr, err)
		}
		if version != tt.version {
			t.Fatalf("version = %d, want %d", version, tt.version)
		}
		if !bytes.Equal(hash160, bytes.Repeat([]byte{tt.fill}, 20)) {
			t.Fatalf("hash160 mismatch for %q", addr)
		}
	}
}

func TestDecodeStacksAddress_RejectsTampering(t *testing.T) {
	t.Parallel()

	addr := testAddress(t, 22, 0x42)

	// Flip one body character; the checksum must catch it.
	body := []byte(addr)
	last := len(body) - 1
	if body[last] == 'A' {
		body[last] = 'B'
	} else {
		body[last] = 'A'
	}
	if _, _, err := DecodeStacksAddress(string(body)); err == nil {
		t.Fatalf("expected checksum error for tampered address")
	}

	if _, _, err := DecodeStacksAddress("XP000"); err == nil {
		t.Fatalf("expected error for non-S prefix")
	}
	if _, _, err := DecodeStacksAddress(""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestSerializeUintRoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 25000, 1<<63 + 7} {
		wire := SerializeUint(v)
		got, err := DeserializeHex(wire)
		if err != nil {
			t.Fatalf("DeserializeHex(%q) error: %v", wire, err)
		}
		if got.Uint != v {
			t.Fatalf("round trip of %d = %d", v, got.Uint)
		}
	}
}

func TestSerializeBuffRoundTrip(t *testing.T) {
	t.Parallel()

	idHex := strings.Repeat("ab", 32)
	wire, err := SerializeBuff(idHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DeserializeHex(wire)
	if err != nil {
		t.Fatalf("DeserializeHex error: %v", err)
	}
	if len(got.Buff) != 32 {
		t.Fatalf("buff length = %d, want 32", len(got.Buff))
	}
}

func TestSerializePrincipalRoundTrip(t *testing.T) {
	t.Parallel()

	addr := testAddress(t, 22, 0x99)
	wire, err := SerializePrincipal(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DeserializeHex(wire)
	if err != nil {
		t.Fatalf("DeserializeHex error: %v", err)
	}
	if got.Principal != addr {
		t.Fatalf("principal round trip = %q, want %q", got.Principal, addr)
	}
}

func TestDeserializeResponseAndOptional(t *testing.T) {
	t.Parallel()

	// (ok u7)
	ok, err := DeserializeHex("0x07" + strings.TrimPrefix(SerializeUint(7), "0x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok.IsOk() || ok.Unwrap().Uint != 7 {
		t.Fatalf("expected (ok u7), got %+v", ok)
	}

	// (err u102)
	errVal, err := DeserializeHex("0x08" + strings.TrimPrefix(SerializeUint(102), "0x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errVal.IsErr() || errVal.Unwrap().Uint != 102 {
		t.Fatalf("expected (err u102), got %+v", errVal)
	}

	none, err := DeserializeHex("0x09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !none.IsNone() {
		t.Fatalf("expected none, got %+v", none)
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "0x", "0xzz", "0xff", "0x01ab", "0x0203"} {
		if _, err := DeserializeHex(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseAssetInfo(t *testing.T) {
	t.Parallel()

	asset, err := ParseAssetInfo("SP000.sbtc-token::sbtc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.ContractAddress != "SP000" || asset.ContractName != "sbtc-token" || asset.AssetName != "sbtc" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.String() != "SP000.sbtc-token::sbtc" {
		t.Fatalf("String() = %q", asset.String())
	}

	for _, in := range []string{"", "sbtc", "SP000.sbtc-token", "::sbtc", "SP000::sbtc"} {
		if _, err := ParseAssetInfo(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

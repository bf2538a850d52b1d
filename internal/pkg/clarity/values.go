package clarity

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags a wire-level Clarity argument descriptor.
type ValueType string

const (
	TypeUint              ValueType = "uint"
	TypeBuff              ValueType = "buff"
	TypeBool              ValueType = "bool"
	TypeStringASCII       ValueType = "string-ascii"
	TypePrincipal         ValueType = "principal"
	TypeContractPrincipal ValueType = "contract-principal"
	TypeNone              ValueType = "none"
	TypeSome              ValueType = "some"
)

// Value is a typed Clarity argument descriptor. It is a plain data shape a
// wallet can turn into real Clarity values; the gateway never signs anything.
type Value struct {
	Type    ValueType `json:"type"`
	Value   string    `json:"value,omitempty"`
	Address string    `json:"address,omitempty"`
	Name    string    `json:"name,omitempty"`
	Inner   *Value    `json:"inner,omitempty"`
}

// Uint builds an unsigned integer argument.
func Uint(v uint64) Value {
	return Value{Type: TypeUint, Value: strconv.FormatUint(v, 10)}
}

// Buff builds a byte-buffer argument from lowercase hex.
func Buff(hexStr string) Value {
	return Value{Type: TypeBuff, Value: strings.ToLower(hexStr)}
}

// Bool builds a boolean argument.
func Bool(v bool) Value {
	return Value{Type: TypeBool, Value: strconv.FormatBool(v)}
}

// StringASCII builds an ascii string argument.
func StringASCII(v string) Value {
	return Value{Type: TypeStringASCII, Value: v}
}

// Principal builds a standard principal argument.
func Principal(addr string) Value {
	return Value{Type: TypePrincipal, Value: addr}
}

// ContractPrincipal builds a contract principal argument.
func ContractPrincipal(addr, name string) Value {
	return Value{Type: TypeContractPrincipal, Address: addr, Name: name}
}

// None builds an optional none argument.
func None() Value {
	return Value{Type: TypeNone}
}

// Some wraps v in an optional some argument.
func Some(v Value) Value {
	inner := v
	return Value{Type: TypeSome, Inner: &inner}
}

// AssetInfo identifies a SIP-010 fungible token asset.
type AssetInfo struct {
	ContractAddress string `json:"contractAddress"`
	ContractName    string `json:"contractName"`
	AssetName       string `json:"assetName"`
}

// String renders the canonical "<address>.<contract>::<asset>" identity.
func (a AssetInfo) String() string {
	return fmt.Sprintf("%s.%s::%s", a.ContractAddress, a.ContractName, a.AssetName)
}

// ParseAssetInfo parses "<address>.<contract>::<asset>".
func ParseAssetInfo(s string) (AssetInfo, error) {
	contractPart, assetName, ok := strings.Cut(s, "::")
	if !ok || assetName == "" {
		return AssetInfo{}, fmt.Errorf("invalid asset identity %q: missing ::asset suffix", s)
	}
	addr, name, ok := strings.Cut(contractPart, ".")
	if !ok || addr == "" || name == "" {
		return AssetInfo{}, fmt.Errorf("invalid asset identity %q: want address.contract::asset", s)
	}
	return AssetInfo{ContractAddress: addr, ContractName: name, AssetName: assetName}, nil
}

// ParseContractID parses "<address>.<contract>".
func ParseContractID(s string) (address, name string, err error) {
	addr, contractName, ok := strings.Cut(s, ".")
	if !ok || addr == "" || contractName == "" {
		return "", "", fmt.Errorf("invalid contract id %q: want address.contract", s)
	}
	return addr, contractName, nil
}
